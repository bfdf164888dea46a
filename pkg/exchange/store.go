package exchange

import "github.com/ethereum/go-ethereum/common"

// IndexAppend records one user-index entry added by a mutation.
type IndexAppend struct {
	User    common.Address
	OrderID uint64
}

// Mutation is the full set of writes produced by one engine operation. Stores
// must apply it atomically: either every write lands or none do.
type Mutation struct {
	State   *GlobalState
	Orders  []*Order
	Appends []IndexAppend
}

// Store is the durable backing for the order table, the per-user index and the
// global state. The engine keeps everything in memory and writes through on
// each successful operation; Load* is only called once, at startup.
type Store interface {
	LoadState() (*GlobalState, bool, error)
	LoadOrders() ([]*Order, error)
	LoadUserIndex() (map[common.Address][]uint64, error)
	Commit(mut Mutation) error
	Close() error
}

// MemStore is an in-memory Store. Used by tests and as the default when no
// data directory is configured.
type MemStore struct {
	state  *GlobalState
	orders map[uint64]*Order
	index  map[common.Address][]uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders: make(map[uint64]*Order),
		index:  make(map[common.Address][]uint64),
	}
}

func (m *MemStore) LoadState() (*GlobalState, bool, error) {
	if m.state == nil {
		return nil, false, nil
	}
	st := *m.state
	return &st, true, nil
}

func (m *MemStore) LoadOrders() ([]*Order, error) {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.clone())
	}
	return out, nil
}

func (m *MemStore) LoadUserIndex() (map[common.Address][]uint64, error) {
	out := make(map[common.Address][]uint64, len(m.index))
	for u, ids := range m.index {
		out[u] = append([]uint64(nil), ids...)
	}
	return out, nil
}

func (m *MemStore) Commit(mut Mutation) error {
	if mut.State != nil {
		st := *mut.State
		m.state = &st
	}
	for _, o := range mut.Orders {
		m.orders[o.ID] = o.clone()
	}
	for _, ap := range mut.Appends {
		m.index[ap.User] = append(m.index[ap.User], ap.OrderID)
	}
	return nil
}

func (m *MemStore) Close() error { return nil }
