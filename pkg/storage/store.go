package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quotadex/quotadex/pkg/exchange"
)

// Store is the Pebble-backed implementation of exchange.Store. Values are
// JSON; every Commit goes through one pebble batch so an operation's writes
// land atomically or not at all.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// LoadState loads the persisted global state. ok=false on a fresh database.
func (s *Store) LoadState() (*exchange.GlobalState, bool, error) {
	data, closer, err := s.db.Get(stateKey())
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state: %w", err)
	}
	defer closer.Close()

	var st exchange.GlobalState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, true, nil
}

// LoadOrders scans the full order table in id order.
func (s *Store) LoadOrders() ([]*exchange.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("order iter: %w", err)
	}
	defer iter.Close()

	var orders []*exchange.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o exchange.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("unmarshal order %q: %w", iter.Key(), err)
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// LoadUserIndex scans every per-user order-id list.
func (s *Store) LoadUserIndex() (map[common.Address][]uint64, error) {
	prefix := []byte(prefixIndex)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("index iter: %w", err)
	}
	defer iter.Close()

	out := make(map[common.Address][]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		user, err := userFromIndexKey(iter.Key())
		if err != nil {
			return nil, err
		}
		var ids []uint64
		if err := json.Unmarshal(iter.Value(), &ids); err != nil {
			return nil, fmt.Errorf("unmarshal index for %s: %w", user.Hex(), err)
		}
		out[user] = ids
	}
	return out, nil
}

// Commit applies one engine mutation atomically.
func (s *Store) Commit(mut exchange.Mutation) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if mut.State != nil {
		data, err := json.Marshal(mut.State)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		if err := batch.Set(stateKey(), data, nil); err != nil {
			return err
		}
	}

	for _, o := range mut.Orders {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", o.ID, err)
		}
		if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
			return err
		}
	}

	// Index appends rewrite the whole per-user list. Reads go against the db,
	// which is safe: the engine serializes commits.
	pending := make(map[common.Address][]uint64)
	for _, ap := range mut.Appends {
		ids, ok := pending[ap.User]
		if !ok {
			var err error
			ids, err = s.loadIDs(ap.User)
			if err != nil {
				return err
			}
		}
		pending[ap.User] = append(ids, ap.OrderID)
	}
	for user, ids := range pending {
		data, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("marshal index for %s: %w", user.Hex(), err)
		}
		if err := batch.Set(indexKey(user), data, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) loadIDs(user common.Address) ([]uint64, error) {
	data, closer, err := s.db.Get(indexKey(user))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get index for %s: %w", user.Hex(), err)
	}
	defer closer.Close()

	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal index for %s: %w", user.Hex(), err)
	}
	return ids, nil
}

var _ exchange.Store = (*Store)(nil)
