package exchange

import "github.com/ethereum/go-ethereum/common"

// MaxOrdersPerUser caps the per-user order index. The index is append-only, so
// the cap bounds lifetime creations per identity, not concurrently open orders.
const MaxOrdersPerUser = 50

// GlobalState is the admin/pause/counter triple shared by every operation.
// It is owned by the Engine and persisted on every mutation.
type GlobalState struct {
	Paused       bool           `json:"paused"`
	Admin        common.Address `json:"admin"`
	OrderCounter uint64         `json:"orderCounter"` // monotonic, ids never reused
}

// userOrderIndex tracks, per identity, the ids of every order the identity has
// created, in creation order. Entries are never removed: fills and cancels
// close an order but leave the index untouched.
type userOrderIndex struct {
	orders map[common.Address][]uint64
}

func newUserOrderIndex() *userOrderIndex {
	return &userOrderIndex{orders: make(map[common.Address][]uint64)}
}

func (ix *userOrderIndex) count(user common.Address) uint64 {
	return uint64(len(ix.orders[user]))
}

// at returns the id at position i, or false when out of range.
func (ix *userOrderIndex) at(user common.Address, i uint64) (uint64, bool) {
	ids := ix.orders[user]
	if i >= uint64(len(ids)) {
		return 0, false
	}
	return ids[i], true
}

func (ix *userOrderIndex) append(user common.Address, id uint64) {
	ix.orders[user] = append(ix.orders[user], id)
}
