// Package gateway provides in-process implementations of the collaborator
// interfaces the engine consumes. They exist so the node runs end to end
// without external services; the engine itself only ever sees the interfaces.
package gateway

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is a fungible balance ledger for one asset (either the quota asset
// or the reference currency).
type Ledger struct {
	mu       sync.RWMutex
	name     string
	balances map[common.Address]uint64
}

func NewLedger(name string) *Ledger {
	return &Ledger{
		name:     name,
		balances: make(map[common.Address]uint64),
	}
}

// Mint credits amount to an account. Used for funding test and devnet users.
func (l *Ledger) Mint(to common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
}

// BalanceOf returns the current balance.
func (l *Ledger) BalanceOf(user common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[user]
}

// Transfer moves amount between accounts. Fails when from cannot cover it.
func (l *Ledger) Transfer(amount uint64, from, to common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(amount, from, to)
}

func (l *Ledger) transferLocked(amount uint64, from, to common.Address) error {
	if l.balances[from] < amount {
		return fmt.Errorf("%s: insufficient balance for %s: have %d, need %d",
			l.name, from.Hex(), l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
