package gateway

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// VaultAddress is the designated custody account escrowed funds sit under.
var VaultAddress = common.HexToAddress("0x00000000000000000000000000000000000e5c00")

type escrowLot struct {
	asset     bool   // true: quota units, false: reference currency
	remaining uint64 // units for asset lots, currency for currency lots
	unitPrice uint64 // currency per unit; set via NoteOrder for currency lots
}

// EscrowVault implements the Escrow capability on top of two Ledgers. Custody
// is tracked per order id and moved through VaultAddress so ledger balances
// always account for every unit.
type EscrowVault struct {
	mu       sync.Mutex
	currency *Ledger
	asset    *Ledger
	lots     map[uint64]*escrowLot
}

func NewEscrowVault(currency, asset *Ledger) *EscrowVault {
	return &EscrowVault{
		currency: currency,
		asset:    asset,
		lots:     make(map[uint64]*escrowLot),
	}
}

// LockCurrency takes total currency from payer into custody for an order.
func (v *EscrowVault) LockCurrency(payer common.Address, total uint64, orderID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.lots[orderID]; exists {
		return fmt.Errorf("escrow: order %d already has a lot", orderID)
	}
	if err := v.currency.Transfer(total, payer, VaultAddress); err != nil {
		return err
	}
	v.lots[orderID] = &escrowLot{asset: false, remaining: total}
	return nil
}

// LockAsset takes quota units from payer into custody for an order.
func (v *EscrowVault) LockAsset(payer common.Address, amount uint64, orderID uint64, assetRef string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.lots[orderID]; exists {
		return fmt.Errorf("escrow: order %d already has a lot", orderID)
	}
	if err := v.asset.Transfer(amount, payer, VaultAddress); err != nil {
		return err
	}
	v.lots[orderID] = &escrowLot{asset: true, remaining: amount}
	return nil
}

// NoteOrder records the unit price for a currency lot. The vault cannot call
// back into the engine for order terms, so the node feeds it created-order
// events; creation always precedes any settle against the same id.
func (v *EscrowVault) NoteOrder(orderID uint64, price uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if lot, ok := v.lots[orderID]; ok && !lot.asset {
		lot.unitPrice = price
	}
}

// Release hands whatever custody remains for an order back to recipient.
func (v *EscrowVault) Release(orderID uint64, recipient common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	lot, ok := v.lots[orderID]
	if !ok {
		return fmt.Errorf("escrow: no lot for order %d", orderID)
	}
	if lot.remaining > 0 {
		ledger := v.currency
		if lot.asset {
			ledger = v.asset
		}
		if err := ledger.Transfer(lot.remaining, VaultAddress, recipient); err != nil {
			return err
		}
	}
	delete(v.lots, orderID)
	return nil
}

// Settle pays the escrowed leg of a fill to the filler: amount x unit price in
// currency for a buy order's lot, amount quota units for a sell order's lot.
func (v *EscrowVault) Settle(orderID uint64, filler common.Address, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	lot, ok := v.lots[orderID]
	if !ok {
		return fmt.Errorf("escrow: no lot for order %d", orderID)
	}

	payout := amount
	ledger := v.asset
	if !lot.asset {
		if lot.unitPrice == 0 {
			return fmt.Errorf("escrow: unit price unknown for order %d", orderID)
		}
		payout = amount * lot.unitPrice
		ledger = v.currency
	}
	if payout > lot.remaining {
		return fmt.Errorf("escrow: settle %d exceeds remaining custody %d for order %d",
			payout, lot.remaining, orderID)
	}
	if err := ledger.Transfer(payout, VaultAddress, filler); err != nil {
		return err
	}
	lot.remaining -= payout
	if lot.remaining == 0 {
		delete(v.lots, orderID)
	}
	return nil
}

// Held reports the custody remaining for an order, for inspection.
func (v *EscrowVault) Held(orderID uint64) (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	lot, ok := v.lots[orderID]
	if !ok {
		return 0, false
	}
	return lot.remaining, true
}
