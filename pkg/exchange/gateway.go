package exchange

import "github.com/ethereum/go-ethereum/common"

// Collaborator capabilities consumed by the engine. Each call is synchronous
// and all-or-nothing: any error aborts the surrounding operation before the
// engine commits state, so callers never observe partial mutations.

// Registry answers membership: only registered identities may create or fill.
type Registry interface {
	IsRegistered(user common.Address) bool
}

// Compliance approves or denies a specific trade before settlement.
type Compliance interface {
	CheckTradeCompliance(buyer, seller common.Address, amount, price uint64) bool
}

// Oracle validates a caller's eligibility metric.
type Oracle interface {
	ValidateMetric(user common.Address) bool
}

// Escrow holds funds or asset units pending settlement or release. Lock calls
// are keyed by order id; Release and Settle operate on previously locked
// custody for that id.
type Escrow interface {
	// LockCurrency takes total currency (amount x price) from payer into
	// custody for a buy order.
	LockCurrency(payer common.Address, total uint64, orderID uint64) error
	// LockAsset takes quota units from payer into custody for a sell order.
	LockAsset(payer common.Address, amount uint64, orderID uint64, assetRef string) error
	// Release hands the full remaining custody for an order back to recipient.
	Release(orderID uint64, recipient common.Address) error
	// Settle pays out the escrowed leg of a fill to the filler: currency for a
	// buy order, asset units for a sell order.
	Settle(orderID uint64, filler common.Address, amount uint64) error
}

// AssetLedger moves quota units between identities outside escrow.
type AssetLedger interface {
	Transfer(amount uint64, from, to common.Address) error
}

// CurrencyLedger moves reference currency between identities outside escrow.
type CurrencyLedger interface {
	Transfer(amount uint64, from, to common.Address) error
}

// Gateways bundles every collaborator the engine consults.
type Gateways struct {
	Registry   Registry
	Compliance Compliance
	Oracle     Oracle
	Escrow     Escrow
	Asset      AssetLedger
	Currency   CurrencyLedger
}
