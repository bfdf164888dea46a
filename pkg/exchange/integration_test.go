package exchange_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quotadex/quotadex/pkg/exchange"
	"github.com/quotadex/quotadex/pkg/gateway"
)

// These tests run the engine against the real in-process gateways and check
// that every unit of currency and quota is accounted for after each step.

type world struct {
	engine   *exchange.Engine
	currency *gateway.Ledger
	asset    *gateway.Ledger
	vault    *gateway.EscrowVault
	clock    uint64
}

var (
	wAdmin  = common.HexToAddress("0xE000000000000000000000000000000000000001")
	wSeller = common.HexToAddress("0xE000000000000000000000000000000000000002")
	wBuyer  = common.HexToAddress("0xE000000000000000000000000000000000000003")
)

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{
		currency: gateway.NewLedger("currency"),
		asset:    gateway.NewLedger("quota"),
		clock:    100,
	}
	w.vault = gateway.NewEscrowVault(w.currency, w.asset)

	for _, u := range []common.Address{wSeller, wBuyer} {
		w.currency.Mint(u, 10_000)
		w.asset.Mint(u, 1_000)
	}

	engine, err := exchange.NewEngine(exchange.Options{
		Admin: wAdmin,
		Store: exchange.NewMemStore(),
		Gateways: exchange.Gateways{
			Registry:   gateway.NewStaticRegistry(wSeller, wBuyer),
			Compliance: gateway.NewRuleCompliance(0),
			Oracle:     gateway.NewThresholdOracle(1, 1),
			Escrow:     w.vault,
			Asset:      w.asset,
			Currency:   w.currency,
		},
		Clock: exchange.ClockFunc(func() uint64 { return w.clock }),
		Sink: exchange.EventSinkFunc(func(ev exchange.Event) {
			if ev.Type == exchange.EventOrderCreated && ev.Side == "buy" {
				w.vault.NoteOrder(ev.OrderID, ev.Price)
			}
		}),
		AssetRef: "QUOTA",
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	w.engine = engine
	return w
}

func (w *world) totalCurrency() uint64 {
	return w.currency.BalanceOf(wSeller) + w.currency.BalanceOf(wBuyer) +
		w.currency.BalanceOf(gateway.VaultAddress)
}

func (w *world) totalAsset() uint64 {
	return w.asset.BalanceOf(wSeller) + w.asset.BalanceOf(wBuyer) +
		w.asset.BalanceOf(gateway.VaultAddress)
}

func TestSellOrderLifecycleConservesBalances(t *testing.T) {
	w := newWorld(t)

	id, err := w.engine.CreateSellOrder(wSeller, 100, 10, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 100 quota units moved into escrow custody.
	if got := w.asset.BalanceOf(wSeller); got != 900 {
		t.Fatalf("seller quota after lock: %d", got)
	}
	if got := w.asset.BalanceOf(gateway.VaultAddress); got != 100 {
		t.Fatalf("vault quota after lock: %d", got)
	}

	if err := w.engine.FillOrder(wBuyer, id, 60); err != nil {
		t.Fatalf("fill: %v", err)
	}
	// Buyer paid 600 currency and received 60 quota from escrow.
	if got := w.currency.BalanceOf(wBuyer); got != 9_400 {
		t.Fatalf("buyer currency: %d", got)
	}
	if got := w.currency.BalanceOf(wSeller); got != 10_600 {
		t.Fatalf("seller currency: %d", got)
	}
	if got := w.asset.BalanceOf(wBuyer); got != 1_060 {
		t.Fatalf("buyer quota: %d", got)
	}

	if err := w.engine.CancelOrder(wSeller, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// The unfilled 40 units came back.
	if got := w.asset.BalanceOf(wSeller); got != 940 {
		t.Fatalf("seller quota after cancel: %d", got)
	}
	if got := w.asset.BalanceOf(gateway.VaultAddress); got != 0 {
		t.Fatalf("vault quota after cancel: %d", got)
	}

	if w.totalCurrency() != 20_000 || w.totalAsset() != 2_000 {
		t.Fatalf("supply not conserved: currency=%d asset=%d", w.totalCurrency(), w.totalAsset())
	}
}

func TestBuyOrderLifecycleConservesBalances(t *testing.T) {
	w := newWorld(t)

	id, err := w.engine.CreateBuyOrder(wBuyer, 50, 20, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 1000 currency locked.
	if got := w.currency.BalanceOf(wBuyer); got != 9_000 {
		t.Fatalf("buyer currency after lock: %d", got)
	}

	if err := w.engine.FillOrder(wSeller, id, 50); err != nil {
		t.Fatalf("fill: %v", err)
	}
	// Seller delivered 50 quota and was paid 1000 from escrow.
	if got := w.asset.BalanceOf(wBuyer); got != 1_050 {
		t.Fatalf("buyer quota: %d", got)
	}
	if got := w.currency.BalanceOf(wSeller); got != 11_000 {
		t.Fatalf("seller currency: %d", got)
	}
	if got := w.currency.BalanceOf(gateway.VaultAddress); got != 0 {
		t.Fatalf("vault currency after full fill: %d", got)
	}

	order, _ := w.engine.GetOrder(id)
	if order.Active || order.Filled != 50 {
		t.Fatalf("order not closed: %+v", order)
	}

	if w.totalCurrency() != 20_000 || w.totalAsset() != 2_000 {
		t.Fatalf("supply not conserved: currency=%d asset=%d", w.totalCurrency(), w.totalAsset())
	}
}

func TestFillFailsWhenFillerCannotPay(t *testing.T) {
	w := newWorld(t)

	id, err := w.engine.CreateSellOrder(wSeller, 100, 1_000, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 50 x 1000 = 50_000 currency, more than the buyer holds.
	err = w.engine.FillOrder(wBuyer, id, 50)
	if code, ok := exchange.CodeOf(err); !ok || code != exchange.ErrInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}

	order, _ := w.engine.GetOrder(id)
	if order.Filled != 0 || !order.Active {
		t.Fatalf("failed fill mutated order: %+v", order)
	}
	if w.totalCurrency() != 20_000 {
		t.Fatalf("currency supply changed: %d", w.totalCurrency())
	}
}
