package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quotadex/quotadex/pkg/exchange"
	"github.com/quotadex/quotadex/pkg/gateway"
)

var (
	admin = common.HexToAddress("0xD000000000000000000000000000000000000001")
	alice = common.HexToAddress("0xD000000000000000000000000000000000000002")
	bob   = common.HexToAddress("0xD000000000000000000000000000000000000003")
)

type testClock struct{ h uint64 }

func (c *testClock) Now() uint64 { return c.h }

// newTestServer wires the engine against real in-process gateways, the way
// cmd/node does.
func newTestServer(t *testing.T) (*Server, *testClock) {
	t.Helper()

	currency := gateway.NewLedger("currency")
	asset := gateway.NewLedger("quota")
	vault := gateway.NewEscrowVault(currency, asset)
	for _, u := range []common.Address{alice, bob} {
		currency.Mint(u, 1_000_000)
		asset.Mint(u, 10_000)
	}

	clock := &testClock{h: 100}
	engine, err := exchange.NewEngine(exchange.Options{
		Admin: admin,
		Store: exchange.NewMemStore(),
		Gateways: exchange.Gateways{
			Registry:   gateway.NewStaticRegistry(alice, bob),
			Compliance: gateway.NewRuleCompliance(0),
			Oracle:     gateway.NewThresholdOracle(1, 1),
			Escrow:     vault,
			Asset:      asset,
			Currency:   currency,
		},
		Clock: clock,
		Sink: exchange.EventSinkFunc(func(ev exchange.Event) {
			if ev.Type == exchange.EventOrderCreated && ev.Side == "buy" {
				vault.NoteOrder(ev.OrderID, ev.Price)
			}
		}),
		AssetRef: "QUOTA",
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewServer(engine, clock, zap.NewNop()), clock
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateAndGetOrder(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: alice.Hex(), Side: "sell", Amount: 100, Price: 10, Expiry: 200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[createOrderResponse](t, rec)
	if created.OrderID != 1 {
		t.Fatalf("order id %d", created.OrderID)
	}

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/orders/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	order := decode[orderResponse](t, rec)
	if order.Creator != alice.Hex() || order.Side != "sell" || order.Amount != 100 || !order.Active {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Status != "open" {
		t.Fatalf("status %q", order.Status)
	}
}

func TestGetMissingOrder(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), "GET", "/api/v1/orders/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if resp.Code != 103 || resp.Error != "ORDER_NOT_FOUND" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestFillFlowOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: alice.Hex(), Side: "sell", Amount: 100, Price: 10, Expiry: 200,
	})

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/orders/1/fill", fillOrderRequest{
		Caller: bob.Hex(), Amount: 60,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("fill status %d: %s", rec.Code, rec.Body.String())
	}

	// Self-trade surfaces as 403 with the engine code.
	rec = doJSON(t, s.Handler(), "POST", "/api/v1/orders/1/fill", fillOrderRequest{
		Caller: alice.Hex(), Amount: 10,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self trade status %d", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Error != "SELF_TRADE" {
		t.Fatalf("unexpected error: %+v", resp)
	}

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/orders/1", nil)
	order := decode[orderResponse](t, rec)
	if order.Filled != 60 || order.Status != "partially_filled" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: alice.Hex(), Side: "buy", Amount: 10, Price: 5, Expiry: 200,
	})

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/orders/1/cancel", cancelOrderRequest{Caller: bob.Hex()})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign cancel status %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/orders/1/cancel", cancelOrderRequest{Caller: alice.Hex()})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/orders/1", nil)
	order := decode[orderResponse](t, rec)
	if order.Active || order.Status != "cancelled" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestUserOrdersEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
			Caller: alice.Hex(), Side: "sell", Amount: 10, Price: 5, Expiry: 200,
		})
	}

	rec := doJSON(t, s.Handler(), "GET", fmt.Sprintf("/api/v1/users/%s/orders", alice.Hex()), nil)
	list := decode[userOrdersResponse](t, rec)
	if list.Count != 3 || len(list.Orders) != 3 || list.Orders[2] != 3 {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = doJSON(t, s.Handler(), "GET", fmt.Sprintf("/api/v1/users/%s/orders/1", alice.Hex()), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), "GET", fmt.Sprintf("/api/v1/users/%s/orders/9", alice.Hex()), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("out-of-range index status %d", rec.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/admin/pause", adminRequest{Caller: bob.Hex()})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin pause status %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/admin/pause", adminRequest{Caller: admin.Hex()})
	if rec.Code != http.StatusOK {
		t.Fatalf("pause status %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: alice.Hex(), Side: "sell", Amount: 10, Price: 5, Expiry: 200,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("paused create status %d", rec.Code)
	}

	status := decode[statusResponse](t, doJSON(t, s.Handler(), "GET", "/api/v1/status", nil))
	if !status.Paused || status.Admin != admin.Hex() || status.Clock != 100 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.StateDigest == "" {
		t.Fatal("empty state digest")
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/admin/transfer", adminRequest{
		Caller: admin.Hex(), NewAdmin: admin.Hex(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self transfer status %d", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Error != "INVALID_RECIPIENT" {
		t.Fatalf("unexpected error: %+v", resp)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/admin/transfer", adminRequest{
		Caller: admin.Hex(), NewAdmin: bob.Hex(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status %d", rec.Code)
	}
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: "not-an-address", Side: "sell", Amount: 10, Price: 5, Expiry: 200,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad caller status %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/v1/orders", createOrderRequest{
		Caller: alice.Hex(), Side: "short", Amount: 10, Price: 5, Expiry: 200,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad side status %d", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Error != "INVALID_ORDER_TYPE" {
		t.Fatalf("unexpected error: %+v", resp)
	}

	rec = doJSON(t, s.Handler(), "GET", "/api/v1/orders/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
}
