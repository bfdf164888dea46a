package exchange

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// Engine orchestrates the order book: validation chains, state mutation,
// gateway calls and event emission. All public operations run under one mutex,
// so each executes as an indivisible unit and check-then-act on an order's
// remaining quantity is atomic with the write.
type Engine struct {
	mu sync.RWMutex

	state  GlobalState
	orders map[uint64]*Order
	index  *userOrderIndex

	store    Store
	gw       Gateways
	clock    Clock
	sink     EventSink
	log      *zap.Logger
	assetRef string
	maxUser  uint64
}

// Options configures a new Engine. Store, Clock and every gateway are
// required; Sink and Logger default to no-ops.
type Options struct {
	Admin    common.Address
	Store    Store
	Gateways Gateways
	Clock    Clock
	Sink     EventSink
	Logger   *zap.Logger
	AssetRef string // escrow reference for the quota asset, e.g. "QUOTA"

	// MaxOrdersPerUser overrides the default cap when non-zero.
	MaxOrdersPerUser uint64
}

// NewEngine builds an engine and replays persisted state from the store.
// A fresh store is initialized with opts.Admin and a zero counter.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("engine: clock is required")
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxOrdersPerUser == 0 {
		opts.MaxOrdersPerUser = MaxOrdersPerUser
	}

	e := &Engine{
		orders:   make(map[uint64]*Order),
		index:    newUserOrderIndex(),
		store:    opts.Store,
		gw:       opts.Gateways,
		clock:    opts.Clock,
		sink:     opts.Sink,
		log:      opts.Logger,
		assetRef: opts.AssetRef,
		maxUser:  opts.MaxOrdersPerUser,
	}

	st, ok, err := opts.Store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("engine: load state: %w", err)
	}
	if ok {
		e.state = *st
	} else {
		e.state = GlobalState{Admin: opts.Admin}
		if err := opts.Store.Commit(Mutation{State: &e.state}); err != nil {
			return nil, fmt.Errorf("engine: init state: %w", err)
		}
	}

	orders, err := opts.Store.LoadOrders()
	if err != nil {
		return nil, fmt.Errorf("engine: load orders: %w", err)
	}
	for _, o := range orders {
		e.orders[o.ID] = o
	}

	idx, err := opts.Store.LoadUserIndex()
	if err != nil {
		return nil, fmt.Errorf("engine: load user index: %w", err)
	}
	for u, ids := range idx {
		e.index.orders[u] = ids
	}

	e.log.Info("engine_started",
		zap.String("admin", e.state.Admin.Hex()),
		zap.Uint64("order_counter", e.state.OrderCounter),
		zap.Int("orders", len(e.orders)),
		zap.Bool("paused", e.state.Paused))
	return e, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error { return e.store.Close() }

// ---- admin / pause gate ----

// Pause halts create, cancel and fill. Reads stay available.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes trading operations.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.state.Admin {
		return ErrUnauthorized
	}
	st := e.state
	st.Paused = paused
	if err := e.store.Commit(Mutation{State: &st}); err != nil {
		return fmt.Errorf("engine: persist pause: %w", err)
	}
	e.state = st
	e.log.Info("pause_changed", zap.Bool("paused", paused), zap.String("caller", caller.Hex()))
	e.sink.Publish(Event{Type: EventPauseChanged, Actor: caller, Paused: paused})
	return nil
}

// SetAdmin hands the admin role to newAdmin. Reassigning to yourself is
// rejected; any other identity is allowed.
func (e *Engine) SetAdmin(caller, newAdmin common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.state.Admin {
		return ErrUnauthorized
	}
	if newAdmin == caller {
		return ErrInvalidRecipient
	}
	st := e.state
	st.Admin = newAdmin
	if err := e.store.Commit(Mutation{State: &st}); err != nil {
		return fmt.Errorf("engine: persist admin: %w", err)
	}
	e.state = st
	e.log.Info("admin_changed", zap.String("admin", newAdmin.Hex()))
	e.sink.Publish(Event{Type: EventAdminChanged, Actor: newAdmin})
	return nil
}

// ---- order creation ----

// CreateBuyOrder posts a standing buy offer. The total currency cost
// (amount x price) is locked in escrow before the order is recorded.
func (e *Engine) CreateBuyOrder(caller common.Address, amount, price, expiry uint64) (uint64, error) {
	return e.createOrder(caller, Buy, amount, price, expiry)
}

// CreateSellOrder posts a standing sell offer. The quota amount is locked in
// escrow before the order is recorded.
func (e *Engine) CreateSellOrder(caller common.Address, amount, price, expiry uint64) (uint64, error) {
	return e.createOrder(caller, Sell, amount, price, expiry)
}

func (e *Engine) createOrder(caller common.Address, side Side, amount, price, expiry uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Paused {
		return 0, ErrPaused
	}
	if !e.gw.Registry.IsRegistered(caller) {
		return 0, ErrUnauthorized
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if price == 0 {
		return 0, ErrInvalidPrice
	}
	if expiry <= e.clock.Now() {
		return 0, ErrInvalidExpiry
	}
	if !e.gw.Oracle.ValidateMetric(caller) {
		return 0, ErrOracleFail
	}

	// Cap before lock: a doomed order must never leave funds in escrow.
	if e.index.count(caller) >= e.maxUser {
		return 0, ErrMaxOrdersReached
	}

	total := amount * price
	if total/amount != price {
		return 0, ErrInvalidAmount
	}

	id := e.state.OrderCounter + 1
	var lockErr error
	switch side {
	case Buy:
		lockErr = e.gw.Escrow.LockCurrency(caller, total, id)
	case Sell:
		lockErr = e.gw.Escrow.LockAsset(caller, amount, id, e.assetRef)
	default:
		return 0, ErrInvalidOrderType
	}
	if lockErr != nil {
		e.log.Warn("escrow_lock_failed", zap.Uint64("order_id", id), zap.Error(lockErr))
		return 0, ErrEscrowFail
	}

	order := &Order{
		ID:      id,
		Creator: caller,
		Side:    side,
		Amount:  amount,
		Price:   price,
		Expiry:  expiry,
		Active:  true,
	}
	st := e.state
	st.OrderCounter = id

	mut := Mutation{
		State:   &st,
		Orders:  []*Order{order},
		Appends: []IndexAppend{{User: caller, OrderID: id}},
	}
	if err := e.store.Commit(mut); err != nil {
		// The lock already happened; hand custody back before failing.
		if relErr := e.gw.Escrow.Release(id, caller); relErr != nil {
			e.log.Error("escrow_release_failed_after_commit_error",
				zap.Uint64("order_id", id), zap.Error(relErr))
		}
		return 0, fmt.Errorf("engine: persist order: %w", err)
	}

	e.state = st
	e.orders[id] = order
	e.index.append(caller, id)

	e.log.Info("order_created",
		zap.Uint64("order_id", id),
		zap.String("side", side.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("price", price),
		zap.Uint64("expiry", expiry),
		zap.String("creator", caller.Hex()))
	e.sink.Publish(Event{
		Type:    EventOrderCreated,
		OrderID: id,
		Side:    side.String(),
		Amount:  amount,
		Price:   price,
		Actor:   caller,
	})
	return id, nil
}

// ---- cancellation ----

// CancelOrder closes an active order and releases the creator's escrowed
// funds or asset. Only the creator may cancel.
func (e *Engine) CancelOrder(caller common.Address, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if e.state.Paused {
		return ErrPaused
	}
	if caller != order.Creator {
		return ErrUnauthorized
	}
	if !order.Active {
		return ErrOrderAlreadyFilled
	}

	if err := e.gw.Escrow.Release(orderID, caller); err != nil {
		e.log.Warn("escrow_release_failed", zap.Uint64("order_id", orderID), zap.Error(err))
		return ErrEscrowFail
	}

	updated := order.clone()
	updated.Active = false
	if err := e.store.Commit(Mutation{Orders: []*Order{updated}}); err != nil {
		return fmt.Errorf("engine: persist cancel: %w", err)
	}
	order.Active = false

	e.log.Info("order_cancelled", zap.Uint64("order_id", orderID), zap.String("creator", caller.Hex()))
	e.sink.Publish(Event{Type: EventOrderCancelled, OrderID: orderID, Actor: caller})
	return nil
}

// ---- fill ----

// FillOrder settles fillAmount units against a standing order. Partial fills
// are allowed; the order closes once filled reaches amount.
func (e *Engine) FillOrder(caller common.Address, orderID, fillAmount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if e.state.Paused {
		return ErrPaused
	}
	if !order.Active {
		return ErrOrderAlreadyFilled
	}
	if fillAmount == 0 || fillAmount > order.Remaining() {
		return ErrInvalidAmount
	}
	if caller == order.Creator {
		return ErrSelfTrade
	}
	if !e.gw.Registry.IsRegistered(caller) {
		return ErrUnauthorized
	}
	if e.clock.Now() >= order.Expiry {
		return ErrOrderExpired
	}
	if !e.gw.Compliance.CheckTradeCompliance(caller, order.Creator, fillAmount, order.Price) {
		return ErrComplianceFail
	}
	if !e.gw.Oracle.ValidateMetric(caller) {
		return ErrOracleFail
	}

	// Settlement. The direct leg moves between the two parties, the escrowed
	// leg pays out of the creator's locked custody.
	switch order.Side {
	case Buy:
		// Filler delivers the asset; escrow pays the filler in currency.
		if err := e.gw.Asset.Transfer(fillAmount, caller, order.Creator); err != nil {
			return ErrInsufficientFunds
		}
	case Sell:
		// Filler pays currency; escrow releases the asset to the filler.
		if err := e.gw.Currency.Transfer(fillAmount*order.Price, caller, order.Creator); err != nil {
			return ErrInsufficientFunds
		}
	default:
		return ErrInvalidOrderType
	}
	if err := e.gw.Escrow.Settle(orderID, caller, fillAmount); err != nil {
		e.log.Warn("escrow_settle_failed", zap.Uint64("order_id", orderID), zap.Error(err))
		return ErrEscrowFail
	}

	updated := order.clone()
	updated.Filled += fillAmount
	if updated.Filled == updated.Amount {
		updated.Active = false
	}
	if err := e.store.Commit(Mutation{Orders: []*Order{updated}}); err != nil {
		return fmt.Errorf("engine: persist fill: %w", err)
	}
	order.Filled = updated.Filled
	order.Active = updated.Active

	e.log.Info("order_filled",
		zap.Uint64("order_id", orderID),
		zap.String("filler", caller.Hex()),
		zap.Uint64("amount", fillAmount),
		zap.Uint64("filled_total", order.Filled),
		zap.Bool("active", order.Active))
	e.sink.Publish(Event{
		Type:    EventOrderFilled,
		OrderID: orderID,
		Amount:  fillAmount,
		Actor:   caller,
	})
	return nil
}

// ---- queries ----

// GetOrder returns a copy of the order, or false if it never existed.
func (e *Engine) GetOrder(orderID uint64) (*Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[orderID]
	if !ok {
		return nil, false
	}
	return o.clone(), true
}

func (e *Engine) GetUserOrderCount(user common.Address) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.count(user)
}

func (e *Engine) GetUserOrder(user common.Address, i uint64) (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.at(user, i)
}

func (e *Engine) IsPaused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Paused
}

func (e *Engine) GetAdmin() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Admin
}

func (e *Engine) GetOrderCounter() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.OrderCounter
}

// StateDigest returns a deterministic sha3-256 over the global state and every
// order record, in id order. Exposed for audit and restart verification.
func (e *Engine) StateDigest() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h := sha3.New256()
	writeU64 := func(v uint64) {
		var b [8]byte
		for i := 7; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		h.Write(b[:])
	}

	writeU64(e.state.OrderCounter)
	if e.state.Paused {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(e.state.Admin.Bytes())

	ids := make([]uint64, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o := e.orders[id]
		writeU64(o.ID)
		h.Write(o.Creator.Bytes())
		h.Write([]byte{byte(o.Side)})
		writeU64(o.Amount)
		writeU64(o.Price)
		writeU64(o.Filled)
		writeU64(o.Expiry)
		if o.Active {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
