package exchange

import "github.com/ethereum/go-ethereum/common"

type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventOrderFilled    EventType = "order_filled"
	EventOrderCancelled EventType = "order_cancelled"
	EventPauseChanged   EventType = "pause_changed"
	EventAdminChanged   EventType = "admin_changed"
)

// Event is a domain event emitted after a state mutation commits. Fields not
// relevant to the event type are zero.
type Event struct {
	Type    EventType      `json:"type"`
	OrderID uint64         `json:"orderId,omitempty"`
	Side    string         `json:"side,omitempty"`
	Amount  uint64         `json:"amount,omitempty"`
	Price   uint64         `json:"price,omitempty"`
	Actor   common.Address `json:"actor"`
	Paused  bool           `json:"paused,omitempty"`
}

// EventSink receives committed events. Implementations must not block; the
// engine emits while holding its lock.
type EventSink interface {
	Publish(ev Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) Publish(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(Event) {}
