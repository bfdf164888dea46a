package exchange

import "github.com/ethereum/go-ethereum/common"

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Order is a standing offer to trade the quota asset against the reference
// currency. Orders are never deleted: closed orders stay in the book for audit.
type Order struct {
	ID      uint64         `json:"id"`
	Creator common.Address `json:"creator"`
	Side    Side           `json:"side"`
	Amount  uint64         `json:"amount"` // quota units offered or sought
	Price   uint64         `json:"price"`  // currency per unit
	Filled  uint64         `json:"filled"`
	Expiry  uint64         `json:"expiry"` // logical clock value
	Active  bool           `json:"active"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() uint64 {
	return o.Amount - o.Filled
}

// Status reports the lifecycle state of the order.
type Status int8

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilledClosed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilledClosed:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (o *Order) Status() Status {
	switch {
	case o.Active && o.Filled == 0:
		return StatusOpen
	case o.Active:
		return StatusPartiallyFilled
	case o.Filled == o.Amount:
		return StatusFilledClosed
	default:
		return StatusCancelled
	}
}

// clone returns a copy so callers can never mutate stored book state.
func (o *Order) clone() *Order {
	c := *o
	return &c
}
