package exchange

// Clock supplies the logical time used for order expiry. Expiry is only ever
// checked reactively at fill time; nothing in the engine reaps expired orders.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }
