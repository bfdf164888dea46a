package exchange

import "fmt"

// Code is a stable numeric error code returned by every engine operation.
// The values are part of the wire contract and must never be renumbered.
type Code uint32

const (
	ErrUnauthorized       Code = 100
	ErrInvalidAmount      Code = 101
	ErrInvalidPrice       Code = 102
	ErrOrderNotFound      Code = 103
	ErrInsufficientFunds  Code = 104
	ErrPaused             Code = 105
	ErrInvalidOrderType   Code = 106
	ErrOrderAlreadyFilled Code = 107
	ErrComplianceFail     Code = 108
	ErrOracleFail         Code = 109
	ErrEscrowFail         Code = 110
	ErrInvalidRecipient   Code = 111
	ErrSelfTrade          Code = 112
	ErrOrderExpired       Code = 113
	ErrInvalidExpiry      Code = 114
	ErrMaxOrdersReached   Code = 115
)

func (c Code) String() string {
	switch c {
	case ErrUnauthorized:
		return "UNAUTHORIZED"
	case ErrInvalidAmount:
		return "INVALID_AMOUNT"
	case ErrInvalidPrice:
		return "INVALID_PRICE"
	case ErrOrderNotFound:
		return "ORDER_NOT_FOUND"
	case ErrInsufficientFunds:
		return "INSUFFICIENT_BALANCE"
	case ErrPaused:
		return "PAUSED"
	case ErrInvalidOrderType:
		return "INVALID_ORDER_TYPE"
	case ErrOrderAlreadyFilled:
		return "ORDER_ALREADY_FILLED"
	case ErrComplianceFail:
		return "COMPLIANCE_FAIL"
	case ErrOracleFail:
		return "ORACLE_FAIL"
	case ErrEscrowFail:
		return "ESCROW_FAIL"
	case ErrInvalidRecipient:
		return "INVALID_RECIPIENT"
	case ErrSelfTrade:
		return "SELF_TRADE"
	case ErrOrderExpired:
		return "ORDER_EXPIRED"
	case ErrInvalidExpiry:
		return "INVALID_EXPIRY"
	case ErrMaxOrdersReached:
		return "MAX_ORDERS_REACHED"
	default:
		return "UNKNOWN"
	}
}

func (c Code) Error() string {
	return fmt.Sprintf("%s (%d)", c.String(), uint32(c))
}

// CodeOf extracts the engine code from an error, if the error is one.
func CodeOf(err error) (Code, bool) {
	c, ok := err.(Code)
	return c, ok
}
