package api

// Request and response bodies for the REST surface. Callers identify
// themselves in the request body (trusted-gateway model).

type createOrderRequest struct {
	Caller string `json:"caller"`
	Side   string `json:"side"` // "buy" or "sell"
	Amount uint64 `json:"amount"`
	Price  uint64 `json:"price"`
	Expiry uint64 `json:"expiry"`
}

type fillOrderRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

type cancelOrderRequest struct {
	Caller string `json:"caller"`
}

type adminRequest struct {
	Caller   string `json:"caller"`
	NewAdmin string `json:"newAdmin,omitempty"`
}

type orderResponse struct {
	ID      uint64 `json:"id"`
	Creator string `json:"creator"`
	Side    string `json:"side"`
	Amount  uint64 `json:"amount"`
	Price   uint64 `json:"price"`
	Filled  uint64 `json:"filled"`
	Expiry  uint64 `json:"expiry"`
	Active  bool   `json:"active"`
	Status  string `json:"status"`
}

type createOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

type userOrdersResponse struct {
	User   string   `json:"user"`
	Count  uint64   `json:"count"`
	Orders []uint64 `json:"orders"`
}

type statusResponse struct {
	Paused       bool   `json:"paused"`
	Admin        string `json:"admin"`
	OrderCounter uint64 `json:"orderCounter"`
	Clock        uint64 `json:"clock"`
	StateDigest  string `json:"stateDigest"`
}

type errorResponse struct {
	Code  uint32 `json:"code,omitempty"`
	Error string `json:"error"`
}
