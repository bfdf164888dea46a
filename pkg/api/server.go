package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quotadex/quotadex/pkg/exchange"
)

// Server exposes the engine over REST plus a WebSocket event stream.
type Server struct {
	engine *exchange.Engine
	clock  exchange.Clock
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

func NewServer(engine *exchange.Engine, clock exchange.Clock, log *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		clock:  clock,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	api.HandleFunc("/users/{address}/orders", s.handleGetUserOrders).Methods("GET")
	api.HandleFunc("/users/{address}/orders/{index}", s.handleGetUserOrder).Methods("GET")

	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", s.handleUnpause).Methods("POST")
	api.HandleFunc("/admin/transfer", s.handleSetAdmin).Methods("POST")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Sink returns an EventSink that streams committed events to WebSocket
// clients. Wire it into the engine's sink fan-out.
func (s *Server) Sink() exchange.EventSink {
	return exchange.EventSinkFunc(func(ev exchange.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Warn("event_marshal_failed", zap.Error(err))
			return
		}
		s.hub.Broadcast(data)
	})
}

// Start runs the hub and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Info("api_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ---- write handlers ----

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeBadRequest(w, "invalid caller address")
		return
	}

	var (
		id  uint64
		err error
	)
	switch req.Side {
	case "buy":
		id, err = s.engine.CreateBuyOrder(caller, req.Amount, req.Price, req.Expiry)
	case "sell":
		id, err = s.engine.CreateSellOrder(caller, req.Amount, req.Price, req.Expiry)
	default:
		writeEngineError(w, exchange.ErrInvalidOrderType)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: id})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid order id")
		return
	}
	var req fillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeBadRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.FillOrder(caller, id, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid order id")
		return
	}
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeBadRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.CancelOrder(caller, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleAdminToggle(w, r, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.handleAdminToggle(w, r, false)
}

func (s *Server) handleAdminToggle(w http.ResponseWriter, r *http.Request, pause bool) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeBadRequest(w, "invalid caller address")
		return
	}
	var err error
	if pause {
		err = s.engine.Pause(caller)
	} else {
		err = s.engine.Unpause(caller)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeBadRequest(w, "invalid caller address")
		return
	}
	newAdmin, ok := parseAddress(req.NewAdmin)
	if !ok {
		writeBadRequest(w, "invalid newAdmin address")
		return
	}
	if err := s.engine.SetAdmin(caller, newAdmin); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// ---- read handlers ----

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid order id")
		return
	}
	order, ok := s.engine.GetOrder(id)
	if !ok {
		writeEngineError(w, exchange.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleGetUserOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		writeBadRequest(w, "invalid address")
		return
	}
	count := s.engine.GetUserOrderCount(user)
	ids := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		if id, ok := s.engine.GetUserOrder(user, i); ok {
			ids = append(ids, id)
		}
	}
	writeJSON(w, http.StatusOK, userOrdersResponse{
		User:   user.Hex(),
		Count:  count,
		Orders: ids,
	})
}

func (s *Server) handleGetUserOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, ok := parseAddress(vars["address"])
	if !ok {
		writeBadRequest(w, "invalid address")
		return
	}
	index, err := strconv.ParseUint(vars["index"], 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid index")
		return
	}
	id, ok := s.engine.GetUserOrder(user, index)
	if !ok {
		writeEngineError(w, exchange.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"orderId": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	digest := s.engine.StateDigest()
	writeJSON(w, http.StatusOK, statusResponse{
		Paused:       s.engine.IsPaused(),
		Admin:        s.engine.GetAdmin().Hex(),
		OrderCounter: s.engine.GetOrderCounter(),
		Clock:        s.clock.Now(),
		StateDigest:  common.Bytes2Hex(digest[:]),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- helpers ----

func toOrderResponse(o *exchange.Order) orderResponse {
	return orderResponse{
		ID:      o.ID,
		Creator: o.Creator.Hex(),
		Side:    o.Side.String(),
		Amount:  o.Amount,
		Price:   o.Price,
		Filled:  o.Filled,
		Expiry:  o.Expiry,
		Active:  o.Active,
		Status:  o.Status().String(),
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeEngineError(w http.ResponseWriter, code exchange.Code) {
	writeJSON(w, httpStatusFor(code), errorResponse{
		Code:  uint32(code),
		Error: code.String(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	if code, ok := exchange.CodeOf(err); ok {
		writeEngineError(w, code)
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func httpStatusFor(code exchange.Code) int {
	switch code {
	case exchange.ErrUnauthorized, exchange.ErrSelfTrade:
		return http.StatusForbidden
	case exchange.ErrOrderNotFound:
		return http.StatusNotFound
	case exchange.ErrPaused, exchange.ErrOrderAlreadyFilled, exchange.ErrOrderExpired,
		exchange.ErrMaxOrdersReached:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
