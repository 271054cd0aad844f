package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quanta-swap/crossbook/pkg/venue/book"
	"github.com/quanta-swap/crossbook/pkg/venue/engine"
	"github.com/quanta-swap/crossbook/pkg/venue/registry"
)

// Server exposes the venue over REST and WebSocket. Authentication is
// delegated to the custody approval list: every state-changing call
// names its actor, and the registry rejects actors the owner has not
// approved.
type Server struct {
	reg    *registry.Registry
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

// NewServer wires the routes over a registry and engine.
func NewServer(reg *registry.Registry, eng *engine.Engine, log *zap.Logger) *Server {
	s := &Server{
		reg:    reg,
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Pair endpoints
	api.HandleFunc("/pairs", s.handleGetPairs).Methods("GET")
	api.HandleFunc("/pairs", s.handleCreatePair).Methods("POST")
	api.HandleFunc("/pairs/{reserve}/{secured}/pool", s.handleGetPool).Methods("GET")
	api.HandleFunc("/pairs/{reserve}/{secured}/orders", s.handleGetPairOrders).Methods("GET")
	api.HandleFunc("/pairs/{reserve}/{secured}/shares/{address}", s.handleGetShares).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/balances/{asset}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/approvals", s.handleApprove).Methods("POST")

	// Trading
	api.HandleFunc("/orders", s.handlePlaceOrders).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrders).Methods("POST")
	api.HandleFunc("/cross", s.handleCross).Methods("POST")

	// Liquidity
	api.HandleFunc("/liquidity/add", s.handleAddLiquidity).Methods("POST")
	api.HandleFunc("/liquidity/remove", s.handleRemoveLiquidity).Methods("POST")

	// Admin
	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/resume", s.handleResume).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves until the listener fails.
func (s *Server) Start(addr string, allowedOrigins []string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Info("api_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetPairs(w http.ResponseWriter, r *http.Request) {
	pairs := s.reg.Pairs()
	response := make([]PairInfo, len(pairs))
	for i, p := range pairs {
		response[i] = PairInfo{
			Reserve: p.Reserve.Hex(),
			Secured: p.Secured.Hex(),
			Halted:  s.reg.Halted(p),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleCreatePair(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return
	}
	if err := s.reg.CreatePair(p); err != nil {
		respondError(w, http.StatusConflict, "create pair failed", err.Error())
		return
	}
	respondJSON(w, PairInfo{Reserve: p.Reserve.Hex(), Secured: p.Secured.Hex()})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePairVars(w, r)
	if !ok {
		return
	}
	pl, err := s.reg.Pool(p)
	if err != nil {
		respondError(w, http.StatusNotFound, "pair not found", err.Error())
		return
	}

	response := PoolInfo{
		Reserve:     pl.ReserveAmount,
		Secured:     pl.SecuredAmount,
		TotalShares: pl.TotalShares.Dec(),
		Initialized: pl.Initialized(),
		Timestamp:   time.Now().UnixMilli(),
	}
	if price, ok := pl.PriceX64(); ok {
		response.PriceX64 = price.Dec()
	}
	respondJSON(w, response)
}

func (s *Server) handleGetPairOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePairVars(w, r)
	if !ok {
		return
	}
	handles := s.reg.PairHandles(p)
	arena := s.reg.Arena()

	response := make([]OrderInfo, 0, len(handles))
	for _, h := range handles {
		o, ok := arena.Get(h)
		if !ok {
			continue
		}
		response = append(response, OrderInfo{
			Handle:         uint64(h),
			Owner:          o.Owner.Hex(),
			ReserveAmount:  o.ReserveAmount,
			SecuredAmount:  o.SecuredAmount,
			PaySecuredTick: o.PaySecuredTick,
			PayReserveTick: o.PayReserveTick,
			Expiry:         o.Expiry,
			Cancelled:      o.Cancelled,
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetShares(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePairVars(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	respondJSON(w, SharesInfo{
		Address: addr.Hex(),
		Shares:  s.reg.Shares(p, addr).Dec(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, ok := parseAddress(w, vars["address"])
	if !ok {
		return
	}
	asset, ok := parseAddress(w, vars["asset"])
	if !ok {
		return
	}
	respondJSON(w, BalanceInfo{
		Address: addr.Hex(),
		Asset:   asset.Hex(),
		Balance: s.reg.Ledger().Balance(addr, asset),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, ok := parseAddress(w, req.Owner)
	if !ok {
		return
	}
	actor, ok := parseAddress(w, req.Actor)
	if !ok {
		return
	}
	s.reg.Ledger().Approve(owner, actor, req.Expiry)
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaceOrders(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return
	}
	owner, ok := parseAddress(w, req.Owner)
	if !ok {
		return
	}
	actor := owner
	if req.Actor != "" {
		if actor, ok = parseAddress(w, req.Actor); !ok {
			return
		}
	}

	orders := make([]book.Order, len(req.Orders))
	for i, in := range req.Orders {
		o := book.Order{
			Owner:          owner,
			ReserveAmount:  in.ReserveAmount,
			SecuredAmount:  in.SecuredAmount,
			PaySecuredTick: in.PaySecuredTick,
			PayReserveTick: in.PayReserveTick,
			Expiry:         in.Expiry,
		}
		if in.Tag != "" {
			copy(o.Tag[:], common.FromHex(in.Tag))
		}
		orders[i] = o
	}

	first, err := s.reg.PlaceOrders(owner, actor, p, orders)
	if err != nil {
		respondError(w, http.StatusBadRequest, "place orders failed", err.Error())
		return
	}

	s.log.Info("orders_placed",
		zap.String("pair", p.String()),
		zap.Uint64("first_handle", uint64(first)),
		zap.Int("count", len(orders)),
	)
	respondJSON(w, PlaceOrdersResponse{FirstHandle: uint64(first), Count: len(orders)})
}

func (s *Server) handleCancelOrders(w http.ResponseWriter, r *http.Request) {
	var req CancelOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return
	}
	actor, ok := parseAddress(w, req.Actor)
	if !ok {
		return
	}

	handles := make([]book.Handle, len(req.Handles))
	for i, h := range req.Handles {
		handles[i] = book.Handle(h)
	}

	refundReserve, refundSecured, err := s.reg.CancelOrders(actor, p, handles)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cancel failed", err.Error())
		return
	}
	respondJSON(w, CancelOrdersResponse{RefundReserve: refundReserve, RefundSecured: refundSecured})
}

func (s *Server) handleCross(w http.ResponseWriter, r *http.Request) {
	var req CrossRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return
	}
	submitter, ok := parseAddress(w, req.Submitter)
	if !ok {
		return
	}

	cross := engine.CrossRequest{
		Pair:              p,
		Submitter:         submitter,
		ReserveContribs:   make([]engine.Contribution, len(req.ReserveContribs)),
		SecuredContribs:   make([]engine.Contribution, len(req.SecuredContribs)),
		ReserveCandidates: toHandles(req.ReserveCandidates),
		SecuredCandidates: toHandles(req.SecuredCandidates),
		MinTick:           req.MinTick,
		MaxTick:           req.MaxTick,
		ReferralRate:      req.ReferralRate,
		DiscountBalance:   req.DiscountBalance,
	}
	for i, c := range req.ReserveContribs {
		owner, ok := parseAddress(w, c.Owner)
		if !ok {
			return
		}
		cross.ReserveContribs[i] = engine.Contribution{Owner: owner, Amount: c.Amount}
	}
	for i, c := range req.SecuredContribs {
		owner, ok := parseAddress(w, c.Owner)
		if !ok {
			return
		}
		cross.SecuredContribs[i] = engine.Contribution{Owner: owner, Amount: c.Amount}
	}

	result, err := s.eng.Execute(cross)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if engine.IsValidation(err) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "cross failed", err.Error())
		return
	}

	s.broadcastPool(p)
	s.hub.BroadcastToChannel("cross:"+p.String(), CrossUpdate{
		Type:          "cross",
		Pair:          p.String(),
		NetReserveOut: result.NetReserveOut,
		NetSecuredOut: result.NetSecuredOut,
		Timestamp:     time.Now().UnixMilli(),
	})

	respondJSON(w, CrossResponse{
		NetReserveOut: result.NetReserveOut,
		NetSecuredOut: result.NetSecuredOut,
	})
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	req, p, owner, actor, ok := s.decodeLiquidity(w, r)
	if !ok {
		return
	}
	shares, err := s.reg.AddLiquidity(owner, actor, p, req.ReserveAmount, req.SecuredAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "add liquidity failed", err.Error())
		return
	}
	s.broadcastPool(p)
	respondJSON(w, LiquidityResponse{Shares: shares.Dec()})
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	req, p, owner, actor, ok := s.decodeLiquidity(w, r)
	if !ok {
		return
	}
	shares, err := uint256.FromDecimal(req.Shares)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid shares", err.Error())
		return
	}
	reserveOut, securedOut, err := s.reg.RemoveLiquidity(owner, actor, p, shares)
	if err != nil {
		respondError(w, http.StatusBadRequest, "remove liquidity failed", err.Error())
		return
	}
	s.broadcastPool(p)
	respondJSON(w, LiquidityResponse{ReserveOut: reserveOut, SecuredOut: securedOut})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleHaltChange(w, r, true)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleHaltChange(w, r, false)
}

func (s *Server) handleHaltChange(w http.ResponseWriter, r *http.Request, pause bool) {
	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Reserve == "" && req.Secured == "" {
		if pause {
			s.reg.PauseAll()
		} else {
			s.reg.ResumeAll()
		}
		s.log.Warn("venue_halt_changed", zap.Bool("paused", pause))
		respondJSON(w, map[string]string{"status": "ok"})
		return
	}

	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return
	}
	var err error
	if pause {
		err = s.reg.Pause(p)
	} else {
		err = s.reg.Resume(p)
	}
	if err != nil {
		respondError(w, http.StatusNotFound, "pair not found", err.Error())
		return
	}
	s.log.Warn("pair_halt_changed", zap.String("pair", p.String()), zap.Bool("paused", pause))
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) decodeLiquidity(w http.ResponseWriter, r *http.Request) (LiquidityRequest, registry.Pair, common.Address, common.Address, bool) {
	var req LiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, registry.Pair{}, common.Address{}, common.Address{}, false
	}
	p, ok := parsePairStrings(w, req.Reserve, req.Secured)
	if !ok {
		return req, registry.Pair{}, common.Address{}, common.Address{}, false
	}
	owner, ok := parseAddress(w, req.Owner)
	if !ok {
		return req, registry.Pair{}, common.Address{}, common.Address{}, false
	}
	actor := owner
	if req.Actor != "" {
		if actor, ok = parseAddress(w, req.Actor); !ok {
			return req, registry.Pair{}, common.Address{}, common.Address{}, false
		}
	}
	return req, p, owner, actor, true
}

// broadcastPool pushes the pair's pool snapshot to subscribers.
func (s *Server) broadcastPool(p registry.Pair) {
	pl, err := s.reg.Pool(p)
	if err != nil {
		return
	}
	update := PoolUpdate{
		Type:      "pool",
		Pair:      p.String(),
		Reserve:   pl.ReserveAmount,
		Secured:   pl.SecuredAmount,
		Timestamp: time.Now().UnixMilli(),
	}
	if price, ok := pl.PriceX64(); ok {
		update.PriceX64 = price.Dec()
	}
	s.hub.BroadcastToChannel("pool:"+p.String(), update)
}

func parsePairVars(w http.ResponseWriter, r *http.Request) (registry.Pair, bool) {
	vars := mux.Vars(r)
	return parsePairStrings(w, vars["reserve"], vars["secured"])
}

func parsePairStrings(w http.ResponseWriter, reserve, secured string) (registry.Pair, bool) {
	if !common.IsHexAddress(reserve) || !common.IsHexAddress(secured) {
		respondError(w, http.StatusBadRequest, "invalid pair", "")
		return registry.Pair{}, false
	}
	p := registry.Pair{
		Reserve: common.HexToAddress(reserve),
		Secured: common.HexToAddress(secured),
	}
	if err := p.Valid(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair", err.Error())
		return registry.Pair{}, false
	}
	return p, true
}

func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func toHandles(raw []uint64) []book.Handle {
	handles := make([]book.Handle, len(raw))
	for i, h := range raw {
		handles[i] = book.Handle(h)
	}
	return handles
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
