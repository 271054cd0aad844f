package api

// API request/response types for REST endpoints and WebSocket messages.

// ==============================
// REST Response Types
// ==============================

// PairInfo identifies one trading pair.
type PairInfo struct {
	Reserve string `json:"reserve"` // reserve asset address (hex)
	Secured string `json:"secured"` // secured asset address (hex)
	Halted  bool   `json:"halted"`
}

// PoolInfo is a snapshot of a pair's liquidity pool.
type PoolInfo struct {
	Reserve     uint64 `json:"reserve"`
	Secured     uint64 `json:"secured"`
	TotalShares string `json:"totalShares"`        // decimal string (exceeds 64 bits)
	PriceX64    string `json:"priceX64,omitempty"` // secured per reserve, Q64.64
	Initialized bool   `json:"initialized"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
}

// OrderInfo is one resting order as seen through its handle.
type OrderInfo struct {
	Handle         uint64 `json:"handle"`
	Owner          string `json:"owner"`
	ReserveAmount  uint64 `json:"reserveAmount"`
	SecuredAmount  uint64 `json:"securedAmount"`
	PaySecuredTick int32  `json:"paySecuredTick"`
	PayReserveTick int32  `json:"payReserveTick"`
	Expiry         int64  `json:"expiry"`
	Cancelled      bool   `json:"cancelled"`
}

// BalanceInfo is one owner's balance in one asset.
type BalanceInfo struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Balance uint64 `json:"balance"`
}

// SharesInfo is one owner's liquidity share balance in a pair.
type SharesInfo struct {
	Address string `json:"address"`
	Shares  string `json:"shares"` // decimal string
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// REST Request Types
// ==============================

// OrderSpec is one order in a placement batch.
type OrderSpec struct {
	ReserveAmount  uint64 `json:"reserveAmount"`
	SecuredAmount  uint64 `json:"securedAmount"`
	PaySecuredTick int32  `json:"paySecuredTick"`
	PayReserveTick int32  `json:"payReserveTick"`
	Expiry         int64  `json:"expiry"`
	Tag            string `json:"tag,omitempty"` // up to 2 bytes, hex
}

// PlaceOrdersRequest is the payload for POST /api/v1/orders.
type PlaceOrdersRequest struct {
	Reserve string      `json:"reserve"`
	Secured string      `json:"secured"`
	Owner   string      `json:"owner"`
	Actor   string      `json:"actor,omitempty"` // defaults to owner
	Orders  []OrderSpec `json:"orders"`
}

// PlaceOrdersResponse returns the contiguous handle range assigned.
type PlaceOrdersResponse struct {
	FirstHandle uint64 `json:"firstHandle"`
	Count       int    `json:"count"`
}

// CancelOrdersRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrdersRequest struct {
	Reserve string   `json:"reserve"`
	Secured string   `json:"secured"`
	Actor   string   `json:"actor"`
	Handles []uint64 `json:"handles"`
}

// CancelOrdersResponse reports the escrow returned by cancellation.
type CancelOrdersResponse struct {
	RefundReserve uint64 `json:"refundReserve"`
	RefundSecured uint64 `json:"refundSecured"`
}

// ContributionSpec is one funded participant in a cross.
type ContributionSpec struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// CrossRequestBody is the payload for POST /api/v1/cross.
type CrossRequestBody struct {
	Reserve           string             `json:"reserve"`
	Secured           string             `json:"secured"`
	Submitter         string             `json:"submitter"`
	ReserveContribs   []ContributionSpec `json:"reserveContribs"`
	SecuredContribs   []ContributionSpec `json:"securedContribs"`
	ReserveCandidates []uint64           `json:"reserveCandidates"`
	SecuredCandidates []uint64           `json:"securedCandidates"`
	MinTick           int32              `json:"minTick"`
	MaxTick           int32              `json:"maxTick"`
	ReferralRate      uint64             `json:"referralRate"`
	DiscountBalance   uint64             `json:"discountBalance"`
}

// CrossResponse reports the net amounts distributed by one cross.
type CrossResponse struct {
	NetReserveOut uint64 `json:"netReserveOut"`
	NetSecuredOut uint64 `json:"netSecuredOut"`
}

// LiquidityRequest is the payload for POST /api/v1/liquidity/add and
// /api/v1/liquidity/remove. Remove reads Shares; add reads the amounts.
type LiquidityRequest struct {
	Reserve       string `json:"reserve"`
	Secured       string `json:"secured"`
	Owner         string `json:"owner"`
	Actor         string `json:"actor,omitempty"`
	ReserveAmount uint64 `json:"reserveAmount,omitempty"`
	SecuredAmount uint64 `json:"securedAmount,omitempty"`
	Shares        string `json:"shares,omitempty"` // decimal string
}

// LiquidityResponse reports the result of a liquidity operation.
type LiquidityResponse struct {
	Shares     string `json:"shares,omitempty"`
	ReserveOut uint64 `json:"reserveOut,omitempty"`
	SecuredOut uint64 `json:"securedOut,omitempty"`
}

// ApproveRequest is the payload for POST /api/v1/approvals.
type ApproveRequest struct {
	Owner  string `json:"owner"`
	Actor  string `json:"actor"`
	Expiry int64  `json:"expiry"` // unix seconds; 0 revokes
}

// PairRequest names a pair by its two asset addresses. Pair creation
// requires both; the admin pause/resume endpoints accept an empty pair
// to act on the whole venue.
type PairRequest struct {
	Reserve string `json:"reserve,omitempty"`
	Secured string `json:"secured,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["pool:0xRES/0xSEC", "cross:0xRES/0xSEC"]
}

// PoolUpdate is broadcast after any operation that moves pool balances.
type PoolUpdate struct {
	Type      string `json:"type"` // "pool"
	Pair      string `json:"pair"`
	Reserve   uint64 `json:"reserve"`
	Secured   uint64 `json:"secured"`
	PriceX64  string `json:"priceX64,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// CrossUpdate is broadcast when a cross executes.
type CrossUpdate struct {
	Type          string `json:"type"` // "cross"
	Pair          string `json:"pair"`
	NetReserveOut uint64 `json:"netReserveOut"`
	NetSecuredOut uint64 `json:"netSecuredOut"`
	Timestamp     int64  `json:"timestamp"`
}
