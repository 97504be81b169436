package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/service"
)

// SecurityHandler handles HTTP requests for security endpoints.
type SecurityHandler struct {
	adminSvc *service.AdminService
	orderSvc *service.OrderService
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(adminSvc *service.AdminService, orderSvc *service.OrderService) *SecurityHandler {
	return &SecurityHandler{adminSvc: adminSvc, orderSvc: orderSvc}
}

// registerSecurityRequest is the JSON request body for POST /securities.
type registerSecurityRequest struct {
	ISIN        string `json:"isin"`
	TickSize    int64  `json:"tick_size"`
	LotSize     int64  `json:"lot_size"`
	MarketPrice int64  `json:"market_price"`
}

type securityResponse struct {
	ISIN             string `json:"isin"`
	TickSize         int64  `json:"tick_size"`
	LotSize          int64  `json:"lot_size"`
	State            string `json:"state"`
	MarketPrice      int64  `json:"market_price"`
	OpeningPrice     int64  `json:"opening_price"`
	TradableQuantity int64  `json:"tradable_quantity"`
	BuyOrders        int    `json:"buy_orders"`
	SellOrders       int    `json:"sell_orders"`
	StopBuyOrders    int    `json:"stop_buy_orders"`
	StopSellOrders   int    `json:"stop_sell_orders"`
}

type securityListResponse struct {
	Securities []securityResponse `json:"securities"`
}

// priceLevelResponse is a single aggregated price level in the book response.
type priceLevelResponse struct {
	Price      int64 `json:"price"`
	Quantity   int64 `json:"quantity"`
	OrderCount int   `json:"order_count"`
}

// bookResponse is the JSON response for GET /securities/{isin}/book.
type bookResponse struct {
	ISIN           string               `json:"isin"`
	State          string               `json:"state"`
	MarketPrice    int64                `json:"market_price"`
	Bids           []priceLevelResponse `json:"bids"`
	Asks           []priceLevelResponse `json:"asks"`
	StopBuyOrders  int                  `json:"stop_buy_orders"`
	StopSellOrders int                  `json:"stop_sell_orders"`
}

// tradeResponse is a single trade on the tape or in a command response.
type tradeResponse struct {
	TradeID      string `json:"trade_id"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	BuyOrderID   int64  `json:"buy_order_id"`
	SellOrderID  int64  `json:"sell_order_id"`
	BuyBrokerID  int64  `json:"buy_broker_id"`
	SellBrokerID int64  `json:"sell_broker_id"`
	ExecutedAt   string `json:"executed_at"`
}

type tradeListResponse struct {
	ISIN   string          `json:"isin"`
	Trades []tradeResponse `json:"trades"`
}

// changeStateRequest is the JSON request body for PUT /securities/{isin}/state.
type changeStateRequest struct {
	State string `json:"state"`
}

// changeStateResponse carries the new state and the opening trades, if
// an auction was left.
type changeStateResponse struct {
	ISIN   string          `json:"isin"`
	State  string          `json:"state"`
	Trades []tradeResponse `json:"trades"`
}

// Register handles POST /securities.
func (h *SecurityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSecurityRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sv, err := h.adminSvc.RegisterSecurity(service.RegisterSecurityRequest{
		ISIN:        req.ISIN,
		TickSize:    req.TickSize,
		LotSize:     req.LotSize,
		MarketPrice: req.MarketPrice,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildSecurityResponse(sv))
}

// List handles GET /securities.
func (h *SecurityHandler) List(w http.ResponseWriter, r *http.Request) {
	views := h.adminSvc.ListSecurities()
	resp := securityListResponse{Securities: make([]securityResponse, len(views))}
	for i, sv := range views {
		resp.Securities[i] = buildSecurityResponse(sv)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /securities/{isin}.
func (h *SecurityHandler) Get(w http.ResponseWriter, r *http.Request) {
	sv, err := h.adminSvc.GetSecurity(chi.URLParam(r, "isin"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildSecurityResponse(sv))
}

// GetBook handles GET /securities/{isin}/book.
func (h *SecurityHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a positive integer")
			return
		}
		depth = n
	}

	book, err := h.adminSvc.Book(chi.URLParam(r, "isin"), depth)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		ISIN:           book.ISIN,
		State:          string(book.State),
		MarketPrice:    book.MarketPrice,
		Bids:           buildLevels(book.Bids),
		Asks:           buildLevels(book.Asks),
		StopBuyOrders:  book.StopBuyOrders,
		StopSellOrders: book.StopSellOrders,
	})
}

// ListTrades handles GET /securities/{isin}/trades.
func (h *SecurityHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	isin := chi.URLParam(r, "isin")
	trades, err := h.adminSvc.Trades(isin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tradeListResponse{ISIN: isin, Trades: buildTradeResponses(trades)})
}

// ChangeState handles PUT /securities/{isin}/state.
func (h *SecurityHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	var req changeStateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	isin := chi.URLParam(r, "isin")
	trades, err := h.orderSvc.HandleChangeMatchingState(r.Context(), service.ChangeMatchingStateRequest{
		ISIN:        isin,
		TargetState: domain.MatchingState(req.State),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, changeStateResponse{
		ISIN:   isin,
		State:  req.State,
		Trades: buildTradeResponses(trades),
	})
}

func buildSecurityResponse(sv service.SecurityView) securityResponse {
	return securityResponse{
		ISIN:             sv.ISIN,
		TickSize:         sv.TickSize,
		LotSize:          sv.LotSize,
		State:            string(sv.State),
		MarketPrice:      sv.MarketPrice,
		OpeningPrice:     sv.OpeningPrice,
		TradableQuantity: sv.TradableQuantity,
		BuyOrders:        sv.BuyOrders,
		SellOrders:       sv.SellOrders,
		StopBuyOrders:    sv.StopBuyOrders,
		StopSellOrders:   sv.StopSellOrders,
	}
}

// buildLevels converts engine price levels to response levels.
func buildLevels(levels []engine.PriceLevel) []priceLevelResponse {
	result := make([]priceLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = priceLevelResponse{
			Price:      l.Price,
			Quantity:   l.TotalQuantity,
			OrderCount: l.OrderCount,
		}
	}
	return result
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		rec := domain.NewTradeRecord(t)
		result[i] = tradeResponse{
			TradeID:      rec.TradeID,
			Price:        rec.Price,
			Quantity:     rec.Quantity,
			BuyOrderID:   rec.BuyOrderID,
			SellOrderID:  rec.SellOrderID,
			BuyBrokerID:  rec.BuyBrokerID,
			SellBrokerID: rec.SellBrokerID,
			ExecutedAt:   t.ExecutedAt.UTC().Format(timeFormat),
		}
	}
	return result
}
