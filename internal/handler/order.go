package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// enterOrderRequest is the JSON request body for POST
// /securities/{isin}/orders.
type enterOrderRequest struct {
	RequestID                string `json:"request_id"`
	OrderID                  int64  `json:"order_id"`
	Side                     string `json:"side"`
	Quantity                 int64  `json:"quantity"`
	Price                    int64  `json:"price"`
	BrokerID                 int64  `json:"broker_id"`
	ShareholderID            int64  `json:"shareholder_id"`
	PeakSize                 int64  `json:"peak_size"`
	MinimumExecutionQuantity int64  `json:"minimum_execution_quantity"`
	StopPrice                int64  `json:"stop_price"`
}

// updateOrderRequest is the JSON request body for PUT
// /securities/{isin}/orders/{side}/{order_id}.
type updateOrderRequest struct {
	RequestID                string `json:"request_id"`
	Quantity                 int64  `json:"quantity"`
	Price                    int64  `json:"price"`
	BrokerID                 int64  `json:"broker_id"`
	ShareholderID            int64  `json:"shareholder_id"`
	PeakSize                 int64  `json:"peak_size"`
	MinimumExecutionQuantity int64  `json:"minimum_execution_quantity"`
	StopPrice                int64  `json:"stop_price"`
}

// remainderResponse is what is left of the order on the book.
type remainderResponse struct {
	Quantity          int64  `json:"quantity"`
	DisplayedQuantity int64  `json:"displayed_quantity"`
	Status            string `json:"status"`
}

// orderResultResponse is the JSON response for an accepted order command.
type orderResultResponse struct {
	ISIN      string             `json:"isin"`
	OrderID   int64              `json:"order_id"`
	Side      string             `json:"side"`
	Outcome   string             `json:"outcome"`
	Remainder *remainderResponse `json:"remainder"`
	Trades    []tradeResponse    `json:"trades"`
}

// EnterOrder handles POST /securities/{isin}/orders.
func (h *OrderHandler) EnterOrder(w http.ResponseWriter, r *http.Request) {
	var req enterOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.enter(w, r, service.EnterOrderRequest{
		RequestID:                req.RequestID,
		Type:                     service.EntryNew,
		ISIN:                     chi.URLParam(r, "isin"),
		OrderID:                  req.OrderID,
		Side:                     domain.Side(strings.ToUpper(req.Side)),
		Quantity:                 req.Quantity,
		Price:                    req.Price,
		BrokerID:                 req.BrokerID,
		ShareholderID:            req.ShareholderID,
		PeakSize:                 req.PeakSize,
		MinimumExecutionQuantity: req.MinimumExecutionQuantity,
		StopPrice:                req.StopPrice,
	})
}

// UpdateOrder handles PUT /securities/{isin}/orders/{side}/{order_id}.
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	side, orderID, ok := orderPath(w, r)
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.enter(w, r, service.EnterOrderRequest{
		RequestID:                req.RequestID,
		Type:                     service.EntryUpdate,
		ISIN:                     chi.URLParam(r, "isin"),
		OrderID:                  orderID,
		Side:                     side,
		Quantity:                 req.Quantity,
		Price:                    req.Price,
		BrokerID:                 req.BrokerID,
		ShareholderID:            req.ShareholderID,
		PeakSize:                 req.PeakSize,
		MinimumExecutionQuantity: req.MinimumExecutionQuantity,
		StopPrice:                req.StopPrice,
	})
}

// DeleteOrder handles DELETE /securities/{isin}/orders/{side}/{order_id}.
// The optional request_id query parameter is echoed in the published
// event.
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	side, orderID, ok := orderPath(w, r)
	if !ok {
		return
	}

	err := h.orderSvc.HandleDeleteOrder(r.Context(), service.DeleteOrderRequest{
		RequestID: r.URL.Query().Get("request_id"),
		ISIN:      chi.URLParam(r, "isin"),
		Side:      side,
		OrderID:   orderID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) enter(w http.ResponseWriter, r *http.Request, req service.EnterOrderRequest) {
	result, err := h.orderSvc.HandleEnterOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Outcome.IsError() {
		WriteError(w, http.StatusUnprocessableEntity, string(result.Outcome), result.Outcome.Reason())
		return
	}

	resp := orderResultResponse{
		ISIN:    req.ISIN,
		OrderID: req.OrderID,
		Side:    string(req.Side),
		Outcome: string(result.Outcome),
		Trades:  buildTradeResponses(result.Trades),
	}
	if rem := result.Remainder; rem != nil && rem.Quantity > 0 {
		resp.Remainder = &remainderResponse{
			Quantity:          rem.Quantity,
			DisplayedQuantity: rem.OpenQuantity(),
			Status:            string(rem.Status),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// orderPath parses the side and order id path parameters, writing a 400
// response when either is malformed.
func orderPath(w http.ResponseWriter, r *http.Request) (domain.Side, int64, bool) {
	side := domain.Side(strings.ToUpper(chi.URLParam(r, "side")))
	if !side.Valid() {
		WriteError(w, http.StatusBadRequest, "validation_error", "side must be BUY or SELL")
		return "", 0, false
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return "", 0, false
	}
	return side, orderID, true
}
