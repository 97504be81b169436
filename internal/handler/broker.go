package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/service"
)

// BrokerHandler handles HTTP requests for broker endpoints.
type BrokerHandler struct {
	adminSvc *service.AdminService
}

// NewBrokerHandler creates a new BrokerHandler.
func NewBrokerHandler(adminSvc *service.AdminService) *BrokerHandler {
	return &BrokerHandler{adminSvc: adminSvc}
}

// registerBrokerRequest is the JSON request body for POST /brokers.
type registerBrokerRequest struct {
	BrokerID int64 `json:"broker_id"`
	Credit   int64 `json:"credit"`
}

// brokerResponse is the JSON response for a single broker.
type brokerResponse struct {
	BrokerID  int64  `json:"broker_id"`
	Credit    int64  `json:"credit"`
	CreatedAt string `json:"created_at"`
}

type brokerListResponse struct {
	Brokers []brokerResponse `json:"brokers"`
}

// Register handles POST /brokers.
func (h *BrokerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerBrokerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	b, err := h.adminSvc.RegisterBroker(service.RegisterBrokerRequest{
		BrokerID: req.BrokerID,
		Credit:   req.Credit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildBrokerResponse(b))
}

// List handles GET /brokers.
func (h *BrokerHandler) List(w http.ResponseWriter, r *http.Request) {
	brokers := h.adminSvc.ListBrokers()
	resp := brokerListResponse{Brokers: make([]brokerResponse, len(brokers))}
	for i, b := range brokers {
		resp.Brokers[i] = buildBrokerResponse(b)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /brokers/{broker_id}.
func (h *BrokerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "broker_id")
	if !ok {
		return
	}

	b, err := h.adminSvc.GetBroker(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildBrokerResponse(b))
}

func buildBrokerResponse(b *domain.Broker) brokerResponse {
	return brokerResponse{
		BrokerID:  b.BrokerID,
		Credit:    b.Credit(),
		CreatedAt: b.CreatedAt.UTC().Format(timeFormat),
	}
}

// pathID parses a positive integer path parameter, writing a 400
// response when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
