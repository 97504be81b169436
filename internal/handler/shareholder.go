package handler

import (
	"net/http"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/service"
)

// ShareholderHandler handles HTTP requests for shareholder endpoints.
type ShareholderHandler struct {
	adminSvc *service.AdminService
}

// NewShareholderHandler creates a new ShareholderHandler.
func NewShareholderHandler(adminSvc *service.AdminService) *ShareholderHandler {
	return &ShareholderHandler{adminSvc: adminSvc}
}

type registerShareholderRequest struct {
	ShareholderID int64            `json:"shareholder_id"`
	Positions     map[string]int64 `json:"positions"`
}

// shareholderResponse lists positions keyed by isin.
type shareholderResponse struct {
	ShareholderID int64            `json:"shareholder_id"`
	Positions     map[string]int64 `json:"positions"`
	CreatedAt     string           `json:"created_at"`
}

// Register handles POST /shareholders.
func (h *ShareholderHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerShareholderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sh, err := h.adminSvc.RegisterShareholder(service.RegisterShareholderRequest{
		ShareholderID: req.ShareholderID,
		Positions:     req.Positions,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildShareholderResponse(sh))
}

// Get handles GET /shareholders/{shareholder_id}.
func (h *ShareholderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shareholder_id")
	if !ok {
		return
	}

	sh, err := h.adminSvc.GetShareholder(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildShareholderResponse(sh))
}

func buildShareholderResponse(sh *domain.Shareholder) shareholderResponse {
	return shareholderResponse{
		ShareholderID: sh.ShareholderID,
		Positions:     sh.Positions(),
		CreatedAt:     sh.CreatedAt.UTC().Format(timeFormat),
	}
}
