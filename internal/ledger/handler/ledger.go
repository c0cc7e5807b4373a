package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"stayledger/internal/ledger/service"
	httputil "stayledger/pkg/http"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LedgerHandler struct {
	service service.LedgerService
	log     *logger.Logger
}

func NewLedgerHandler(service service.LedgerService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		log:     log,
	}
}

func (h *LedgerHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	booking, err := h.service.Book(r.Context(), caller, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

func (h *LedgerHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

func (h *LedgerHandler) GetByListing(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.service.GetByListing(r.Context(), r.URL.Query().Get("listing_id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, offset)
}

func (h *LedgerHandler) MarkCompleted(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, h.service.MarkCompleted)
}

func (h *LedgerHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, h.service.CancelBooking)
}

func (h *LedgerHandler) Default(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, h.service.HandleDefault)
}

func (h *LedgerHandler) ProposeDepositSplit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		TenantBps int64 `json:"tenant_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.ProposeDepositSplit(r.Context(), caller, ps.ByName("id"), req.TenantBps); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) ConfirmDepositSplit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		ApprovalToken string `json:"approval_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.ConfirmDepositSplit(r.Context(), caller, ps.ByName("id"), req.ApprovalToken); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) ProposeTokenisation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var proposal model.TokenisationProposal
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.ProposeTokenisation(r.Context(), caller, ps.ByName("id"), &proposal); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) ApproveTokenisation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, h.service.ApproveTokenisation)
}

func (h *LedgerHandler) Invest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		ShareCount int64 `json:"share_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	position, err := h.service.Invest(r.Context(), caller, ps.ByName("id"), req.ShareCount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, position)
}

func (h *LedgerHandler) PayRent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		GrossMicros int64 `json:"gross_micros"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.PayRent(r.Context(), caller, ps.ByName("id"), req.GrossMicros); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) Claim(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claimed, err := h.service.Claim(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]int64{"claimed_micros": claimed})
}

func (h *LedgerHandler) Position(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	position, err := h.service.Position(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, position)
}

// transition serves the body-less lifecycle endpoints that only need a
// caller and a booking id.
func (h *LedgerHandler) transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params, fn func(context.Context, model.Caller, string) error) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := fn(r.Context(), caller, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Book)
	router.GET("/api/v1/bookings", h.GetByListing)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)

	router.POST("/api/v1/bookings/id/:id/complete", h.MarkCompleted)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/default", h.Default)

	router.POST("/api/v1/bookings/id/:id/deposit/propose", h.ProposeDepositSplit)
	router.POST("/api/v1/bookings/id/:id/deposit/confirm", h.ConfirmDepositSplit)

	router.POST("/api/v1/bookings/id/:id/tokenisation/propose", h.ProposeTokenisation)
	router.POST("/api/v1/bookings/id/:id/tokenisation/approve", h.ApproveTokenisation)
	router.POST("/api/v1/bookings/id/:id/invest", h.Invest)

	router.POST("/api/v1/bookings/id/:id/rent", h.PayRent)
	router.POST("/api/v1/bookings/id/:id/claim", h.Claim)
	router.GET("/api/v1/bookings/id/:id/position", h.Position)
}
