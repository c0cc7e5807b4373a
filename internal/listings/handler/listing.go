package handler

import (
	"encoding/json"
	"net/http"

	"stayledger/internal/listings/service"
	httputil "stayledger/pkg/http"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ListingHandler struct {
	service service.ListingService
	log     *logger.Logger
}

func NewListingHandler(service service.ListingService, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		log:     log,
	}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var listing model.Listing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.Create(r.Context(), caller, &listing); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, listing)
}

func (h *ListingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	listing, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, listing)
}

func (h *ListingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	listings, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, listings, total, limit, offset)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var updates model.ListingUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.Update(r.Context(), caller, ps.ByName("id"), &updates); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) Deactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := httputil.ExtractCaller(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Deactivate(r.Context(), caller, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ListingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/listings", h.Create)
	router.GET("/api/v1/listings", h.GetAll)
	router.GET("/api/v1/listings/id/:id", h.GetByID)
	router.PATCH("/api/v1/listings/id/:id", h.Update)
	router.POST("/api/v1/listings/id/:id/deactivate", h.Deactivate)
}
