package api

import (
	"net/http"

	"dgsync/internal/application/dto"
	"dgsync/internal/port/inbound"
)

// LookupHandler serves cached similarity lookups.
type LookupHandler struct {
	lookupService inbound.LookupService
	errorHandler  ErrorHandler
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(lookupService inbound.LookupService, errorHandler ErrorHandler) *LookupHandler {
	return &LookupHandler{lookupService: lookupService, errorHandler: errorHandler}
}

// FindSimilarContent handles POST /lookups/similar-content.
func (h *LookupHandler) FindSimilarContent(w http.ResponseWriter, r *http.Request) {
	var request dto.SimilarContentRequest
	if err := DecodeJSON(w, r, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.lookupService.FindSimilarContent(r.Context(), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, response)
}

// ClearSimilarContentCache handles DELETE /lookups/similar-content.
func (h *LookupHandler) ClearSimilarContentCache(w http.ResponseWriter, r *http.Request) {
	if err := h.lookupService.ClearSimilarContentCache(r.Context()); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
