package api

import (
	"net/http"

	"dgsync/internal/application/dto"
	"dgsync/internal/port/inbound"
)

// EntityHandler handles get-or-create requests for catalog entities.
type EntityHandler struct {
	entityService inbound.EntityService
	errorHandler  ErrorHandler
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityService inbound.EntityService, errorHandler ErrorHandler) *EntityHandler {
	return &EntityHandler{entityService: entityService, errorHandler: errorHandler}
}

// ResolveEntity handles POST /entities/{kind}.
func (h *EntityHandler) ResolveEntity(w http.ResponseWriter, r *http.Request) {
	var request dto.ResolveEntityRequest
	if err := DecodeJSON(w, r, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.entityService.ResolveEntity(r.Context(), r.PathValue("kind"), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if response.Created {
		status = http.StatusCreated
	}
	_ = WriteJSON(w, status, response)
}

// ResolveEntityBatch handles POST /entities/{kind}/batch.
func (h *EntityHandler) ResolveEntityBatch(w http.ResponseWriter, r *http.Request) {
	var request dto.ResolveBatchRequest
	if err := DecodeJSON(w, r, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.entityService.ResolveEntityBatch(r.Context(), r.PathValue("kind"), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, batchStatusCode(response), response)
}

func batchStatusCode(response *dto.ResolveBatchResponse) int {
	switch response.Status {
	case dto.BatchStatusCreated:
		return http.StatusCreated
	case dto.BatchStatusResolved:
		return http.StatusOK
	case dto.BatchStatusPartial:
		return http.StatusMultiStatus
	default:
		if response.ClientFault {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
