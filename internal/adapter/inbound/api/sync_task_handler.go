package api

import (
	"fmt"
	"net/http"
	"strconv"

	"dgsync/internal/application/dto"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/inbound"
)

// SyncTaskHandler handles sync task lease requests.
type SyncTaskHandler struct {
	syncTaskService inbound.SyncTaskService
	errorHandler    ErrorHandler
}

// NewSyncTaskHandler creates a new SyncTaskHandler.
func NewSyncTaskHandler(syncTaskService inbound.SyncTaskService, errorHandler ErrorHandler) *SyncTaskHandler {
	return &SyncTaskHandler{syncTaskService: syncTaskService, errorHandler: errorHandler}
}

// ProposeTask handles POST /sync-tasks/{function}/{target}.
func (h *SyncTaskHandler) ProposeTask(w http.ResponseWriter, r *http.Request) {
	function, target, err := taskPath(r)
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}
	var request dto.ProposeTaskRequest
	if err := DecodeJSON(w, r, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}
	if err := validateWorker(request.Worker); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.syncTaskService.ProposeTask(r.Context(), function, target, request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, response)
}

// EndTask handles POST /sync-tasks/{function}/{target}/{worker}.
func (h *SyncTaskHandler) EndTask(w http.ResponseWriter, r *http.Request) {
	function, target, err := taskPath(r)
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}
	worker := r.PathValue("worker")
	if err := validateWorker(worker); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}
	var request dto.EndTaskRequest
	if err := DecodeJSON(w, r, &request); err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.syncTaskService.EndTask(r.Context(), function, target, worker, request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, response)
}

// GetTask handles GET /sync-tasks/{function}/{target}.
func (h *SyncTaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	function, target, err := taskPath(r)
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, err)
		return
	}

	response, err := h.syncTaskService.GetTask(r.Context(), function, target)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, response)
}

func taskPath(r *http.Request) (string, int64, error) {
	verr := &domain.ValidationError{}
	function := r.PathValue("function")
	if function == "" || len(function) > lease.MaxFunctionLength {
		verr.Add("function", fmt.Sprintf("must be 1 to %d characters", lease.MaxFunctionLength))
	}
	target, err := strconv.ParseInt(r.PathValue("target"), 10, 64)
	if err != nil {
		verr.Add("target", "must be an integer")
	}
	if verr.HasErrors() {
		return "", 0, verr
	}
	return function, target, nil
}

func validateWorker(worker string) error {
	if worker == "" || len(worker) > lease.MaxWorkerLength {
		return domain.NewValidationError("worker", fmt.Sprintf("must be 1 to %d characters", lease.MaxWorkerLength))
	}
	return nil
}
