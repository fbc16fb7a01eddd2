package api

import (
	"errors"
	"net/http"

	"dgsync/internal/application/common"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/application/dto"
	"dgsync/internal/domain/errors/domain"
)

// ErrorHandler writes error responses.
type ErrorHandler interface {
	HandleValidationError(w http.ResponseWriter, r *http.Request, err error)
	HandleServiceError(w http.ResponseWriter, r *http.Request, err error)
}

// ErrorHandlingConfig describes the response for one class of error.
type ErrorHandlingConfig struct {
	LogMessage      string
	ErrorType       string
	HTTPStatus      int
	ErrorCode       dto.ErrorCode
	ResponseMessage string
	// UseDetailedMsg returns the error text instead of ResponseMessage.
	UseDetailedMsg bool
}

// errorClass pairs a sentinel with its response, checked in order.
type errorClass struct {
	sentinel error
	config   ErrorHandlingConfig
}

// DefaultErrorHandler maps domain errors to HTTP responses.
type DefaultErrorHandler struct {
	errorConfigs []errorClass
}

var internalErrorConfig = ErrorHandlingConfig{
	LogMessage:      "Internal server error",
	ErrorType:       "internal",
	HTTPStatus:      http.StatusInternalServerError,
	ErrorCode:       dto.ErrorCodeInternalError,
	ResponseMessage: "An internal error occurred",
}

// NewDefaultErrorHandler creates a DefaultErrorHandler.
func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{
		errorConfigs: []errorClass{
			{domain.ErrUnknownKind, ErrorHandlingConfig{
				LogMessage:     "Unknown entity kind",
				ErrorType:      "unknown_kind",
				HTTPStatus:     http.StatusNotFound,
				ErrorCode:      dto.ErrorCodeUnknownKind,
				UseDetailedMsg: true,
			}},
			{domain.ErrLeaseNotFound, ErrorHandlingConfig{
				LogMessage:      "Sync task not found",
				ErrorType:       "not_found",
				HTTPStatus:      http.StatusNotFound,
				ErrorCode:       dto.ErrorCodeTaskNotFound,
				ResponseMessage: "Sync task not found",
			}},
			{domain.ErrInvalidReference, ErrorHandlingConfig{
				LogMessage:     "Invalid reference",
				ErrorType:      "invalid_reference",
				HTTPStatus:     http.StatusBadRequest,
				ErrorCode:      dto.ErrorCodeInvalidReference,
				UseDetailedMsg: true,
			}},
			{domain.ErrConflict, ErrorHandlingConfig{
				LogMessage:     "Uniqueness conflict",
				ErrorType:      "conflict",
				HTTPStatus:     http.StatusConflict,
				ErrorCode:      dto.ErrorCodeConflict,
				UseDetailedMsg: true,
			}},
			{domain.ErrInternal, internalErrorConfig},
		},
	}
}

// HandleValidationError writes 400 with the failing fields as details.
func (h *DefaultErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, "Validation error occurred", "validation", err)

	var details any
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fields := make([]dto.FieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = dto.FieldError{Field: f.Field, Message: f.Message}
		}
		details = dto.ValidationDetails{Errors: fields}
		err = verr
	}
	h.writeErrorResponse(w, r, http.StatusBadRequest,
		dto.NewErrorResponse(dto.ErrorCodeInvalidRequest, err.Error()).WithDetails(details))
}

// HandleServiceError maps err onto a status code. Internal failures never
// expose their cause in the message; it is returned as a detail instead.
func (h *DefaultErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalid) {
		h.HandleValidationError(w, r, err)
		return
	}

	config := internalErrorConfig
	for _, class := range h.errorConfigs {
		if errors.Is(err, class.sentinel) {
			config = class.config
			break
		}
	}
	h.logError(r, config.LogMessage, config.ErrorType, err)

	message := config.ResponseMessage
	if config.UseDetailedMsg {
		message = common.Cause(err).Error()
	}

	var details any
	if config.HTTPStatus == http.StatusInternalServerError {
		var ierr *domain.InternalError
		if errors.As(err, &ierr) && ierr.Detail() != "" {
			details = dto.InternalDetails{Detail: ierr.Detail()}
		}
	}
	h.writeErrorResponse(w, r, config.HTTPStatus, dto.NewErrorResponse(config.ErrorCode, message).WithDetails(details))
}

func (h *DefaultErrorHandler) logError(r *http.Request, message, errorType string, err error) {
	fields := slogger.Fields{
		"error": err.Error(),
		"path":  r.URL.Path,
		"type":  errorType,
	}
	var ierr *domain.InternalError
	if errors.As(err, &ierr) {
		fields["detail"] = ierr.Detail()
	}
	slogger.Error(r.Context(), message, fields)
}

func (h *DefaultErrorHandler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, response dto.ErrorResponse) {
	if requestID := GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
		response.RequestID = requestID
	}
	if err := WriteJSON(w, statusCode, response); err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	}
}
