package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/solango/internal/domain"
	logpkg "github.com/kailas-cloud/solango/internal/logger"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest      ErrorCode = "bad_request"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeNotFound        ErrorCode = "not_found"
	CodeUnknownParam    ErrorCode = "unknown_parameter"
	CodeDrainInProgress ErrorCode = "drain_in_progress"
	CodeUnavailable     ErrorCode = "backend_unavailable"
	CodeBackendError    ErrorCode = "backend_error"
	CodeInternalError   ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrNotRegistered, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrDeferredNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnknownParam, http.StatusBadRequest, CodeUnknownParam),
		sentinelHandler(domain.ErrDrainInProgress, http.StatusConflict, CodeDrainInProgress),
		sentinelHandler(domain.ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable),
		transportErrorHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotRegistered,
		domain.ErrDeferredNotFound,
		domain.ErrUnknownParam,
		domain.ErrDrainInProgress,
		domain.ErrUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// transportErrorHandler reports failed backend requests with their status code.
func transportErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var te *domain.TransportError
	if !errors.As(err, &te) {
		return false
	}
	msg := "search backend unreachable"
	if te.Code != 0 {
		msg = fmt.Sprintf("search backend returned status %d", te.Code)
	}
	writeError(w, http.StatusBadGateway, CodeBackendError, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
