package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unknown is a 500
// whose detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *orders.ValidationError
		se *orders.InsufficientStockError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_error", Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, orders.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
	case errors.Is(err, orders.ErrNoDefaultAddress):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no_default_address", Message: err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "order not found"})
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient_stock", Message: se.Error()})
	case errors.Is(err, orders.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient_stock", Message: err.Error()})
	case errors.Is(err, orders.ErrInvalidStateTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: "invalid_state_transition", Message: err.Error()})
	case errors.Is(err, ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "missing or invalid bearer token"})
	default:
		logger(r).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &orders.ValidationError{Field: "body", Message: "invalid json"}
	}
	return nil
}

type loggerKey struct{}

func logger(r *http.Request) *zap.Logger {
	l, ok := r.Context().Value(loggerKey{}).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return l.With(zap.String("request_id", middleware.GetReqID(r.Context())))
}
