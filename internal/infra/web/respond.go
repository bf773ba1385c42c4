package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/infra/logging"
)

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a use case error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrCouponInvalid):
		return http.StatusBadRequest, "invalid_coupon"
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusBadRequest, "already_processed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, domain.ErrGateway):
		return http.StatusInternalServerError, "gateway_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, code := statusFor(err)
	l := logging.With(r.Context(), logger)
	ev := l.Warn()
	if status >= http.StatusInternalServerError {
		ev = l.Error()
	}
	ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	msg := domain.PublicMessage(err)
	if code == "internal_error" {
		msg = "Internal server error"
	}
	writeJSON(w, status, errorEnvelope{Message: msg, Error: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Message: "Invalid request body", Error: "validation_error"})
		return false
	}
	return true
}

// money renders an amount with fils precision as a bare JSON number.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(3))
}
