package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"token_swap/internal/domain"
	"token_swap/internal/engine"
)

// statusFor maps the ledger error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case "InvalidAsset", "InvalidAmount", "InvalidState":
		return http.StatusBadRequest
	case "Unauthenticated":
		return http.StatusUnauthorized
	case "Unauthorized":
		return http.StatusForbidden
	case "RateNotSet":
		return http.StatusNotFound
	case "NotActive":
		return http.StatusConflict
	case "InsufficientLiquidity", "InsufficientShare", "TransferFailed":
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, engine.ErrHalted) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeLedgerError renders err with its taxonomy code. Internal failures do
// not leak their message.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := domain.ErrorCode(err)
	msg := err.Error()
	switch {
	case errors.Is(err, engine.ErrHalted):
		code = "Halted"
	case status == http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	writeError(w, status, code, msg)
}
