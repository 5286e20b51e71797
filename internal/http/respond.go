package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/billing"
)

// errorBody is the conventional error shape returned by every handler.
type errorBody struct {
	Error             string   `json:"error"`
	Code              string   `json:"code,omitempty"`
	Details           string   `json:"details,omitempty"`
	SuggestedCommands []string `json:"suggested_commands,omitempty"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message without a machine-readable code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErrorCode sends an error with a machine-readable code and optional
// suggested follow-up commands.
func writeErrorCode(w http.ResponseWriter, status int, msg, code string, suggested []string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code, SuggestedCommands: suggested})
}

// writeServiceError maps known service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrInsufficientFuel):
		writeErrorCode(w, http.StatusPaymentRequired, err.Error(), "insufficient_fuel", []string{
			"shipyard billing quote --profile cloud_shipyard",
			"shipyard billing topup --amount <millicredits>",
		})
	case errors.Is(err, repository.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, err.Error(), "not_found", nil)
	case errors.Is(err, repository.ErrInvalidArgument):
		writeErrorCode(w, http.StatusBadRequest, err.Error(), "invalid_argument", nil)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
