package apihttp

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"ento-core/internal/fault"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the shared failure taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fault.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, fault.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, fault.ErrReplay):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrState):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrSlippage):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrTiming):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(into)
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return nil, errors.New("amount is required")
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	return amount, nil
}

func amountString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
