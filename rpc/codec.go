package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"baselend/native/market"
)

const requestBodyLimit = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrPaused):
		status = http.StatusConflict
	case errors.Is(err, market.ErrSupplyCapExceeded),
		errors.Is(err, market.ErrNotForSale),
		errors.Is(err, market.ErrTooMuchSlippage),
		errors.Is(err, market.ErrInsufficientReserves),
		errors.Is(err, market.ErrNotLiquidatable),
		errors.Is(err, market.ErrNotCollateralized),
		errors.Is(err, market.ErrBorrowTooSmall),
		errors.Is(err, market.ErrInsufficientBalance),
		errors.Is(err, market.ErrInsufficientLiquidity):
		status = http.StatusConflict
	case errors.Is(err, market.ErrTimestampTooLarge),
		errors.Is(err, market.ErrInvalidUInt64),
		errors.Is(err, market.ErrInvalidInt104),
		errors.Is(err, market.ErrInvalidUInt128):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "market operation failed",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err.Error(),
		)
	}
	s.metrics.Errors.WithLabelValues(r.URL.Path, err.Error()).Inc()
	writeError(w, status, err.Error())
}

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestBodyLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseAddress(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid integer: %q", field, raw)
	}
	return amount, nil
}

func parseAddressList(raw []string, field string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for i, entry := range raw {
		addr, err := parseAddress(entry, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func bigZero() *big.Int { return big.NewInt(0) }

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// float64FromBig is lossy for very large reserves; the gauge only needs to be
// directionally accurate.
func float64FromBig(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
