// ./internal/web/trade_handlers.go

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/paircore/internal/pair"
	"github.com/meridian-dex/paircore/internal/types"
)

// swapRequest is the JSON body for POST /api/pairs/{id}/swap. Amounts travel
// as strings because they can exceed what a JSON number holds exactly.
type swapRequest struct {
	Trader       string `json:"trader"`
	Recipient    string `json:"recipient,omitempty"`
	AssetIn      string `json:"asset_in"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
}

type addLiquidityRequest struct {
	Provider       string `json:"provider"`
	AmountADesired string `json:"amount_a_desired"`
	AmountBDesired string `json:"amount_b_desired"`
	MinA           string `json:"min_a,omitempty"`
	MinB           string `json:"min_b,omitempty"`
}

type removeLiquidityRequest struct {
	Provider string `json:"provider"`
	Shares   string `json:"shares"`
	MinA     string `json:"min_a,omitempty"`
	MinB     string `json:"min_b,omitempty"`
}

// parseAmount converts a request field to an Int. Empty means zero so
// optional minimums can be omitted.
func parseAmount(field, raw string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%s must be a base-unit integer", field)
	}
	return amount, nil
}

// handleSwap executes a swap on behalf of the named trader.
func (ws *WebServer) handleSwap(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	minOut, err := parseAmount("min_amount_out", req.MinAmountOut)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := p.Swap(r.Context(), pair.SwapParams{
		Trader:       req.Trader,
		AssetIn:      types.Token(req.AssetIn),
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Recipient:    req.Recipient,
	})
	if err != nil {
		ws.writeTradeError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleAddLiquidity deposits both assets and mints shares.
func (ws *WebServer) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	var req addLiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	amountA, err := parseAmount("amount_a_desired", req.AmountADesired)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	amountB, err := parseAmount("amount_b_desired", req.AmountBDesired)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	minA, err := parseAmount("min_a", req.MinA)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	minB, err := parseAmount("min_b", req.MinB)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := p.AddLiquidity(r.Context(), pair.AddLiquidityParams{
		Provider:       req.Provider,
		AmountADesired: amountA,
		AmountBDesired: amountB,
		MinA:           minA,
		MinB:           minB,
	})
	if err != nil {
		ws.writeTradeError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleRemoveLiquidity burns shares and pays out both assets.
func (ws *WebServer) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	var req removeLiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	shares, err := parseAmount("shares", req.Shares)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	minA, err := parseAmount("min_a", req.MinA)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	minB, err := parseAmount("min_b", req.MinB)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := p.RemoveLiquidity(r.Context(), pair.RemoveLiquidityParams{
		Provider: req.Provider,
		Shares:   shares,
		MinA:     minA,
		MinB:     minB,
	})
	if err != nil {
		ws.writeTradeError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// writeTradeError maps engine failures to HTTP statuses: malformed requests
// are 400, rejections a retry might clear are 409, everything else is 500.
func (ws *WebServer) writeTradeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInsufficientInput),
		errors.Is(err, types.ErrFlashPayloadTooLarge):
		statusCode = http.StatusBadRequest
	case errors.Is(err, types.ErrInsufficientLiquidity),
		errors.Is(err, types.ErrInsufficientInitialLiquidity),
		errors.Is(err, types.ErrInsufficientShares),
		errors.Is(err, types.ErrInsufficientFunds),
		errors.Is(err, types.ErrSlippageExceeded),
		errors.Is(err, types.ErrFlashLoanNotRepaid),
		errors.Is(err, types.ErrReentrancy):
		statusCode = http.StatusConflict
	}

	ws.writeErrorResponse(w, statusCode, err.Error())
}
