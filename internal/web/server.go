package web

import (
	"embed"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/meridian-dex/paircore/internal/assets"
	"github.com/meridian-dex/paircore/internal/logger"
	"github.com/meridian-dex/paircore/internal/oracle"
	"github.com/meridian-dex/paircore/internal/pair"
	"github.com/meridian-dex/paircore/internal/state"
	"github.com/meridian-dex/paircore/internal/types"
	"github.com/meridian-dex/paircore/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var dashboardHTML []byte

// WebServer handles HTTP requests for market data and sandbox trading
type WebServer struct {
	router *mux.Router
	port   string
	ledger *assets.Ledger
	pairs  map[string]*pair.Pair
	order  []string // listing order, as registered
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, ledger *assets.Ledger, pairs ...*pair.Pair) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		ledger: ledger,
		pairs:  make(map[string]*pair.Pair, len(pairs)),
	}
	for _, p := range pairs {
		id := string(p.ID())
		server.pairs[id] = p
		server.order = append(server.order, id)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Static files
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(http.StripPrefix("/", staticHandler))

	// Dashboard routes
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")

	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pairs", ws.handleListPairs).Methods("GET")
	api.HandleFunc("/pairs/{id}", ws.handleGetPair).Methods("GET")
	api.HandleFunc("/pairs/{id}/reserves", ws.handleGetReserves).Methods("GET")
	api.HandleFunc("/pairs/{id}/cumulative-prices", ws.handleGetCumulativePrices).Methods("GET")
	api.HandleFunc("/pairs/{id}/quote", ws.handleGetQuote).Methods("GET")
	api.HandleFunc("/pairs/{id}/twap", ws.handleGetTWAP).Methods("GET")
	api.HandleFunc("/pairs/{id}/receipts", ws.handleGetReceipts).Methods("GET")
	api.HandleFunc("/pairs/{id}/checkpoints", ws.handleGetCheckpoints).Methods("GET")
	api.HandleFunc("/pairs/{id}/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/fee-parameters", ws.handleGetFeeParameters).Methods("GET")
	api.HandleFunc("/accounts/{account}/balances", ws.handleGetAccountBalances).Methods("GET")

	// Trading endpoints (sandbox: account names are trusted)
	api.HandleFunc("/pairs/{id}/swap", ws.handleSwap).Methods("POST")
	api.HandleFunc("/pairs/{id}/liquidity/add", ws.handleAddLiquidity).Methods("POST")
	api.HandleFunc("/pairs/{id}/liquidity/remove", ws.handleRemoveLiquidity).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// pairByID resolves the {id} route variable, writing a 404 when unknown.
func (ws *WebServer) pairByID(w http.ResponseWriter, r *http.Request) (*pair.Pair, bool) {
	id := mux.Vars(r)["id"]
	p, ok := ws.pairs[id]
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown pair: "+id)
		return nil, false
	}
	return p, true
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Get database connection status
	dbHealthy := true
	hasErrors := false
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	pairInfo := make([]map[string]interface{}, 0, len(ws.order))
	for _, id := range ws.order {
		s := ws.pairs[id].State()
		pairInfo = append(pairInfo, map[string]interface{}{
			"pair_id":   id,
			"seeded":    s.Seeded(),
			"reserve_a": s.ReserveA,
			"reserve_b": s.ReserveB,
		})
	}

	// Determine overall status
	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "paircore-exchange",
			"version": "1.0.0",
		},
		"venue_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pairs":            pairInfo,
		},
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}

// handleListPairs returns every pair with its committed state.
func (ws *WebServer) handleListPairs(w http.ResponseWriter, r *http.Request) {
	now := uint64(time.Now().Unix())
	list := make([]map[string]interface{}, 0, len(ws.order))
	for _, id := range ws.order {
		p := ws.pairs[id]
		s := p.State()
		list = append(list, map[string]interface{}{
			"pair_id":         id,
			"token_a":         s.TokenA,
			"token_b":         s.TokenB,
			"reserve_a":       s.ReserveA,
			"reserve_b":       s.ReserveB,
			"total_shares":    s.TotalShares,
			"current_fee_bps": p.CurrentFeeBps(now),
			"seeded":          s.Seeded(),
		})
	}

	response := map[string]interface{}{
		"pairs": list,
		"count": len(list),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPair returns one pair's full state plus approximate spot prices.
func (ws *WebServer) handleGetPair(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	s := p.State()
	now := uint64(time.Now().Unix())

	response := map[string]interface{}{
		"pair_id":         string(p.ID()),
		"account":         p.Account(),
		"share_symbol":    p.ShareSymbol(),
		"state":           s,
		"current_fee_bps": p.CurrentFeeBps(now),
	}

	if s.Seeded() {
		if spotA, err := oracle.SpotPrice(s.ReserveB, s.ReserveA); err == nil {
			if approx, err := utils.PriceQ64ToFloat64(spotA); err == nil {
				response["spot_price_a"] = approx
			}
		}
		if spotB, err := oracle.SpotPrice(s.ReserveA, s.ReserveB); err == nil {
			if approx, err := utils.PriceQ64ToFloat64(spotB); err == nil {
				response["spot_price_b"] = approx
			}
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReserves returns the committed reserves for one pair.
func (ws *WebServer) handleGetReserves(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	reserveA, reserveB, lastUpdate := p.GetReserves()

	response := map[string]interface{}{
		"pair_id":               string(p.ID()),
		"reserve_a":             reserveA,
		"reserve_b":             reserveB,
		"last_update_timestamp": lastUpdate,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCumulativePrices returns the committed price accumulators plus a
// projection to the current instant, the reading an off-venue TWAP consumer
// would record now. The committed fields are identical across reads until
// the next trade.
func (ws *WebServer) handleGetCumulativePrices(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	cumA, cumB, lastUpdate := p.GetCumulativePrices()
	snap := p.ObservationAt(uint64(time.Now().Unix()))

	response := map[string]interface{}{
		"pair_id":               string(p.ID()),
		"price_a_cumulative":    cumA,
		"price_b_cumulative":    cumB,
		"last_update_timestamp": lastUpdate,
		"projected": map[string]interface{}{
			"price_a_cumulative": snap.PriceACumulative,
			"price_b_cumulative": snap.PriceBCumulative,
			"timestamp":          snap.Timestamp,
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetQuote prices a hypothetical swap without executing it.
func (ws *WebServer) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	assetIn := r.URL.Query().Get("asset_in")
	amountStr := r.URL.Query().Get("amount_in")
	if assetIn == "" || amountStr == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "asset_in and amount_in query parameters are required")
		return
	}
	amountIn, ok := sdkmath.NewIntFromString(amountStr)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "amount_in must be a base-unit integer")
		return
	}

	amountOut, feeBps, err := p.SimulateSwap(types.Token(assetIn), amountIn)
	if err != nil {
		ws.writeTradeError(w, err)
		return
	}

	tokenA, tokenB := p.Tokens()
	assetOut := tokenA
	if types.Token(assetIn) == tokenA {
		assetOut = tokenB
	}

	response := map[string]interface{}{
		"pair_id":      string(p.ID()),
		"asset_in":     assetIn,
		"asset_out":    assetOut,
		"amount_in":    amountIn,
		"amount_out":   amountOut,
		"fee_rate_bps": feeBps,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTWAP reports the time-weighted average price over the requested
// window: a live projected reading diffed against the newest archived
// checkpoint at or before the window start.
func (ws *WebServer) handleGetTWAP(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	window, err := strconv.ParseUint(r.URL.Query().Get("window_seconds"), 10, 64)
	if err != nil || window == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "window_seconds must be a positive integer")
		return
	}

	now := uint64(time.Now().Unix())
	live := p.ObservationAt(now)

	windowStart := uint64(0)
	if window < now {
		windowStart = now - window
	}

	cp, err := state.CheckpointAtOrBefore(string(p.ID()), windowStart)
	if err != nil {
		webLogger.Error().Err(err).Str("pair", string(p.ID())).Msg("Failed to load checkpoint for TWAP")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load checkpoint history")
		return
	}
	if cp == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No checkpoint old enough for the requested window")
		return
	}

	avgA, avgB, err := oracle.TWAP(cp.Snapshot(), live)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}

	response := map[string]interface{}{
		"pair_id":                  string(p.ID()),
		"window_seconds":           window,
		"effective_window_seconds": live.Timestamp - cp.PairTimestamp,
		"from_checkpoint_id":       cp.CheckpointID,
		"twap_a_q64":               avgA,
		"twap_b_q64":               avgB,
	}
	if approx, err := utils.PriceQ64ToFloat64(avgA); err == nil {
		response["twap_a"] = approx
	}
	if approx, err := utils.PriceQ64ToFloat64(avgB); err == nil {
		response["twap_b"] = approx
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReceipts returns the pair's archived trade history.
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 200 {
			limit = parsedLimit
		}
	}

	id := string(p.ID())
	swaps, err := state.RecentSwaps(id, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent swaps")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}
	liquidity, err := state.RecentLiquidityEvents(id, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent liquidity events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}
	flashLoans, err := state.RecentFlashLoans(id, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent flash loans")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}

	response := map[string]interface{}{
		"pair_id":     id,
		"swaps":       swaps,
		"liquidity":   liquidity,
		"flash_loans": flashLoans,
		"limit":       limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCheckpoints returns the pair's archived oracle checkpoints.
func (ws *WebServer) handleGetCheckpoints(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 200 {
			limit = parsedLimit
		}
	}

	checkpoints, err := state.RecentCheckpoints(string(p.ID()), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent checkpoints")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve checkpoints")
		return
	}

	response := map[string]interface{}{
		"pair_id":     string(p.ID()),
		"checkpoints": checkpoints,
		"count":       len(checkpoints),
		"limit":       limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSummary combines live pair state with archived activity stats.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.pairByID(w, r)
	if !ok {
		return
	}

	s := p.State()
	activity, err := state.GetPairActivity(string(p.ID()), string(s.TokenA), string(s.TokenB))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get pair activity")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pair activity")
		return
	}

	now := uint64(time.Now().Unix())
	response := map[string]interface{}{
		"pair_id":         string(p.ID()),
		"token_a":         s.TokenA,
		"token_b":         s.TokenB,
		"reserve_a":       s.ReserveA,
		"reserve_b":       s.ReserveB,
		"total_shares":    s.TotalShares,
		"current_fee_bps": p.CurrentFeeBps(now),
		"activity":        activity,
	}
	if cp, err := state.LatestCheckpoint(string(p.ID())); err == nil && cp != nil {
		response["latest_checkpoint"] = cp
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetFeeParameters returns each pair's live fee configuration.
func (ws *WebServer) handleGetFeeParameters(w http.ResponseWriter, r *http.Request) {
	now := uint64(time.Now().Unix())
	list := make([]map[string]interface{}, 0, len(ws.order))
	for _, id := range ws.order {
		p := ws.pairs[id]
		feeBps := p.CurrentFeeBps(now)
		entry := map[string]interface{}{
			"pair_id":             id,
			"parameters":          p.FeeParams(),
			"current_fee_bps":     feeBps,
			"current_fee_percent": utils.BpsToPercent(feeBps),
		}
		if paramsID, err := state.GetActiveFeeParametersID(id); err == nil && paramsID != nil {
			entry["active_params_id"] = *paramsID
		}
		list = append(list, entry)
	}

	response := map[string]interface{}{
		"pairs":     list,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAccountBalances returns every asset balance held by an account.
func (ws *WebServer) handleGetAccountBalances(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	if account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Account name required")
		return
	}

	balances := ws.ledger.AccountBalances(account)

	response := map[string]interface{}{
		"account":  account,
		"balances": balances,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
