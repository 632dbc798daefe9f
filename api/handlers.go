/*
handlers.go - HTTP API handlers for the purchase ledger

PURPOSE:
  Exposes the ledger, aggregation engine and reconciliation service over
  REST. Handles HTTP request/response and JSON shapes; all domain logic
  lives behind the Recorder, Engine and reconcile.Service.

ENDPOINTS:
  Purchases:
    POST   /api/purchases/base       Record a base-currency purchase
    POST   /api/purchases/token      Record a token purchase
    GET    /api/purchases/{hash}     Look up a recorded pair by hash

  Aggregates:
    GET    /api/stats                Market-wide statistics
    GET    /api/stats/chart          Per-day revenue chart (?days=N)
    GET    /api/stats/trends         Named-period trends (?period=24h|7d|30d)
    GET    /api/stats/top-items      Top performers (?limit=N)

  Revenue:
    GET    /api/revenue/reconciled   Ledger vs chain reconciled figure

  Ops:
    GET    /api/healthz              Liveness probe

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: validation failures (field named in the body)
  - 404: unknown settlement hash
  - 409: duplicate settlement hash; the body echoes the ORIGINAL pair so a
         retrying client can treat the response as success
  - 500: everything else

SEE ALSO:
  - dto.go:       wire shapes
  - server.go:    router and middleware
  - scheduler.go: background reconciliation sweep
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prism/market-ledger/ledger"
	"github.com/prism/market-ledger/reconcile"
	"github.com/prism/market-ledger/stats"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Recorder   *ledger.Recorder
	Stats      *stats.Engine
	Reconciler *reconcile.Service
	Store      ledger.Store
	Log        zerolog.Logger
}

// NewHandler wires a handler over the given collaborators.
func NewHandler(rec *ledger.Recorder, engine *stats.Engine, rc *reconcile.Service, store ledger.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Recorder:   rec,
		Stats:      engine,
		Reconciler: rc,
		Store:      store,
		Log:        log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// RecordBasePurchase records a purchase settled in the base chain currency.
func (h *Handler) RecordBasePurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordBasePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Recorder.RecordBasePurchase(r.Context(), ledger.BasePurchaseInput{
		ItemID:         req.ItemID,
		Buyer:          req.BuyerAddress,
		Seller:         req.SellerAddress,
		SettlementHash: req.SettlementHash,
		PriceBase:      req.PriceBase,
		Kind:           req.PurchaseKind,
		PriceUSD:       req.PriceUSD,
		BlockNumber:    req.BlockNumber,
		GasUsed:        req.GasUsed,
		GasPrice:       req.GasPrice,
		Network:        req.Network,
	})
	h.writeRecordResult(w, receipt, err)
}

// RecordTokenPurchase records a purchase settled in the platform token.
func (h *Handler) RecordTokenPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordTokenPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Recorder.RecordTokenPurchase(r.Context(), ledger.TokenPurchaseInput{
		ItemID:         req.ItemID,
		Buyer:          req.BuyerAddress,
		Seller:         req.SellerAddress,
		PriceToken:     req.PriceToken,
		SettlementHash: req.SettlementHash,
		PriceUSD:       req.PriceUSD,
		Network:        req.Network,
		TokenContract:  req.TokenContract,
		TokenSymbol:    req.TokenSymbol,
		TokenDecimals:  req.TokenDecimals,
	})
	h.writeRecordResult(w, receipt, err)
}

// writeRecordResult maps a Recorder outcome to the HTTP response. A conflict
// is answered 409 with the pre-existing pair in the body.
func (h *Handler) writeRecordResult(w http.ResponseWriter, receipt *ledger.Receipt, err error) {
	if err == nil {
		writeJSON(w, http.StatusCreated, toReceiptDTO(receipt, false))
		return
	}
	if conflict := ledger.AsConflict(err); conflict != nil {
		writeJSON(w, http.StatusConflict, toReceiptDTO(conflict.Existing, true))
		return
	}
	if ve, ok := asValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
		return
	}
	h.Log.Error().Err(err).Msg("purchase recording failed")
	writeError(w, http.StatusInternalServerError, "Failed to record purchase", err)
}

// GetPurchase returns the recorded pair for a settlement hash.
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "hash")
	hash, err := ledger.NormalizeHash("settlementHash", raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: "settlementHash"})
		return
	}

	receipt, err := h.Store.PairByHash(r.Context(), hash)
	if err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Settlement not recorded", nil)
			return
		}
		h.Log.Error().Err(err).Str("settlement_hash", string(hash)).Msg("purchase lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load purchase", err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptDTO(receipt, false))
}

// =============================================================================
// AGGREGATE HANDLERS
// =============================================================================

// GetMarketStats returns the market-wide snapshot.
func (h *Handler) GetMarketStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Stats.MarketStats(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("market stats failed")
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketStatsDTO(s))
}

// GetChart returns the per-day revenue chart. Defaults to 7 days.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid days: must be an integer", Field: "days"})
			return
		}
		days = n
	}

	entries, err := h.Stats.ChartData(r.Context(), days)
	if err != nil {
		if ve, ok := asValidation(err); ok {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
			return
		}
		h.Log.Error().Err(err).Msg("chart data failed")
		writeError(w, http.StatusInternalServerError, "Failed to compute chart", err)
		return
	}
	writeJSON(w, http.StatusOK, toChartDTOs(entries))
}

// GetTrends returns the trend report for a named period.
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	report, err := h.Stats.Trends(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		if ve, ok := asValidation(err); ok {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
			return
		}
		h.Log.Error().Err(err).Msg("trends failed")
		writeError(w, http.StatusInternalServerError, "Failed to compute trends", err)
		return
	}
	writeJSON(w, http.StatusOK, toTrendsDTO(report))
}

// GetTopItems returns the top-performer ranking. Defaults to 10 entries.
func (h *Handler) GetTopItems(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit: must be an integer", Field: "limit"})
			return
		}
		limit = n
	}

	items, err := h.Stats.TopItems(r.Context(), limit)
	if err != nil {
		if ve, ok := asValidation(err); ok {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
			return
		}
		h.Log.Error().Err(err).Msg("top items failed")
		writeError(w, http.StatusInternalServerError, "Failed to compute top items", err)
		return
	}
	writeJSON(w, http.StatusOK, toTopItemDTOs(items))
}

// =============================================================================
// REVENUE HANDLERS
// =============================================================================

// GetReconciledRevenue returns the ledger-vs-chain merged revenue figure.
// A chain outage degrades to ledger-only figures, never a failed response.
func (h *Handler) GetReconciledRevenue(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Revenue(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("reconciliation failed")
		writeError(w, http.StatusInternalServerError, "Failed to reconcile revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciledDTO(report))
}

// =============================================================================
// OPS HANDLERS
// =============================================================================

// Healthz answers liveness probes. The ledger count doubles as a cheap
// database reachability check.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Store.CountConfirmed(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func asValidation(err error) (*ledger.ValidationError, bool) {
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
