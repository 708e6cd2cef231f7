// Package aoc exposes the Analysis Orchestration Core over HTTP: one
// endpoint to run a full analysis, one to read snapshots, and one to
// inspect source health. Handlers stay thin; all logic lives in pkg/core.
package aoc

import (
	"encoding/json"
	"net/http"
	"strings"

	"marketaoc/pkg/core/health"
	"marketaoc/pkg/core/pipeline"
	"marketaoc/pkg/core/session"
	"marketaoc/pkg/core/snapshot"
	"marketaoc/pkg/core/utils"
)

// Handler serves the AOC endpoints.
type Handler struct {
	scheduler *pipeline.Scheduler
	snapshots *snapshot.Engine
	registry  *health.Registry
}

// NewHandler wires a Handler from the core services.
func NewHandler(s *pipeline.Scheduler, e *snapshot.Engine, r *health.Registry) *Handler {
	return &Handler{scheduler: s, snapshots: e, registry: r}
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// analyzeResponse extends the pipeline result with an HTML rendering of the
// decision rationale for diagnostic display.
type analyzeResponse struct {
	pipeline.Result
	RationaleHTML string `json:"rationale_html"`
}

// HandleAnalyze runs one full analysis.
// POST /api/aoc/analyze {"symbol", "market_type", "session_kind", "trade_date", "research_depth"}
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req session.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.scheduler.Run(r.Context(), req)
	if err != nil {
		// Only configuration errors reach here; everything data-level
		// degrades inside the run.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Result:        res,
		RationaleHTML: utils.RenderHTML(res.Strategy.DecisionRationale),
	})
}

// HandleSnapshot serves the morning or closing snapshot.
// GET /api/aoc/snapshot?kind=morning|closing&symbol=000001.SH
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.URL.Query().Get("kind") {
	case "morning":
		snap, err := h.snapshots.MorningSnapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case "closing":
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required for the closing snapshot", http.StatusBadRequest)
			return
		}
		snap, err := h.snapshots.ClosingSnapshot(r.Context(), symbol)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	default:
		http.Error(w, "kind must be morning or closing", http.StatusBadRequest)
	}
}

// HandleHealth reports per-source circuit state for operators.
// GET /api/aoc/health?sources=macro:primary,sector_flow:primary
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cors(w)
	out := make(map[string]health.State)
	if list := r.URL.Query().Get("sources"); list != "" {
		for _, source := range strings.Split(list, ",") {
			if source != "" {
				out[source] = h.registry.State(source)
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}
