package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/backend"
	"cryptobotx-go/internal/history"
	"cryptobotx-go/internal/mode"
	"cryptobotx-go/internal/models"
	"cryptobotx-go/internal/scheduler"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExportLog journals exports and lists past ones.
type ExportLog interface {
	Journal(name string, mode models.TradingMode, origin history.Origin, rows int)
	RecentExports(limit int) ([]models.ExportRecord, error)
}

const defaultExportsLimit = 20

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log         *zap.Logger
	sess        *auth.Session
	bot         backend.ClientInterface
	history     *history.Controller
	switcher    *mode.Switcher
	permissions *scheduler.PermissionsJob
	exporter    history.Exporter
	exports     ExportLog
	now         func() time.Time
}

// HandlerDeps are the collaborators of an APIHandler.
type HandlerDeps struct {
	Log         *zap.Logger
	Session     *auth.Session
	Bot         backend.ClientInterface
	History     *history.Controller
	Switcher    *mode.Switcher
	Permissions *scheduler.PermissionsJob
	Exporter    history.Exporter
	Exports     ExportLog
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(d HandlerDeps) *APIHandler {
	return &APIHandler{
		log:         d.Log.Named("api"),
		sess:        d.Session,
		bot:         d.Bot,
		history:     d.History,
		switcher:    d.Switcher,
		permissions: d.Permissions,
		exporter:    d.Exporter,
		exports:     d.Exports,
		now:         time.Now,
	}
}

// Routes registers the API on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health", h.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.HistoryHandler)
			r.Post("/show", h.ShowHandler)
			r.Post("/refresh", h.RefreshHandler)
			r.Post("/hide", h.HideHandler)
			r.Get("/export", h.ExportHandler)
			r.Get("/exports", h.ExportsHandler)
		})
		r.Route("/bot", func(r chi.Router) {
			r.Get("/status", h.StatusHandler)
			r.Get("/performance", h.PerformanceHandler)
			r.Get("/permissions", h.PermissionsHandler)
			r.Post("/start", h.StartHandler)
			r.Post("/stop", h.StopHandler)
			r.Post("/analyze", h.AnalyzeHandler)
		})
		r.Get("/mode", h.GetModeHandler)
		r.Post("/mode", h.SetModeHandler)
	})
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HistoryResponse is the filtered view of the trade history.
type HistoryResponse struct {
	history.Snapshot
	Filter       history.FilterState  `json:"filter"`
	Trades       []models.TradeRecord `json:"trades"`
	Total        int                  `json:"total"`
	Summary      history.Summary      `json:"summary"`
	EmptyMessage string               `json:"emptyMessage,omitempty"`
}

// HistoryHandler returns the current records filtered and sorted by the
// query parameters.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.historyResponse(f))
}

// ShowHandler makes the history view visible and loads it.
func (h *APIHandler) ShowHandler(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.history.Show)
}

// RefreshHandler reloads the history for the current mode.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.history.Refresh)
}

func (h *APIHandler) load(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, sess *auth.Session, mode models.TradingMode) (history.Snapshot, error)) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := fetch(r.Context(), h.sess, h.switcher.Current()); err != nil {
		if errors.Is(err, history.ErrStaleResponse) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error("Failed to load trade history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load trade history")
		return
	}
	writeJSON(w, http.StatusOK, h.historyResponse(f))
}

// HideHandler hides the view and discards in-flight loads.
func (h *APIHandler) HideHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.Hide())
}

// ExportHandler streams the filtered view as a CSV attachment.
func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, view := h.history.View(f)
	if snap.State != history.StateLoaded {
		writeError(w, http.StatusConflict, fmt.Sprintf("trade history is %s", snap.State))
		return
	}

	name := h.exporter.FileName(snap.Mode, h.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := h.exporter.WriteCSV(w, view.Trades); err != nil {
		h.log.Error("Failed to write export", zap.Error(err))
		return
	}

	h.exports.Journal(name, snap.Mode, snap.Origin, len(view.Trades))
}

// ExportsHandler lists past exports, newest first.
func (h *APIHandler) ExportsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultExportsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.exports.RecentExports(limit)
	if err != nil {
		h.log.Error("Failed to list exports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	if recs == nil {
		recs = []models.ExportRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// historyResponse renders nothing but the snapshot while the view is hidden.
func (h *APIHandler) historyResponse(f history.FilterState) HistoryResponse {
	snap, view := h.history.View(f)
	resp := HistoryResponse{
		Snapshot: snap,
		Filter:   f,
		Trades:   []models.TradeRecord{},
	}
	if snap.State == history.StateHidden {
		return resp
	}

	resp.Trades = view.Trades
	resp.Total = len(snap.Records)
	resp.Summary = view.Summary
	if snap.State == history.StateLoaded {
		resp.EmptyMessage = history.EmptyMessage(len(snap.Records), len(view.Trades))
	}
	return resp
}

// StatusHandler returns the bot status.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.bot.BotStatus(r.Context(), h.sess)
	if err != nil {
		h.backendError(w, "Failed to get bot status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// PerformanceHandler returns the bot's risk and P&L counters.
func (h *APIHandler) PerformanceHandler(w http.ResponseWriter, r *http.Request) {
	perf, err := h.bot.Performance(r.Context(), h.sess)
	if err != nil {
		h.backendError(w, "Failed to get performance", err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

// PermissionsResponse adds the traffic-light health to Permissions.
type PermissionsResponse struct {
	models.Permissions
	Health models.Health `json:"health"`
	Error  string        `json:"error,omitempty"`
}

// PermissionsHandler returns the last polled permissions, polling first if
// nothing is cached yet.
func (h *APIHandler) PermissionsHandler(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permissions.Last()
	if perms == nil {
		_ = h.permissions.Run()
		perms, err = h.permissions.Last()
	}
	resp := PermissionsResponse{Permissions: *perms, Health: perms.Health()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartHandler starts the bot.
func (h *APIHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Start(r.Context(), h.sess); err != nil {
		h.backendError(w, "Failed to start bot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

// StopHandler stops the bot.
func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Stop(r.Context(), h.sess); err != nil {
		h.backendError(w, "Failed to stop bot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

// AnalyzeHandler requests an AI analysis.
func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	an, err := h.bot.Analyze(r.Context(), h.sess)
	if err != nil {
		h.backendError(w, "Failed to get AI analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, an)
}

type modeRequest struct {
	Mode    models.TradingMode `json:"mode"`
	Confirm bool               `json:"confirm"`
}

type modeResponse struct {
	Mode models.TradingMode `json:"mode"`
}

// GetModeHandler returns the current trading mode.
func (h *APIHandler) GetModeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modeResponse{Mode: h.switcher.Current()})
}

// SetModeHandler switches the trading mode and reloads a visible history.
func (h *APIHandler) SetModeHandler(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	before := h.switcher.Current()
	got, err := h.switcher.Switch(r.Context(), h.sess, req.Mode, req.Confirm)
	switch {
	case errors.Is(err, mode.ErrConfirmationRequired), errors.Is(err, mode.ErrLiveNotPermitted):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if got != before && h.history.Snapshot().State != history.StateHidden {
		if _, err := h.history.Refresh(r.Context(), h.sess, got); err != nil && !errors.Is(err, history.ErrStaleResponse) {
			h.log.Error("Failed to reload trade history after mode change", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: got})
}

func (h *APIHandler) backendError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))

	status := http.StatusBadGateway
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	writeError(w, status, err.Error())
}

func filterFromQuery(r *http.Request) (history.FilterState, error) {
	q := r.URL.Query()
	return history.ParseFilterState(q.Get("search"), q.Get("side"), q.Get("status"), q.Get("range"), q.Get("sort"), q.Get("order"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
