package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/xraph/tienda"
	"github.com/xraph/tienda/store"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

var contentTypes = map[string]string{
	"csv":      "text/csv; charset=utf-8",
	"products": "text/csv; charset=utf-8",
	"xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type handler struct {
	engine *tienda.Engine
	store  store.Store
	logger *slog.Logger
}

// newRouter exposes read-only views of the engine. Commands stay in-process.
func newRouter(e *tienda.Engine, st store.Store, metrics http.Handler, logger *slog.Logger) http.Handler {
	h := &handler{engine: e, store: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/pending", h.handlePending)
	r.Get("/low-stock", h.handleLowStock)
	r.Get("/supplies", h.handleSupplies)
	r.Get("/sales/{date}", h.handleSales)
	r.Get("/insights", h.handleInsights)

	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export/{format}", h.handleExport)
	})

	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Dashboard())
}

func (h *handler) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Pending())
}

func (h *handler) handleLowStock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.LowStock())
}

func (h *handler) handleSupplies(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.engine.SupplyHistory(limit))
}

func (h *handler) handleSales(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.SalesForDate(day))
}

func (h *handler) handleInsights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"insights": h.engine.Insights()})
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")

	var buf bytes.Buffer
	if err := h.engine.Export(r.Context(), format, &buf); err != nil {
		switch {
		case errors.Is(err, tienda.ErrUnknownFormat):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, tienda.ErrFeatureDisabled):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			h.logger.Error("export", slog.String("format", format), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	ct, ok := contentTypes[format]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="tienda.`+format+`"`)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
