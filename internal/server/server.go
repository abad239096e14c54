// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/activity"
	"github.com/matthewbaird/assetdesk/internal/eventbus"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/handler"
	"github.com/matthewbaird/assetdesk/internal/inventory"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/media"
	"github.com/matthewbaird/assetdesk/internal/metrics"
	"github.com/matthewbaird/assetdesk/internal/settings"
)

// Deps holds everything the router serves.
type Deps struct {
	Inventory *inventory.Service
	Lifecycle *lifecycle.Engine
	Settings  *settings.Service
	Forms     *form.Manager
	Media     media.Store
	// MediaDir is served under /media when images are kept on local disk.
	MediaDir string
	Activity activity.Store
	Feed     *eventbus.FeedHub
	// Auth guards every /v1 route except the feed. Nil means no check.
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
}

// NewRouter registers every route.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())
	if d.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(d.MediaDir))))
	}

	ih := handler.NewInventoryHandler(d.Inventory)
	rh := handler.NewRequestHandler(d.Lifecycle)
	sh := handler.NewSettingsHandler(d.Settings)
	fh := handler.NewFormHandler(d.Forms)
	imh := handler.NewImageHandler(d.Media)
	ah := handler.NewActivityHandler(d.Activity)

	r.Route("/v1", func(r chi.Router) {
		if d.Feed != nil {
			r.Get("/feed", d.Feed.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			if d.Auth != nil {
				r.Use(d.Auth)
			}

			// --- Families ---
			r.Get("/families", ih.ListFamilies)
			r.Post("/families", ih.CreateFamily)
			r.Get("/families/{id}", ih.GetFamily)
			r.Patch("/families/{id}", ih.UpdateFamily)
			r.Post("/families/{id}/assets:bulk", ih.BulkCreate)

			// --- Assets ---
			r.Get("/assets", ih.ListAssets)
			r.Post("/assets", ih.CreateAsset)
			r.Get("/assets/{id}", ih.GetAsset)
			r.Patch("/assets/{id}", ih.UpdateAsset)
			r.Post("/assets/{id}/unlock-id", ih.UnlockAssetID)
			r.Get("/assets/{id}/history", ih.AssetHistory)

			// --- Users ---
			r.Get("/users", ih.ListUsers)
			r.Post("/users", ih.CreateUser)
			r.Get("/users/{id}", ih.GetUser)
			r.Patch("/users/{id}", ih.UpdateUser)
			r.Delete("/users/{id}", ih.DeleteUser)
			r.Get("/users/{id}/history", ih.UserHistory)

			// --- Requests and tasks ---
			r.Get("/requests", rh.ListRequests)
			r.Post("/requests", rh.CreateRequest)
			r.Get("/requests/{id}", rh.GetRequest)
			r.Post("/requests/{id}/approve", rh.Approve)
			r.Post("/requests/{id}/confirm-task", rh.ConfirmTask)
			r.Post("/requests/{id}/reject", rh.Reject)
			r.Post("/requests/{id}/fulfill", rh.Fulfill)
			r.Get("/tasks", rh.ListTasks)

			// --- Reference lists ---
			r.Get("/reference/{kind}", sh.ListReferences)
			r.Post("/reference/{kind}", sh.AddReference)
			r.Delete("/reference/{kind}/{name}", sh.DeleteReference)

			// --- Settings ---
			r.Get("/settings", sh.GetSettings)
			r.Put("/settings/categories/{kind}", sh.SetCategories)
			r.Put("/settings/id-scheme", sh.SetIDScheme)
			r.Get("/settings/layouts", sh.ListLayouts)
			r.Get("/settings/layouts/{context}", sh.GetLayout)
			r.Put("/settings/layouts/{context}", sh.PutLayout)
			r.Post("/settings/layouts/{context}/ops", sh.EditLayout)
			r.Delete("/settings/layouts/{context}", sh.ResetLayout)

			// --- Images ---
			r.Post("/images/{folder}", imh.Upload)
			r.Get("/images/{folder}", imh.List)

			// --- Forms ---
			r.Post("/forms", fh.Open)
			r.Get("/forms/{id}", fh.View)
			r.Post("/forms/{id}/tabs/{index}", fh.SelectTab)
			r.Put("/forms/{id}/fields/{key}", fh.Edit)
			r.Post("/forms/{id}/submit", fh.Submit)
			r.Delete("/forms/{id}", fh.Cancel)

			// --- Activity ---
			r.Get("/activity/{entityType}/{entityID}", ah.HandleGetEntityActivity)
			r.Get("/activity/{entityType}/{entityID}/summary", ah.HandleGetEntitySummary)
			r.Post("/activity/search", ah.HandleSearchActivity)
		})
	})
	return r
}

// requestLogger logs each request and records its latency under the
// matched route pattern.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", elapsed,
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// Config holds server configuration.
type Config struct {
	Addr            string
	Handler         http.Handler
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cfg.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serving http")
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}
