package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/nacmval/internal/config"
	"github.com/vyrodovalexey/nacmval/internal/nacm"
	"github.com/vyrodovalexey/nacmval/internal/observability"
	"github.com/vyrodovalexey/nacmval/internal/parser"
)

// runServer runs the HTTP decision endpoint until SIGINT/SIGTERM. When
// source watching is enabled, changed sources are re-merged and swapped
// into the engine without restarting.
func runServer(listen string, cfg *config.Config, engine *nacm.Engine, watchDir string, logger observability.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sources.Watch && watchDir != "" {
		watcher, err := parser.NewWatcher(watchDir,
			func(policy *nacm.Policy, conflicts []nacm.Conflict) {
				engine.SetPolicy(policy)
			},
			parser.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to create policy watcher", observability.Error(err))
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Fatal("failed to start policy watcher", observability.Error(err))
		}
		defer func() { _ = watcher.Stop() }()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/validate", handleValidate(engine, logger))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("decision endpoint listening",
			observability.String("addr", listen),
			observability.String("metrics_path", cfg.Server.MetricsPath),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", observability.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
	}
}

// handleValidate answers POST /v1/validate with one decision per request.
func handleValidate(engine *nacm.Engine, logger observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req nacm.AccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		op, err := nacm.ParseOperation(string(req.Operation))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Operation = op

		if req.User == "" {
			http.Error(w, "user is required", http.StatusBadRequest)
			return
		}

		ctx := observability.ContextWithRequestID(r.Context(), uuid.New().String())
		result := engine.Authorize(ctx, &req)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(newJSONResult(&req, result)); err != nil {
			logger.WithContext(ctx).Error("failed to write response", observability.Error(err))
		}
	}
}

// handleHealthz reports liveness.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
