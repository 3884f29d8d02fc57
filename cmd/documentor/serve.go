package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	documentor "github.com/akannigil/oxygen-documentor-sub000"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// signatureVerifier is implemented by storage backends that sign URLs
// served by this process.
type signatureVerifier interface {
	Verify(key, expires, signature string, now time.Time) bool
}

// healthChecker reports queue readiness.
type healthChecker interface {
	Ready() bool
}

func runServe(ctx context.Context, args []string, env *Environment) error {
	fs := newFlagSet("serve", env)
	fs.Usage = func() { printServeUsage(env.Stderr) }
	var common commonFlags
	addCommonFlags(fs, &common)
	addr := fs.String("addr", "", "Listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := documentor.New(ctx, cfg, documentor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.Warn("closing service", zap.Error(err))
		}
	}()

	// An unreachable queue is not fatal: jobs run inline.
	if err := svc.Start(ctx); err != nil {
		logger.Warn("job queue unavailable, running jobs inline", zap.Error(err))
	}

	var signer signatureVerifier
	if cfg.Storage.Secret != "" {
		if v, ok := svc.Storage().(signatureVerifier); ok {
			signer = v
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(svc, svc.MetricsHandler(), svc.Storage(), signer, env.Now),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newRouter wires the operational endpoints. signer is nil when stored
// files are served without signatures.
func newRouter(health healthChecker, metrics http.Handler, objects storage.Storage, signer signatureVerifier, now func() time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status, code := "ready", http.StatusOK
		if !health.Ready() {
			status, code = "inline", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"queue": status})
	})
	r.Handle("/metrics", metrics)
	r.Get("/files/*", filesHandler(objects, signer, now))
	return r
}

func filesHandler(objects storage.Storage, signer signatureVerifier, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key, err := storage.CleanKey(chi.URLParam(req, "*"))
		if err != nil {
			http.Error(w, "invalid key", http.StatusBadRequest)
			return
		}
		if signer != nil {
			q := req.URL.Query()
			if !signer.Verify(key, q.Get("expires"), q.Get("signature"), now()) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		data, err := objects.Get(req.Context(), key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.NotFound(w, req)
			return
		case err != nil:
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", storage.MIMEType(path.Ext(key)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(key)))
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
