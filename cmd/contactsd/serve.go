package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/confloader"
	"github.com/MrEthical07/goContacts/internal/httpapi"
	"github.com/MrEthical07/goContacts/internal/logging"
	promexport "github.com/MrEthical07/goContacts/metrics/export/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides http.addr",
			},
		},
		Action: func(c *cli.Context) error {
			overrides := map[string]any{}
			if c.IsSet("addr") {
				overrides["http"] = map[string]any{"addr": c.String("addr")}
			}
			cfg, err := loadConfig(c, overrides)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg confloader.Config) error {
	log := logging.New(cfg.Log)
	log.Info(ctx, "starting contactsd", "version", Version, "commit", Commit)
	logLint(ctx, log, cfg.Config.Lint())

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	engine, err := buildEngine(cfg, d, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)

	handler := httpapi.NewRouter(engine, httpapi.Options{
		Log:            log.With("component", "http"),
		ContactLimiter: engine.ContactLimiter(),
		AuthRPS:        authRPS(cfg.Config),
		AuthBurst:      authBurst(cfg.Config),
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		MaxAvatarBytes: cfg.HTTP.MaxAvatarBytes,
		Gatherer:       registry,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func authRPS(cfg goContacts.Config) float64 {
	if !cfg.RateLimit.EnableIPThrottle {
		return 0
	}
	return cfg.RateLimit.AuthRPS
}

// authBurst is zero, disabling the per-IP throttle, unless it is enabled.
func authBurst(cfg goContacts.Config) int {
	if !cfg.RateLimit.EnableIPThrottle {
		return 0
	}
	return cfg.RateLimit.AuthBurst
}

func logLint(ctx context.Context, log logging.Logger, lint goContacts.LintResult) {
	for _, w := range lint {
		args := []any{"code", w.Code, "severity", w.Severity.String(), "message", w.Message}
		if w.Severity >= goContacts.LintWarn {
			log.Warn(ctx, "config lint", args...)
		} else {
			log.Info(ctx, "config lint", args...)
		}
	}
}
