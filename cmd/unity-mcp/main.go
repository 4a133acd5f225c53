package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/core/secret"
	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
	"github.com/isuzu-shiranui/UnityMCP/internal/config"
	"github.com/isuzu-shiranui/UnityMCP/internal/handlers"
	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
	"github.com/isuzu-shiranui/UnityMCP/internal/metrics"
	"github.com/isuzu-shiranui/UnityMCP/internal/router"
	"github.com/isuzu-shiranui/UnityMCP/internal/status"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	var cfg config.BridgeConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv() // allows CONFIG_FILE from env
	// Allow --config to override the file path before loading it
	for i := 1; i < len(os.Args); i++ {
		a := os.Args[i]
		if a == "--config" && i+1 < len(os.Args) {
			cfg.ConfigFile = os.Args[i+1]
			break
		}
		if strings.HasPrefix(a, "--config=") {
			cfg.ConfigFile = strings.TrimPrefix(a, "--config=")
			break
		}
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent()
	flag.Parse()
	logx.Configure(cfg.LogLevel)
	logx.Log.Info().Str("version", version).Str("sha", buildSHA).Str("date", buildDate).Msg("unity-mcp bridge starting")

	preg := prometheus.NewRegistry()
	metrics.Register(preg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rtr *router.Router
	h := hub.New(hub.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		BindAll:       cfg.BindAll,
		DiscoveryPort: cfg.DiscoveryPort,
		Version:       version,
	}, hub.Events{
		Message: func(id string, env *wire.Envelope, raw json.RawMessage) {
			if env.ID != "" {
				rtr.HandleResponse(id, env, raw)
			}
		},
		Disconnected: func(id string) {
			rtr.FailClient(id, wire.ErrConnectionClosed)
		},
	})
	rtr = router.New(h, cfg.RequestTimeout)

	b := bridge.New(h, rtr, version)
	b.AddHandler(handlers.NewMenuHandler())
	b.AddHandler(handlers.NewConsoleHandler())
	b.AddHandler(handlers.NewTestsHandler())
	b.AddHandler(handlers.NewSceneHandler())
	b.AddHandler(handlers.NewLogsHandler())
	b.AddHandler(handlers.NewWorkflowPrompts())

	if err := h.Start(); err != nil {
		logx.Log.Fatal().Err(err).Msg("start hub")
	}

	if cfg.StatusAddr != "" {
		if cfg.StatusToken != "" {
			logx.Log.Info().Str("token", secret.Mask(cfg.StatusToken)).Msg("status server auth enabled")
		}
		go status.Serve(ctx, status.Options{
			Addr:           cfg.StatusAddr,
			AllowedOrigins: cfg.AllowedOrigins,
			Token:          cfg.StatusToken,
			Version:        version,
			Hub:            h,
			Registry:       preg,
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- b.ServeStdio() }()

	select {
	case <-ctx.Done():
		logx.Log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logx.Log.Error().Err(err).Msg("mcp endpoint stopped")
		}
	}

	rtr.Shutdown()
	h.Stop()
	logx.Log.Info().Msg("unity-mcp bridge stopped")
}
