// The unity-mcp-editor binary runs the editor-side dispatcher core outside
// Unity: the same control server, handler registries, and main-thread pump
// the editor plugin embeds, with stub handlers answering over the wire. It
// exists to exercise a bridge end to end without an editor.
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
	"time"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/config"
	"github.com/isuzu-shiranui/UnityMCP/internal/editor"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

var version = "dev"

// frameInterval approximates the editor's per-frame tick.
const frameInterval = 16 * time.Millisecond

type echoHandler struct{}

func (echoHandler) Execute(action string, params json.RawMessage) (any, error) {
	return map[string]any{"success": true, "action": action, "params": params}, nil
}

type echoResource struct{}

func (echoResource) Fetch(action string, params json.RawMessage) (any, error) {
	var req struct {
		URI string `json:"uri"`
	}
	_ = json.Unmarshal(params, &req)
	return map[string]any{"contents": []map[string]any{{
		"uri":      req.URI,
		"text":     "{}",
		"mimeType": "application/json",
	}}}, nil
}

func main() {
	var cfg config.EditorConfig
	cfg.SetDefaults()
	cfg.ApplyEnv()
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mt := editor.NewMainThread()
	disp := editor.NewDispatcher(mt, editor.DefaultBarrier)
	for _, prefix := range []string{"menu", "console", "tests"} {
		disp.RegisterCommand(prefix, echoHandler{})
	}
	disp.RegisterResource("scene", echoResource{})
	disp.RegisterResource("logs", echoResource{})

	go mt.Pump(ctx, frameInterval)

	if cfg.Listen {
		srv := editor.NewServer(editor.ServerConfig{Host: cfg.Host, Port: cfg.Port}, disp)
		if err := srv.Start(); err != nil {
			logx.Log.Fatal().Err(err).Msg("start control server")
		}
		<-ctx.Done()
		srv.Stop()
		return
	}

	info := &wire.ClientInfo{
		ProductName:   cfg.ProjectName,
		EngineVersion: version,
		Platform:      "go",
	}
	if info.ProductName == "" {
		info.ProductName = "unity-mcp-editor"
	}
	client := editor.NewClient(editor.ClientConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		ClientID: cfg.ClientID,
		Info:     info,
	}, disp)
	client.Run(ctx)
}
