package test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/isuzu-shiranui/UnityMCP/internal/editor"
	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
	"github.com/isuzu-shiranui/UnityMCP/internal/router"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

type menuStub struct{}

func (menuStub) Execute(action string, params json.RawMessage) (any, error) {
	var p struct {
		MenuItem string `json:"menuItem"`
	}
	_ = json.Unmarshal(params, &p)
	return map[string]any{"success": true, "action": action, "menuItem": p.MenuItem}, nil
}

type logsStub struct{}

func (logsStub) Fetch(action string, params json.RawMessage) (any, error) {
	return map[string]any{"contents": []any{map[string]any{"uri": "unity://logs", "text": "[]"}}}, nil
}

type bridgeEnd struct {
	hub    *hub.Hub
	router *router.Router

	registered chan string
	active     chan string
}

// startBridgeEnd stands up the hub and router wired the way the bridge
// binary wires them.
func startBridgeEnd(t *testing.T, timeout time.Duration) *bridgeEnd {
	t.Helper()
	be := &bridgeEnd{
		registered: make(chan string, 8),
		active:     make(chan string, 8),
	}
	h := hub.New(hub.Config{Host: "127.0.0.1", Port: 0, DiscoveryPort: 39998, Version: "test"}, hub.Events{
		Registered: func(id string, _ *wire.ClientInfo) { be.registered <- id },
		ActiveChanged: func(id string) {
			select {
			case be.active <- id:
			default:
			}
		},
		Message: func(clientID string, env *wire.Envelope, raw json.RawMessage) {
			if env.ID != "" {
				be.router.HandleResponse(clientID, env, raw)
			}
		},
		Disconnected: func(id string) {
			be.router.FailClient(id, wire.ErrConnectionClosed)
		},
	})
	be.hub = h
	be.router = router.New(h, timeout)
	if err := h.Start(); err != nil {
		t.Fatalf("start hub: %v", err)
	}
	t.Cleanup(func() {
		be.router.Shutdown()
		h.Stop()
	})
	return be
}

func (be *bridgeEnd) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(be.hub.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

func startEditor(t *testing.T, be *bridgeEnd, clientID, project string) *editor.Client {
	t.Helper()
	mt := editor.NewMainThread()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mt.Pump(ctx, time.Millisecond)

	disp := editor.NewDispatcher(mt, time.Second)
	disp.RegisterCommand("menu", menuStub{})
	disp.RegisterResource("logs", logsStub{})

	cl := editor.NewClient(editor.ClientConfig{
		Host:     "127.0.0.1",
		Port:     be.port(t),
		ClientID: clientID,
		Info:     &wire.ClientInfo{ProductName: project, EngineVersion: "6000.0.1f1"},
	}, disp)
	go cl.Run(ctx)
	return cl
}

func waitRegistered(t *testing.T, be *bridgeEnd, want string) {
	t.Helper()
	select {
	case id := <-be.registered:
		if id != want {
			t.Fatalf("registered %q, want %q", id, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for registration of %q", want)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	be := startBridgeEnd(t, 5*time.Second)
	startEditor(t, be, "ed-1", "Demo")
	waitRegistered(t, be, "ed-1")

	raw, err := be.router.Send(context.Background(), "menu.execute", wire.TypeCommand,
		map[string]any{"menuItem": "File/Save Project"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var result struct {
		Success  bool   `json:"success"`
		Action   string `json:"action"`
		MenuItem string `json:"menuItem"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if !result.Success || result.Action != "execute" || result.MenuItem != "File/Save Project" {
		t.Fatalf("result %+v", result)
	}
}

func TestResourceRoundTrip(t *testing.T) {
	be := startBridgeEnd(t, 5*time.Second)
	startEditor(t, be, "ed-1", "Demo")
	waitRegistered(t, be, "ed-1")

	raw, err := be.router.Send(context.Background(), "logs.fetch", wire.TypeResource,
		map[string]any{"uri": "unity://logs"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var result struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if len(result.Contents) != 1 || result.Contents[0].URI != "unity://logs" {
		t.Fatalf("contents %+v", result.Contents)
	}
}

func TestRegistrationIdentity(t *testing.T) {
	be := startBridgeEnd(t, 5*time.Second)
	startEditor(t, be, "proj-x", "Demo")
	waitRegistered(t, be, "proj-x")

	snap := be.hub.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size %d", len(snap))
	}
	c := snap[0]
	if c.ID != "proj-x" || !c.IsActive {
		t.Fatalf("client %+v", c)
	}
	if c.Info == nil || c.Info.ProductName != "Demo" || c.Info.EngineVersion != "6000.0.1f1" {
		t.Fatalf("info %+v", c.Info)
	}
}

func TestDisconnectFailsPendingRequest(t *testing.T) {
	be := startBridgeEnd(t, 5*time.Second)

	// A raw connection that registers but never answers.
	conn, err := net.Dial("tcp", be.hub.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	reg := `{"type":"registration","clientId":"silent","clientInfo":{"productName":"Silent"}}` + "\n"
	if _, err := conn.Write([]byte(reg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitRegistered(t, be, "silent")

	errCh := make(chan error, 1)
	go func() {
		_, err := be.router.Send(context.Background(), "menu.execute", wire.TypeCommand, nil)
		errCh <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for be.router.PendingCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	_ = conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, wire.ErrConnectionClosed) {
			t.Fatalf("expected ErrConnectionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not failed on disconnect")
	}
}

func TestSecondClientSurvivesFirstDisconnect(t *testing.T) {
	be := startBridgeEnd(t, 5*time.Second)

	conn, err := net.Dial("tcp", be.hub.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	reg := `{"type":"registration","clientId":"doomed","clientInfo":{"productName":"Doomed"}}` + "\n"
	if _, err := conn.Write([]byte(reg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitRegistered(t, be, "doomed")

	startEditor(t, be, "survivor", "Demo")
	waitRegistered(t, be, "survivor")

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if id, ok := be.hub.ActiveID(); ok && id == "survivor" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if id, _ := be.hub.ActiveID(); id != "survivor" {
		t.Fatalf("active %q after disconnect", id)
	}

	raw, err := be.router.Send(context.Background(), "menu.execute", wire.TypeCommand,
		map[string]any{"menuItem": "Assets/Refresh"})
	if err != nil {
		t.Fatalf("send after promotion: %v", err)
	}
	if !json.Valid(raw) {
		t.Fatalf("invalid result %s", raw)
	}
}
