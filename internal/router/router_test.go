package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// fakeSender records writes and lets tests choose the active client.
type fakeSender struct {
	mu     sync.Mutex
	active string
	sent   []wire.Envelope
	err    error
}

func (f *fakeSender) Send(id string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	var env wire.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) ActiveID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.active != ""
}

func (f *fakeSender) lastID(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1].ID
}

func respond(r *Router, clientID, id, status string, result string) {
	env := &wire.Envelope{ID: id, Status: status}
	if result != "" {
		env.Result = json.RawMessage(result)
	}
	raw, _ := json.Marshal(env)
	r.HandleResponse(clientID, env, raw)
}

func TestSendNoClients(t *testing.T) {
	r := New(&fakeSender{}, time.Second)
	if _, err := r.Send(context.Background(), "menu.execute", "", nil); !errors.Is(err, wire.ErrNoClientsConnected) {
		t.Fatalf("expected ErrNoClientsConnected, got %v", err)
	}
}

func TestSendResolvesResult(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, time.Second)
	done := make(chan struct{})
	var got json.RawMessage
	var gotErr error
	go func() {
		got, gotErr = r.Send(context.Background(), "menu.execute", "", map[string]any{"menuItem": "File/Save Project"})
		close(done)
	}()
	waitForPending(t, r, 1)
	respond(r, "ed-1", fs.lastID(t), wire.StatusSuccess, `{"success":true}`)
	<-done
	if gotErr != nil {
		t.Fatalf("send: %v", gotErr)
	}
	if string(got) != `{"success":true}` {
		t.Fatalf("got %s", got)
	}
	if r.PendingCount() != 0 {
		t.Fatalf("pending not drained")
	}
}

func TestSendErrorResponseReturnsWholeObject(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, time.Second)
	done := make(chan struct{})
	var got json.RawMessage
	go func() {
		got, _ = r.Send(context.Background(), "menu.execute", "", nil)
		close(done)
	}()
	waitForPending(t, r, 1)
	respond(r, "ed-1", fs.lastID(t), wire.StatusError, "")
	<-done
	var env wire.Envelope
	if err := json.Unmarshal(got, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Status != wire.StatusError {
		t.Fatalf("expected error envelope, got %s", got)
	}
}

func TestSendTimeout(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, 30*time.Millisecond)
	if _, err := r.Send(context.Background(), "menu.execute", "", nil); !errors.Is(err, wire.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// A late reply is dropped without effect.
	respond(r, "ed-1", "1", wire.StatusSuccess, `{}`)
	if r.PendingCount() != 0 {
		t.Fatalf("pending after late reply")
	}
}

func TestIDsUnique(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, 50*time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Send(context.Background(), "test.run", "", nil)
		}()
	}
	wg.Wait()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	seen := map[string]bool{}
	for _, env := range fs.sent {
		if seen[env.ID] {
			t.Fatalf("duplicate id %s", env.ID)
		}
		seen[env.ID] = true
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 ids, got %d", len(seen))
	}
}

func TestFailClientIsolatesTarget(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, time.Second)
	errA := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), "a.run", "", nil)
		errA <- err
	}()
	waitForPending(t, r, 1)
	idA := fs.lastID(t)

	fs.mu.Lock()
	fs.active = "ed-2"
	fs.mu.Unlock()
	errB := make(chan error, 1)
	var gotB json.RawMessage
	go func() {
		raw, err := r.Send(context.Background(), "b.run", "", nil)
		gotB = raw
		errB <- err
	}()
	waitForPending(t, r, 2)
	idB := fs.lastID(t)

	r.FailClient("ed-1", errors.New("socket closed"))
	if err := <-errA; !errors.Is(err, wire.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed for ed-1, got %v", err)
	}
	if r.PendingCount() != 1 {
		t.Fatalf("request to ed-2 should remain pending")
	}
	respond(r, "ed-2", idB, wire.StatusSuccess, `{"ok":true}`)
	if err := <-errB; err != nil {
		t.Fatalf("send to ed-2: %v", err)
	}
	if string(gotB) != `{"ok":true}` {
		t.Fatalf("got %s", gotB)
	}
	_ = idA
}

func TestShutdownRejectsAll(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, time.Second)
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := r.Send(context.Background(), "test.run", "", nil)
			errs <- err
		}()
	}
	waitForPending(t, r, 3)
	r.Shutdown()
	for i := 0; i < 3; i++ {
		if err := <-errs; !errors.Is(err, wire.ErrConnectionClosed) {
			t.Fatalf("expected ErrConnectionClosed, got %v", err)
		}
	}
	if _, err := r.Send(context.Background(), "test.run", "", nil); !errors.Is(err, wire.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed after shutdown, got %v", err)
	}
}

func TestWriteErrorRejectsImmediately(t *testing.T) {
	boom := errors.New("broken pipe")
	fs := &fakeSender{active: "ed-1", err: boom}
	r := New(fs, time.Second)
	if _, err := r.Send(context.Background(), "test.run", "", nil); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if r.PendingCount() != 0 {
		t.Fatalf("pending entry leaked after write error")
	}
}

func TestUnknownResponseIDDropped(t *testing.T) {
	fs := &fakeSender{active: "ed-1"}
	r := New(fs, time.Second)
	respond(r, "ed-1", "999", wire.StatusSuccess, `{}`)
	if r.PendingCount() != 0 {
		t.Fatalf("unexpected pending")
	}
}

func waitForPending(t *testing.T, r *Router, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.PendingCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d pending requests", n)
}
