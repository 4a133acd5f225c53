// Package router correlates outbound requests to editor clients with their
// inbound responses, enforcing per-request timeouts and failing pending
// requests on disconnect or shutdown.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/metrics"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// DefaultTimeout bounds how long a routed request waits for its response.
const DefaultTimeout = 30 * time.Second

// Sender is the slice of the hub the router depends on.
type Sender interface {
	Send(id string, payload []byte) error
	ActiveID() (string, bool)
}

// request is the outbound wire shape. Unlike wire.Envelope it always carries
// the type field, empty or not, matching what editor clients expect.
type request struct {
	Command string          `json:"command"`
	Type    string          `json:"type"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

type outcome struct {
	payload json.RawMessage
	err     error
}

type pending struct {
	clientID string
	started  time.Time
	ch       chan outcome
	timer    *time.Timer
}

// Router issues correlated requests over the hub's active client connection.
type Router struct {
	sender  Sender
	timeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending map[string]*pending
	closed  bool
}

// New constructs a router over the given sender. timeout <= 0 selects
// DefaultTimeout.
func New(sender Sender, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{sender: sender, timeout: timeout, pending: map[string]*pending{}}
}

// Send routes one request to the active client and blocks until the
// correlated response arrives, the timeout fires, the client disconnects, or
// ctx is canceled. With no connected client it fails immediately with
// wire.ErrNoClientsConnected. On a successful response carrying a result,
// the result alone is returned; otherwise the whole response object is.
func (r *Router) Send(ctx context.Context, command, typ string, params any) (json.RawMessage, error) {
	target, ok := r.sender.ActiveID()
	if !ok {
		return nil, wire.ErrNoClientsConnected
	}
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}

	timeout := r.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, wire.ErrConnectionClosed
	}
	r.nextID++
	id := strconv.FormatUint(r.nextID, 10)
	p := &pending{clientID: target, started: time.Now(), ch: make(chan outcome, 1)}
	r.pending[id] = p
	p.timer = time.AfterFunc(timeout, func() { r.fail(id, wire.ErrTimeout) })
	r.mu.Unlock()

	metrics.RequestStart()
	env := request{Command: command, Type: typ, Params: raw, ID: id}
	b, err := json.Marshal(env)
	if err != nil {
		r.fail(id, err)
		<-p.ch
		metrics.RequestEnd("write", time.Since(p.started))
		return nil, err
	}
	logx.Log.Debug().Str("request_id", id).Str("client_id", target).Str("command", command).Msg("routing request")
	if err := r.sender.Send(target, append(b, '\n')); err != nil {
		r.fail(id, err)
		<-p.ch
		metrics.RequestEnd("write", time.Since(p.started))
		return nil, err
	}

	select {
	case out := <-p.ch:
		metrics.RequestEnd(failureReason(out.err), time.Since(p.started))
		return out.payload, out.err
	case <-ctx.Done():
		r.fail(id, ctx.Err())
		out := <-p.ch
		metrics.RequestEnd("canceled", time.Since(p.started))
		return out.payload, out.err
	}
}

// HandleResponse resolves the pending request matching env.ID, if any.
// Responses with unknown ids are dropped; a late reply after a timeout is
// not an error.
func (r *Router) HandleResponse(clientID string, env *wire.Envelope, raw json.RawMessage) {
	r.mu.Lock()
	p, ok := r.pending[env.ID]
	if ok {
		delete(r.pending, env.ID)
		p.timer.Stop()
	}
	r.mu.Unlock()
	if !ok {
		logx.Log.Debug().Str("request_id", env.ID).Str("client_id", clientID).Msg("dropping response with unknown id")
		return
	}
	if env.Status == wire.StatusSuccess && env.Result != nil {
		p.ch <- outcome{payload: env.Result}
		return
	}
	p.ch <- outcome{payload: raw}
}

// FailClient rejects every pending request whose target is the given client.
// Requests targeting other clients are unaffected.
func (r *Router) FailClient(clientID string, cause error) {
	r.mu.Lock()
	var victims []*pending
	for id, p := range r.pending {
		if p.clientID == clientID {
			delete(r.pending, id)
			p.timer.Stop()
			victims = append(victims, p)
		}
	}
	r.mu.Unlock()
	for _, p := range victims {
		p.ch <- outcome{err: fmt.Errorf("%w: %v", wire.ErrConnectionClosed, cause)}
	}
}

// Shutdown rejects every outstanding request and refuses new ones.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.closed = true
	victims := make([]*pending, 0, len(r.pending))
	for id, p := range r.pending {
		delete(r.pending, id)
		p.timer.Stop()
		victims = append(victims, p)
	}
	r.mu.Unlock()
	for _, p := range victims {
		p.ch <- outcome{err: wire.ErrConnectionClosed}
	}
}

// PendingCount reports how many requests await a response.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) fail(id string, cause error) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		p.timer.Stop()
	}
	r.mu.Unlock()
	if ok {
		p.ch <- outcome{err: cause}
	}
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wire.ErrTimeout):
		return "timeout"
	default:
		return "disconnect"
	}
}
