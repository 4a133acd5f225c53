// Package hub implements the TCP front-end of the bridge: the listener,
// per-client socket lifecycle, registration identity rewrite, active-client
// election, and UDP discovery announcement.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/metrics"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// Config holds the hub's listener and discovery settings.
type Config struct {
	Host          string
	Port          int
	BindAll       bool
	DiscoveryPort int
	Version       string
}

// Events carries the hub's lifecycle callbacks. Unset fields are ignored.
// Callbacks are invoked outside the hub lock and may call back into the hub.
type Events struct {
	Connected     func(id string)
	Registered    func(id string, info *wire.ClientInfo)
	Disconnected  func(id string)
	ActiveChanged func(id string)
	// Message receives every framed message from a client: correlated
	// responses (id set) and async events alike.
	Message func(id string, env *wire.Envelope, raw json.RawMessage)
	Error   func(id string, err error)
}

// ClientSummary is one entry of the hub's client enumeration snapshot.
type ClientSummary struct {
	ID       string           `json:"id"`
	IsActive bool             `json:"isActive"`
	Info     *wire.ClientInfo `json:"info,omitempty"`
}

type client struct {
	conn    net.Conn
	framer  wire.Framer
	writeMu sync.Mutex
}

// Hub owns every connected editor client. All shared state is guarded by a
// single coarse mutex; the lock is never held across a socket write.
type Hub struct {
	cfg    Config
	events Events

	mu       sync.Mutex
	ln       net.Listener
	clients  map[string]*client
	info     map[string]*wire.ClientInfo
	activeID string
	closed   bool

	wg sync.WaitGroup
}

// New constructs a stopped hub.
func New(cfg Config, events Events) *Hub {
	if cfg.DiscoveryPort == 0 {
		cfg.DiscoveryPort = cfg.Port + 1
	}
	return &Hub{
		cfg:     cfg,
		events:  events,
		clients: map[string]*client{},
		info:    map[string]*wire.ClientInfo{},
	}
}

// Start binds the listener and begins accepting clients. A bind failure is
// fatal and returned to the caller; everything after that is per-socket.
func (h *Hub) Start() error {
	host := h.cfg.Host
	if h.cfg.BindAll {
		host = "0.0.0.0"
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", h.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	h.mu.Lock()
	h.ln = ln
	h.mu.Unlock()
	logx.Log.Info().Str("addr", ln.Addr().String()).Msg("hub listening")
	h.Announce("startup")
	h.wg.Add(1)
	go h.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (h *Hub) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

// Stop closes the listener and every client socket, then waits for the
// read loops to drain. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	ln := h.ln
	conns := make([]net.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	h.wg.Wait()
}

func (h *Hub) acceptLoop(ln net.Listener) {
	defer h.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			h.mu.Lock()
			closed := h.closed
			h.mu.Unlock()
			if !closed {
				logx.Log.Error().Err(err).Msg("accept failed")
			}
			return
		}
		h.wg.Add(1)
		go h.serve(conn)
	}
}

func (h *Hub) serve(conn net.Conn) {
	defer h.wg.Done()
	id := fmt.Sprintf("%s-%s", wire.IDPrefix, conn.RemoteAddr().String())
	c := &client{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[id] = c
	becameActive := false
	if h.activeID == "" {
		h.activeID = id
		becameActive = true
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetClientsConnected(n)
	logx.Log.Info().Str("client_id", id).Msg("client connected")
	h.emitConnected(id)
	if becameActive {
		h.emitActiveChanged(id)
	}

	buf := make([]byte, 4096)
	for {
		nr, err := conn.Read(buf)
		if nr > 0 {
			msgs, ferr := c.framer.Feed(buf[:nr])
			for _, raw := range msgs {
				id = h.dispatch(id, c, raw)
			}
			if ferr != nil {
				h.emitError(id, ferr)
				h.removeClient(id, c, ferr)
				_ = conn.Close()
				return
			}
		}
		if err != nil {
			h.removeClient(id, c, err)
			_ = conn.Close()
			return
		}
	}
}

// dispatch routes one framed message and returns the client's current id,
// which changes when the message is a registration.
func (h *Hub) dispatch(id string, c *client, raw json.RawMessage) string {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.emitError(id, fmt.Errorf("%w: %v", wire.ErrProtocol, err))
		return id
	}
	if env.Type == wire.TypeRegistration {
		return h.register(id, c, &env)
	}
	if h.events.Message != nil {
		h.events.Message(id, &env, raw)
	}
	return id
}

// register rewrites an address-derived client id to the persistent id the
// client supplied. The record, buffer, and active flag all move under the
// new id.
func (h *Hub) register(oldID string, c *client, env *wire.Envelope) string {
	newID := env.ClientID
	if newID == "" || newID == oldID {
		h.mu.Lock()
		h.info[oldID] = env.ClientInfo
		h.mu.Unlock()
		h.emitRegistered(oldID, env.ClientInfo)
		return oldID
	}

	h.mu.Lock()
	// A reconnecting client may reuse its persistent id while the stale
	// socket is still around; the new connection replaces it.
	var stale net.Conn
	if prev, ok := h.clients[newID]; ok && prev != c {
		stale = prev.conn
		delete(h.clients, newID)
		delete(h.info, newID)
	}
	delete(h.clients, oldID)
	h.clients[newID] = c
	h.info[newID] = env.ClientInfo
	delete(h.info, oldID)
	activeChanged := false
	if h.activeID == oldID || h.activeID == "" {
		h.activeID = newID
		activeChanged = true
	}
	h.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
	logx.Log.Info().Str("client_id", newID).Str("previous_id", oldID).Msg("client registered")
	h.emitRegistered(newID, env.ClientInfo)
	if activeChanged {
		h.emitActiveChanged(newID)
	}
	return newID
}

func (h *Hub) removeClient(id string, c *client, cause error) {
	h.mu.Lock()
	cur, ok := h.clients[id]
	if !ok || cur != c {
		// Already replaced or removed under a rewritten id.
		h.mu.Unlock()
		return
	}
	delete(h.clients, id)
	delete(h.info, id)
	promoted := ""
	wasActive := h.activeID == id
	if wasActive {
		h.activeID = ""
		for k := range h.clients {
			h.activeID = k
			promoted = k
			break
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetClientsConnected(n)
	logx.Log.Info().Str("client_id", id).AnErr("cause", ignoreEOF(cause)).Msg("client disconnected")
	h.emitDisconnected(id)
	if wasActive {
		h.emitActiveChanged(promoted)
	}
}

// Send writes payload to the identified client's socket. The connection
// handle is copied out under the lock; the write itself is serialized by a
// per-client write mutex so that concurrent callers preserve write order.
func (h *Hub) Send(id string, payload []byte) error {
	h.mu.Lock()
	c, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: client %s", wire.ErrConnectionClosed, id)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("write to %s: %w", id, err)
	}
	return nil
}

// SendEnvelope marshals env and writes it with a trailing newline.
func (h *Hub) SendEnvelope(id string, env any) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.Send(id, append(b, '\n'))
}

// ActiveID returns the active client id, if any client is connected.
func (h *Hub) ActiveID() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeID, h.activeID != ""
}

// SetActive promotes the identified client. It returns false when no such
// client is connected.
func (h *Hub) SetActive(id string) bool {
	h.mu.Lock()
	if _, ok := h.clients[id]; !ok {
		h.mu.Unlock()
		return false
	}
	changed := h.activeID != id
	h.activeID = id
	h.mu.Unlock()
	if changed {
		h.emitActiveChanged(id)
	}
	return true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Snapshot returns the current client enumeration. Callers may retain it.
func (h *Hub) Snapshot() []ClientSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ClientSummary, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, ClientSummary{ID: id, IsActive: id == h.activeID, Info: h.info[id]})
	}
	return out
}

func (h *Hub) emitConnected(id string) {
	if h.events.Connected != nil {
		h.events.Connected(id)
	}
}

func (h *Hub) emitRegistered(id string, info *wire.ClientInfo) {
	if h.events.Registered != nil {
		h.events.Registered(id, info)
	}
}

func (h *Hub) emitDisconnected(id string) {
	if h.events.Disconnected != nil {
		h.events.Disconnected(id)
	}
}

func (h *Hub) emitActiveChanged(id string) {
	if h.events.ActiveChanged != nil {
		h.events.ActiveChanged(id)
	}
}

func (h *Hub) emitError(id string, err error) {
	logx.Log.Warn().Err(err).Str("client_id", id).Msg("client error")
	if h.events.Error != nil {
		h.events.Error(id, err)
	}
}

func ignoreEOF(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
