package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// ClientConfig holds the outbound connection settings for an editor client.
type ClientConfig struct {
	Host     string
	Port     int
	ClientID string
	Info     *wire.ClientInfo
}

// Client maintains the editor's outbound connection to the bridge hub:
// dial, register, dispatch inbound requests, reconnect with backoff.
type Client struct {
	cfg  ClientConfig
	disp *Dispatcher

	mu   sync.Mutex
	conn net.Conn
}

// NewClient constructs a client. An empty ClientID gets a generated
// persistent id.
func NewClient(cfg ClientConfig, disp *Dispatcher) *Client {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = wire.DefaultPort
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "unity-" + uuid.NewString()
	}
	return &Client{cfg: cfg, disp: disp}
}

// ClientID returns the persistent id sent at registration.
func (c *Client) ClientID() string { return c.cfg.ClientID }

// Run connects to the bridge and serves requests until ctx is canceled,
// reconnecting on failure with the backoff schedule.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		delay := reconnectDelay(attempt)
		attempt++
		logx.Log.Warn().Err(err).Dur("retry_in", delay).Msg("bridge connection lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.register(conn); err != nil {
		return err
	}
	logx.Log.Info().Str("addr", addr).Str("client_id", c.cfg.ClientID).Msg("connected to bridge")

	var framer wire.Framer
	var writeMu sync.Mutex
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, ferr := framer.Feed(buf[:n])
			for _, raw := range msgs {
				c.handleMessage(conn, &writeMu, raw)
			}
			if ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

func (c *Client) register(conn net.Conn) error {
	env := wire.Envelope{
		Type:       wire.TypeRegistration,
		ClientID:   c.cfg.ClientID,
		ClientInfo: c.cfg.Info,
	}
	b, err := json.Marshal(&env)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(b, '\n'))
	return err
}

func (c *Client) handleMessage(conn net.Conn, writeMu *sync.Mutex, raw json.RawMessage) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logx.Log.Warn().Err(err).Msg("unparsable bridge message")
		return
	}
	if env.Command == "" {
		// Async event from the bridge; nothing to answer.
		return
	}
	resp := c.disp.Handle(&env)
	b, err := json.Marshal(resp)
	if err != nil {
		logx.Log.Error().Err(err).Msg("marshal response")
		return
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if _, err := conn.Write(append(b, '\n')); err != nil {
		logx.Log.Warn().Err(err).Msg("write response")
	}
}
