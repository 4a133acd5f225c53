package editor

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// ServerConfig holds the control server's listener settings. The defaults
// match the bridge defaults.
type ServerConfig struct {
	Host string
	Port int
}

// Server is the editor-side control server: it accepts at most one control
// connection at a time and feeds its envelopes to the dispatcher. A new
// connection replaces any prior one.
type Server struct {
	cfg  ServerConfig
	disp *Dispatcher

	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn
	closed bool

	wg sync.WaitGroup
}

// NewServer constructs a stopped control server.
func NewServer(cfg ServerConfig, disp *Dispatcher) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = wire.DefaultPort
	}
	return &Server{cfg: cfg, disp: disp}
}

// Start binds the listener and begins accepting control connections.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	logx.Log.Info().Str("addr", ln.Addr().String()).Msg("editor control server listening")
	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener and the current control connection.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.ln
	conn := s.conn
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				logx.Log.Error().Err(err).Msg("editor accept failed")
			}
			return
		}
		s.mu.Lock()
		prev := s.conn
		s.conn = conn
		s.mu.Unlock()
		if prev != nil {
			logx.Log.Info().Str("remote", prev.RemoteAddr().String()).Msg("replacing control connection")
			_ = prev.Close()
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	logx.Log.Info().Str("remote", conn.RemoteAddr().String()).Msg("control connection accepted")
	var framer wire.Framer
	var writeMu sync.Mutex
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, ferr := framer.Feed(buf[:n])
			for _, raw := range msgs {
				s.handleMessage(conn, &writeMu, raw)
			}
			if ferr != nil {
				logx.Log.Warn().Err(ferr).Msg("dropping control connection")
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleMessage(conn net.Conn, writeMu *sync.Mutex, raw json.RawMessage) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logx.Log.Warn().Err(err).Msg("unparsable control message")
		return
	}
	resp := s.disp.Handle(&env)
	b, err := json.Marshal(resp)
	if err != nil {
		logx.Log.Error().Err(err).Msg("marshal control response")
		return
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if _, err := conn.Write(append(b, '\n')); err != nil {
		logx.Log.Warn().Err(err).Msg("write control response")
	}
}
