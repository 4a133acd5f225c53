package hub

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
)

// announcement is the discovery payload broadcast over UDP. Clients use it
// only to locate the bridge's TCP endpoint; it is not a heartbeat.
type announcement struct {
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Version   string `json:"version"`
	Protocol  string `json:"protocol"`
	Timestamp int64  `json:"timestamp"`
}

// Announce sends exactly one UDP broadcast to the discovery port. The socket
// is bound to an ephemeral local port and closed as soon as the send attempt
// completes; failures are logged, never fatal.
func (h *Hub) Announce(reason string) {
	payload := announcement{
		Type:      reason,
		Host:      h.cfg.Host,
		Port:      h.cfg.Port,
		Version:   h.cfg.Version,
		Protocol:  "mcp-bridge",
		Timestamp: time.Now().UnixMilli(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	addr := fmt.Sprintf("255.255.255.255:%d", h.cfg.DiscoveryPort)
	conn, err := net.Dial("udp4", addr)
	if err != nil {
		logx.Log.Warn().Err(err).Str("addr", addr).Msg("discovery announce failed")
		return
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write(b); err != nil {
		logx.Log.Warn().Err(err).Str("addr", addr).Msg("discovery announce failed")
		return
	}
	logx.Log.Debug().Str("reason", reason).Int("port", h.cfg.DiscoveryPort).Msg("discovery announced")
}
