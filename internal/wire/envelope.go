// Package wire defines the newline-delimited JSON protocol spoken between
// the bridge and Unity editor clients: the message envelope, the per-connection
// framer, and the error kinds surfaced across the protocol boundary.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reserved values of the envelope "type" field.
const (
	TypeCommand      = ""
	TypeResource     = "resource"
	TypeRegistration = "registration"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultPort is the TCP port the bridge listens on unless configured.
const DefaultPort = 27182

// IDPrefix is prepended to the remote address to form the initial client id.
const IDPrefix = "unity"

// Envelope is the single JSON object carried per line on the TCP stream.
// Every field is optional at the wire level; which fields are present
// determines how the message is dispatched.
type Envelope struct {
	Command    string          `json:"command,omitempty"`
	Type       string          `json:"type,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Message    string          `json:"message,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	ClientInfo *ClientInfo     `json:"clientInfo,omitempty"`
}

// ClientInfo is the metadata a client supplies when it registers. None of the
// fields are validated; they are opaque display strings.
type ClientInfo struct {
	ProductName     string `json:"productName,omitempty"`
	CompanyName     string `json:"companyName,omitempty"`
	EngineVersion   string `json:"engineVersion,omitempty"`
	Platform        string `json:"platform,omitempty"`
	IsBatchMode     bool   `json:"isBatchMode,omitempty"`
	DeviceName      string `json:"deviceName,omitempty"`
	ProjectPath     string `json:"projectPath,omitempty"`
	ProjectPathHash string `json:"projectPathHash,omitempty"`
}

// ParseCommand splits a wire command of the form "prefix.action".
func ParseCommand(command string) (prefix, action string, err error) {
	if command == "" {
		return "", "", fmt.Errorf("%w: missing command", ErrProtocol)
	}
	i := strings.Index(command, ".")
	if i <= 0 || i == len(command)-1 {
		return "", "", fmt.Errorf("%w: malformed command %q", ErrProtocol, command)
	}
	return command[:i], command[i+1:], nil
}
