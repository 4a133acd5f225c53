// Package handlers holds the built-in bridge-side handlers. They own the
// tool, resource, and prompt definitions and forward every execution to the
// active Unity editor client over the bridge connection.
package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// forwarder carries the shared forwarding behavior of the built-in command
// handlers: every action becomes a routed "<prefix>.<action>" request.
type forwarder struct {
	prefix string
	conn   bridge.BridgeConnection
}

// Initialize stores the bridge connection used for forwarding.
func (f *forwarder) Initialize(conn bridge.BridgeConnection) { f.conn = conn }

// CommandPrefix returns the wire command prefix.
func (f *forwarder) CommandPrefix() string { return f.prefix }

// Execute forwards the action to the active editor client and returns the
// raw result object.
func (f *forwarder) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	if f.conn == nil {
		return nil, errors.New("handler not initialized")
	}
	return f.conn.SendRequest(ctx, f.prefix+"."+action, wire.TypeCommand, params)
}

// fetchForwarded routes a resource fetch and decodes the editor's reply into
// a ResourceResult. A reply that is not shaped as resource contents is
// wrapped verbatim under the requested URI.
func fetchForwarded(ctx context.Context, conn bridge.BridgeConnection, command, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	if conn == nil {
		return nil, errors.New("handler not initialized")
	}
	payload := map[string]any{"uri": uri}
	for k, v := range params {
		payload[k] = v
	}
	raw, err := conn.SendRequest(ctx, command, wire.TypeResource, payload)
	if err != nil {
		return nil, err
	}
	var res bridge.ResourceResult
	if err := json.Unmarshal(raw, &res); err == nil && len(res.Contents) > 0 {
		return &res, nil
	}
	return &bridge.ResourceResult{Contents: []bridge.ResourceContent{
		{URI: uri, Text: string(raw), MIMEType: "application/json"},
	}}, nil
}
