package handlers

import (
	"context"

	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
)

// SceneHandler serves the scene hierarchy of the active editor as a
// templated resource.
type SceneHandler struct {
	conn bridge.BridgeConnection
}

// NewSceneHandler constructs the scene hierarchy resource handler.
func NewSceneHandler() *SceneHandler { return &SceneHandler{} }

// Initialize stores the bridge connection used for fetches.
func (h *SceneHandler) Initialize(conn bridge.BridgeConnection) { h.conn = conn }

// ResourceName identifies this resource.
func (h *SceneHandler) ResourceName() string { return "unity-scene-hierarchy" }

// Description describes the resource for listings.
func (h *SceneHandler) Description() string {
	return "Hierarchy of game objects in a Unity scene"
}

// ResourceURITemplate declares the templated URI this resource answers.
func (h *SceneHandler) ResourceURITemplate() string { return "unity://scene/{scenePath}" }

// FetchResource fetches the hierarchy for the scene named in the URI.
func (h *SceneHandler) FetchResource(ctx context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	return fetchForwarded(ctx, h.conn, "scene.fetch", uri, params)
}

// LogsHandler serves the Unity console log as a static resource.
type LogsHandler struct {
	conn bridge.BridgeConnection
}

// NewLogsHandler constructs the console log resource handler.
func NewLogsHandler() *LogsHandler { return &LogsHandler{} }

// Initialize stores the bridge connection used for fetches.
func (h *LogsHandler) Initialize(conn bridge.BridgeConnection) { h.conn = conn }

// ResourceName identifies this resource.
func (h *LogsHandler) ResourceName() string { return "unity-console-logs" }

// Description describes the resource for listings.
func (h *LogsHandler) Description() string {
	return "Recent entries from the Unity editor console"
}

// ResourceURITemplate declares the static URI this resource answers.
func (h *LogsHandler) ResourceURITemplate() string { return "unity://logs" }

// FetchResource fetches the current console log.
func (h *LogsHandler) FetchResource(ctx context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	return fetchForwarded(ctx, h.conn, "logs.fetch", uri, params)
}
