package handlers

import (
	"encoding/json"

	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
)

// ConsoleHandler exposes the Unity console: clearing it and querying logs.
type ConsoleHandler struct {
	forwarder
}

// NewConsoleHandler constructs the console command handler.
func NewConsoleHandler() *ConsoleHandler {
	return &ConsoleHandler{forwarder{prefix: "console"}}
}

// Description describes the handler for listings.
func (h *ConsoleHandler) Description() string {
	return "Clears and queries the Unity editor console"
}

// ToolDefinitions lists the tools this handler contributes.
func (h *ConsoleHandler) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"console_clear": {
			Description:     "Clear the Unity editor console",
			ParameterSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		"console_getLogs": {
			Description: "Fetch recent Unity console log entries, newest first",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"logType": {"type": "string", "enum": ["error", "warning", "log", "all"], "description": "Restrict to one log type"},
					"count": {"type": "number", "description": "Maximum number of entries to return"}
				}
			}`),
		},
	}
}
