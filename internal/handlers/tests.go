package handlers

import (
	"encoding/json"

	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
)

// TestsHandler exposes the Unity test runner.
type TestsHandler struct {
	forwarder
}

// NewTestsHandler constructs the test-runner command handler.
func NewTestsHandler() *TestsHandler {
	return &TestsHandler{forwarder{prefix: "tests"}}
}

// Description describes the handler for listings.
func (h *TestsHandler) Description() string {
	return "Runs Unity edit-mode and play-mode tests"
}

// ToolDefinitions lists the tools this handler contributes.
func (h *TestsHandler) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"tests_run": {
			Description: "Run Unity tests and return the summarized results",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"testMode": {"type": "string", "enum": ["EditMode", "PlayMode"], "description": "Which test mode to run"},
					"testFilter": {"type": "string", "description": "Optional full name filter for the tests to run"}
				}
			}`),
		},
	}
}
