package handlers

import (
	"encoding/json"

	"github.com/isuzu-shiranui/UnityMCP/internal/bridge"
)

// MenuHandler exposes Unity editor menu invocation.
type MenuHandler struct {
	forwarder
}

// NewMenuHandler constructs the menu command handler.
func NewMenuHandler() *MenuHandler {
	return &MenuHandler{forwarder{prefix: "menu"}}
}

// Description describes the handler for listings.
func (h *MenuHandler) Description() string {
	return "Executes Unity editor menu items and enumerates the available menus"
}

// ToolDefinitions lists the tools this handler contributes.
func (h *MenuHandler) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"menu_execute": {
			Description: "Execute a Unity editor menu item by its full path, e.g. \"File/Save Project\"",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"menuItem": {"type": "string", "description": "Full menu item path, e.g. \"File/Save Project\""}
				},
				"required": ["menuItem"]
			}`),
		},
		"menu_getAvailableMenus": {
			Description: "List the menu item paths currently available in the Unity editor",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"filter": {"type": "string", "description": "Optional substring filter on menu paths"}
				}
			}`),
		},
	}
}
