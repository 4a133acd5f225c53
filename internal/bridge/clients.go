package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
)

// registerClientTools installs the four tools backed directly by hub state
// rather than by any editor client.
func (b *Bridge) registerClientTools() {
	b.srv.AddTool(
		mcp.NewTool("unity_listClients",
			mcp.WithDescription("Discover and list connected Unity editor clients. Triggers a UDP discovery announce and waits briefly for clients to appear."),
		),
		b.listClients,
	)
	b.srv.AddTool(
		mcp.NewTool("unity_setActiveClient",
			mcp.WithDescription("Select which connected Unity client receives subsequent commands."),
			mcp.WithString("clientId", mcp.Required(), mcp.Description("Id of the client to activate, as reported by unity_listClients")),
		),
		b.setActiveClient,
	)
	b.srv.AddTool(
		mcp.NewTool("unity_connectToProject",
			mcp.WithDescription("Activate the first connected client whose project name contains the given text (case-insensitive)."),
			mcp.WithString("projectName", mcp.Required(), mcp.Description("Substring of the Unity project name to match")),
		),
		b.connectToProject,
	)
	b.srv.AddTool(
		mcp.NewTool("unity_getActiveClient",
			mcp.WithDescription("Report which Unity client currently receives commands."),
		),
		b.getActiveClient,
	)
}

// visibleClients filters the enumeration to clients with a usable project
// name. Filtered clients stay connected in the hub; they are only hidden
// from listings.
func visibleClients(all []hub.ClientSummary) []hub.ClientSummary {
	out := make([]hub.ClientSummary, 0, len(all))
	for _, c := range all {
		name := ""
		if c.Info != nil {
			name = c.Info.ProductName
		}
		if name == "" || name == "Unknown" || name == "UnknownProject" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Bridge) listClients(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b.hub.Announce("listClients")
	select {
	case <-time.After(b.listWait):
	case <-ctx.Done():
	}
	clients := visibleClients(b.hub.Snapshot())
	payload := map[string]any{
		"clients": clients,
		"count":   len(clients),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (b *Bridge) setActiveClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("clientId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !b.hub.SetActive(id) {
		return mcp.NewToolResultError("no connected client with id " + id), nil
	}
	return mcp.NewToolResultText(`{"success":true,"activeClient":"` + id + `"}`), nil
}

func (b *Bridge) connectToProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("projectName")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	needle := strings.ToLower(query)
	for _, c := range visibleClients(b.hub.Snapshot()) {
		if strings.Contains(strings.ToLower(c.Info.ProductName), needle) {
			if b.hub.SetActive(c.ID) {
				raw, _ := json.Marshal(map[string]any{"success": true, "activeClient": c.ID, "projectName": c.Info.ProductName})
				return mcp.NewToolResultText(string(raw)), nil
			}
		}
	}
	return mcp.NewToolResultError("no connected client matches project name " + query), nil
}

func (b *Bridge) getActiveClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := b.hub.ActiveID()
	if !ok {
		return mcp.NewToolResultError("No Unity clients connected."), nil
	}
	for _, c := range b.hub.Snapshot() {
		if c.ID == id {
			raw, err := json.Marshal(c)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(string(raw)), nil
		}
	}
	return mcp.NewToolResultText(`{"id":"` + id + `"}`), nil
}
