package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
	"github.com/isuzu-shiranui/UnityMCP/internal/router"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// defaultListWait is how long unity_listClients waits after its discovery
// announce before returning the enumeration.
const defaultListWait = 3 * time.Second

var emptySchema = json.RawMessage(`{"type":"object"}`)

// Bridge wires the handler registry onto an MCP server and forwards every
// invocation to the active editor client through the router.
type Bridge struct {
	srv      *server.MCPServer
	reg      *Registry
	hub      *hub.Hub
	router   *router.Router
	listWait time.Duration
}

// New constructs the bridge and registers the synthetic client-management
// tools. Handlers are added afterwards with AddHandler.
func New(h *hub.Hub, r *router.Router, version string) *Bridge {
	srv := server.NewMCPServer(
		"unity-mcp-bridge",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)
	b := &Bridge{srv: srv, reg: NewRegistry(), hub: h, router: r, listWait: defaultListWait}
	b.registerClientTools()
	return b
}

// Registry exposes the handler sub-registries, mainly for enable toggles.
func (b *Bridge) Registry() *Registry { return b.reg }

// SendRequest implements BridgeConnection over the router.
func (b *Bridge) SendRequest(ctx context.Context, command, typ string, params any) (json.RawMessage, error) {
	return b.router.Send(ctx, command, typ, params)
}

// ServeStdio runs the MCP endpoint over stdio until the transport closes.
func (b *Bridge) ServeStdio() error {
	return server.ServeStdio(b.srv)
}

// AddHandler registers h in the registry and exposes each matched surface on
// the MCP endpoint.
func (b *Bridge) AddHandler(h any) {
	kinds := b.reg.Register(b, h)
	for _, kind := range kinds {
		switch kind {
		case "command":
			b.addCommandTools(h.(CommandHandler))
		case "resource":
			b.addResource(h.(ResourceHandler))
		case "prompt":
			b.addPrompts(h.(PromptHandler))
		}
	}
}

func (b *Bridge) addCommandTools(h CommandHandler) {
	prefix := h.CommandPrefix()
	for name, def := range h.ToolDefinitions() {
		schema := def.ParameterSchema
		if len(schema) == 0 {
			schema = emptySchema
		}
		tool := mcp.NewToolWithRawSchema(name, def.Description, schema)
		if def.Annotations != nil {
			tool.Annotations = *def.Annotations
		}
		toolName := name
		b.srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return b.callTool(ctx, prefix, toolName, req)
		})
		logx.Log.Debug().Str("tool", name).Str("prefix", prefix).Msg("tool registered")
	}
}

// callTool translates one MCP tool invocation into a handler execution.
// The action is the tool name segment after the first underscore.
func (b *Bridge) callTool(ctx context.Context, prefix, toolName string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handler, enabled, ok := b.reg.Command(prefix)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no handler registered for command prefix %q", prefix)), nil
	}
	if !enabled {
		return mcp.NewToolResultError(fmt.Sprintf("command prefix %q is disabled", prefix)), nil
	}
	action := "execute"
	if i := strings.Index(toolName, "_"); i >= 0 && i < len(toolName)-1 {
		action = toolName[i+1:]
	}
	result, err := handler.Execute(ctx, action, req.GetArguments())
	if err != nil {
		return toolError(toolName, err), nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return toolError(toolName, err), nil
	}
	var probe struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &probe) == nil && probe.Success != nil && !*probe.Success {
		msg := probe.Message
		if msg == "" {
			msg = probe.Error
		}
		if msg == "" {
			msg = string(raw)
		}
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// toolError shapes a failed execution for the MCP surface: a short human
// message for the model, plus structured detail.
func toolError(toolName string, err error) *mcp.CallToolResult {
	if errors.Is(err, wire.ErrNoClientsConnected) {
		return mcp.NewToolResultError("No Unity clients connected. Start a Unity editor with the MCP bridge plugin enabled, then retry.")
	}
	detail := map[string]any{
		"type":      "execution_error",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"command":   toolName,
		"message":   err.Error(),
	}
	db, merr := json.Marshal(detail)
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(db))
}

func (b *Bridge) addResource(h ResourceHandler) {
	name := h.ResourceName()
	tmpl := h.ResourceURITemplate()
	fn := func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return b.fetchResource(ctx, name, req)
	}
	if strings.Contains(tmpl, "{") {
		b.srv.AddResourceTemplate(
			mcp.NewResourceTemplate(tmpl, name, mcp.WithTemplateDescription(h.Description())),
			fn,
		)
	} else {
		b.srv.AddResource(
			mcp.NewResource(tmpl, name, mcp.WithResourceDescription(h.Description())),
			fn,
		)
	}
	logx.Log.Debug().Str("resource", name).Str("uri", tmpl).Msg("resource registered")
}

func (b *Bridge) fetchResource(ctx context.Context, name string, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	handler, enabled, ok := b.reg.Resource(name)
	if !ok {
		return nil, fmt.Errorf("no handler registered for resource %q", name)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: resource %q", wire.ErrHandlerDisabled, name)
	}
	res, err := handler.FetchResource(ctx, req.Params.URI, req.Params.Arguments)
	if err != nil {
		if errors.Is(err, wire.ErrNoClientsConnected) {
			return nil, errors.New("No Unity clients connected; the resource cannot be fetched")
		}
		return nil, err
	}
	out := make([]mcp.ResourceContents, 0, len(res.Contents))
	for _, c := range res.Contents {
		out = append(out, mcp.TextResourceContents{URI: c.URI, MIMEType: c.MIMEType, Text: c.Text})
	}
	return out, nil
}

func (b *Bridge) addPrompts(h PromptHandler) {
	handlerName := h.PromptName()
	for name, def := range h.PromptDefinitions() {
		opts := []mcp.PromptOption{mcp.WithPromptDescription(def.Description)}
		for argName, arg := range def.Arguments {
			argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
			if arg.Required {
				argOpts = append(argOpts, mcp.RequiredArgument())
			}
			opts = append(opts, mcp.WithArgument(argName, argOpts...))
		}
		promptName := name
		template := def.Template
		description := def.Description
		b.srv.AddPrompt(mcp.NewPrompt(name, opts...), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			_, enabled, ok := b.reg.Prompt(handlerName)
			if !ok || !enabled {
				return nil, fmt.Errorf("%w: prompt %q", wire.ErrHandlerDisabled, promptName)
			}
			text := RenderTemplate(template, req.Params.Arguments)
			return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
			}), nil
		})
		logx.Log.Debug().Str("prompt", name).Msg("prompt registered")
	}
}

// RenderTemplate substitutes every {param} placeholder with its stringified
// value. Placeholders without a matching parameter are left untouched.
func RenderTemplate(template string, params map[string]string) string {
	out := template
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
