// Package bridge adapts registered tool, resource, and prompt handlers onto
// the MCP endpoint and routes their invocations to the active editor client.
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
)

// BridgeConnection lets a handler forward work to the active editor client.
type BridgeConnection interface {
	SendRequest(ctx context.Context, command, typ string, params any) (json.RawMessage, error)
}

// ToolDefinition describes one tool exposed by a command handler.
type ToolDefinition struct {
	Description     string
	ParameterSchema json.RawMessage
	Annotations     *mcp.ToolAnnotation
}

// CommandHandler exposes a family of tools sharing a command prefix.
type CommandHandler interface {
	CommandPrefix() string
	Description() string
	ToolDefinitions() map[string]ToolDefinition
	Execute(ctx context.Context, action string, params map[string]any) (any, error)
}

// ResourceContent is one element of a resource fetch result.
type ResourceContent struct {
	URI      string `json:"uri"`
	Text     string `json:"text"`
	MIMEType string `json:"mimeType,omitempty"`
}

// ResourceResult is the payload a resource handler returns.
type ResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// ResourceHandler serves one resource, optionally templated with {param}
// placeholders in its URI.
type ResourceHandler interface {
	ResourceName() string
	Description() string
	ResourceURITemplate() string
	FetchResource(ctx context.Context, uri string, params map[string]any) (*ResourceResult, error)
}

// PromptArgument describes one substitutable parameter of a prompt.
type PromptArgument struct {
	Description string
	Required    bool
}

// PromptDefinition describes one prompt template.
type PromptDefinition struct {
	Description string
	Template    string
	Arguments   map[string]PromptArgument
}

// PromptHandler exposes a set of prompt templates.
type PromptHandler interface {
	PromptName() string
	Description() string
	PromptDefinitions() map[string]PromptDefinition
}

// Initializer is implemented by handlers that need the bridge connection.
type Initializer interface {
	Initialize(conn BridgeConnection)
}

type commandEntry struct {
	handler CommandHandler
	enabled bool
}

type resourceEntry struct {
	handler ResourceHandler
	enabled bool
}

type promptEntry struct {
	handler PromptHandler
	enabled bool
}

// Registry keeps the three handler sub-registries with their per-handler
// enable flags. Handlers are probed against each interface on registration;
// one value may land in several sub-registries.
type Registry struct {
	mu         sync.Mutex
	commands   map[string]*commandEntry
	resources  map[string]*resourceEntry
	byTemplate map[string]*resourceEntry
	prompts    map[string]*promptEntry
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:   map[string]*commandEntry{},
		resources:  map[string]*resourceEntry{},
		byTemplate: map[string]*resourceEntry{},
		prompts:    map[string]*promptEntry{},
	}
}

// Register probes h against every handler interface and records it in each
// matching sub-registry, enabled by default. It returns the kinds registered
// ("command", "resource", "prompt"); an empty result means h satisfies none.
func (r *Registry) Register(conn BridgeConnection, h any) []string {
	if init, ok := h.(Initializer); ok {
		init.Initialize(conn)
	}
	var kinds []string
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := h.(CommandHandler); ok {
		r.commands[ch.CommandPrefix()] = &commandEntry{handler: ch, enabled: true}
		kinds = append(kinds, "command")
	}
	if rh, ok := h.(ResourceHandler); ok {
		e := &resourceEntry{handler: rh, enabled: true}
		r.resources[rh.ResourceName()] = e
		r.byTemplate[rh.ResourceURITemplate()] = e
		kinds = append(kinds, "resource")
	}
	if ph, ok := h.(PromptHandler); ok {
		r.prompts[ph.PromptName()] = &promptEntry{handler: ph, enabled: true}
		kinds = append(kinds, "prompt")
	}
	if len(kinds) == 0 {
		logx.Log.Warn().Type("handler", h).Msg("handler satisfies no registry interface")
	}
	return kinds
}

// Command returns the handler for a prefix along with its enable flag.
func (r *Registry) Command(prefix string) (CommandHandler, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.commands[prefix]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// Resource returns the handler for a resource name along with its enable flag.
func (r *Registry) Resource(name string) (ResourceHandler, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.resources[name]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// Prompt returns the handler for a prompt name along with its enable flag.
func (r *Registry) Prompt(name string) (PromptHandler, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.prompts[name]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// SetCommandEnabled flips the enable flag for a command prefix. It reports
// whether the prefix is registered.
func (r *Registry) SetCommandEnabled(prefix string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.commands[prefix]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// SetResourceEnabled flips the enable flag for a resource name.
func (r *Registry) SetResourceEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.resources[name]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// SetPromptEnabled flips the enable flag for a prompt name.
func (r *Registry) SetPromptEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.prompts[name]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// CommandPrefixes returns the registered prefixes.
func (r *Registry) CommandPrefixes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.commands))
	for p := range r.commands {
		out = append(out, p)
	}
	return out
}
