package editor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/wire"
)

// CommandHandler executes one family of editor commands. Execute runs on the
// editor main thread.
type CommandHandler interface {
	Execute(action string, params json.RawMessage) (any, error)
}

// ResourceHandler serves one editor resource. Fetch runs on the editor main
// thread.
type ResourceHandler interface {
	Fetch(action string, params json.RawMessage) (any, error)
}

type commandEntry struct {
	handler CommandHandler
	enabled bool
}

type resourceEntry struct {
	handler ResourceHandler
	enabled bool
}

// Dispatcher routes parsed envelopes to the registered handler and marshals
// execution onto the main thread with a bounded wait.
type Dispatcher struct {
	main    *MainThread
	barrier time.Duration

	mu        sync.Mutex
	commands  map[string]*commandEntry
	resources map[string]*resourceEntry
}

// NewDispatcher constructs a dispatcher over the given main-thread queue.
// barrier <= 0 selects DefaultBarrier.
func NewDispatcher(main *MainThread, barrier time.Duration) *Dispatcher {
	if barrier <= 0 {
		barrier = DefaultBarrier
	}
	return &Dispatcher{
		main:      main,
		barrier:   barrier,
		commands:  map[string]*commandEntry{},
		resources: map[string]*resourceEntry{},
	}
}

// RegisterCommand installs a command handler under its prefix, enabled.
func (d *Dispatcher) RegisterCommand(prefix string, h CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[prefix] = &commandEntry{handler: h, enabled: true}
}

// RegisterResource installs a resource handler under its name, enabled.
func (d *Dispatcher) RegisterResource(name string, h ResourceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[name] = &resourceEntry{handler: h, enabled: true}
}

// SetCommandEnabled flips a command prefix's enable flag. It reports whether
// the prefix is registered.
func (d *Dispatcher) SetCommandEnabled(prefix string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.commands[prefix]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// SetResourceEnabled flips a resource's enable flag.
func (d *Dispatcher) SetResourceEnabled(name string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.resources[name]
	if ok {
		e.enabled = enabled
	}
	return ok
}

// Handle processes one inbound envelope and returns the response to write
// back. The request id is always echoed.
func (d *Dispatcher) Handle(env *wire.Envelope) *wire.Envelope {
	switch env.Type {
	case wire.TypeCommand:
		return d.handleCommand(env)
	case wire.TypeResource:
		return d.handleResource(env)
	default:
		return errorResponse(env.ID, fmt.Sprintf("unsupported message type %q", env.Type))
	}
}

func (d *Dispatcher) handleCommand(env *wire.Envelope) *wire.Envelope {
	prefix, action, err := wire.ParseCommand(env.Command)
	if err != nil {
		return errorResponse(env.ID, err.Error())
	}
	d.mu.Lock()
	e, ok := d.commands[prefix]
	d.mu.Unlock()
	if !ok {
		return errorResponse(env.ID, fmt.Sprintf("unknown command prefix %q", prefix))
	}
	if !e.enabled {
		return errorResponse(env.ID, fmt.Sprintf("command prefix %q is disabled", prefix))
	}
	params := env.Params
	result, err := d.main.Submit(func() (any, error) {
		return e.handler.Execute(action, params)
	}, d.barrier)
	if err != nil {
		return errorResponse(env.ID, err.Error())
	}
	return successResponse(env.ID, result)
}

func (d *Dispatcher) handleResource(env *wire.Envelope) *wire.Envelope {
	name, action, err := wire.ParseCommand(env.Command)
	if err != nil {
		return errorResponse(env.ID, err.Error())
	}
	d.mu.Lock()
	e, ok := d.resources[name]
	d.mu.Unlock()
	if !ok {
		return errorResponse(env.ID, fmt.Sprintf("unknown resource %q", name))
	}
	if !e.enabled {
		return errorResponse(env.ID, fmt.Sprintf("resource %q is disabled", name))
	}
	params := env.Params
	result, err := d.main.Submit(func() (any, error) {
		return e.handler.Fetch(action, params)
	}, d.barrier)
	if err != nil {
		return errorResponse(env.ID, err.Error())
	}
	return successResponse(env.ID, result)
}

func successResponse(id string, result any) *wire.Envelope {
	raw, err := json.Marshal(result)
	if err != nil {
		logx.Log.Error().Err(err).Msg("marshal handler result")
		return errorResponse(id, "failed to encode handler result")
	}
	return &wire.Envelope{Status: wire.StatusSuccess, Result: raw, ID: id}
}

func errorResponse(id, message string) *wire.Envelope {
	return &wire.Envelope{Status: wire.StatusError, Message: message, ID: id}
}
