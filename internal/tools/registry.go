// Package tools defines the catalog of operations the agent may
// invoke: appliance control, usage analytics, cost and projection
// math, routine management, and read-only external lookups. Every
// handler returns a structured value; Execute serializes it to JSON
// so results can be fed straight back to the model.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/news"
	"github.com/ParamSingh24/PrakashAI/internal/profile"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/safety"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
	"github.com/ParamSingh24/PrakashAI/internal/weather"
)

// ErrUnknownTool marks an execution request naming a tool that is not
// in the registry. Execute still returns an error-shaped JSON result
// so the loop can continue.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one callable operation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

// Deps are the collaborators the tool handlers read and write.
// Weather and News may be nil when the corresponding API keys are
// absent; their tools then report a configuration error instead of
// calling out.
type Deps struct {
	Ledger   *ledger.Ledger
	Usage    *usagelog.Store
	Routines *routines.Store
	Safety   *safety.Monitor
	Weather  *weather.Client
	News     *news.Client
	Profiles *profile.Store
	Mode     *mode.Flag

	// Trigger is attributed to every state change the registry makes.
	// The chat agent and the autonomous runner build separate
	// registries with their own trigger.
	Trigger ledger.Trigger

	Log *slog.Logger
	Now func() time.Time
}

// Registry is the validated tool catalog. Registration order is
// preserved so the catalog presented to the model is stable.
type Registry struct {
	deps    Deps
	tools   map[string]*Tool
	ordered []string
}

// New builds the registry and validates every tool at startup: a
// missing handler, empty name, or duplicate registration is a
// construction error rather than a dispatch surprise later.
func New(deps Deps) (*Registry, error) {
	if deps.Ledger == nil || deps.Usage == nil || deps.Routines == nil || deps.Profiles == nil {
		return nil, errors.New("tools: ledger, usage, routines and profiles are required")
	}
	if deps.Trigger == "" {
		deps.Trigger = ledger.TriggerAI
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &Registry{deps: deps, tools: make(map[string]*Tool)}
	for _, t := range r.builtins() {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t *Tool) error {
	if t.Name == "" {
		return errors.New("tools: tool with empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: %s has no handler", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tools: %s registered twice", t.Name)
	}
	r.tools[t.Name] = t
	r.ordered = append(r.ordered, t.Name)
	return nil
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Definitions returns the catalog in the wire shape the model expects,
// in registration order.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.ordered))
	for _, name := range r.ordered {
		t := r.tools[name]
		defs = append(defs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return defs
}

// Execute runs the named tool and returns its result as JSON. The
// returned string is always valid JSON, even on failure: handler
// errors and unknown names are encoded as {"error": ...} so the model
// can recover conversationally. The error return is for the caller's
// audit trail.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		msg := fmt.Sprintf("Tool %s not found.", name)
		return encode(map[string]any{"error": msg}), fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		return encode(map[string]any{"error": err.Error()}), err
	}
	return encode(out), nil
}

func encode(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "encode result: "+err.Error())
	}
	return string(raw)
}

// strArg reads a string argument, empty when absent or mistyped.
func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// numArg reads a numeric argument. JSON numbers decode as float64.
func numArg(args map[string]any, key string) (float64, bool) {
	f, ok := args[key].(float64)
	return f, ok
}

// strSliceArg reads an array-of-strings argument, skipping non-string
// elements.
func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// mapArg reads an object argument.
func mapArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}
