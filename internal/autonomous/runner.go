package autonomous

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/chat"
	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/llm"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/prompts"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/tools"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

// stateBundleLogLimit caps how much usage history rides along in the
// analysis prompt.
const stateBundleLogLimit = 100

// Options bound one autonomous run.
type Options struct {
	MaxToolRounds int
	ToolTimeout   time.Duration
	RunDeadline   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = 8
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 30 * time.Second
	}
	if o.RunDeadline <= 0 {
		o.RunDeadline = 5 * time.Minute
	}
	return o
}

// Runner performs the hourly unattended review. Its registry must be
// built with the autonomous trigger so every state change it makes is
// attributed correctly in the usage log.
type Runner struct {
	llm      llm.Client
	registry *tools.Registry
	store    *Store
	ledger   *ledger.Ledger
	usage    *usagelog.Store
	routines *routines.Store
	mode     *mode.Flag
	bus      *events.Bus
	log      *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewRunner creates an autonomous runner. bus may be nil.
func NewRunner(client llm.Client, registry *tools.Registry, store *Store, appliances *ledger.Ledger, usage *usagelog.Store, routineStore *routines.Store, flag *mode.Flag, bus *events.Bus, log *slog.Logger, opts Options) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		llm:      client,
		registry: registry,
		store:    store,
		ledger:   appliances,
		usage:    usage,
		routines: routineStore,
		mode:     flag,
		bus:      bus,
		log:      log,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// RunOnce performs one full analysis: snapshot the home, hand it to
// the model, execute whatever tools it asks for, and record the run.
// A model failure is recorded in the action log and returned.
func (r *Runner) RunOnce(ctx context.Context) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.RunDeadline)
	defer cancel()

	m := mode.Balanced
	if r.mode != nil {
		m = r.mode.Current()
	}

	bundle, err := r.stateBundle(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("build state bundle: %w", err)
	}

	r.log.Info("autonomous analysis started", "mode", m)

	messages := []llm.Message{{Role: "user", Content: prompts.Autonomous(m, bundle)}}
	var audit []chat.ToolCallRecord
	reasoning := ""

	for round := 0; round < r.opts.MaxToolRounds; round++ {
		resp, err := r.llm.Chat(ctx, messages, r.registry.Definitions())
		if err != nil {
			rec := Record{
				Timestamp: r.now(),
				Action:    "Autonomous Analysis Failed",
				Reasoning: err.Error(),
				ToolCalls: audit,
				Result:    ResultFailed,
			}
			if storeErr := r.store.Append(ctx, rec); storeErr != nil {
				r.log.Error("record failed run", "error", storeErr)
			}
			return rec, fmt.Errorf("model call: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			reasoning = strings.TrimSpace(resp.Message.Content)
			break
		}

		messages = append(messages, resp.Message)
		for _, result := range r.executeBatch(ctx, resp.Message.ToolCalls, &audit) {
			messages = append(messages, llm.Message{Role: "tool", Content: result})
		}
	}

	rec := Record{
		Timestamp: r.now(),
		Action:    "Autonomous Analysis Complete",
		Reasoning: reasoning,
		ToolCalls: audit,
		Result:    ResultOK,
	}
	if err := r.store.Append(ctx, rec); err != nil {
		r.log.Error("record autonomous run", "error", err)
	}

	r.bus.Publish(events.Event{
		Timestamp: r.now(),
		Source:    events.SourceAutonomous,
		Kind:      events.KindAutonomousAction,
		Data: map[string]any{
			"action":     rec.Action,
			"tool_calls": len(audit),
		},
	})
	r.log.Info("autonomous analysis complete", "tool_calls", len(audit))
	return rec, nil
}

// stateBundle is the JSON snapshot the model reviews: appliances,
// routines, recent usage, and the current mode.
func (r *Runner) stateBundle(ctx context.Context) (string, error) {
	appliances, err := r.ledger.List(ctx)
	if err != nil {
		return "", err
	}
	routineList, err := r.routines.List(ctx)
	if err != nil {
		return "", err
	}
	entries, err := r.usage.Recent(ctx, stateBundleLogLimit)
	if err != nil {
		return "", err
	}

	m := mode.Balanced
	if r.mode != nil {
		m = r.mode.Current()
	}

	raw, err := json.MarshalIndent(map[string]any{
		"mode":       m,
		"appliances": appliances,
		"routines":   routineList,
		"usage_logs": entries,
		"now":        r.now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// executeBatch mirrors the orchestration loop's fan-out: concurrent
// execution, request-ordered results and audit records.
func (r *Runner) executeBatch(ctx context.Context, calls []llm.ToolCall, audit *[]chat.ToolCallRecord) []string {
	results := make([]string, len(calls))
	records := make([]chat.ToolCallRecord, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()

			execCtx, cancel := context.WithTimeout(ctx, r.opts.ToolTimeout)
			started := r.now()
			out, err := r.registry.Execute(execCtx, call.Function.Name, call.Function.Arguments)
			cancel()

			if err != nil {
				r.log.Warn("autonomous tool failed", "tool", call.Function.Name, "error", err)
			}
			results[i] = out
			records[i] = chat.ToolCallRecord{
				ToolName:  call.Function.Name,
				Arguments: call.Function.Arguments,
				Response:  out,
				ExecMs:    r.now().Sub(started).Milliseconds(),
				Timestamp: started,
				ErrorFlag: err != nil,
			}
		}(i, call)
	}
	wg.Wait()

	*audit = append(*audit, records...)
	return results
}
