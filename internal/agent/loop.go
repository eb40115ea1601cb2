// Package agent implements the orchestration loop: the multi-turn
// exchange between the reasoning engine and the tool registry. One
// call to Run handles a full user-prompt-to-final-answer turn,
// possibly spanning several tool-calling rounds, and persists the
// turn (with its tool audit trail) to the chat history.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/chat"
	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/llm"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/profile"
	"github.com/ParamSingh24/PrakashAI/internal/prompts"
	"github.com/ParamSingh24/PrakashAI/internal/tools"
)

// resetPhrase short-circuits a turn before any model call: the history
// is cleared and a fixed acknowledgement returned.
const resetPhrase = "reset conversation"

// Options bound one orchestration turn.
type Options struct {
	// MaxToolRounds caps the number of model round trips in one turn.
	MaxToolRounds int
	// ToolTimeout bounds each individual tool execution.
	ToolTimeout time.Duration
	// TurnDeadline bounds the whole turn, model calls included.
	TurnDeadline time.Duration
	// HistoryWindow is how many prior turns ride along as context.
	HistoryWindow int
}

func (o Options) withDefaults() Options {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = 8
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 30 * time.Second
	}
	if o.TurnDeadline <= 0 {
		o.TurnDeadline = 5 * time.Minute
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 10
	}
	return o
}

// Loop drives orchestration turns. A single Loop serializes its turns;
// schedulers and other conversations run independently.
type Loop struct {
	llm      llm.Client
	registry *tools.Registry
	history  *chat.Store
	profiles *profile.Store
	mode     *mode.Flag
	bus      *events.Bus
	log      *slog.Logger
	opts     Options
	now      func() time.Time

	mu sync.Mutex
}

// New creates an orchestration loop. bus may be nil.
func New(client llm.Client, registry *tools.Registry, history *chat.Store, profiles *profile.Store, flag *mode.Flag, bus *events.Bus, log *slog.Logger, opts Options) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		llm:      client,
		registry: registry,
		history:  history,
		profiles: profiles,
		mode:     flag,
		bus:      bus,
		log:      log,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// Run executes one orchestration turn and returns the user-facing
// response text. Tool failures never abort the turn; they surface as
// structured results the model can narrate. Only a reasoning-engine
// failure terminates the turn with an error.
func (l *Loop) Run(ctx context.Context, sessionID, userMessage string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if strings.Contains(strings.ToLower(userMessage), resetPhrase) {
		if _, err := l.history.Clear(ctx); err != nil {
			return "", fmt.Errorf("clear history: %w", err)
		}
		l.log.Info("conversation reset", "session", sessionID)
		return prompts.ResetAcknowledgement, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.TurnDeadline)
	defer cancel()

	l.publish(events.KindTurnStart, map[string]any{"session": sessionID})

	messages, err := l.assemble(ctx, userMessage)
	if err != nil {
		return "", err
	}

	var audit []chat.ToolCallRecord
	finalText := ""
	for round := 0; round < l.opts.MaxToolRounds; round++ {
		l.publish(events.KindModelCall, map[string]any{"round": round, "messages": len(messages)})

		resp, err := l.llm.Chat(ctx, messages, l.registry.Definitions())
		if err != nil {
			l.log.Error("model call failed", "round", round, "error", err)
			return "", fmt.Errorf("model call: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			finalText = strings.TrimSpace(resp.Message.Content)
			break
		}

		messages = append(messages, resp.Message)
		results := l.executeBatch(ctx, resp.Message.ToolCalls, &audit)
		for _, res := range results {
			messages = append(messages, llm.Message{Role: "tool", Content: res})
		}
	}

	if finalText == "" {
		if len(audit) > 0 {
			finalText = prompts.MaxRoundsNotice
		} else {
			finalText = prompts.EmptyResponseFallback
		}
	}

	entry := chat.Entry{
		SessionID:   sessionID,
		UserMessage: userMessage,
		AIResponse:  finalText,
		ToolCalls:   audit,
	}
	if err := l.history.Append(ctx, entry); err != nil {
		l.log.Error("persist chat entry failed", "error", err)
	}

	l.publish(events.KindTurnComplete, map[string]any{
		"session":    sessionID,
		"tool_calls": len(audit),
	})
	return finalText, nil
}

// assemble builds the model input: system prompt, bounded history,
// then the user prompt. The operating mode is re-read from disk here
// so a mode switch takes effect on the next turn.
func (l *Loop) assemble(ctx context.Context, userMessage string) ([]llm.Message, error) {
	userName := ""
	if l.profiles != nil {
		if u, err := l.profiles.Current(ctx); err == nil {
			userName = u.Name
		}
	}
	m := mode.Balanced
	if l.mode != nil {
		m = l.mode.Current()
	}

	messages := []llm.Message{{Role: "system", Content: prompts.System(userName, m, l.now())}}
	if l.history != nil {
		prior, err := l.history.RecentMessages(ctx, l.opts.HistoryWindow)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		messages = append(messages, prior...)
	}
	return append(messages, llm.Message{Role: "user", Content: userMessage}), nil
}

// executeBatch fans the requested tool calls out concurrently and fans
// their results back in, preserving the request order in both the
// returned slice and the audit trail. A request naming an unregistered
// tool yields an error-shaped result, never a failed turn.
func (l *Loop) executeBatch(ctx context.Context, calls []llm.ToolCall, audit *[]chat.ToolCallRecord) []string {
	results := make([]string, len(calls))
	records := make([]chat.ToolCallRecord, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			name := call.Function.Name

			l.publish(events.KindToolCall, map[string]any{"tool": name})

			execCtx, cancel := context.WithTimeout(ctx, l.opts.ToolTimeout)
			started := l.now()
			out, err := l.registry.Execute(execCtx, name, call.Function.Arguments)
			cancel()
			elapsed := l.now().Sub(started)

			if err != nil {
				l.log.Warn("tool execution failed", "tool", name, "error", err)
			}
			results[i] = out
			records[i] = chat.ToolCallRecord{
				ToolName:  name,
				Arguments: call.Function.Arguments,
				Response:  out,
				ExecMs:    elapsed.Milliseconds(),
				Timestamp: started,
				ErrorFlag: err != nil,
			}

			l.publish(events.KindToolDone, map[string]any{
				"tool":    name,
				"exec_ms": elapsed.Milliseconds(),
				"error":   err != nil,
			})
		}(i, call)
	}
	wg.Wait()

	*audit = append(*audit, records...)
	return results
}

func (l *Loop) publish(kind string, data map[string]any) {
	l.bus.Publish(events.Event{
		Timestamp: l.now(),
		Source:    events.SourceAgent,
		Kind:      kind,
		Data:      data,
	})
}
