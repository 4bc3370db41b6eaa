// Package agentloop implements the multi-turn agent loop: append a user
// message, run a step, append the assistant message and its tool results,
// and repeat until the model stops calling tools, a stop hook fires, the
// failure-threshold detector trips, or the iteration cap is reached.
// Grounded on the teacher's internal/llm.ProcessTurn, split into the
// internal/step engine this package drives plus the loop-level concerns
// ProcessTurn used to inline: sliding-window failure detection (generalized
// from ProcessTurn's fixed "last 3 identical calls" check, which is kept
// here as a separate repetition hint rather than replaced), periodic
// goal/scratchpad recitation (kept as-is, renamed), an offload pass before
// each generate (generalized from the teacher's maxOutputChars/
// truncateMiddle single-result truncation into a history-wide rewrite
// pass), an iteration cap with a final tools-disabled call to force a
// summary, and end-of-conversation hooks — all per spec.md §4.6.
package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/step"
	"github.com/synapse-agent/synapse/internal/store"
	"github.com/synapse-agent/synapse/internal/toolset"
)

// ScratchpadReader provides read access to the agent's working plan.
type ScratchpadReader interface {
	Content() string
}

// StopHook is consulted after each completed round; returning true ends
// the loop before the next LLM call, with reason recorded for the caller.
type StopHook func(history []chat.Message) (stop bool, reason string)

// EndSnapshot is handed to every registered EndHook once the loop reaches
// a terminal state other than "cancelled" (spec.md §4.6's stop hooks).
type EndSnapshot struct {
	SessionID  string // empty if the caller never set one
	WorkingDir string
	Messages   []chat.Message
	FinalText  string
	OnProgress func(msg string)
}

// EndHook observes the end of a conversation. A returned error is logged,
// never propagated — a misbehaving hook must not fail the turn.
type EndHook func(ctx context.Context, snap EndSnapshot) error

// OffloadManager scans a history for large tool-result bodies to rewrite
// out of the live transcript, per spec.md §4.6's offload trigger. Satisfied
// by *store.OffloadStore; accepted as an interface so agentloop depends
// only on the scan/estimate contract, not the concrete blob store.
type OffloadManager interface {
	ScanAndOffload(messages []store.OffloadMessage, threshold int, scanRatio float64, minChars int) (stillExceedsThreshold bool, err error)
}

// Callbacks are optional observers of loop progress.
type Callbacks struct {
	OnMessagePart func(evt provider.StreamEvent)
	OnMessage     func(msg chat.Message)
	OnToolResult  func(result chat.ToolResult)
	OnUsage       func(inputTokens, outputTokens int)

	// OnOffload reports whether the history still meets the offload
	// threshold after a rewrite pass.
	OnOffload func(stillExceedsThreshold bool)

	// OnProgress is threaded into every EndSnapshot so an end-of-conversation
	// hook can report its own progress back to the caller.
	OnProgress func(msg string)
}

// Options configures a Run.
type Options struct {
	Provider      provider.Provider
	Toolset       *toolset.Toolset
	History       []chat.Message
	Scratchpad    ScratchpadReader
	StopHooks     []StopHook
	EndHooks      []EndHook
	Callbacks     Callbacks
	MaxIterations int // default 60, matching the teacher's MaxToolRounds default

	// SessionID and WorkingDir are carried verbatim into every EndSnapshot;
	// both are optional.
	SessionID  string
	WorkingDir string

	// MaxParallelTasks bounds task-batch fan-out within a single step.
	// Threaded straight into step.Run. Default 5 (SYNAPSE_MAX_PARALLEL_TASKS).
	MaxParallelTasks int

	// FailureWindowSize and FailureThreshold configure the sliding-window
	// failure-threshold stop condition: once the window is full, if
	// FailureThreshold or more of the last FailureWindowSize tool results
	// had IsError set, Run stops with StopReason "failure-threshold".
	// Defaults 10/3. Distinct from the repetition-hint warning below, which
	// never stops the loop and uses its own fixed window.
	FailureWindowSize int
	FailureThreshold  int

	// OffloadStore, if set, enables the pre-generate offload pass.
	OffloadStore OffloadManager
	// MaxTokens is the character-based token-estimate threshold that
	// triggers an offload pass. Default 128000.
	MaxTokens int
	// OffloadScanRatio is the oldest-first fraction of history scanned for
	// offload candidates once MaxTokens is met. Default 0.5.
	OffloadScanRatio float64
	// OffloadMinChars is the shortest tool-result body worth offloading.
	// Default 50.
	OffloadMinChars int
}

// Result reports how a Run concluded.
type Result struct {
	History    []chat.Message
	StopReason string // "no_tool_calls", "failure-threshold", "iteration_cap", or the reason a stop hook returned
}

const (
	defaultMaxIterations    = 60
	defaultFailureWindow    = 10
	defaultFailureThreshold = 3
	recitationInterval      = 10

	defaultMaxTokens        = 128000
	defaultOffloadScanRatio = 0.5
	defaultOffloadMinChars  = 50

	// repetitionGuardWindow and repetitionGuardThreshold size the
	// repetition-hint warning (see applyRepetitionGuard), kept separate
	// from the configurable FailureWindowSize/FailureThreshold above so
	// the two mechanisms never share — or fight over — the same knobs.
	repetitionGuardWindow    = 10
	repetitionGuardThreshold = 3
)

// Run drives the loop to completion or cancellation.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	failureWindow := opts.FailureWindowSize
	if failureWindow <= 0 {
		failureWindow = defaultFailureWindow
	}
	failureThreshold := opts.FailureThreshold
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	scanRatio := opts.OffloadScanRatio
	if scanRatio <= 0 {
		scanRatio = defaultOffloadScanRatio
	}
	minChars := opts.OffloadMinChars
	if minChars <= 0 {
		minChars = defaultOffloadMinChars
	}

	history := opts.History
	tools := opts.Toolset.Tools()
	providerTools := toProviderTools(tools)

	var recent []recentCall
	var failureOutcomes []bool

	for round := 0; round < opts.MaxIterations; round++ {
		injectRecitation(history, opts.Scratchpad, round)

		for _, hook := range opts.StopHooks {
			if stop, reason := hook(history); stop {
				runEndHooks(ctx, opts, history)
				return Result{History: history, StopReason: reason}, nil
			}
		}

		if err := runOffload(opts, history, maxTokens, scanRatio, minChars); err != nil {
			return Result{History: history}, fmt.Errorf("offload: %w", err)
		}

		stream, err := opts.Provider.ChatStream(ctx, toProviderMessages(history), providerTools)
		if err != nil {
			return Result{History: history}, fmt.Errorf("chat stream: %w", err)
		}

		dispatcher := toolsetDispatcher{ts: opts.Toolset}
		res, err := step.Run(ctx, stream, dispatcher, opts.Callbacks.OnMessagePart, opts.MaxParallelTasks)
		if err != nil {
			return Result{History: history}, fmt.Errorf("step failed: %w", err)
		}

		if opts.Callbacks.OnUsage != nil && res.HasUsage {
			opts.Callbacks.OnUsage(res.InputTokens, res.OutputTokens)
		}

		res.Message.CreatedAt = time.Now()
		history = append(history, res.Message)
		if opts.Callbacks.OnMessage != nil {
			opts.Callbacks.OnMessage(res.Message)
		}

		if len(res.Message.ToolCalls) == 0 {
			runEndHooks(ctx, opts, history)
			return Result{History: history, StopReason: "no_tool_calls"}, nil
		}

		for i, tc := range res.Message.ToolCalls {
			result := res.ToolResults[i]
			if result.ToolCallID == "" {
				result.ToolCallID = tc.ID
			}
			msg := chat.ToMessage(result, time.Now())
			history = append(history, msg)
			if opts.Callbacks.OnToolResult != nil {
				opts.Callbacks.OnToolResult(result)
			}
			recent = append(recent, recentCall{Name: tc.Name, Args: tc.Arguments})

			failureOutcomes = append(failureOutcomes, result.IsError)
			if failureThresholdReached(failureOutcomes, failureWindow, failureThreshold) {
				runEndHooks(ctx, opts, history)
				return Result{History: history, StopReason: "failure-threshold"}, nil
			}
		}

		applyRepetitionGuard(history, recent, repetitionGuardWindow, repetitionGuardThreshold)
	}

	if err := ctx.Err(); err != nil {
		return Result{History: history}, err
	}

	history = append(history, chat.Message{
		Role:      chat.RoleUser,
		Content:   "You have exhausted your tool call limit for this turn. Respond in text only. Summarize what you accomplished and what remains.",
		CreatedAt: time.Now(),
	})

	if err := runOffload(opts, history, maxTokens, scanRatio, minChars); err != nil {
		return Result{History: history}, fmt.Errorf("offload: %w", err)
	}

	stream, err := opts.Provider.ChatStream(ctx, toProviderMessages(history), nil)
	if err != nil {
		return Result{History: history}, fmt.Errorf("final chat stream: %w", err)
	}
	res, err := step.Run(ctx, stream, toolsetDispatcher{ts: opts.Toolset}, opts.Callbacks.OnMessagePart, opts.MaxParallelTasks)
	if err != nil {
		return Result{History: history}, fmt.Errorf("final step failed: %w", err)
	}
	res.Message.CreatedAt = time.Now()
	history = append(history, res.Message)
	if opts.Callbacks.OnMessage != nil {
		opts.Callbacks.OnMessage(res.Message)
	}

	runEndHooks(ctx, opts, history)
	return Result{History: history, StopReason: "iteration_cap"}, nil
}

// failureThresholdReached reports whether the failure-threshold stop
// condition (spec.md §4.6) has tripped: the window must be fully populated
// before it is ever evaluated, so a burst of early failures shorter than
// window cannot trigger a premature stop.
func failureThresholdReached(outcomes []bool, window, threshold int) bool {
	if len(outcomes) < window {
		return false
	}
	tail := outcomes[len(outcomes)-window:]
	var failures int
	for _, f := range tail {
		if f {
			failures++
		}
	}
	return failures >= threshold
}

// runOffload estimates history's token size and, if it meets maxTokens,
// rewrites oldest large tool-result bodies out of history in place via
// opts.OffloadStore. A nil OffloadStore disables the pass entirely — the
// teacher's own tests run without one.
func runOffload(opts Options, history []chat.Message, maxTokens int, scanRatio float64, minChars int) error {
	if opts.OffloadStore == nil {
		return nil
	}

	msgs := make([]store.OffloadMessage, len(history))
	for i, m := range history {
		msgs[i] = store.OffloadMessage{Role: string(m.Role), Content: m.Content}
	}

	stillExceeds, err := opts.OffloadStore.ScanAndOffload(msgs, maxTokens, scanRatio, minChars)
	if err != nil {
		return err
	}
	for i := range history {
		history[i].Content = msgs[i].Content
	}
	if opts.Callbacks.OnOffload != nil {
		opts.Callbacks.OnOffload(stillExceeds)
	}
	return nil
}

// runEndHooks invokes every registered EndHook with a fresh snapshot of the
// conversation. Called on every terminal state except cancellation. Hook
// errors are logged, never propagated.
func runEndHooks(ctx context.Context, opts Options, history []chat.Message) {
	if len(opts.EndHooks) == 0 {
		return
	}
	snap := EndSnapshot{
		SessionID:  opts.SessionID,
		WorkingDir: opts.WorkingDir,
		Messages:   history,
		FinalText:  lastAssistantText(history),
		OnProgress: func(msg string) {
			if opts.Callbacks.OnProgress != nil {
				opts.Callbacks.OnProgress(msg)
			}
		},
	}
	for _, hook := range opts.EndHooks {
		if err := hook(ctx, snap); err != nil {
			log.Warn().Err(err).Msg("end-of-conversation hook failed")
		}
	}
}

// lastAssistantText returns the most recent assistant message's content,
// the "final response text" spec.md's stop hooks require in the snapshot.
func lastAssistantText(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

type toolsetDispatcher struct {
	ts *toolset.Toolset
}

func (d toolsetDispatcher) Handle(ctx context.Context, call chat.ToolCall) *toolset.Future {
	return d.ts.Handle(ctx, call)
}

// recentCall is one tool call's (name, arguments) pair, kept for the
// sliding-window repetition guard.
type recentCall struct {
	Name string
	Args string
}

// applyRepetitionGuard scans the last window calls in recent; if threshold
// or more share the same (name, args) pair, a warning is appended to the
// most recent tool-result message in history. Generalizes the teacher's
// fixed "last 3 identical" check (internal/llm.ProcessTurn) into a
// configurable sliding window over a possibly-non-contiguous match set.
// This is a hint, not a stop condition — see failureThresholdReached for
// the stop condition spec.md §4.6 actually requires.
func applyRepetitionGuard(history []chat.Message, recent []recentCall, window, threshold int) {
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	counts := make(map[recentCall]int, len(recent))
	for _, c := range recent {
		counts[c]++
	}
	var worst recentCall
	var worstCount int
	for c, n := range counts {
		if n > worstCount {
			worst, worstCount = c, n
		}
	}
	if worstCount < threshold {
		return
	}
	_ = worst
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleTool {
			const tag = "\n\n<system-reminder>\n"
			if idx := strings.Index(history[i].Content, tag); idx >= 0 {
				history[i].Content = history[i].Content[:idx]
			}
			history[i].Content += tag + "WARNING: You have repeated the same tool call with the same arguments multiple times recently. This is wasteful. Stop and either try a different approach, summarize what you know, or ask the user for help.\n</system-reminder>"
			return
		}
	}
}

// injectRecitation appends a <system-reminder> to the last tool-result
// message to keep the agent's plan (or the user's original request) in the
// model's recent attention window. Kept from the teacher's
// internal/llm.injectRecitation, generalized to chat.Message.
func injectRecitation(history []chat.Message, pad ScratchpadReader, round int) {
	if round == 0 || round%recitationInterval != 0 {
		return
	}

	var reminder string
	if pad != nil {
		reminder = pad.Content()
	}
	if reminder == "" {
		for _, m := range history {
			if m.Role == chat.RoleUser {
				reminder = "The user's request: " + m.Content
				break
			}
		}
	}
	if reminder == "" {
		return
	}

	const tag = "\n\n<system-reminder>\n"
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleTool {
			if idx := strings.Index(history[i].Content, tag); idx >= 0 {
				history[i].Content = history[i].Content[:idx]
			}
			history[i].Content += tag + reminder + "\n</system-reminder>"
			return
		}
	}
}
