// Package step implements one model turn's tool-call execution: fold a
// streamed response into its final message and ordered tool calls, then
// dispatch those calls per spec.md §4.5's task-batch scheduling — maximal
// runs of consecutive task: calls form a batch group that fans out in
// chunks bounded by maxParallelTasks, while every other call is its own
// singleton group run alone. Groups always run in call order, one group
// fully settled before the next starts.
//
// Grounded on the teacher's internal/llm.collectWithDeltas + executeToolCalls
// (which also waits for the full response before running any tool), with
// the grouping and bounded fan-out layered on top as this exercise's central
// redesign of that dispatch loop. Built on internal/assembler for folding
// and internal/toolset for the cancellable-future dispatch contract.
package step

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/synapse-agent/synapse/internal/assembler"
	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/toolset"
)

// Dispatcher runs a single tool call and returns its future. Satisfied by
// *toolset.Toolset.
type Dispatcher interface {
	Handle(ctx context.Context, call chat.ToolCall) *toolset.Future
}

// Result is one step's outcome: the assistant message that closed the
// response, its tool results in call order, and any usage reported.
type Result struct {
	Message      chat.Message
	ToolResults  []chat.ToolResult
	InputTokens  int
	OutputTokens int
	HasUsage     bool
}

// OnDelta is called for every raw stream event, before folding — callers
// use it to render partial content/reasoning as it arrives.
type OnDelta func(evt provider.StreamEvent)

// defaultMaxParallelTasks mirrors config.LimitsConfig's own default (§6);
// duplicated here so Run is safe to call directly with a zero value, e.g.
// from tests, without going through config.WithDefaults first.
const defaultMaxParallelTasks = 5

// taskBatchPrefix marks a Bash command as a task-batch member for grouping
// purposes, mirroring router.Classify's own "task:" check.
const taskBatchPrefix = "task:"

// Run consumes stream to completion, then dispatches its tool calls through
// d grouped per spec.md §4.5: tool calls partition into maximal contiguous
// task: batch groups and singleton groups, groups run sequentially in call
// order, a task-batch group fans out in chunks of at most maxParallelTasks
// (<= 0 falls back to the package default), and a singleton group runs
// alone. Tool results are always returned in original call order.
func Run(ctx context.Context, stream <-chan provider.StreamEvent, d Dispatcher, onDelta OnDelta, maxParallelTasks int) (Result, error) {
	if maxParallelTasks <= 0 {
		maxParallelTasks = defaultMaxParallelTasks
	}

	a := assembler.New()

	for evt := range stream {
		if onDelta != nil {
			onDelta(evt)
		}
		if evt.Type == provider.EventError {
			return Result{}, evt.Err
		}
		a.Feed(evt)
	}

	asmResult := a.Finish()
	calls := asmResult.Message.ToolCalls

	results := make([]chat.ToolResult, len(calls))
	for _, g := range groupCalls(calls) {
		if g.taskBatch {
			dispatchTaskBatch(ctx, d, calls, g.positions, maxParallelTasks, results)
		} else {
			dispatchOne(ctx, d, calls, g.positions[0], results)
		}
	}

	return Result{
		Message:      asmResult.Message,
		ToolResults:  results,
		InputTokens:  asmResult.InputTokens,
		OutputTokens: asmResult.OutputTokens,
		HasUsage:     asmResult.HasUsage,
	}, nil
}

// group is one maximal contiguous run of calls that schedule together:
// either a single non-task-batch call, or a run of consecutive task-batch
// calls. positions holds indices into the original calls slice, in order.
type group struct {
	taskBatch bool
	positions []int
}

// groupCalls partitions calls into maximal contiguous task-batch runs and
// singleton groups, per spec.md §4.5. A non-task-batch call always starts
// (and is) its own group; a task-batch call extends the current group only
// when that group is itself a task-batch run.
func groupCalls(calls []chat.ToolCall) []group {
	var groups []group
	for i, c := range calls {
		if isTaskBatchCall(c) {
			if n := len(groups); n > 0 && groups[n-1].taskBatch {
				groups[n-1].positions = append(groups[n-1].positions, i)
				continue
			}
			groups = append(groups, group{taskBatch: true, positions: []int{i}})
			continue
		}
		groups = append(groups, group{positions: []int{i}})
	}
	return groups
}

// bashArgs mirrors router.BashArgs's "command" field, the only part of the
// Bash tool's argument shape grouping needs.
type bashArgs struct {
	Command string `json:"command"`
}

// isTaskBatchCall reports whether call is a Bash invocation whose command
// begins with "task:" once trimmed, mirroring router.Classify's own check.
func isTaskBatchCall(call chat.ToolCall) bool {
	var args bashArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(args.Command), taskBatchPrefix)
}

// dispatchOne runs the single call at pos to completion before returning,
// so singleton groups never overlap with the group before or after them.
func dispatchOne(ctx context.Context, d Dispatcher, calls []chat.ToolCall, pos int, results []chat.ToolResult) {
	f := d.Handle(ctx, calls[pos])
	results[pos] = settle(ctx, f, calls[pos].ID)
}

// dispatchTaskBatch runs positions in chunks of at most maxParallelTasks,
// awaiting each chunk fully before starting the next so overall concurrency
// never exceeds the bound.
func dispatchTaskBatch(ctx context.Context, d Dispatcher, calls []chat.ToolCall, positions []int, maxParallelTasks int, results []chat.ToolResult) {
	for start := 0; start < len(positions); start += maxParallelTasks {
		end := start + maxParallelTasks
		if end > len(positions) {
			end = len(positions)
		}
		chunk := positions[start:end]

		futures := make([]*toolset.Future, len(chunk))
		for i, pos := range chunk {
			futures[i] = d.Handle(ctx, calls[pos])
		}
		for i, pos := range chunk {
			results[pos] = settle(ctx, futures[i], calls[pos].ID)
		}
	}
}

// settle waits on f, converting a wait error into an execution-error result
// and stamping the call's ID onto whatever result comes back.
func settle(ctx context.Context, f *toolset.Future, callID string) chat.ToolResult {
	res, err := f.Wait(ctx)
	if err != nil {
		res = chat.ToolResult{IsError: true, Message: err.Error(), Category: chat.CategoryExecutionError}
	}
	res.ToolCallID = callID
	return res
}
