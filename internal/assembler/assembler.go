// Package assembler folds a stream of provider.StreamEvent parts into a
// single assistant chat.Message plus its ordered tool calls. Extracted from
// the accumulator logic the teacher inlines in internal/llm/loop.go
// (toolCallAccumulator, collectWithDeltas) and generalized to the full
// folding-rule set of spec.md §4.2: a tool-call-start opens a new slot,
// subsequent deltas append to that slot, orphan deltas are discarded, empty
// argument strings are normalized to "{}" at the end of the stream, and
// thinking blocks close when a signature is attached.
package assembler

import (
	"encoding/json"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/provider"
)

// thinkingBlock is one reasoning span, closed once a signature arrives.
type thinkingBlock struct {
	text      string
	signature string
	closed    bool
}

// Assembler consumes a stream of provider.StreamEvent values in order and
// produces the final assistant message and usage seen along the way.
type Assembler struct {
	content string

	thinking []thinkingBlock

	calls       []chat.ToolCall
	argBuilders []string
	byIndex     map[int]int // stream ToolCallIndex -> position in calls/argBuilders

	usage provider.StreamEvent // last EventUsage seen, Type meaningless until set
	sawUsage bool
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{byIndex: make(map[int]int)}
}

// Feed folds one streamed part into the assembler's state. Parts must be
// fed in the order they arrived on the stream.
func (a *Assembler) Feed(evt provider.StreamEvent) {
	switch evt.Type {
	case provider.EventContentDelta:
		a.content += evt.Content

	case provider.EventReasoningDelta:
		a.feedReasoning(evt)

	case provider.EventToolCallBegin:
		a.begin(evt)

	case provider.EventToolCallDelta:
		a.delta(evt)

	case provider.EventUsage:
		a.sawUsage = true
		if evt.InputTokens > a.usage.InputTokens {
			a.usage.InputTokens = evt.InputTokens
		}
		if evt.OutputTokens > a.usage.OutputTokens {
			a.usage.OutputTokens = evt.OutputTokens
		}

	case provider.EventDone, provider.EventError:
		// Terminal events carry no additional content to fold; the caller
		// is responsible for stopping iteration and, for EventError,
		// surfacing evt.Err.
	}
}

// feedReasoning appends to the current open thinking block, starting a new
// one if the previous block was closed by a signature.
func (a *Assembler) feedReasoning(evt provider.StreamEvent) {
	if len(a.thinking) == 0 || a.thinking[len(a.thinking)-1].closed {
		a.thinking = append(a.thinking, thinkingBlock{})
	}
	cur := &a.thinking[len(a.thinking)-1]
	cur.text += evt.Content
	if evt.ThinkingSignature != "" {
		cur.signature = evt.ThinkingSignature
		cur.closed = true
	}
}

// begin opens a new tool-call slot. A non-empty initial input object is
// serialized to its canonical JSON form as the starting argument string.
func (a *Assembler) begin(evt provider.StreamEvent) {
	pos := len(a.calls)
	a.byIndex[evt.ToolCallIndex] = pos

	start := ""
	if len(evt.ToolCallInitial) > 0 {
		var v interface{}
		if err := json.Unmarshal(evt.ToolCallInitial, &v); err == nil {
			if canon, err := json.Marshal(v); err == nil {
				start = string(canon)
			}
		}
	}

	a.calls = append(a.calls, chat.ToolCall{
		ID:   evt.ToolCallID,
		Name: evt.ToolCallName,
	})
	a.argBuilders = append(a.argBuilders, start)
}

// delta appends an argument fragment to its tool call's slot. A delta with
// no preceding tool-call-start (unknown index) is an orphan and discarded.
func (a *Assembler) delta(evt provider.StreamEvent) {
	pos, ok := a.byIndex[evt.ToolCallIndex]
	if !ok {
		return
	}
	a.argBuilders[pos] += evt.ToolCallArgs
}

// ToolCallCount returns how many tool-call slots have been opened so far.
func (a *Assembler) ToolCallCount() int {
	return len(a.calls)
}

// ToolCallAt returns the tool call at position i as it stands right now,
// with its argument string normalized the same way Finish normalizes it.
// Used by the step engine to dispatch a call's execution the moment its
// slot closes (the next call begins, or the stream ends) rather than
// waiting for the whole response to finish assembling.
func (a *Assembler) ToolCallAt(i int) chat.ToolCall {
	c := a.calls[i]
	args := a.argBuilders[i]
	if args == "" {
		args = "{}"
	}
	c.Arguments = args
	return c
}

// Result is the fully materialized assistant message and its tool calls,
// plus whatever usage was reported during the stream.
type Result struct {
	Message      chat.Message
	InputTokens  int
	OutputTokens int
	HasUsage     bool
}

// Finish finalizes the assembler: empty tool-call argument strings are
// normalized to "{}", and the assistant message is built with content parts
// in first-seen order (text then reasoning, matching the teacher's flat
// Content/Reasoning fields) and tool calls in call-start order.
func (a *Assembler) Finish() Result {
	calls := make([]chat.ToolCall, len(a.calls))
	for i, c := range a.calls {
		args := a.argBuilders[i]
		if args == "" {
			args = "{}"
		}
		c.Arguments = args
		calls[i] = c
	}

	var reasoning string
	for _, b := range a.thinking {
		reasoning += b.text
	}

	return Result{
		Message: chat.Message{
			Role:      chat.RoleAssistant,
			Content:   a.content,
			Reasoning: reasoning,
			ToolCalls: calls,
		},
		InputTokens:  a.usage.InputTokens,
		OutputTokens: a.usage.OutputTokens,
		HasUsage:     a.sawUsage,
	}
}
