package assembler

import (
	"testing"

	"github.com/synapse-agent/synapse/internal/provider"
)

func TestFeedTextAndReasoning(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventContentDelta, Content: "hel"})
	a.Feed(provider.StreamEvent{Type: provider.EventContentDelta, Content: "lo"})
	a.Feed(provider.StreamEvent{Type: provider.EventReasoningDelta, Content: "think"})

	res := a.Finish()
	if res.Message.Content != "hello" {
		t.Errorf("Content = %q, want %q", res.Message.Content, "hello")
	}
	if res.Message.Reasoning != "think" {
		t.Errorf("Reasoning = %q, want %q", res.Message.Reasoning, "think")
	}
}

func TestReasoningSignatureClosesBlock(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventReasoningDelta, Content: "a"})
	a.Feed(provider.StreamEvent{Type: provider.EventReasoningDelta, Content: "b", ThinkingSignature: "sig1"})
	a.Feed(provider.StreamEvent{Type: provider.EventReasoningDelta, Content: "c"})

	if len(a.thinking) != 2 {
		t.Fatalf("expected 2 thinking blocks after signature close, got %d", len(a.thinking))
	}
	if a.thinking[0].text != "ab" || a.thinking[0].signature != "sig1" {
		t.Errorf("first block = %+v", a.thinking[0])
	}
	if a.thinking[1].text != "c" {
		t.Errorf("second block = %+v", a.thinking[1])
	}
}

func TestToolCallAccumulation(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "c1", ToolCallName: "Bash"})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: `{"comm`})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: `and":"ls"}`})

	res := a.Finish()
	if len(res.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(res.Message.ToolCalls))
	}
	tc := res.Message.ToolCalls[0]
	if tc.ID != "c1" || tc.Name != "Bash" || tc.Arguments != `{"command":"ls"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestEmptyArgumentsNormalizedToEmptyObject(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "c1", ToolCallName: "TodoWrite"})

	res := a.Finish()
	if res.Message.ToolCalls[0].Arguments != "{}" {
		t.Errorf("Arguments = %q, want %q", res.Message.ToolCalls[0].Arguments, "{}")
	}
}

func TestOrphanDeltaDiscarded(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 7, ToolCallArgs: "junk"})

	res := a.Finish()
	if len(res.Message.ToolCalls) != 0 {
		t.Errorf("expected no tool calls from an orphan delta, got %d", len(res.Message.ToolCalls))
	}
}

func TestMultipleToolCallsPreserveStartOrder(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "c1", ToolCallName: "A"})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 1, ToolCallID: "c2", ToolCallName: "B"})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: "{}"})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 1, ToolCallArgs: "{}"})

	res := a.Finish()
	if len(res.Message.ToolCalls) != 2 || res.Message.ToolCalls[0].ID != "c1" || res.Message.ToolCalls[1].ID != "c2" {
		t.Errorf("tool calls out of order: %+v", res.Message.ToolCalls)
	}
}

func TestInitialInputSerializedCanonically(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{
		Type:            provider.EventToolCallBegin,
		ToolCallIndex:   0,
		ToolCallID:      "c1",
		ToolCallName:    "Bash",
		ToolCallInitial: []byte(`{"b":2,"a":1}`),
	})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: ""})

	res := a.Finish()
	if got, want := res.Message.ToolCalls[0].Arguments, `{"a":1,"b":2}`; got != want {
		t.Errorf("expected initial input to seed canonical arguments %q, got %q", want, got)
	}
}

func TestUsageTracksMax(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventUsage, InputTokens: 10, OutputTokens: 5})
	a.Feed(provider.StreamEvent{Type: provider.EventUsage, InputTokens: 8, OutputTokens: 20})

	res := a.Finish()
	if res.InputTokens != 10 || res.OutputTokens != 20 {
		t.Errorf("usage = %+v, want input=10 output=20", res)
	}
	if !res.HasUsage {
		t.Errorf("expected HasUsage true")
	}
}

func TestToolCallAtReflectsInProgressSlot(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "c1", ToolCallName: "Bash"})
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: `{"command":`})

	if a.ToolCallCount() != 1 {
		t.Fatalf("ToolCallCount = %d, want 1", a.ToolCallCount())
	}
	got := a.ToolCallAt(0)
	if got.ID != "c1" || got.Name != "Bash" || got.Arguments != `{"command":` {
		t.Errorf("ToolCallAt(0) = %+v", got)
	}

	a.Feed(provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: `"ls"}`})
	got = a.ToolCallAt(0)
	if got.Arguments != `{"command":"ls"}` {
		t.Errorf("Arguments = %q", got.Arguments)
	}
}

func TestToolCallAtNormalizesEmptyArguments(t *testing.T) {
	a := New()
	a.Feed(provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "c1", ToolCallName: "Bash"})
	if got := a.ToolCallAt(0).Arguments; got != "{}" {
		t.Errorf("Arguments = %q, want {}", got)
	}
}
