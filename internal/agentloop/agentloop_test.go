package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/store"
	"github.com/synapse-agent/synapse/internal/toolset"
)

func newEchoToolset() *toolset.Toolset {
	ts := toolset.New()
	ts.Register(toolset.Definition{Name: "Bash", InputSchema: json.RawMessage(`{"type":"object"}`)}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{Output: "ran: " + string(args)}, nil
	})
	return ts
}

// newFailingToolset always reports its single Bash tool call as an error,
// for exercising the failure-threshold stop condition.
func newFailingToolset() *toolset.Toolset {
	ts := toolset.New()
	ts.Register(toolset.Definition{Name: "Bash", InputSchema: json.RawMessage(`{"type":"object"}`)}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{IsError: true, Message: "boom"}, nil
	})
	return ts
}

// fakeOffloadManager records every call it receives and always reports
// stillExceedsThreshold as configured, without touching disk.
type fakeOffloadManager struct {
	calls        int
	stillExceeds bool
}

func (f *fakeOffloadManager) ScanAndOffload(messages []store.OffloadMessage, threshold int, scanRatio float64, minChars int) (bool, error) {
	f.calls++
	return f.stillExceeds, nil
}

func TestRunStopsWhenNoToolCalls(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("all done")}}
	res, err := Run(context.Background(), Options{
		Provider: p,
		Toolset:  newEchoToolset(),
		History:  []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "no_tool_calls" {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	last := res.History[len(res.History)-1]
	if last.Role != chat.RoleAssistant || last.Content != "all done" {
		t.Errorf("last message = %+v", last)
	}
}

func TestRunExecutesToolCallThenStops(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolCallEvents("c1", "Bash", `{"command":"ls"}`),
		textEvents("finished"),
	}}
	res, err := Run(context.Background(), Options{
		Provider: p,
		Toolset:  newEchoToolset(),
		History:  []chat.Message{{Role: chat.RoleUser, Content: "list files"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "no_tool_calls" {
		t.Errorf("StopReason = %q", res.StopReason)
	}

	var sawToolResult bool
	for _, m := range res.History {
		if m.Role == chat.RoleTool && m.ToolCallID == "c1" {
			sawToolResult = true
			if m.Content == "" {
				t.Errorf("tool result content empty")
			}
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool-role message for call c1, history = %+v", res.History)
	}
}

func TestRunStopHookEndsLoopEarly(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolCallEvents("c1", "Bash", `{}`),
		toolCallEvents("c2", "Bash", `{}`),
	}}
	called := 0
	res, err := Run(context.Background(), Options{
		Provider: p,
		Toolset:  newEchoToolset(),
		History:  []chat.Message{{Role: chat.RoleUser, Content: "go"}},
		StopHooks: []StopHook{
			func(history []chat.Message) (bool, string) {
				called++
				return called > 1, "stopped_after_one_round"
			},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "stopped_after_one_round" {
		t.Errorf("StopReason = %q", res.StopReason)
	}
}

func TestRunRepetitionGuardAnnotatesToolResult(t *testing.T) {
	script := toolCallEvents("c", "Bash", `{"command":"x"}`)
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{script, script, script, textEvents("done")}}
	res, err := Run(context.Background(), Options{
		Provider:          p,
		Toolset:           newEchoToolset(),
		History:           []chat.Message{{Role: chat.RoleUser, Content: "repeat"}},
		FailureWindowSize: 10,
		FailureThreshold:  3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var found bool
	for _, m := range res.History {
		if m.Role == chat.RoleTool && containsStr(m.Content, "repeated the same tool call") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected repetition warning to be injected, history = %+v", res.History)
	}
}

func containsStr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// TestRunFailureThresholdStopsOnThirdOfThreeFailures exercises spec's
// scenario of three successive single-failing-call rounds with window=3,
// threshold=2: the loop must not stop on round 2, only once the window is
// fully populated on round 3.
func TestRunFailureThresholdStopsOnThirdOfThreeFailures(t *testing.T) {
	script := toolCallEvents("c", "Bash", `{"command":"x"}`)
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{script, script, script, textEvents("unreached")}}
	res, err := Run(context.Background(), Options{
		Provider:          p,
		Toolset:           newFailingToolset(),
		History:           []chat.Message{{Role: chat.RoleUser, Content: "go"}},
		FailureWindowSize: 3,
		FailureThreshold:  2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "failure-threshold" {
		t.Fatalf("StopReason = %q, want failure-threshold", res.StopReason)
	}
	if p.calls != 3 {
		t.Errorf("provider called %d times, want 3 (stop must not fire before the window fills)", p.calls)
	}
}

// TestRunFailureThresholdIgnoresSuccessfulResults makes sure a healthy loop
// never trips the failure-threshold stop condition.
func TestRunFailureThresholdIgnoresSuccessfulResults(t *testing.T) {
	script := toolCallEvents("c", "Bash", `{"command":"x"}`)
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{script, script, script, textEvents("done")}}
	res, err := Run(context.Background(), Options{
		Provider:          p,
		Toolset:           newEchoToolset(),
		History:           []chat.Message{{Role: chat.RoleUser, Content: "go"}},
		FailureWindowSize: 3,
		FailureThreshold:  2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "no_tool_calls" {
		t.Errorf("StopReason = %q, want no_tool_calls", res.StopReason)
	}
}

func TestRunInvokesOffloadBeforeEachGenerate(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolCallEvents("c1", "Bash", `{"command":"x"}`),
		textEvents("done"),
	}}
	offload := &fakeOffloadManager{}
	res, err := Run(context.Background(), Options{
		Provider:     p,
		Toolset:      newEchoToolset(),
		History:      []chat.Message{{Role: chat.RoleUser, Content: "go"}},
		OffloadStore: offload,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "no_tool_calls" {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if offload.calls != 2 {
		t.Errorf("offload called %d times, want 2 (once per generate)", offload.calls)
	}
}

func TestRunSurfacesStillExceedsThresholdViaCallback(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("done")}}
	offload := &fakeOffloadManager{stillExceeds: true}
	var reported []bool
	_, err := Run(context.Background(), Options{
		Provider:     p,
		Toolset:      newEchoToolset(),
		History:      []chat.Message{{Role: chat.RoleUser, Content: "go"}},
		OffloadStore: offload,
		Callbacks: Callbacks{
			OnOffload: func(stillExceeds bool) { reported = append(reported, stillExceeds) },
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reported) != 1 || !reported[0] {
		t.Errorf("reported = %v, want [true]", reported)
	}
}

func TestRunInvokesEndHooksOnNaturalStop(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("all done")}}
	var snap EndSnapshot
	var called int
	res, err := Run(context.Background(), Options{
		Provider:   p,
		Toolset:    newEchoToolset(),
		History:    []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		SessionID:  "sess-1",
		WorkingDir: "/work",
		EndHooks: []EndHook{
			func(ctx context.Context, s EndSnapshot) error {
				called++
				snap = s
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != "no_tool_calls" {
		t.Fatalf("StopReason = %q", res.StopReason)
	}
	if called != 1 {
		t.Fatalf("end hook called %d times, want 1", called)
	}
	if snap.SessionID != "sess-1" || snap.WorkingDir != "/work" {
		t.Errorf("snapshot session/workdir = %q/%q", snap.SessionID, snap.WorkingDir)
	}
	if snap.FinalText != "all done" {
		t.Errorf("snapshot FinalText = %q", snap.FinalText)
	}
}

func TestRunSkipsEndHooksOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{scripts: [][]provider.StreamEvent{
		toolCallEvents("c1", "Bash", `{"command":"x"}`),
	}}
	var called int
	_, err := Run(ctx, Options{
		Provider:      p,
		Toolset:       newEchoToolset(),
		History:       []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		MaxIterations: 1,
		EndHooks: []EndHook{
			func(ctx context.Context, s EndSnapshot) error {
				called++
				return nil
			},
		},
	})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if called != 0 {
		t.Errorf("end hooks invoked %d times on cancellation, want 0", called)
	}
}
