package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/perm"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/toolset"
)

type scriptedProvider struct {
	scripts [][]provider.StreamEvent
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) ListModels(context.Context) ([]provider.Model, error) {
	return nil, nil
}
func (p *scriptedProvider) Close() error { return nil }
func (p *scriptedProvider) ChatStream(context.Context, []provider.Message, []provider.Tool) (<-chan provider.StreamEvent, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.scripts) {
		idx = len(p.scripts) - 1
	}
	ch := make(chan provider.StreamEvent, len(p.scripts[idx])+1)
	for _, e := range p.scripts[idx] {
		ch <- e
	}
	ch <- provider.StreamEvent{Type: provider.EventDone}
	close(ch)
	return ch, nil
}

func textEvents(s string) []provider.StreamEvent {
	return []provider.StreamEvent{{Type: provider.EventContentDelta, Content: s}}
}

type fakeFactory struct {
	builds    int
	cleanedUp int
	lastPerm  perm.Permissions
}

func (f *fakeFactory) Build(_ context.Context, depth int, p perm.Permissions) (*toolset.Toolset, func(), error) {
	f.builds++
	f.lastPerm = p
	ts := toolset.New()
	ts.Register(toolset.Definition{Name: "Bash"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{Output: "ok"}, nil
	})
	return ts, func() { f.cleanedUp++ }, nil
}

func TestRunReturnsFinalAssistantText(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("the answer is 42")}}
	f := &fakeFactory{}

	res, err := Run(context.Background(), Options{
		Provider: p,
		Tools:    f,
		Prompt:   "what is the answer",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "the answer is 42" {
		t.Errorf("Content = %q", res.Content)
	}
	if f.builds != 1 || f.cleanedUp != 1 {
		t.Errorf("factory builds=%d cleanedUp=%d", f.builds, f.cleanedUp)
	}
}

func TestRunRejectsExcessiveDepth(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("x")}}
	f := &fakeFactory{}

	_, err := Run(context.Background(), Options{
		Provider: p,
		Tools:    f,
		Prompt:   "go deeper",
		Depth:    MaxDepth,
	})
	if err == nil {
		t.Fatalf("expected depth error")
	}
}

func TestRunRejectsOversizedMaxIterations(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("x")}}
	f := &fakeFactory{}

	_, err := Run(context.Background(), Options{
		Provider:      p,
		Tools:         f,
		Prompt:        "go",
		MaxIterations: MaxAllowedIterations + 1,
	})
	if err == nil {
		t.Fatalf("expected max_iterations error")
	}
}

func TestPermissionsExploreExcludesWriteEditTask(t *testing.T) {
	p := Permissions(TypeExplore, "")
	for _, name := range []string{"write", "edit", "task"} {
		if p.Allows(name) {
			t.Errorf("explore should not allow %q", name)
		}
	}
	if !p.Allows("read") {
		t.Errorf("explore should allow read")
	}
}

func TestPermissionsSkillSearchHasNoTools(t *testing.T) {
	p := Permissions(TypeSkill, ActionSearch)
	if p.Allows("read") || p.Allows("Bash") {
		t.Errorf("skill/search should allow nothing")
	}
}

func TestPermissionsSkillEnhanceExcludesTaskOnly(t *testing.T) {
	p := Permissions(TypeSkill, ActionEnhance)
	if p.Allows("task") {
		t.Errorf("skill/enhance should exclude task")
	}
	if !p.Allows("edit") {
		t.Errorf("skill/enhance should allow edit")
	}
}

func TestBuildReceivesExpectedPermissionsForType(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.StreamEvent{textEvents("done")}}
	f := &fakeFactory{}
	_, err := Run(context.Background(), Options{Provider: p, Tools: f, Prompt: "go", Type: TypeGeneral})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.lastPerm.Allows("task") {
		t.Errorf("general sub-agent permissions should exclude task")
	}
}
