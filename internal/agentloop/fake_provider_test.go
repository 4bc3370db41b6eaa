package agentloop

import (
	"context"

	"github.com/synapse-agent/synapse/internal/provider"
)

// scriptedProvider replays a fixed sequence of responses, one per call to
// ChatStream, each expressed as a tiny list of stream events.
type scriptedProvider struct {
	scripts [][]provider.StreamEvent
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ListModels(_ context.Context) ([]provider.Model, error) { return nil, nil }

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) ChatStream(_ context.Context, _ []provider.Message, _ []provider.Tool) (<-chan provider.StreamEvent, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.scripts) {
		idx = len(p.scripts) - 1
	}
	ch := make(chan provider.StreamEvent, len(p.scripts[idx])+1)
	for _, evt := range p.scripts[idx] {
		ch <- evt
	}
	ch <- provider.StreamEvent{Type: provider.EventDone}
	close(ch)
	return ch, nil
}

func textEvents(s string) []provider.StreamEvent {
	return []provider.StreamEvent{{Type: provider.EventContentDelta, Content: s}}
}

func toolCallEvents(id, name, args string) []provider.StreamEvent {
	return []provider.StreamEvent{
		{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: id, ToolCallName: name},
		{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: args},
	}
}
