// Package usage accumulates token usage across a session. Grounded on the
// inline totalIn/totalOut accumulation the teacher repeats in
// internal/llm/loop.go and internal/subagent/subagent.go, generalized here
// into a bounded-tail ring buffer per spec.md §3's UsageAccumulator.
package usage

import "sync"

// Round records the token usage of a single LLM call.
type Round struct {
	InputTokens       int
	OutputTokens      int
	CacheReadTokens   int
	CacheCreateTokens int
}

// Totals is the running sum across every round ever recorded, including
// ones since evicted from the tail.
type Totals struct {
	InputTokens       int
	OutputTokens      int
	CacheReadTokens   int
	CacheCreateTokens int
}

// Accumulator tracks session-wide totals plus a bounded tail of recent
// rounds. When the tail exceeds Cap, the oldest round is dropped from the
// tail but its counts remain folded into Totals.
type Accumulator struct {
	mu     sync.Mutex
	cap    int
	tail   []Round
	totals Totals
}

// New creates an Accumulator retaining at most cap rounds in its tail.
// cap <= 0 means unbounded.
func New(cap int) *Accumulator {
	return &Accumulator{cap: cap}
}

// Record adds one round's usage to both the totals and the tail.
func (a *Accumulator) Record(r Round) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totals.InputTokens += r.InputTokens
	a.totals.OutputTokens += r.OutputTokens
	a.totals.CacheReadTokens += r.CacheReadTokens
	a.totals.CacheCreateTokens += r.CacheCreateTokens

	a.tail = append(a.tail, r)
	if a.cap > 0 && len(a.tail) > a.cap {
		a.tail = a.tail[len(a.tail)-a.cap:]
	}
}

// Totals returns the running session totals, including evicted rounds.
func (a *Accumulator) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

// Tail returns a copy of the retained recent rounds, oldest first.
func (a *Accumulator) Tail() []Round {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Round, len(a.tail))
	copy(out, a.tail)
	return out
}
