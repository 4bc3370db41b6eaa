package usage

import "testing"

func TestAccumulatorTracksRunningTotals(t *testing.T) {
	a := New(2)

	a.Record(Round{InputTokens: 10, OutputTokens: 5})
	a.Record(Round{InputTokens: 20, OutputTokens: 15, CacheReadTokens: 3})
	a.Record(Round{InputTokens: 30, OutputTokens: 25})

	totals := a.Totals()
	if totals.InputTokens != 60 {
		t.Errorf("InputTokens = %d, want 60", totals.InputTokens)
	}
	if totals.OutputTokens != 45 {
		t.Errorf("OutputTokens = %d, want 45", totals.OutputTokens)
	}
	if totals.CacheReadTokens != 3 {
		t.Errorf("CacheReadTokens = %d, want 3", totals.CacheReadTokens)
	}
}

func TestAccumulatorEvictsTailButKeepsTotals(t *testing.T) {
	a := New(2)

	a.Record(Round{InputTokens: 1})
	a.Record(Round{InputTokens: 2})
	a.Record(Round{InputTokens: 3})

	tail := a.Tail()
	if len(tail) != 2 {
		t.Fatalf("expected tail length 2, got %d", len(tail))
	}
	if tail[0].InputTokens != 2 || tail[1].InputTokens != 3 {
		t.Errorf("unexpected tail contents: %+v", tail)
	}

	if got := a.Totals().InputTokens; got != 6 {
		t.Errorf("Totals().InputTokens = %d, want 6 (evicted round still counted)", got)
	}
}

func TestAccumulatorUnboundedWhenCapNonPositive(t *testing.T) {
	a := New(0)
	for i := 0; i < 5; i++ {
		a.Record(Round{InputTokens: 1})
	}
	if len(a.Tail()) != 5 {
		t.Errorf("expected unbounded tail of 5, got %d", len(a.Tail()))
	}
}
