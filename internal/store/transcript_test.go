package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestTranscriptStore(t *testing.T) *TranscriptStore {
	t.Helper()
	idx := openTestCache(t, 24*time.Hour)
	ts, err := NewTranscriptStore(filepath.Join(t.TempDir(), "transcripts"), idx)
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	return ts
}

func TestTranscriptAppendAndLoad(t *testing.T) {
	ts := newTestTranscriptStore(t)

	if err := ts.EnsureSession("sess-1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if err := ts.Append("sess-1", TranscriptRecord{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := ts.Append("sess-1", TranscriptRecord{Role: "assistant", Content: "hi there", OutputTokens: 3}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := ts.Load("sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Content != "hello" || recs[1].Content != "hi there" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestTranscriptLoadMissingSessionReturnsNil(t *testing.T) {
	ts := newTestTranscriptStore(t)
	recs, err := ts.Load("does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if recs != nil {
		t.Errorf("recs = %v, want nil", recs)
	}
}

func TestListSessionsOrdersByMostRecentlyUpdated(t *testing.T) {
	ts := newTestTranscriptStore(t)
	ts.EnsureSession("older")
	ts.Append("older", TranscriptRecord{Role: "user", Content: "first"})
	ts.EnsureSession("newer")
	ts.Append("newer", TranscriptRecord{Role: "user", Content: "second"})
	// Touch "older" again so it becomes the most recent.
	ts.Append("older", TranscriptRecord{Role: "user", Content: "third"})

	summaries, err := ts.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[0].ID != "older" {
		t.Errorf("summaries[0].ID = %q, want %q (most recently touched)", summaries[0].ID, "older")
	}
}

func TestOffloadScanTracking(t *testing.T) {
	ts := newTestTranscriptStore(t)
	ts.EnsureSession("sess-1")

	n, err := ts.LastOffloadScan("sess-1")
	if err != nil {
		t.Fatalf("LastOffloadScan: %v", err)
	}
	if n != 0 {
		t.Errorf("LastOffloadScan = %d, want 0", n)
	}

	if err := ts.SetLastOffloadScan("sess-1", 7); err != nil {
		t.Fatalf("SetLastOffloadScan: %v", err)
	}
	n, err = ts.LastOffloadScan("sess-1")
	if err != nil {
		t.Fatalf("LastOffloadScan: %v", err)
	}
	if n != 7 {
		t.Errorf("LastOffloadScan = %d, want 7", n)
	}
}
