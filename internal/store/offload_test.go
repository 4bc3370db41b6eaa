package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOffloadPutDeduplicatesIdenticalBodies(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}

	body := []byte("a very long tool result that exceeds the offload threshold")
	path1, err := o.Put(body)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	path2, err := o.Put(body)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if path1 != path2 {
		t.Errorf("identical bodies produced different paths: %q vs %q", path1, path2)
	}

	entries, err := os.ReadDir(filepath.Dir(path1))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("offload dir has %d entries, want 1", len(entries))
	}
}

func TestOffloadGetRoundTrips(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}

	body := []byte("offloaded content")
	path, err := o.Put(body)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	hash := filepath.Base(path)
	got, err := o.Get(hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("Get = %q, want %q", got, body)
	}
}

func TestOffloadGetMissingHashErrors(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	if _, err := o.Get("0000000000000000000000000000000000000000000000000000000000000000"); err == nil {
		t.Error("expected error for missing blob")
	}
}

func TestEstimateTokensDividesCharsByFour(t *testing.T) {
	messages := []OffloadMessage{{Role: toolRole, Content: "12345678"}, {Role: "user", Content: "1234"}}
	if got, want := EstimateTokens(messages), 3; got != want {
		t.Errorf("EstimateTokens = %d, want %d", got, want)
	}
}

func TestScanAndOffloadNoopBelowThreshold(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	messages := []OffloadMessage{{Role: toolRole, Content: string(long)}}

	stillExceeds, err := o.ScanAndOffload(messages, EstimateTokens(messages)+1, DefaultScanRatio, DefaultMinChars)
	if err != nil {
		t.Fatalf("ScanAndOffload: %v", err)
	}
	if stillExceeds {
		t.Error("stillExceeds = true, want false")
	}
	if messages[0].Content != string(long) {
		t.Error("content rewritten despite estimate being below threshold")
	}
}

func TestScanAndOffloadSkipsShortBodies(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	short := "too short to bother offloading"
	padding := make([]byte, 500)
	for i := range padding {
		padding[i] = 'x'
	}
	messages := []OffloadMessage{
		{Role: toolRole, Content: short},
		{Role: toolRole, Content: string(padding)},
	}

	if _, err := o.ScanAndOffload(messages, 1, 1.0, len(short)+1); err != nil {
		t.Fatalf("ScanAndOffload: %v", err)
	}
	if messages[0].Content != short {
		t.Errorf("short body was rewritten: %q", messages[0].Content)
	}
}

func TestScanAndOffloadSkipsAlreadyOffloaded(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	already := offloadSentinel + "/some/previous/path"
	padding := make([]byte, 500)
	for i := range padding {
		padding[i] = 'y'
	}
	messages := []OffloadMessage{
		{Role: toolRole, Content: already + string(padding)},
	}

	if _, err := o.ScanAndOffload(messages, 1, 1.0, 10); err != nil {
		t.Fatalf("ScanAndOffload: %v", err)
	}
	if messages[0].Content != already+string(padding) {
		t.Error("already-offloaded message was rewritten again")
	}
}

func TestScanAndOffloadOnlyScansOldestFraction(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'z'
	}
	// Four tool messages; scanRatio 0.5 should only touch the oldest two.
	messages := []OffloadMessage{
		{Role: toolRole, Content: string(body)},
		{Role: toolRole, Content: string(body)},
		{Role: toolRole, Content: string(body)},
		{Role: toolRole, Content: string(body)},
	}

	if _, err := o.ScanAndOffload(messages, 1, 0.5, 10); err != nil {
		t.Fatalf("ScanAndOffload: %v", err)
	}
	for i, m := range messages[:2] {
		if !strings.HasPrefix(m.Content, offloadSentinel) {
			t.Errorf("message %d not offloaded: %q", i, m.Content)
		}
	}
	for i, m := range messages[2:] {
		if m.Content != string(body) {
			t.Errorf("message %d outside scan window was rewritten: %q", i+2, m.Content)
		}
	}
}

func TestScanAndOffloadReportsStillExceedsThreshold(t *testing.T) {
	o, err := NewOffloadStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewOffloadStore: %v", err)
	}
	// A non-tool message dominates the token estimate, so even offloading
	// every tool-role message in the scan window leaves the estimate over
	// threshold.
	huge := make([]byte, 4000)
	for i := range huge {
		huge[i] = 'a'
	}
	body := make([]byte, 200)
	for i := range body {
		body[i] = 'b'
	}
	messages := []OffloadMessage{
		{Role: toolRole, Content: string(body)},
		{Role: "user", Content: string(huge)},
	}

	threshold := EstimateTokens(messages[1:])
	stillExceeds, err := o.ScanAndOffload(messages, threshold, 1.0, 10)
	if err != nil {
		t.Fatalf("ScanAndOffload: %v", err)
	}
	if !stillExceeds {
		t.Error("stillExceeds = false, want true")
	}
	if messages[0].Content == string(body) {
		t.Error("tool message in scan window was not offloaded")
	}
}
