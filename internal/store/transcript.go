package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// TranscriptRecord is one line of a session's ndjson transcript file.
// It mirrors chat.Message closely enough to round-trip without importing
// internal/chat here, keeping internal/store free of a dependency on the
// agent-loop package.
type TranscriptRecord struct {
	Role         string          `json:"role"`
	Content      string          `json:"content,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ToolCalls    json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TranscriptStore appends and replays per-session ndjson transcript files
// under dir, with a thin SQLite index (Cache.sessions_index) for listing
// and resume. Transcript bodies never touch SQLite: a session with a
// million-token history is still just a line-oriented file append.
type TranscriptStore struct {
	dir   string
	index *Cache
}

// NewTranscriptStore creates a transcript store rooted at dir, using index
// for session bookkeeping. dir is created if missing.
func NewTranscriptStore(dir string, index *Cache) (*TranscriptStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &TranscriptStore{dir: dir, index: index}, nil
}

func (t *TranscriptStore) path(sessionID string) string {
	return filepath.Join(t.dir, sessionID+".ndjson")
}

// EnsureSession registers sessionID in the index if it isn't already there.
func (t *TranscriptStore) EnsureSession(sessionID string) error {
	if t.index == nil {
		return nil
	}
	now := time.Now().Unix()
	t.index.mu.Lock()
	defer t.index.mu.Unlock()
	_, err := t.index.db.Exec(
		`INSERT OR IGNORE INTO sessions_index (id, created, updated, last_offload_scan) VALUES (?, ?, ?, 0)`,
		sessionID, now, now,
	)
	return err
}

// Append writes one record to the session's transcript file and bumps its
// updated timestamp in the index.
func (t *TranscriptStore) Append(sessionID string, rec TranscriptRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	//nolint:gosec // G304: sessionID is a generated identifier, not user path input
	f, err := os.OpenFile(t.path(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transcript record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}

	if t.index != nil {
		t.index.mu.Lock()
		_, err := t.index.db.Exec(`UPDATE sessions_index SET updated = ? WHERE id = ?`, time.Now().Unix(), sessionID)
		t.index.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("failed to bump session index")
		}
	}
	return nil
}

// Load replays a session's full transcript from disk. Returns (nil, nil)
// if the session has no transcript file yet.
func (t *TranscriptStore) Load(sessionID string) ([]TranscriptRecord, error) {
	//nolint:gosec // G304: sessionID is a generated identifier, not user path input
	f, err := os.Open(t.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var out []TranscriptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec TranscriptRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("skipping malformed transcript line")
			continue
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// SessionSummary describes one known session for listing/resume.
type SessionSummary struct {
	ID        string
	Created   time.Time
	Updated   time.Time
}

// ListSessions returns every indexed session, most recently updated first.
func (t *TranscriptStore) ListSessions() ([]SessionSummary, error) {
	if t.index == nil {
		return nil, nil
	}
	t.index.mu.Lock()
	defer t.index.mu.Unlock()

	rows, err := t.index.db.Query(`SELECT id, created, updated FROM sessions_index ORDER BY updated DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var created, updated int64
		if err := rows.Scan(&s.ID, &created, &updated); err != nil {
			continue
		}
		s.Created = time.Unix(created, 0)
		s.Updated = time.Unix(updated, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LastOffloadScan returns how far into the transcript (by record count)
// the offload pass has already examined for sessionID.
func (t *TranscriptStore) LastOffloadScan(sessionID string) (int, error) {
	if t.index == nil {
		return 0, nil
	}
	t.index.mu.Lock()
	defer t.index.mu.Unlock()

	var n int
	err := t.index.db.QueryRow(`SELECT last_offload_scan FROM sessions_index WHERE id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, nil //nolint:nilerr // unseen session: nothing scanned yet
	}
	return n, nil
}

// SetLastOffloadScan records how far the offload pass has scanned.
func (t *TranscriptStore) SetLastOffloadScan(sessionID string, n int) error {
	if t.index == nil {
		return nil
	}
	t.index.mu.Lock()
	defer t.index.mu.Unlock()
	_, err := t.index.db.Exec(`UPDATE sessions_index SET last_offload_scan = ? WHERE id = ?`, n, sessionID)
	return err
}
