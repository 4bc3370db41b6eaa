package shell

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSessionLazyFresh(t *testing.T) {
	s := NewSession(t.TempDir(), nil)
	if s.State() != StateFresh {
		t.Fatalf("new session state = %v, want StateFresh", s.State())
	}

	var out, errb bytes.Buffer
	if err := s.Exec(context.Background(), "echo hi", &out, &errb); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if s.State() != StateRunning {
		t.Errorf("state after Exec = %v, want StateRunning", s.State())
	}
	if strings.TrimSpace(out.String()) != "hi" {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionRestartClearsEnv(t *testing.T) {
	s := NewSession(t.TempDir(), nil)
	var out bytes.Buffer
	_ = s.Exec(context.Background(), "export FOO=bar", &out, &out)
	_ = s.Exec(context.Background(), "echo $FOO", &out, &out)
	if !strings.Contains(out.String(), "bar") {
		t.Fatalf("expected FOO to persist across calls, got %q", out.String())
	}

	s.Restart()
	if s.State() != StateFresh {
		t.Fatalf("state after Restart = %v, want StateFresh", s.State())
	}

	var out2 bytes.Buffer
	_ = s.Exec(context.Background(), "echo $FOO", &out2, &out2)
	if strings.Contains(out2.String(), "bar") {
		t.Errorf("expected FOO cleared after restart, got %q", out2.String())
	}
}

func TestSessionCloseRejectsExec(t *testing.T) {
	s := NewSession(t.TempDir(), nil)
	s.Close()
	if s.State() != StateExited {
		t.Fatalf("state = %v, want StateExited", s.State())
	}
	var out bytes.Buffer
	if err := s.Exec(context.Background(), "echo hi", &out, &out); err == nil {
		t.Errorf("expected Exec on closed session to fail")
	}
}
