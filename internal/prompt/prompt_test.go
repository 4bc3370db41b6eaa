package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectPromptPicksModelFamily(t *testing.T) {
	cases := map[string]string{
		"claude-opus-4-6": claudePrompt,
		"gemini-2.5-pro":  geminiPrompt,
		"gpt-5":           gptPrompt,
		"o1-preview":      gptPrompt,
		"llama3.1:70b":    basePrompt,
	}
	for model, want := range cases {
		if got := SelectPrompt(model); got != want {
			t.Errorf("SelectPrompt(%q) picked the wrong prompt", model)
		}
	}
}

func TestLoadAgentInstructionsFindsProjectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("follow the house style"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(oldWd)

	got := LoadAgentInstructions()
	if !strings.Contains(got, "follow the house style") {
		t.Errorf("LoadAgentInstructions() = %q, want it to contain the AGENTS.md body", got)
	}
}

func TestBuildSystemPromptAppendsBasePromptLast(t *testing.T) {
	dir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer os.Chdir(oldWd)

	got := BuildSystemPrompt("claude-opus-4-6", nil)
	if !strings.HasSuffix(got, claudePrompt) {
		t.Errorf("BuildSystemPrompt should end with the model base prompt when no instructions or outline exist")
	}
}
