package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
)

// validatePathWithRoot resolves file against root, rejecting anything that
// escapes it. Grounded on mcptools.validatePath, generalized to take an
// explicit root since builtins run against a router-owned shell.Session
// working directory rather than the process's os.Getwd.
func validatePathWithRoot(file, root string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	var absPath string
	if filepath.IsAbs(file) {
		absPath = file
	} else {
		absPath = filepath.Join(rootAbs, file)
	}
	absPath, err = filepath.Abs(absPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	relPath, err := filepath.Rel(rootAbs, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("access denied: path outside working directory")
	}
	return absPath, nil
}

func errResult(category chat.ResultCategory, format string, args ...any) (chat.ToolResult, error) {
	return chat.ToolResult{
		IsError:  true,
		Message:  fmt.Sprintf(format, args...),
		Category: category,
	}, nil
}

func textResult(text string) (chat.ToolResult, error) {
	return chat.ToolResult{Output: text}, nil
}

func getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
