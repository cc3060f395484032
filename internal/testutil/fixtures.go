// Package testutil provides test helper utilities for fleet tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// ConfigProject returns file contents for a project with a fleet config
// pointing at baseURL.
func ConfigProject(baseURL string) map[string]string {
	return map[string]string{
		".fleet/config.yaml": "api:\n  base_url: " + baseURL + "\n  token: test-token\npolling:\n  job_interval: 20\n  review_interval: 5\n",
	}
}

// ConfirmPromptJSON is a minimal confirm checkpoint.
const ConfirmPromptJSON = `{"kind":"confirm","id":"cp-1","summary":"Ship the draft?","key_assumptions":["uses go"]}`

// SecondConfirmPromptJSON is a confirm checkpoint distinct from ConfirmPromptJSON.
const SecondConfirmPromptJSON = `{"kind":"confirm","id":"cp-2","summary":"Second checkpoint?"}`

// MalformedClarifyJSON is a clarify checkpoint whose questions field has the wrong type.
const MalformedClarifyJSON = `{"kind":"clarify","id":"x","questions":"oops"}`

// ClarifyPromptJSON is a two-question clarify checkpoint.
const ClarifyPromptJSON = `{
	"kind": "clarify",
	"id": "cl-1",
	"questions": [
		{"text": "Which runtime?", "question_type": "single",
		 "options": [{"id": "a", "label": "A"}, {"id": "b", "label": "B"}]},
		{"text": "Which style?", "question_type": "single",
		 "options": [{"id": "a", "label": "A"}, {"id": "b", "label": "B"}]}
	]
}`
