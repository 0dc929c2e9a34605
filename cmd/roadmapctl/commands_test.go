package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDateCommand(t *testing.T) {
	out, err := run(t, "", "date", "--created", "2024-01-01", "--week", "2", "--day", "3")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10\n", out)

	_, err = run(t, "", "date", "--created", "2024-02-30")
	assert.Error(t, err)
}

func TestNormalizeCommandRepairsInput(t *testing.T) {
	in := `{"phases": [{"title": "Basics", "tasks": [
		{"id": "a", "title": "Tour", "week": 1, "day": 9},
		{"id": "a", "title": "Duplicate", "week": 1}
	]}], "currentTasks": "nope"}`

	out, err := run(t, in, "normalize", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Tour"`)
	assert.NotContains(t, out, "Duplicate")
	assert.NotContains(t, out, `"day": 9`)
	assert.Contains(t, out, `"currentTasks": []`)
}

func TestGateCommandYAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	doc := fmt.Sprintf(`{"phases": [], "currentTasks": [
		{"id": "t1", "title": "Tour of Go", "week": 1, "materials": [
			{"title": "Tour of Go", "url": "%s/tour", "type": "article"}
		]}
	]}`, srv.URL)
	path := filepath.Join(t.TempDir(), "roadmap.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	out, err := run(t, "", "gate", path, "--format", "yaml", "--timeout", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "totalTasks: 1")
	assert.Contains(t, out, "taskId: t1")

	_, err = run(t, "", "gate", path, "--format", "xml")
	assert.Error(t, err)
}
