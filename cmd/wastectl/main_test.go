package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrescanCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Renova_2024-01.csv")
	require.NoError(t, os.WriteFile(path, []byte("Datum;Material;Vikt (kg)\n2024-01-02;Trä;10,5\n2024-01-03;Metall;4,5\nSumma;;15\n"), 0o600))

	out, err := run(t, "prescan", path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Renova_2024-01.csv", got["filename"])
	assert.EqualValues(t, 0, got["headerIndex"])
	assert.EqualValues(t, 15, got["weightTotal"])
}

func TestCommandsValidateArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"process without file", []string{"process"}},
		{"prescan missing file", []string{"prescan", "/does/not/exist.csv"}},
		{"batch without dir", []string{"batch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExportAndDBHealthCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_URL", filepath.Join(dir, "waste.db"))
	t.Setenv("BLOB_BASE_URL", "file://"+filepath.Join(dir, "blobs"))
	t.Setenv("SETTINGS_FILE", "")

	out, err := run(t, "dbhealth")
	require.NoError(t, err)
	assert.Contains(t, out, "DB health: OK")
	assert.Contains(t, out, "documents: 0")

	report := filepath.Join(dir, "report.xlsx")
	out, err = run(t, "export", "--out", report)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+report)
	assert.FileExists(t, report)
}
