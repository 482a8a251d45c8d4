package csv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvdef/infoViz-8/internal/domain"
)

func sampleTable() *domain.Table {
	return &domain.Table{
		Columns: []string{"State", "Weather_Condition", "Count"},
		Rows: [][]string{
			{"CA", "Fair", "2"},
			{"TX", "Rain, Fog", "1"},
		},
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriter_StageThenCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir)

	info, err := w.Stage("table.csv", sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "table.csv", info.File)
	assert.Equal(t, 2, info.Rows)
	assert.NotEmpty(t, info.Checksum)

	_, err = os.Stat(filepath.Join(dir, "table.csv"))
	assert.True(t, os.IsNotExist(err), "nothing visible before commit")

	require.NoError(t, w.Commit())

	data, err := os.ReadFile(filepath.Join(dir, "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, "State,Weather_Condition,Count\nCA,Fair,2\nTX,\"Rain, Fog\",1\n", string(data))
	assert.Equal(t, []string{"table.csv"}, listDir(t, dir))

	sum, err := Checksum(filepath.Join(dir, "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, info.Checksum, sum)
}

func TestWriter_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	_, err := w.Stage("a.csv", sampleTable())
	require.NoError(t, err)
	_, err = w.Stage("b.csv", sampleTable())
	require.NoError(t, err)

	require.NoError(t, w.Abort())
	assert.Empty(t, listDir(t, dir))
}

func TestWriter_CommitReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "table.csv"), []byte("old\n"), 0o600))

	w := NewWriter(dir)
	_, err := w.Stage("table.csv", sampleTable())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data), "previous output intact until commit")

	require.NoError(t, w.Commit())
	data, err = os.ReadFile(filepath.Join(dir, "table.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "State,Weather_Condition,Count")
}

func TestWriter_DirectoryIsAFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	w := NewWriter(blocker)
	_, err := w.Stage("table.csv", sampleTable())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWrite)

	err = w.WriteManifest("run.manifest.json", map[string]int{"rows": 1})
	assert.ErrorIs(t, err, domain.ErrWrite)
}

func TestWriter_ChecksumStable(t *testing.T) {
	a, err := NewWriter(t.TempDir()).Stage("t.csv", sampleTable())
	require.NoError(t, err)
	b, err := NewWriter(t.TempDir()).Stage("t.csv", sampleTable())
	require.NoError(t, err)
	assert.Equal(t, a.Checksum, b.Checksum)

	other := sampleTable()
	other.Rows[0][2] = "3"
	c, err := NewWriter(t.TempDir()).Stage("t.csv", other)
	require.NoError(t, err)
	assert.NotEqual(t, a.Checksum, c.Checksum)
}

func TestWriter_WriteManifest(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.WriteManifest("statemonth.manifest.json", map[string]any{"pipeline": "statemonth", "rows": 3}))

	data, err := os.ReadFile(filepath.Join(dir, "statemonth.manifest.json"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "statemonth", got["pipeline"])
	assert.Equal(t, 3.0, got["rows"])
	assert.Equal(t, []string{"statemonth.manifest.json"}, listDir(t, dir))
}

func TestWriter_CommitFailureKeepsPreviousOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.csv"), []byte("old\n"), 0o600))

	w := NewWriter(dir)
	_, err := w.Stage("first.csv", sampleTable())
	require.NoError(t, err)
	_, err = w.Stage("second.csv", sampleTable())
	require.NoError(t, err)

	blocker := filepath.Join(dir, "second.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	err = w.Commit()
	require.ErrorIs(t, err, domain.ErrWrite)

	data, err := os.ReadFile(filepath.Join(dir, "first.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))

	require.NoError(t, w.Abort())
	assert.Equal(t, []string{"first.csv", "second.csv"}, listDir(t, dir))
	assert.DirExists(t, filepath.Join(blocker, "keep"))
}

func TestWriter_CommitUndoesEarlierMoves(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	_, err := w.Stage("first.csv", sampleTable())
	require.NoError(t, err)
	_, err = w.Stage("second.csv", sampleTable())
	require.NoError(t, err)

	require.NoError(t, os.Remove(w.staged[1].tmp))

	err = w.Commit()
	require.ErrorIs(t, err, domain.ErrWrite)
	assert.NoFileExists(t, filepath.Join(dir, "first.csv"), "first output must not be published alone")

	require.NoError(t, w.Abort())
	assert.Empty(t, listDir(t, dir))
}

func TestWriter_CommitRemovesBackups(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("old\n"), 0o600))

	w := NewWriter(dir)
	_, err := w.Stage("a.csv", sampleTable())
	require.NoError(t, err)
	_, err = w.Stage("b.csv", sampleTable())
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	assert.Equal(t, []string{"a.csv", "b.csv"}, listDir(t, dir))
}
