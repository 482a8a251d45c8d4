package pipeline_test

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// rawHeader mirrors the wide source export, including a column no pipeline
// reads.
var rawHeader = []string{
	"ID", "Source", "Severity", "Start_Time", "Start_Lat", "Start_Lng",
	"City", "State", "Temperature(F)", "Humidity(%)", "Weather_Condition",
}

// accident is one raw source row. Empty fields are written as empty cells.
type accident struct {
	ID, Source, Severity, Start, Lat, Lng, State, TempF, Humidity, Condition string
}

func (a accident) row() []string {
	return []string{a.ID, a.Source, a.Severity, a.Start, a.Lat, a.Lng, "Springfield", a.State, a.TempF, a.Humidity, a.Condition}
}

func writeRaw(t *testing.T, rows ...accident) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "US_Accidents.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(rawHeader))
	for _, r := range rows {
		require.NoError(t, w.Write(r.row()))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func readOutput(t *testing.T, dir, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, file))
	require.NoError(t, err)
	return string(data)
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
