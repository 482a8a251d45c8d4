// Package csv reads projected columns from the raw accidents export and writes
// summary tables atomically.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/alvdef/infoViz-8/internal/domain"
)

const utf8BOM = "\uFEFF"

// skipLogLimit caps per-line warnings for malformed input.
const skipLogLimit = 20

// Loader reads CSV sources, keeping only requested columns.
// It implements pipeline.Source.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load opens path and returns a table holding exactly columns, in that order,
// for every readable row. Rows with fewer fields than the header are kept with
// the missing cells empty; rows with more are skipped. A missing file wraps domain.ErrSourceNotFound; a
// missing column is a *domain.SchemaError.
func (l *Loader) Load(path string, columns []domain.Column) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	return l.read(path, f, columns)
}

func (l *Loader) read(path string, r io.Reader, columns []domain.Column) (*domain.Table, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.SchemaError{Path: path, Missing: columns}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx, err := project(path, normalizeHeader(header), columns)
	if err != nil {
		return nil, err
	}

	t := &domain.Table{Columns: make([]string, len(columns))}
	for i, c := range columns {
		t.Columns[i] = string(c)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			l.skip(t, path, err.Error())
			continue
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			l.skip(t, path, fmt.Sprintf("line %d: expected %d fields, got %d", line, len(header), len(rec)))
			continue
		}

		// Missing trailing fields stay empty, which decodes as null.
		row := make([]string, len(idx))
		for i, j := range idx {
			if j < len(rec) {
				// Clone so the row does not pin the reader's whole line buffer.
				row[i] = strings.Clone(rec[j])
			}
		}
		t.Rows = append(t.Rows, row)
	}

	if t.Skipped > skipLogLimit {
		l.logger.Warn("malformed lines skipped", "path", path, "count", t.Skipped)
	}
	return t, nil
}

func (l *Loader) skip(t *domain.Table, path, reason string) {
	t.Skipped++
	if t.Skipped <= skipLogLimit {
		l.logger.Warn("skipping malformed line", "path", path, "reason", reason)
	}
}

// project maps each requested column to its header position.
func project(path string, header []string, columns []domain.Column) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	idx := make([]int, len(columns))
	var missing []domain.Column
	for i, c := range columns {
		j, ok := pos[string(c)]
		if !ok {
			missing = append(missing, c)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Path: path, Missing: missing}
	}
	return idx, nil
}

// normalizeHeader trims names and strips a UTF-8 BOM from the first cell.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		out[i] = c
	}
	return out
}
