package csv

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/alvdef/infoViz-8/internal/domain"
)

// Writer stages tables as hidden temp files in one directory and moves them
// into place together on Commit. It implements pipeline.Sink.
type Writer struct {
	dir    string
	staged []staged
}

type staged struct {
	tmp, final string
}

// NewWriter creates a Writer for dir. The directory is created on first Stage.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the destination directory.
func (w *Writer) Dir() string { return w.dir }

// Stage writes t under a temporary name next to file. Nothing is visible under
// the final name until Commit.
func (w *Writer) Stage(file string, t *domain.Table) (domain.OutputInfo, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return domain.OutputInfo{}, fmt.Errorf("%w: create %s: %v", domain.ErrWrite, w.dir, err)
	}

	f, err := os.CreateTemp(w.dir, "."+file+".*.tmp")
	if err != nil {
		return domain.OutputInfo{}, fmt.Errorf("%w: create temp for %s: %v", domain.ErrWrite, file, err)
	}
	w.staged = append(w.staged, staged{tmp: f.Name(), final: filepath.Join(w.dir, file)})

	h := xxh3.New()
	bw := bufio.NewWriterSize(f, 1<<16)
	cw := csv.NewWriter(&teeWriter{w: bw, h: h})

	werr := writeTable(cw, t)
	if werr == nil {
		werr = bw.Flush()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return domain.OutputInfo{}, fmt.Errorf("%w: write %s: %v", domain.ErrWrite, file, werr)
	}

	return domain.OutputInfo{
		File:     file,
		Rows:     t.Len(),
		Checksum: strconv.FormatUint(h.Sum64(), 16),
	}, nil
}

func writeTable(cw *csv.Writer, t *domain.Table) error {
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Commit moves every staged file to its final name. Existing outputs are
// first moved aside; if any step fails, every move already made is undone so
// the directory holds either all new outputs or all old ones.
func (w *Writer) Commit() error {
	var done []move
	rollback := func(err error) error {
		for i := len(done) - 1; i >= 0; i-- {
			_ = os.Rename(done[i].to, done[i].from)
		}
		return err
	}

	backups := make([]string, 0, len(w.staged))
	for _, s := range w.staged {
		info, err := os.Lstat(s.final)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return rollback(fmt.Errorf("%w: move %s into place: %v", domain.ErrWrite, filepath.Base(s.final), err))
		case info.IsDir():
			return rollback(fmt.Errorf("%w: move %s into place: destination is a directory", domain.ErrWrite, filepath.Base(s.final)))
		}
		bak := backupName(s.final)
		if err := os.Rename(s.final, bak); err != nil {
			return rollback(fmt.Errorf("%w: back up %s: %v", domain.ErrWrite, filepath.Base(s.final), err))
		}
		done = append(done, move{from: s.final, to: bak})
		backups = append(backups, bak)
	}

	for _, s := range w.staged {
		if err := os.Rename(s.tmp, s.final); err != nil {
			return rollback(fmt.Errorf("%w: move %s into place: %v", domain.ErrWrite, filepath.Base(s.final), err))
		}
		done = append(done, move{from: s.tmp, to: s.final})
	}

	for _, bak := range backups {
		_ = os.Remove(bak)
	}
	w.staged = nil
	return nil
}

// move is one rename made by Commit, kept so it can be reversed.
type move struct {
	from, to string
}

func backupName(final string) string {
	return filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+".bak")
}

// Abort removes staged files that were not committed.
func (w *Writer) Abort() error {
	var errs []error
	for _, s := range w.staged {
		if err := os.Remove(s.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	w.staged = nil
	return errors.Join(errs...)
}

// WriteManifest writes v as indented JSON to file, replacing any previous
// manifest atomically.
func (w *Writer) WriteManifest(file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrWrite, w.dir, err)
	}

	f, err := os.CreateTemp(w.dir, "."+file+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", domain.ErrWrite, file, err)
	}
	tmp := f.Name()
	_, werr := f.Write(append(data, '\n'))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp, filepath.Join(w.dir, file))
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", domain.ErrWrite, file, werr)
	}
	return nil
}

// Checksum returns the xxh3 digest of the file at path in the same form as
// domain.OutputInfo.Checksum.
func Checksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxh3.Hash(data), 16), nil
}

// teeWriter feeds every written byte to the hash as well.
type teeWriter struct {
	w *bufio.Writer
	h *xxh3.Hasher
}

func (t *teeWriter) Write(p []byte) (int, error) {
	_, _ = t.h.Write(p)
	return t.w.Write(p)
}
