// Command validate checks the tables exported by the accident pipelines:
// manifest checksums and row counts, headers, unique group keys, and value
// ranges per column.
//
// Usage:
//
//	go run ./cmd/validate -dir data
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	csvadapter "github.com/alvdef/infoViz-8/internal/adapter/csv"
	"github.com/alvdef/infoViz-8/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// expected is one known output and the number of leading key columns.
type expected struct {
	pipeline string
	header   []string
	keys     int
}

func main() {
	dir := flag.String("dir", "data", "directory holding the exported tables")
	flag.Parse()

	os.Exit(run(*dir))
}

func run(dir string) int {
	fmt.Println("=== Accident Table Validation ===")
	fmt.Println()

	known, err := knownOutputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build definitions: %v\n", err)
		return 1
	}

	tables := map[string]*csvTable{}
	for _, file := range sortedKeys(known) {
		t, err := loadCSV(filepath.Join(dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("  skip %s (not exported)\n", file)
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", file, err)
			return 1
		}
		tables[file] = t
	}
	if len(tables) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no exported tables in %s\n", dir)
		return 1
	}

	phases := []*phase{
		validateManifests(dir, tables),
		validateHeaders(tables, known),
		validateKeys(tables, known),
		validateValues(tables),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, file := range sortedKeys(tables) {
		fmt.Printf("  %-36s %d rows\n", file, len(tables[file].rows))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// knownOutputs builds every built-in definition with its defaults and
// indexes the outputs by file name.
func knownOutputs() (map[string]expected, error) {
	out := map[string]expected{}
	for _, name := range pipeline.Names() {
		params, err := pipeline.Defaults(name)
		if err != nil {
			return nil, err
		}
		def, err := pipeline.Builtin(name, params)
		if err != nil {
			return nil, err
		}
		for _, o := range def.Outputs {
			e := expected{pipeline: name, header: o.TableHeader()}
			if o.Aggregate != nil {
				e.keys = len(o.Aggregate.Keys)
			}
			out[o.File] = e
		}
	}
	return out, nil
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
	cells   []string
}

type csvTable struct {
	header []string
	rows   []csvRow
}

func loadCSV(path string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no header in %s", path)
	}

	t := &csvTable{header: all[0]}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(t.header))
		for j, h := range t.header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		t.rows = append(t.rows, csvRow{lineNum: i + 2, fields: fields, cells: row})
	}
	return t, nil
}

type manifest struct {
	Pipeline string `json:"pipeline"`
	Outputs  []struct {
		File     string `json:"file"`
		Rows     int    `json:"rows"`
		Checksum string `json:"xxh3"`
	} `json:"outputs"`
}

// ── Phase 1: Manifests ──
// Every manifest must describe the files next to it exactly.

func validateManifests(dir string, tables map[string]*csvTable) *phase {
	p := &phase{name: "Phase 1: Manifests (rows, xxh3)"}

	paths, err := filepath.Glob(filepath.Join(dir, "*.manifest.json"))
	if err != nil {
		p.errorf("list manifests: %v", err)
		return p
	}
	if len(paths) == 0 {
		p.errorf("no manifests in %s", dir)
		return p
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(path), err)
			continue
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			p.errorf("%s: %v", filepath.Base(path), err)
			continue
		}

		for _, o := range m.Outputs {
			sum, err := csvadapter.Checksum(filepath.Join(dir, o.File))
			if err != nil {
				p.errorf("%s: output %s: %v", m.Pipeline, o.File, err)
				continue
			}
			if sum != o.Checksum {
				p.errorf("%s: output %s: xxh3 %s, manifest says %s", m.Pipeline, o.File, sum, o.Checksum)
			}
			if t, ok := tables[o.File]; ok && len(t.rows) != o.Rows {
				p.errorf("%s: output %s: %d rows, manifest says %d", m.Pipeline, o.File, len(t.rows), o.Rows)
			}
		}
	}
	return p
}

// ── Phase 2: Headers ──

func validateHeaders(tables map[string]*csvTable, known map[string]expected) *phase {
	p := &phase{name: "Phase 2: Headers"}
	for _, file := range sortedKeys(tables) {
		want := known[file]
		got := tables[file].header
		if !slices.Equal(want.header, got) {
			p.errorf("%s (%s): header %v, want %v", file, want.pipeline, got, want.header)
		}
		for _, row := range tables[file].rows {
			if len(row.cells) != len(got) {
				p.errorf("%s line %d: %d fields, want %d", file, row.lineNum, len(row.cells), len(got))
			}
		}
	}
	return p
}

// ── Phase 3: Group keys ──
// Aggregated tables hold one row per key tuple, sorted by key.

func validateKeys(tables map[string]*csvTable, known map[string]expected) *phase {
	p := &phase{name: "Phase 3: Group keys (unique)"}
	for _, file := range sortedKeys(tables) {
		n := known[file].keys
		if n == 0 {
			continue
		}
		seen := map[string]int{}
		for _, row := range tables[file].rows {
			if len(row.cells) < n {
				continue
			}
			key := strings.Join(row.cells[:n], "|")
			if first, dup := seen[key]; dup {
				p.errorf("%s line %d: key %q repeats line %d", file, row.lineNum, key, first)
				continue
			}
			seen[key] = row.lineNum
		}
	}
	return p
}

// ── Phase 4: Values ──

type check func(v string) error

func intIn(lo, hi int) check {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d outside [%d, %d]", n, lo, hi)
		}
		return nil
	}
}

func floatIn(lo, hi float64) check {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		if f < lo || f > hi {
			return fmt.Errorf("%g outside [%g, %g]", f, lo, hi)
		}
		return nil
	}
}

func oneOf(values ...string) check {
	return func(v string) error {
		if !slices.Contains(values, v) {
			return fmt.Errorf("%q not in %v", v, values)
		}
		return nil
	}
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("empty")
	}
	return nil
}

// optional lets an empty cell through, as written for a mean over no values.
func optional(c check) check {
	return func(v string) error {
		if v == "" {
			return nil
		}
		return c(v)
	}
}

var yearMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func yearMonth(v string) error {
	if !yearMonthPattern.MatchString(v) {
		return fmt.Errorf("%q is not YYYY-MM", v)
	}
	return nil
}

const maxCount = 1 << 40

var rules = map[string]check{
	"state":                   nonEmpty,
	"State":                   nonEmpty,
	"Weather_Condition":       nonEmpty,
	"year_month":              yearMonth,
	"year":                    intIn(1900, 2100),
	"Severity":                intIn(1, 4),
	"avg_severity":            optional(floatIn(1, 4)),
	"count_accidents":         intIn(0, maxCount),
	"total_accidents":         intIn(0, maxCount),
	"high_severity_accidents": intIn(0, maxCount),
	"Count":                   intIn(1, maxCount),
	"day_of_week":             intIn(0, 6),
	"hour_of_day":             intIn(0, 23),
	"Humidity(%)":             floatIn(0, 100),
	"Temperature(C)":          floatIn(-35, 45),
	"is_Rain":                 oneOf("True", "False"),
	"is_Snow":                 oneOf("True", "False"),
	"is_Fog":                  oneOf("True", "False"),
	"is_Clear":                oneOf("True", "False"),
	"is_Cloud":                oneOf("True", "False"),
	"HighSeverity":            oneOf("0", "1"),
	"Start_Lat":               floatIn(18, 72),
	"Start_Lng":               floatIn(-180, -50),
}

func validateValues(tables map[string]*csvTable) *phase {
	p := &phase{name: "Phase 4: Values (ranges, flags)"}
	for _, file := range sortedKeys(tables) {
		t := tables[file]
		for _, row := range t.rows {
			for _, col := range t.header {
				rule, ok := rules[col]
				if !ok {
					continue
				}
				if err := rule(row.fields[col]); err != nil {
					p.errorf("%s line %d: %s: %v", file, row.lineNum, col, err)
				}
			}
			checkRowConsistency(p, file, row)
		}
	}
	return p
}

// checkRowConsistency compares fields within one row.
func checkRowConsistency(p *phase, file string, row csvRow) {
	if ym, ok := row.fields["year_month"]; ok {
		if y := row.fields["year"]; len(ym) >= 4 && ym[:4] != y {
			p.errorf("%s line %d: year %s does not match year_month %s", file, row.lineNum, y, ym)
		}
	}
	total, err1 := strconv.Atoi(row.fields["total_accidents"])
	high, err2 := strconv.Atoi(row.fields["high_severity_accidents"])
	if err1 == nil && err2 == nil && high > total {
		p.errorf("%s line %d: %d high-severity of %d accidents", file, row.lineNum, high, total)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
