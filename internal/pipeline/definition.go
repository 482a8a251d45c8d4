package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alvdef/infoViz-8/internal/aggregate"
	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/filter"
	"github.com/alvdef/infoViz-8/internal/sample"
)

// Definition configures one pipeline: what to load, how to filter and derive,
// and which tables to export.
type Definition struct {
	Name string

	// Columns are the raw columns projected from the source.
	Columns []domain.Column

	// PreSample caps the loaded rows before decoding. Zero keeps every row.
	PreSample int
	Seed      uint64

	// RawFilters run on decoded records; DerivedFilters run after Derive.
	RawFilters     filter.Chain
	Features       domain.FeatureSet
	Options        domain.DeriveOptions
	DerivedFilters filter.Chain

	Outputs []Output
}

// Output is one exported table, either grouped or a record-level sample.
type Output struct {
	File string

	// Aggregate groups the surviving records. Exactly one of Aggregate and
	// Columns is set.
	Aggregate *aggregate.Spec

	// Columns selects the fields of sampled records, capped at Sample rows.
	// Sample <= 0 exports every record.
	Columns []domain.Column
	Sample  int

	// Header renames the exported columns. Nil keeps the column and
	// statistic names.
	Header []string
}

func (o Output) width() int {
	if o.Aggregate != nil {
		return len(o.Aggregate.Keys) + len(o.Aggregate.Stats)
	}
	return len(o.Columns)
}

// TableHeader returns the exported column names.
func (o Output) TableHeader() []string {
	if o.Header != nil {
		return o.Header
	}
	if o.Aggregate != nil {
		return o.Aggregate.Header()
	}
	out := make([]string, len(o.Columns))
	for i, c := range o.Columns {
		out[i] = string(c)
	}
	return out
}

// table renders recs for this output.
func (o Output) table(recs []domain.DerivedRecord, seed uint64) (*domain.Table, error) {
	if o.Aggregate != nil {
		buckets, err := aggregate.Group(recs, *o.Aggregate)
		if err != nil {
			return nil, err
		}
		return aggregate.Table(o.TableHeader(), buckets), nil
	}

	picked := sample.Take(recs, o.Sample, seed)
	t := &domain.Table{Columns: o.TableHeader(), Rows: make([][]string, len(picked))}
	for i := range picked {
		row := make([]string, len(o.Columns))
		for j, c := range o.Columns {
			if v, ok := picked[i].Value(c); ok {
				row[j] = v.String()
			}
		}
		t.Rows[i] = row
	}
	return t, nil
}

// featureInputs lists the raw column each feature reads.
var featureInputs = map[domain.FeatureSet]domain.Column{
	domain.FeatureTime:         domain.ColStartTime,
	domain.FeatureCelsius:      domain.ColTemperatureF,
	domain.FeatureWeather:      domain.ColWeatherCondition,
	domain.FeatureHighSeverity: domain.ColSeverity,
}

// available reports whether column c exists on records after derivation.
func (d Definition) available(c domain.Column) bool {
	if c.IsRaw() {
		return slices.Contains(d.Columns, c)
	}
	f := c.Feature()
	return f != 0 && d.Features.Has(f)
}

// Validate checks that every column a filter, statistic or output reads is
// loaded or derived, and that outputs are well formed.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("pipeline: definition has no name")
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("pipeline %s: no columns to load", d.Name)
	}
	for _, c := range d.Columns {
		if !c.IsRaw() {
			return fmt.Errorf("pipeline %s: %q is not a source column", d.Name, c)
		}
	}
	if d.PreSample < 0 {
		return fmt.Errorf("pipeline %s: negative pre-sample size", d.Name)
	}

	for _, c := range d.RawFilters.Columns() {
		if !c.IsRaw() {
			return fmt.Errorf("pipeline %s: raw filter reads derived column %q", d.Name, c)
		}
		if !d.available(c) {
			return fmt.Errorf("pipeline %s: raw filter reads unloaded column %q", d.Name, c)
		}
	}

	for f, c := range featureInputs {
		if d.Features.Has(f) && !slices.Contains(d.Columns, c) {
			return fmt.Errorf("pipeline %s: derived features need column %q", d.Name, c)
		}
	}
	if d.Features.Has(domain.FeatureWeather) && d.Options.Classifier == nil {
		return fmt.Errorf("pipeline %s: weather features need a classifier", d.Name)
	}

	for _, c := range d.DerivedFilters.Columns() {
		if !d.available(c) {
			return fmt.Errorf("pipeline %s: filter reads unavailable column %q", d.Name, c)
		}
	}

	if len(d.Outputs) == 0 {
		return fmt.Errorf("pipeline %s: no outputs", d.Name)
	}
	files := make(map[string]bool, len(d.Outputs))
	for _, o := range d.Outputs {
		if err := d.validateOutput(o); err != nil {
			return fmt.Errorf("pipeline %s: output %q: %w", d.Name, o.File, err)
		}
		if files[o.File] {
			return fmt.Errorf("pipeline %s: duplicate output %q", d.Name, o.File)
		}
		files[o.File] = true
	}
	return nil
}

func (d Definition) validateOutput(o Output) error {
	if o.File == "" {
		return errors.New("no file name")
	}

	var reads []domain.Column
	switch {
	case o.Aggregate != nil && len(o.Columns) > 0:
		return errors.New("both grouped and sampled")
	case o.Aggregate != nil:
		if err := o.Aggregate.Validate(); err != nil {
			return err
		}
		reads = append(reads, o.Aggregate.Keys...)
		for _, st := range o.Aggregate.Stats {
			if st.Column != "" {
				reads = append(reads, st.Column)
			}
		}
	case len(o.Columns) > 0:
		reads = o.Columns
	default:
		return errors.New("neither grouped nor sampled")
	}

	for _, c := range reads {
		if !d.available(c) {
			return fmt.Errorf("column %q is not available", c)
		}
	}
	if o.Header != nil && len(o.Header) != o.width() {
		return fmt.Errorf("header has %d names for %d columns", len(o.Header), o.width())
	}
	return nil
}
