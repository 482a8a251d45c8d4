// Package aggregate groups accident records by a key tuple and reduces each
// group to count, mean and sum statistics.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/alvdef/infoViz-8/internal/domain"
)

// Kind is a reduction.
type Kind uint8

const (
	// KindCount counts rows in the group, or non-null values of Column when
	// one is set.
	KindCount Kind = iota
	// KindMean averages the non-null values of a numeric column.
	KindMean
	// KindSum sums a numeric or boolean column, booleans as 0/1.
	KindSum
)

func (k Kind) String() string {
	switch k {
	case KindCount:
		return "count"
	case KindMean:
		return "mean"
	case KindSum:
		return "sum"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Stat is one output statistic.
type Stat struct {
	Name   string
	Kind   Kind
	Column domain.Column
}

// Count is a row count.
func Count(name string) Stat { return Stat{Name: name, Kind: KindCount} }

// CountOf counts the non-null values of col.
func CountOf(name string, col domain.Column) Stat {
	return Stat{Name: name, Kind: KindCount, Column: col}
}

// Mean averages col over non-null values.
func Mean(name string, col domain.Column) Stat { return Stat{Name: name, Kind: KindMean, Column: col} }

// Sum totals col.
func Sum(name string, col domain.Column) Stat { return Stat{Name: name, Kind: KindSum, Column: col} }

// Spec describes one grouping.
type Spec struct {
	Keys  []domain.Column
	Stats []Stat
}

// Validate checks that s has keys and that every statistic is named and has
// the column it needs.
func (s Spec) Validate() error {
	if len(s.Keys) == 0 {
		return errors.New("aggregate: no group keys")
	}
	if len(s.Stats) == 0 {
		return errors.New("aggregate: no statistics")
	}
	for _, st := range s.Stats {
		if st.Name == "" {
			return errors.New("aggregate: statistic without a name")
		}
		if st.Kind != KindCount && st.Column == "" {
			return fmt.Errorf("aggregate: %s %q needs a column", st.Kind, st.Name)
		}
	}
	return nil
}

// Header returns key column names followed by statistic names.
func (s Spec) Header() []string {
	out := make([]string, 0, len(s.Keys)+len(s.Stats))
	for _, k := range s.Keys {
		out = append(out, string(k))
	}
	for _, st := range s.Stats {
		out = append(out, st.Name)
	}
	return out
}

// accumulator holds running totals for one group.
type accumulator struct {
	key     []domain.Value
	rows    int
	sums    []float64
	present []int // non-null values seen per stat, for means
}

// Group reduces recs by exact equality of the key tuple. Records with a null
// key are excluded. Buckets come back sorted by key, so identical input gives
// identical output order, and every bucket summarizes at least one record.
func Group(recs []domain.DerivedRecord, spec Spec) ([]domain.Bucket, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	groups := make(map[string]*accumulator)
	var buf []byte
	key := make([]domain.Value, len(spec.Keys))

	for i := range recs {
		rec := &recs[i]
		if !keyOf(rec, spec.Keys, key) {
			continue
		}

		// Parts are quoted so no value can run into the next one.
		buf = buf[:0]
		for _, v := range key {
			buf = strconv.AppendQuote(buf, v.String())
		}

		acc, ok := groups[string(buf)]
		if !ok {
			acc = &accumulator{
				key:     slices.Clone(key),
				sums:    make([]float64, len(spec.Stats)),
				present: make([]int, len(spec.Stats)),
			}
			groups[string(buf)] = acc
		}

		acc.rows++
		for j, st := range spec.Stats {
			if st.Column == "" {
				continue
			}
			v, ok := rec.Value(st.Column)
			if !ok || (st.Kind != KindCount && !v.Numeric()) {
				continue
			}
			acc.sums[j] += v.Num
			acc.present[j]++
		}
	}

	buckets := make([]domain.Bucket, 0, len(groups))
	for _, acc := range groups {
		buckets = append(buckets, acc.bucket(spec.Stats))
	}
	slices.SortFunc(buckets, func(a, b domain.Bucket) int {
		return compareKeys(a.Key, b.Key)
	})
	return buckets, nil
}

func keyOf(rec *domain.DerivedRecord, cols []domain.Column, dst []domain.Value) bool {
	for i, c := range cols {
		v, ok := rec.Value(c)
		if !ok {
			return false
		}
		dst[i] = v
	}
	return true
}

func (a *accumulator) bucket(stats []Stat) domain.Bucket {
	out := domain.Bucket{Key: a.key, Stats: make([]domain.Value, len(stats))}
	for i, st := range stats {
		switch st.Kind {
		case KindCount:
			n := a.rows
			if st.Column != "" {
				n = a.present[i]
			}
			out.Stats[i] = domain.Number(float64(n))
		case KindSum:
			out.Stats[i] = domain.Number(a.sums[i])
		case KindMean:
			if a.present[i] == 0 {
				out.Stats[i] = domain.Number(math.NaN())
				continue
			}
			out.Stats[i] = domain.Number(a.sums[i] / float64(a.present[i]))
		}
	}
	return out
}

func compareKeys(a, b []domain.Value) int {
	for i := range a {
		if c := domain.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Table renders buckets as string rows under header.
func Table(header []string, buckets []domain.Bucket) *domain.Table {
	t := &domain.Table{Columns: header, Rows: make([][]string, len(buckets))}
	for i, b := range buckets {
		row := make([]string, 0, len(b.Key)+len(b.Stats))
		for _, v := range b.Key {
			row = append(row, v.String())
		}
		for _, v := range b.Stats {
			row = append(row, v.String())
		}
		t.Rows[i] = row
	}
	return t
}
