// Package filter applies ordered row predicates to accident records and
// reports how many rows each predicate removed.
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alvdef/infoViz-8/internal/domain"
)

// Predicate decides whether a record survives.
type Predicate interface {
	// Name identifies the predicate in run reports.
	Name() string
	// Keep reports whether rec passes.
	Keep(rec *domain.DerivedRecord) bool
	// Columns lists the columns the predicate reads.
	Columns() []domain.Column
}

// Preparer is implemented by predicates that must see the records reaching
// them before filtering, such as a top-K whitelist.
type Preparer interface {
	Prepare(recs []domain.DerivedRecord)
}

// Step records the effect of one predicate.
type Step struct {
	Name    string `json:"name"`
	Removed int    `json:"removed"`
}

// Chain is an ordered predicate list.
type Chain []Predicate

// Apply runs every predicate in order and returns the survivors with one Step
// per predicate. recs is never modified: the first predicate copies the
// records it keeps and later ones compact that copy. An empty chain returns
// recs as is.
func (c Chain) Apply(recs []domain.DerivedRecord) ([]domain.DerivedRecord, []Step) {
	steps := make([]Step, 0, len(c))
	owned := false
	for _, p := range c {
		if prep, ok := p.(Preparer); ok {
			prep.Prepare(recs)
		}
		before := len(recs)
		if owned {
			recs = slices.DeleteFunc(recs, func(r domain.DerivedRecord) bool {
				return !p.Keep(&r)
			})
		} else {
			kept := make([]domain.DerivedRecord, 0, len(recs))
			for i := range recs {
				if p.Keep(&recs[i]) {
					kept = append(kept, recs[i])
				}
			}
			recs, owned = kept, true
		}
		steps = append(steps, Step{Name: p.Name(), Removed: before - len(recs)})
	}
	return recs, steps
}

// Columns returns every column the chain reads, in first-use order.
func (c Chain) Columns() []domain.Column {
	var out []domain.Column
	for _, p := range c {
		for _, col := range p.Columns() {
			if !slices.Contains(out, col) {
				out = append(out, col)
			}
		}
	}
	return out
}

// Equal keeps records whose text column equals value exactly.
func Equal(col domain.Column, value string) Predicate {
	return equal{col: col, value: value}
}

type equal struct {
	col   domain.Column
	value string
}

func (p equal) Name() string { return fmt.Sprintf("%s == %s", p.col, p.value) }

func (p equal) Columns() []domain.Column { return []domain.Column{p.col} }

func (p equal) Keep(rec *domain.DerivedRecord) bool {
	v, ok := rec.Value(p.col)
	return ok && v.String() == p.value
}

// NotNull drops records where any listed column is null or failed to parse.
func NotNull(cols ...domain.Column) Predicate {
	return notNull{cols: cols}
}

type notNull struct {
	cols []domain.Column
}

func (p notNull) Name() string {
	names := make([]string, len(p.cols))
	for i, c := range p.cols {
		names[i] = string(c)
	}
	return "not null(" + strings.Join(names, ", ") + ")"
}

func (p notNull) Columns() []domain.Column { return p.cols }

func (p notNull) Keep(rec *domain.DerivedRecord) bool {
	for _, c := range p.cols {
		if _, ok := rec.Value(c); !ok {
			return false
		}
	}
	return true
}

// Range keeps records whose numeric column lies in [lo, hi].
func Range(col domain.Column, lo, hi float64) Predicate {
	return numRange{col: col, lo: lo, hi: hi}
}

// OpenRange keeps records whose numeric column lies in (lo, hi).
func OpenRange(col domain.Column, lo, hi float64) Predicate {
	return numRange{col: col, lo: lo, hi: hi, open: true}
}

type numRange struct {
	col    domain.Column
	lo, hi float64
	open   bool
}

func (p numRange) Name() string {
	if p.open {
		return fmt.Sprintf("%s in (%g, %g)", p.col, p.lo, p.hi)
	}
	return fmt.Sprintf("%s in [%g, %g]", p.col, p.lo, p.hi)
}

func (p numRange) Columns() []domain.Column { return []domain.Column{p.col} }

func (p numRange) Keep(rec *domain.DerivedRecord) bool {
	v, ok := rec.Value(p.col)
	if !ok || !v.Numeric() {
		return false
	}
	if p.open {
		return v.Num > p.lo && v.Num < p.hi
	}
	return v.Num >= p.lo && v.Num <= p.hi
}

// After keeps records whose parsed Start_Time is strictly later than cutoff,
// comparing wall-clock time.
func After(cutoff time.Time) Predicate {
	return after{cutoff: domain.WallClock(cutoff)}
}

type after struct {
	cutoff time.Time
}

func (p after) Name() string {
	return fmt.Sprintf("%s > %s", domain.ColStartTime, p.cutoff.Format(time.DateTime))
}

// Columns reports year because the parsed instant is a time feature.
func (p after) Columns() []domain.Column { return []domain.Column{domain.ColYear} }

func (p after) Keep(rec *domain.DerivedRecord) bool {
	if !rec.Features.Has(domain.FeatureTime) {
		return false
	}
	return domain.WallClock(rec.Time).After(p.cutoff)
}

// TopK keeps records whose column holds one of the k most frequent values
// among the records reaching it. Ties rank by value ascending.
func TopK(col domain.Column, k int) *TopKPredicate {
	return &TopKPredicate{col: col, k: k}
}

// TopKPredicate is the stateful predicate returned by TopK. Its whitelist is
// rebuilt by every Prepare call.
type TopKPredicate struct {
	col  domain.Column
	k    int
	keep map[string]struct{}
	kept []string
}

func (p *TopKPredicate) Name() string { return fmt.Sprintf("%s in top %d", p.col, p.k) }

func (p *TopKPredicate) Columns() []domain.Column { return []domain.Column{p.col} }

// Kept returns the whitelist chosen by the last Prepare, most frequent first.
func (p *TopKPredicate) Kept() []string { return p.kept }

func (p *TopKPredicate) Prepare(recs []domain.DerivedRecord) {
	counts := make(map[string]int)
	for i := range recs {
		if v, ok := recs[i].Value(p.col); ok {
			counts[v.String()]++
		}
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	slices.SortFunc(values, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	if len(values) > p.k {
		values = values[:max(p.k, 0)]
	}

	p.kept = values
	p.keep = make(map[string]struct{}, len(values))
	for _, v := range values {
		p.keep[v] = struct{}{}
	}
}

func (p *TopKPredicate) Keep(rec *domain.DerivedRecord) bool {
	v, ok := rec.Value(p.col)
	if !ok {
		return false
	}
	_, keep := p.keep[v.String()]
	return keep
}
