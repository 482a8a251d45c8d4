package pipeline

import (
	"slices"
	"time"

	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/filter"
)

// Report describes one run. It is also written as the run manifest.
type Report struct {
	Pipeline  string    `json:"pipeline"`
	Input     string    `json:"input"`
	StartedAt time.Time `json:"started_at"`

	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"duration_seconds"`

	Loaded     int `json:"rows_loaded"`
	Skipped    int `json:"lines_skipped"`
	PreSampled int `json:"rows_presampled,omitempty"`

	Steps       []filter.Step         `json:"steps"`
	Unparseable map[domain.Column]int `json:"unparseable,omitempty"`
	Kept        int                   `json:"rows_kept"`

	Outputs []domain.OutputInfo `json:"outputs"`
	Summary Summary             `json:"summary"`
}

// Summary holds facts about the records that reached the outputs.
type Summary struct {
	// From and To bound Start_Time when it was parsed.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	States int `json:"states"`

	// Conditions are the weather conditions kept by a top-K filter.
	Conditions []string `json:"conditions,omitempty"`
}

// Removed returns the rows dropped by the named step, or 0.
func (r *Report) Removed(step string) int {
	for _, s := range r.Steps {
		if s.Name == step {
			return s.Removed
		}
	}
	return 0
}

func (r *Report) unparseable(c domain.Column) {
	if r.Unparseable == nil {
		r.Unparseable = make(map[domain.Column]int)
	}
	r.Unparseable[c]++
}

const summaryTimeLayout = "2006-01-02 15:04:05"

type keptLister interface {
	Kept() []string
}

func summarize(def Definition, recs []domain.DerivedRecord) Summary {
	var s Summary

	states := make(map[string]struct{})
	var from, to time.Time
	for i := range recs {
		r := &recs[i]
		if r.Has(domain.ColState) {
			states[r.State] = struct{}{}
		}
		if !r.Features.Has(domain.FeatureTime) {
			continue
		}
		if from.IsZero() || r.Time.Before(from) {
			from = r.Time
		}
		if to.IsZero() || r.Time.After(to) {
			to = r.Time
		}
	}
	s.States = len(states)
	if !from.IsZero() {
		s.From = from.Format(summaryTimeLayout)
		s.To = to.Format(summaryTimeLayout)
	}

	for _, p := range slices.Concat(def.RawFilters, def.DerivedFilters) {
		if k, ok := p.(keptLister); ok {
			s.Conditions = append(s.Conditions, k.Kept()...)
		}
	}
	return s
}
