package pipeline

import (
	"errors"
	"fmt"

	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/filter"
)

// deriveStep names the row drops caused by unusable timestamps.
const deriveStep = "derive"

// decode turns projected rows into records. Cells that fail to parse are
// nulled and tallied per column.
func decode(header []string, rows [][]string, report *Report) ([]domain.DerivedRecord, error) {
	dec, err := domain.NewDecoder(header)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.DerivedRecord, len(rows))
	for i, row := range rows {
		rec, bad := dec.Decode(row)
		for _, c := range bad {
			report.unparseable(c)
		}
		recs[i].RawRecord = rec
	}
	return recs, nil
}

// derive computes features in place. Records whose timestamp is missing or
// unparseable are dropped; a present but unparseable one is also tallied.
func derive(recs []domain.DerivedRecord, def Definition, report *Report) ([]domain.DerivedRecord, filter.Step, error) {
	out := recs[:0]
	dropped := 0
	for i := range recs {
		d, err := domain.Derive(recs[i].RawRecord, def.Features, def.Options)
		if errors.Is(err, domain.ErrUnparseableValue) {
			if recs[i].Has(domain.ColStartTime) {
				report.unparseable(domain.ColStartTime)
			}
			dropped++
			continue
		}
		if err != nil {
			return nil, filter.Step{}, fmt.Errorf("derive features: %w", err)
		}
		out = append(out, d)
	}
	return out, filter.Step{Name: deriveStep, Removed: dropped}, nil
}
