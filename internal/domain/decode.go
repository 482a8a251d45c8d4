package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// nullMarkers are cell contents treated as missing, matching the markers
// common CSV tooling writes for absent values.
var nullMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNull reports whether a raw cell represents a missing value.
func IsNull(cell string) bool {
	_, ok := nullMarkers[strings.TrimSpace(cell)]
	return ok
}

// Decoder turns projected table rows into RawRecords.
type Decoder struct {
	columns []Column
}

// NewDecoder binds a decoder to a table header. Every header name must be a
// known raw column.
func NewDecoder(header []string) (*Decoder, error) {
	cols := make([]Column, len(header))
	for i, h := range header {
		c := Column(h)
		if !c.IsRaw() {
			return nil, fmt.Errorf("decode: column %q is not a raw column", h)
		}
		cols[i] = c
	}
	return &Decoder{columns: cols}, nil
}

// Decode fills a RawRecord from one row. Null cells stay absent. Cells that
// are present but cannot be parsed for their column type are also left absent
// and returned in bad so the caller can tally them.
func (d *Decoder) Decode(row []string) (rec RawRecord, bad []Column) {
	for i, c := range d.columns {
		if i >= len(row) || IsNull(row[i]) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if err := rec.set(c, cell); err != nil {
			bad = append(bad, c)
			continue
		}
		rec.Present.Set(c)
	}
	return rec, bad
}

func (r *RawRecord) set(c Column, cell string) error {
	switch c {
	case ColID:
		r.ID = cell
	case ColStartTime:
		r.StartTime = cell
	case ColState:
		r.State = cell
	case ColWeatherCondition:
		r.WeatherCondition = cell
	case ColSource:
		r.Source = cell
	case ColSeverity:
		n, err := parseSeverity(cell)
		if err != nil {
			return err
		}
		r.Severity = n
	default:
		f, err := parseNumber(cell)
		if err != nil {
			return err
		}
		switch c {
		case ColTemperatureF:
			r.TemperatureF = f
		case ColHumidity:
			r.Humidity = f
		case ColStartLat:
			r.StartLat = f
		case ColStartLng:
			r.StartLng = f
		}
	}
	return nil
}

func parseNumber(cell string) (float64, error) {
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: number %q", ErrUnparseableValue, cell)
	}
	return f, nil
}

// parseSeverity accepts integers and integral floats such as "3.0".
func parseSeverity(cell string) (int, error) {
	if n, err := strconv.Atoi(cell); err == nil {
		return n, nil
	}
	f, err := parseNumber(cell)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: severity %q", ErrUnparseableValue, cell)
	}
	return int(f), nil
}
