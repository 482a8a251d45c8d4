package domain

import (
	"fmt"
	"strings"
	"time"
)

// FeatureSet selects which derived columns Derive computes.
type FeatureSet uint8

const (
	// FeatureTime parses Start_Time and fills year, year_month, day_of_week
	// and hour_of_day.
	FeatureTime FeatureSet = 1 << iota
	// FeatureCelsius converts Temperature(F) to Temperature(C).
	FeatureCelsius
	// FeatureWeather classifies Weather_Condition into the five category flags.
	FeatureWeather
	// FeatureHighSeverity compares Severity against the configured threshold.
	FeatureHighSeverity
)

// Has reports whether every feature in f is enabled.
func (s FeatureSet) Has(f FeatureSet) bool { return s&f == f }

// WeatherClassifier maps a free-text weather condition to category flags.
type WeatherClassifier interface {
	Classify(condition string) WeatherFlags
}

// DeriveOptions carries the per-pipeline parameters of derivation.
type DeriveOptions struct {
	// HighSeverityThreshold is the lowest severity counted as high.
	HighSeverityThreshold int

	// Classifier is required when FeatureWeather is requested.
	Classifier WeatherClassifier
}

// timestampLayouts are tried in order. A fractional second is accepted after
// the seconds field even when a layout does not spell it out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a source timestamp. Values without an offset are kept
// as wall-clock time in UTC so their calendar fields are unchanged; values
// with an offset keep it.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrUnparseableValue)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrUnparseableValue, s)
}

// Celsius converts Fahrenheit to Celsius as (F-32)*5/9.
func Celsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// YearMonth formats the calendar month bucket of t as YYYY-MM.
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// DayOfWeek returns the ISO-style weekday of t with Monday = 0 and Sunday = 6.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsHighSeverity reports whether severity meets the threshold.
func IsHighSeverity(severity, threshold int) bool {
	return severity >= threshold
}

// WallClock returns t's calendar fields reinterpreted in UTC, so instants from
// different offsets compare by local time of day.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Derive computes the requested features for rec. It fails with
// ErrUnparseableValue when FeatureTime is requested and Start_Time is null or
// cannot be parsed; the caller drops the row and counts it. Other features
// whose input column is null are left unset.
func Derive(rec RawRecord, features FeatureSet, opts DeriveOptions) (DerivedRecord, error) {
	out := DerivedRecord{RawRecord: rec}

	if features.Has(FeatureTime) {
		if !rec.Has(ColStartTime) {
			return DerivedRecord{}, fmt.Errorf("%w: missing %s", ErrUnparseableValue, ColStartTime)
		}
		t, err := ParseTimestamp(rec.StartTime)
		if err != nil {
			return DerivedRecord{}, err
		}
		out.Time = t
		out.Year = t.Year()
		out.YearMonth = YearMonth(t)
		out.DayOfWeek = DayOfWeek(t)
		out.HourOfDay = t.Hour()
		out.Features |= FeatureTime
	}

	if features.Has(FeatureCelsius) && rec.Has(ColTemperatureF) {
		out.TemperatureC = Celsius(rec.TemperatureF)
		out.Features |= FeatureCelsius
	}

	if features.Has(FeatureWeather) && rec.Has(ColWeatherCondition) {
		if opts.Classifier == nil {
			return DerivedRecord{}, fmt.Errorf("derive weather flags: no classifier configured")
		}
		out.Weather = opts.Classifier.Classify(rec.WeatherCondition)
		out.Features |= FeatureWeather
	}

	if features.Has(FeatureHighSeverity) && rec.Has(ColSeverity) {
		out.HighSeverity = IsHighSeverity(rec.Severity, opts.HighSeverityThreshold)
		out.Features |= FeatureHighSeverity
	}

	return out, nil
}
