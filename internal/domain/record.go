package domain

import "time"

// Column names a raw or derived field. Raw names match the source CSV header.
type Column string

const (
	ColID               Column = "ID"
	ColStartTime        Column = "Start_Time"
	ColState            Column = "State"
	ColSeverity         Column = "Severity"
	ColTemperatureF     Column = "Temperature(F)"
	ColHumidity         Column = "Humidity(%)"
	ColWeatherCondition Column = "Weather_Condition"
	ColSource           Column = "Source"
	ColStartLat         Column = "Start_Lat"
	ColStartLng         Column = "Start_Lng"

	ColYear         Column = "year"
	ColYearMonth    Column = "year_month"
	ColDayOfWeek    Column = "day_of_week"
	ColHourOfDay    Column = "hour_of_day"
	ColTemperatureC Column = "Temperature(C)"
	ColIsRain       Column = "is_Rain"
	ColIsSnow       Column = "is_Snow"
	ColIsFog        Column = "is_Fog"
	ColIsClear      Column = "is_Clear"
	ColIsCloud      Column = "is_Cloud"
	ColHighSeverity Column = "HighSeverity"
)

var rawColumns = []Column{
	ColID, ColStartTime, ColState, ColSeverity, ColTemperatureF,
	ColHumidity, ColWeatherCondition, ColSource, ColStartLat, ColStartLng,
}

// IsRaw reports whether c is read from the source rather than derived.
func (c Column) IsRaw() bool {
	for _, r := range rawColumns {
		if r == c {
			return true
		}
	}
	return false
}

// Known reports whether c is any column this package understands.
func (c Column) Known() bool {
	return c.IsRaw() || c.Feature() != 0
}

// Feature returns the feature that must be enabled for derived column c to be
// present. Raw columns return 0.
func (c Column) Feature() FeatureSet {
	switch c {
	case ColYear, ColYearMonth, ColDayOfWeek, ColHourOfDay:
		return FeatureTime
	case ColTemperatureC:
		return FeatureCelsius
	case ColIsRain, ColIsSnow, ColIsFog, ColIsClear, ColIsCloud:
		return FeatureWeather
	case ColHighSeverity:
		return FeatureHighSeverity
	default:
		return 0
	}
}

// FieldSet tracks which raw columns hold a non-null value.
type FieldSet uint16

func fieldBit(c Column) FieldSet {
	for i, r := range rawColumns {
		if r == c {
			return 1 << i
		}
	}
	return 0
}

// Set marks c as present.
func (s *FieldSet) Set(c Column) { *s |= fieldBit(c) }

// Has reports whether c is present.
func (s FieldSet) Has(c Column) bool {
	b := fieldBit(c)
	return b != 0 && s&b != 0
}

// RawRecord is one decoded input row. Fields not in Present are null.
type RawRecord struct {
	ID               string
	StartTime        string
	State            string
	Severity         int
	TemperatureF     float64
	Humidity         float64
	WeatherCondition string
	Source           string
	StartLat         float64
	StartLng         float64

	Present FieldSet
}

// Has reports whether column c was non-null in the source row.
func (r *RawRecord) Has(c Column) bool { return r.Present.Has(c) }

// WeatherFlags are the five weather categories. They are independent: a
// condition may set several flags or none.
type WeatherFlags struct {
	Rain  bool
	Snow  bool
	Fog   bool
	Clear bool
	Cloud bool
}

// DerivedRecord is a RawRecord plus the features computed by Derive.
type DerivedRecord struct {
	RawRecord

	Time         time.Time
	Year         int
	YearMonth    string
	DayOfWeek    int
	HourOfDay    int
	TemperatureC float64
	Weather      WeatherFlags
	HighSeverity bool

	Features FeatureSet
}

// Value returns the typed value of column c, or false when it is null or was
// not derived for this record.
func (r *DerivedRecord) Value(c Column) (Value, bool) {
	if c.IsRaw() {
		if !r.Has(c) {
			return Value{}, false
		}
		return r.rawValue(c), true
	}
	if f := c.Feature(); f == 0 || !r.Features.Has(f) {
		return Value{}, false
	}
	return r.derivedValue(c), true
}

func (r *DerivedRecord) rawValue(c Column) Value {
	switch c {
	case ColID:
		return Text(r.ID)
	case ColStartTime:
		return Text(r.StartTime)
	case ColState:
		return Text(r.State)
	case ColSeverity:
		return Number(float64(r.Severity))
	case ColTemperatureF:
		return Number(r.TemperatureF)
	case ColHumidity:
		return Number(r.Humidity)
	case ColWeatherCondition:
		return Text(r.WeatherCondition)
	case ColSource:
		return Text(r.Source)
	case ColStartLat:
		return Number(r.StartLat)
	default:
		return Number(r.StartLng)
	}
}

func (r *DerivedRecord) derivedValue(c Column) Value {
	switch c {
	case ColYear:
		return Number(float64(r.Year))
	case ColYearMonth:
		return Text(r.YearMonth)
	case ColDayOfWeek:
		return Number(float64(r.DayOfWeek))
	case ColHourOfDay:
		return Number(float64(r.HourOfDay))
	case ColTemperatureC:
		return Number(r.TemperatureC)
	case ColIsRain:
		return Bool(r.Weather.Rain)
	case ColIsSnow:
		return Bool(r.Weather.Snow)
	case ColIsFog:
		return Bool(r.Weather.Fog)
	case ColIsClear:
		return Bool(r.Weather.Clear)
	case ColIsCloud:
		return Bool(r.Weather.Cloud)
	default:
		// HighSeverity is exported as 0/1, not True/False.
		if r.HighSeverity {
			return Number(1)
		}
		return Number(0)
	}
}

// Table is an in-memory delimited table: a header and string rows.
type Table struct {
	Columns []string
	Rows    [][]string

	// Skipped counts source lines that could not be read.
	Skipped int
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Bucket is one row of an aggregated table: a unique key tuple and its
// statistics, both in the order configured for the output.
type Bucket struct {
	Key   []Value
	Stats []Value
}

// OutputInfo describes one exported table.
type OutputInfo struct {
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Checksum string `json:"xxh3"`
}
