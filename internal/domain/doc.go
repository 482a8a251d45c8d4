// Package domain models US traffic-accident records and the features derived
// from them for the dashboard summary tables.
//
// # Data Source
//
// Records come from the "US Accidents" country-wide CSV export (one row per
// accident, roughly 7.7M rows and 46 columns for the March 2023 release).
// Only a handful of columns are ever read; see the Col* constants.
//
// # Data Conventions
//
// Timestamps:
//
//	"2016-02-08 05:46:00"            local wall time, no zone
//	"2016-02-08 05:46:00.000000000"  same, with a nanosecond fraction
//	"2016-02-08T05:46:00-05:00"      ISO 8601 with an offset (newer exports)
//
// Calendar fields are read in whatever zone the value carries. Naive values
// are treated as wall-clock time and are never converted.
//
// Severity:
//
//	Ordinal 1-4, 1 = least impact on traffic, 4 = most. Some exports write it
//	as a float ("3.0"); integral floats are accepted.
//
// Weather:
//
//	Temperature(F) in Fahrenheit, Humidity(%) in percent, Weather_Condition is
//	free text from the nearest airport station ("Light Rain", "Mostly Cloudy",
//	"Heavy T-Storm / Windy"). Any of them may be empty.
//
// Source:
//
//	Provenance tag of the upstream API ("Source1", "Source2", "Source3").
//	Weather fields are most consistently populated for Source2.
//
// # Derived Features
//
// Derived columns are computed once per record by [Derive] and never mutated:
//
//	year, year_month ("YYYY-MM"), day_of_week (0=Monday..6=Sunday),
//	hour_of_day (0-23), Temperature(C) = (F-32)*5/9,
//	is_Rain, is_Snow, is_Fog, is_Clear, is_Cloud (independent, may overlap),
//	HighSeverity (severity >= a per-pipeline threshold).
package domain
