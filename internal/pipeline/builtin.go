package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/alvdef/infoViz-8/internal/aggregate"
	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/filter"
	"github.com/alvdef/infoViz-8/internal/weather"
)

// Built-in pipeline names.
const (
	StateMonthName      = "statemonth"
	TemporalName        = "temporal"
	WeatherSeverityName = "weatherseverity"
	WeatherBubbleName   = "weatherbubble"
	DashboardName       = "dashboard"
)

// Output file names of the built-in pipelines.
const (
	StateMonthFile        = "us_accidents_state_month.csv"
	TemporalFile          = "us_temporal_patterns_state.csv"
	SeverityCountsFile    = "us_state_severity_counts.csv"
	SeverityByWeatherFile = "us_severity_by_weather_state.csv"
	WeatherBubbleFile     = "us_weather_bubble_sample.csv"
	DashboardFile         = "data.csv"
)

// TopConditions is how many weather conditions the severity-by-weather table
// keeps.
const TopConditions = 5

// Params are the run-time knobs of the built-in definitions.
type Params struct {
	// SourceTag is the data-source tag kept when FilterSource is set.
	SourceTag    string
	FilterSource bool

	// SampleSize caps pre-sampling (statemonth) or the exported sample.
	// Zero means no cap.
	SampleSize int
	Seed       uint64

	HighSeverityThreshold int

	// Since is the exclusive lower bound on Start_Time for the bubble sample.
	Since time.Time

	// ClassifierCacheSize bounds the weather classification memo. Zero
	// disables it.
	ClassifierCacheSize int
}

const defaultSourceTag = "Source2"

var defaultSince = time.Date(2019, time.March, 10, 0, 0, 0, 0, time.UTC)

type builtin struct {
	defaults Params
	build    func(Params) Definition
}

var builtins = map[string]builtin{
	StateMonthName: {
		defaults: Params{SampleSize: 10_000_000, Seed: 42},
		build:    StateMonth,
	},
	TemporalName: {
		defaults: Params{SourceTag: defaultSourceTag, FilterSource: true, Seed: 42, HighSeverityThreshold: 3},
		build:    Temporal,
	},
	WeatherSeverityName: {
		defaults: Params{SourceTag: defaultSourceTag, FilterSource: true, Seed: 42},
		build:    WeatherSeverity,
	},
	WeatherBubbleName: {
		defaults: Params{
			SourceTag: defaultSourceTag, FilterSource: true, SampleSize: 200_000, Seed: 42,
			HighSeverityThreshold: 4, Since: defaultSince, ClassifierCacheSize: 256,
		},
		build: WeatherBubble,
	},
	DashboardName: {
		defaults: Params{
			SourceTag: defaultSourceTag, FilterSource: true, SampleSize: 1_000, Seed: 42,
			HighSeverityThreshold: 3, ClassifierCacheSize: 256,
		},
		build: Dashboard,
	},
}

// Names lists the built-in pipelines in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Defaults returns the default parameters of a built-in pipeline.
func Defaults(name string) (Params, error) {
	b, ok := builtins[name]
	if !ok {
		return Params{}, fmt.Errorf("unknown pipeline %q", name)
	}
	return b.defaults, nil
}

// Builtin builds and validates the named definition.
func Builtin(name string, p Params) (Definition, error) {
	b, ok := builtins[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown pipeline %q", name)
	}
	def := b.build(p)
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func sourceFilter(p Params) filter.Chain {
	if !p.FilterSource {
		return nil
	}
	return filter.Chain{filter.Equal(domain.ColSource, p.SourceTag)}
}

func classifier(kw weather.Keywords, cacheSize int) domain.WeatherClassifier {
	c := weather.NewClassifier(kw)
	if cacheSize <= 0 {
		return c
	}
	return weather.NewCachedClassifier(c, cacheSize)
}

// StateMonth counts accidents and averages severity per state and calendar
// month over a uniform pre-sample of the source.
func StateMonth(p Params) Definition {
	return Definition{
		Name:       StateMonthName,
		Columns:    []domain.Column{domain.ColID, domain.ColStartTime, domain.ColState, domain.ColSeverity},
		PreSample:  p.SampleSize,
		Seed:       p.Seed,
		RawFilters: filter.Chain{filter.NotNull(domain.ColState)},
		Features:   domain.FeatureTime,
		Outputs: []Output{{
			File: StateMonthFile,
			Aggregate: &aggregate.Spec{
				Keys: []domain.Column{domain.ColState, domain.ColYearMonth, domain.ColYear},
				Stats: []aggregate.Stat{
					aggregate.CountOf("count_accidents", domain.ColID),
					aggregate.Mean("avg_severity", domain.ColSeverity),
				},
			},
			Header: []string{"state", "year_month", "year", "count_accidents", "avg_severity"},
		}},
	}
}

// Temporal counts accidents per state, weekday and hour, and per state and
// severity.
func Temporal(p Params) Definition {
	raw := append(sourceFilter(p), filter.NotNull(domain.ColState, domain.ColSeverity, domain.ColStartTime))

	return Definition{
		Name:       TemporalName,
		Columns:    []domain.Column{domain.ColState, domain.ColSeverity, domain.ColStartTime, domain.ColSource},
		Seed:       p.Seed,
		RawFilters: raw,
		Features:   domain.FeatureTime | domain.FeatureHighSeverity,
		Options:    domain.DeriveOptions{HighSeverityThreshold: p.HighSeverityThreshold},
		Outputs: []Output{
			{
				File: TemporalFile,
				Aggregate: &aggregate.Spec{
					Keys: []domain.Column{domain.ColState, domain.ColDayOfWeek, domain.ColHourOfDay},
					Stats: []aggregate.Stat{
						aggregate.CountOf("total_accidents", domain.ColSeverity),
						aggregate.Sum("high_severity_accidents", domain.ColHighSeverity),
					},
				},
			},
			{
				File: SeverityCountsFile,
				Aggregate: &aggregate.Spec{
					Keys:  []domain.Column{domain.ColState, domain.ColSeverity},
					Stats: []aggregate.Stat{aggregate.Count("Count")},
				},
			},
		},
	}
}

// WeatherSeverity counts accidents per state, weather condition and severity
// for the most frequent conditions.
func WeatherSeverity(p Params) Definition {
	raw := append(sourceFilter(p),
		filter.NotNull(domain.ColState, domain.ColSeverity, domain.ColWeatherCondition),
		filter.Range(domain.ColSeverity, 1, 4),
		filter.TopK(domain.ColWeatherCondition, TopConditions),
	)

	return Definition{
		Name:       WeatherSeverityName,
		Columns:    []domain.Column{domain.ColState, domain.ColSeverity, domain.ColWeatherCondition, domain.ColSource},
		Seed:       p.Seed,
		RawFilters: raw,
		Outputs: []Output{{
			File: SeverityByWeatherFile,
			Aggregate: &aggregate.Spec{
				Keys:  []domain.Column{domain.ColState, domain.ColWeatherCondition, domain.ColSeverity},
				Stats: []aggregate.Stat{aggregate.Count("Count")},
			},
		}},
	}
}

var weatherFlagColumns = []domain.Column{
	domain.ColIsRain, domain.ColIsSnow, domain.ColIsFog, domain.ColIsClear, domain.ColIsCloud,
}

// WeatherBubble samples recent accidents with temperature, humidity and
// weather category flags.
func WeatherBubble(p Params) Definition {
	raw := append(sourceFilter(p), filter.NotNull(
		domain.ColState, domain.ColSeverity, domain.ColTemperatureF,
		domain.ColHumidity, domain.ColWeatherCondition, domain.ColStartTime,
	))

	cols := []domain.Column{
		domain.ColState, domain.ColSeverity, domain.ColHumidity,
		domain.ColTemperatureC, domain.ColWeatherCondition,
	}
	cols = append(cols, weatherFlagColumns...)
	cols = append(cols, domain.ColHighSeverity)

	return Definition{
		Name: WeatherBubbleName,
		Columns: []domain.Column{
			domain.ColSource, domain.ColState, domain.ColSeverity, domain.ColTemperatureF,
			domain.ColHumidity, domain.ColWeatherCondition, domain.ColStartTime,
		},
		Seed:       p.Seed,
		RawFilters: raw,
		Features:   domain.FeatureTime | domain.FeatureCelsius | domain.FeatureWeather | domain.FeatureHighSeverity,
		Options: domain.DeriveOptions{
			HighSeverityThreshold: p.HighSeverityThreshold,
			Classifier:            classifier(weather.BasicKeywords, p.ClassifierCacheSize),
		},
		DerivedFilters: filter.Chain{
			filter.After(p.Since),
			filter.Range(domain.ColHumidity, 0, 100),
			filter.Range(domain.ColTemperatureC, -35, 45),
		},
		Outputs: []Output{{File: WeatherBubbleFile, Columns: cols, Sample: p.SampleSize}},
	}
}

// Dashboard samples accidents with weather flags, time of week and
// coordinates for the consolidated dashboard view.
func Dashboard(p Params) Definition {
	raw := append(sourceFilter(p), filter.NotNull(
		domain.ColHumidity, domain.ColTemperatureF, domain.ColSeverity, domain.ColWeatherCondition,
		domain.ColStartTime, domain.ColState, domain.ColStartLat, domain.ColStartLng,
	))

	cols := []domain.Column{
		domain.ColState, domain.ColSeverity, domain.ColHumidity,
		domain.ColTemperatureC, domain.ColWeatherCondition,
	}
	cols = append(cols, weatherFlagColumns...)
	cols = append(cols,
		domain.ColHighSeverity, domain.ColDayOfWeek, domain.ColHourOfDay,
		domain.ColStartLat, domain.ColStartLng,
	)

	return Definition{
		Name: DashboardName,
		Columns: []domain.Column{
			domain.ColSource, domain.ColSeverity, domain.ColState, domain.ColTemperatureF,
			domain.ColHumidity, domain.ColWeatherCondition, domain.ColStartTime,
			domain.ColStartLat, domain.ColStartLng,
		},
		Seed:       p.Seed,
		RawFilters: raw,
		Features:   domain.FeatureCelsius | domain.FeatureWeather | domain.FeatureTime | domain.FeatureHighSeverity,
		Options: domain.DeriveOptions{
			HighSeverityThreshold: p.HighSeverityThreshold,
			Classifier:            classifier(weather.ExtendedKeywords, p.ClassifierCacheSize),
		},
		DerivedFilters: filter.Chain{
			filter.Range(domain.ColHumidity, 0, 100),
			filter.OpenRange(domain.ColTemperatureC, -35, 45),
			filter.Range(domain.ColStartLat, 18, 72),
			filter.Range(domain.ColStartLng, -180, -50),
		},
		Outputs: []Output{{File: DashboardFile, Columns: cols, Sample: p.SampleSize}},
	}
}
