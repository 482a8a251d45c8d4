package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvadapter "github.com/alvdef/infoViz-8/internal/adapter/csv"
	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/observability"
	"github.com/alvdef/infoViz-8/internal/pipeline"
)

func build(t *testing.T, name string, tweak func(*pipeline.Params)) pipeline.Definition {
	t.Helper()
	params, err := pipeline.Defaults(name)
	require.NoError(t, err)
	if tweak != nil {
		tweak(&params)
	}
	def, err := pipeline.Builtin(name, params)
	require.NoError(t, err)
	return def
}

func runPipeline(t *testing.T, def pipeline.Definition, input, outDir string) (pipeline.Report, error) {
	t.Helper()
	p := pipeline.New(def,
		csvadapter.NewLoader(discardLogger()),
		csvadapter.NewWriter(outDir),
		discardLogger(),
		observability.NewMetrics(),
	)
	return p.Run(context.Background(), input)
}

func TestStateMonth_AggregatesPerStateAndMonth(t *testing.T) {
	input := writeRaw(t,
		accident{ID: "A-1", Source: "Source2", Severity: "2", Start: "2021-01-05 08:00:00", State: "CA"},
		accident{ID: "A-2", Source: "Source1", Severity: "4", Start: "2021-01-20 17:30:00", State: "CA"},
		accident{ID: "A-3", Source: "Source2", Severity: "1", Start: "2021-02-01 09:00:00", State: "TX"},
		accident{ID: "A-4", Source: "Source2", Severity: "3", Start: "2021-02-14 12:00:00", State: "TX"},
		accident{ID: "A-5", Source: "Source2", Severity: "3", Start: "2021-02-28 23:00:00", State: "TX"},
		accident{ID: "A-6", Source: "Source2", Severity: "3", Start: "garbage", State: "TX"},
		accident{ID: "A-7", Source: "Source2", Severity: "3", Start: "2021-02-28 23:00:00"},
	)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.StateMonthName, nil), input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"state,year_month,year,count_accidents,avg_severity",
		"CA,2021-01,2021,2,3",
		"TX,2021-02,2021,3,2.3333333333333335",
	), readOutput(t, out, pipeline.StateMonthFile))

	assert.Equal(t, 7, report.Loaded)
	assert.Zero(t, report.PreSampled, "fewer rows than the cap")
	assert.Equal(t, 1, report.Removed("not null(State)"))
	assert.Equal(t, 1, report.Removed("derive"))
	assert.Equal(t, map[domain.Column]int{domain.ColStartTime: 1}, report.Unparseable)
	assert.Equal(t, 5, report.Kept)

	assert.Equal(t, pipeline.Summary{From: "2021-01-05 08:00:00", To: "2021-02-28 23:00:00", States: 2}, report.Summary)
}

func TestStateMonth_PreSampleIsUniformNotHead(t *testing.T) {
	var rows []accident
	for i := range 200 {
		state := "CA"
		if i >= 100 {
			state = "TX"
		}
		rows = append(rows, accident{ID: "A", Severity: "2", Start: "2021-03-01 00:00:00", State: state})
	}
	input := writeRaw(t, rows...)

	report, err := runPipeline(t, build(t, pipeline.StateMonthName, func(p *pipeline.Params) { p.SampleSize = 50 }), input, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 50, report.PreSampled)
	assert.Equal(t, 50, report.Kept)
	assert.Equal(t, 2, report.Summary.States, "a head-of-file cut would see only CA")
}

func TestTemporal_SourceTagAndHighSeverity(t *testing.T) {
	input := writeRaw(t,
		accident{Source: "Source1", Severity: "3", Start: "2021-01-04 08:05:00", State: "CA"},
		accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"},
		accident{Source: "Source2", Severity: "4", Start: "2021-01-04 08:45:00", State: "TX"},
		accident{Source: "Source2", Severity: "3", Start: "2021-01-10 23:00:00", State: "TX"},
		accident{Source: "Source2", Severity: "3", Start: "2021-01-10 23:00:00"},
	)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.TemporalName, nil), input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"State,day_of_week,hour_of_day,total_accidents,high_severity_accidents",
		"TX,0,8,2,1",
		"TX,6,23,1,1",
	), readOutput(t, out, pipeline.TemporalFile))

	assert.Equal(t, lines(
		"State,Severity,Count",
		"TX,2,1",
		"TX,3,1",
		"TX,4,1",
	), readOutput(t, out, pipeline.SeverityCountsFile))

	assert.Equal(t, 1, report.Removed("Source == Source2"))
	assert.Equal(t, 1, report.Removed("not null(State, Severity, Start_Time)"))
	require.Len(t, report.Outputs, 2)
}

func TestTemporal_SourceFilterOff(t *testing.T) {
	input := writeRaw(t,
		accident{Source: "Source1", Severity: "3", Start: "2021-01-04 08:05:00", State: "CA"},
		accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"},
	)
	out := t.TempDir()

	def := build(t, pipeline.TemporalName, func(p *pipeline.Params) {
		p.FilterSource = false
		p.HighSeverityThreshold = 2
	})
	_, err := runPipeline(t, def, input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"State,day_of_week,hour_of_day,total_accidents,high_severity_accidents",
		"CA,0,8,1,1",
		"TX,0,8,1,1",
	), readOutput(t, out, pipeline.TemporalFile))
}

func TestWeatherSeverity_TopConditionsAfterRangeFilter(t *testing.T) {
	var rows []accident
	add := func(n int, severity, cond string) {
		for range n {
			rows = append(rows, accident{Source: "Source2", Severity: severity, State: "CA", Condition: cond})
		}
	}
	add(3, "2", "Fair")
	add(3, "2", "Cloudy")
	add(2, "2", "Rain")
	add(2, "2", "Snow")
	add(2, "2", "Fog")
	add(1, "2", "Haze")
	add(4, "5", "Smoke")
	add(1, "2", "")
	input := writeRaw(t, rows...)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.WeatherSeverityName, nil), input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"State,Weather_Condition,Severity,Count",
		"CA,Cloudy,2,3",
		"CA,Fair,2,3",
		"CA,Fog,2,2",
		"CA,Rain,2,2",
		"CA,Snow,2,2",
	), readOutput(t, out, pipeline.SeverityByWeatherFile))

	assert.Equal(t, []string{"Cloudy", "Fair", "Fog", "Rain", "Snow"}, report.Summary.Conditions)
	assert.Equal(t, 4, report.Removed("Severity in [1, 4]"))
	assert.Equal(t, 1, report.Removed("Weather_Condition in top 5"))
}

func bubbleRows() []accident {
	return []accident{
		{Source: "Source2", State: "CA", Severity: "4", TempF: "50", Humidity: "80", Condition: "Light Rain", Start: "2020-01-01 10:00:00"},
		{Source: "Source2", State: "TX", Severity: "3", TempF: "212", Humidity: "40", Condition: "Fair", Start: "2020-01-01 10:00:00"},
		{Source: "Source2", State: "NY", Severity: "2", TempF: "32", Humidity: "101", Condition: "Fair", Start: "2020-01-01 10:00:00"},
		{Source: "Source2", State: "WA", Severity: "2", TempF: "68", Humidity: "50", Condition: "Fog", Start: "2019-03-10 00:00:00"},
		{Source: "Source1", State: "NV", Severity: "2", TempF: "68", Humidity: "50", Condition: "Fair", Start: "2020-01-01 10:00:00"},
		{Source: "Source2", State: "OR", Severity: "4", TempF: "41", Humidity: "90", Condition: "Snow / Windy", Start: "2022-12-01 06:30:00"},
		{Source: "Source2", State: "FL", Severity: "1", TempF: "77", Humidity: "70", Condition: "Partly Cloudy", Start: "2021-06-01 14:00:00"},
		{Source: "Source2", State: "AZ", Severity: "1", TempF: "77", Condition: "Fair", Start: "2021-06-01 14:00:00"},
	}
}

func TestWeatherBubble_FiltersDerivesAndSamples(t *testing.T) {
	input := writeRaw(t, bubbleRows()...)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.WeatherBubbleName, nil), input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"State,Severity,Humidity(%),Temperature(C),Weather_Condition,is_Rain,is_Snow,is_Fog,is_Clear,is_Cloud,HighSeverity",
		"CA,4,80,10,Light Rain,True,False,False,False,False,1",
		"OR,4,90,5,Snow / Windy,False,True,False,False,False,1",
		"FL,1,70,25,Partly Cloudy,False,False,False,False,True,0",
	), readOutput(t, out, pipeline.WeatherBubbleFile))

	assert.Equal(t, 1, report.Removed("Source == Source2"))
	assert.Equal(t, 1, report.Removed("Start_Time > 2019-03-10 00:00:00"))
	assert.Equal(t, 1, report.Removed("Humidity(%) in [0, 100]"))
	assert.Equal(t, 1, report.Removed("Temperature(C) in [-35, 45]"))
	assert.Equal(t, 3, report.Kept)
}

func TestWeatherBubble_SampleReproducible(t *testing.T) {
	input := writeRaw(t, bubbleRows()...)
	def := func() pipeline.Definition {
		return build(t, pipeline.WeatherBubbleName, func(p *pipeline.Params) { p.SampleSize = 2 })
	}

	first, second := t.TempDir(), t.TempDir()
	r1, err := runPipeline(t, def(), input, first)
	require.NoError(t, err)
	r2, err := runPipeline(t, def(), input, second)
	require.NoError(t, err)

	assert.Equal(t, 2, r1.Outputs[0].Rows)
	assert.Equal(t, r1.Outputs[0].Checksum, r2.Outputs[0].Checksum)
	assert.Equal(t, readOutput(t, first, pipeline.WeatherBubbleFile), readOutput(t, second, pipeline.WeatherBubbleFile))
}

func TestDashboard_ExtendedKeywordsAndBounds(t *testing.T) {
	input := writeRaw(t,
		accident{Source: "Source2", State: "CA", Severity: "3", TempF: "50", Humidity: "60", Condition: "Light Drizzle", Start: "2021-01-04 08:15:00", Lat: "34.05", Lng: "-118.25"},
		accident{Source: "Source2", State: "CA", Severity: "3", TempF: "113", Humidity: "60", Condition: "Fair", Start: "2021-01-04 08:15:00", Lat: "34.05", Lng: "-118.25"},
		accident{Source: "Source2", State: "HI", Severity: "2", TempF: "80", Humidity: "60", Condition: "Fair", Start: "2021-01-04 08:15:00", Lat: "10", Lng: "-155"},
		accident{Source: "Source2", State: "CA", Severity: "2", TempF: "80", Humidity: "60", Condition: "Fair", Start: "2021-01-04 08:15:00", Lat: "34.05"},
	)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.DashboardName, nil), input, out)
	require.NoError(t, err)

	assert.Equal(t, lines(
		"State,Severity,Humidity(%),Temperature(C),Weather_Condition,is_Rain,is_Snow,is_Fog,is_Clear,is_Cloud,HighSeverity,day_of_week,hour_of_day,Start_Lat,Start_Lng",
		"CA,3,60,10,Light Drizzle,True,False,False,False,False,1,0,8,34.05,-118.25",
	), readOutput(t, out, pipeline.DashboardFile))

	assert.Equal(t, 1, report.Removed("Temperature(C) in (-35, 45)"), "45 °C is excluded")
	assert.Equal(t, 1, report.Removed("Start_Lat in [18, 72]"))
}

func TestRun_MissingInputWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data")

	_, err := runPipeline(t, build(t, pipeline.TemporalName, nil), filepath.Join(t.TempDir(), "nope.csv"), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.csv")
	require.NoError(t, os.WriteFile(path, []byte("State,Severity\nCA,2\n"), 0o600))

	_, err := runPipeline(t, build(t, pipeline.WeatherBubbleName, nil), path, t.TempDir())
	require.Error(t, err)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, domain.ColTemperatureF)
	assert.Contains(t, schemaErr.Missing, domain.ColSource)
}

func TestRun_UnwritableDestination(t *testing.T) {
	input := writeRaw(t, accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"})
	blocker := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := runPipeline(t, build(t, pipeline.TemporalName, nil), input, blocker)
	assert.ErrorIs(t, err, domain.ErrWrite)
}

// failingSink fails staging of one file, after others were staged.
type failingSink struct {
	*csvadapter.Writer
	fail string
}

func (s *failingSink) Stage(file string, t *domain.Table) (domain.OutputInfo, error) {
	if file == s.fail {
		return domain.OutputInfo{}, errors.Join(domain.ErrWrite, errors.New("disk full"))
	}
	return s.Writer.Stage(file, t)
}

func TestRun_FailedOutputLeavesNoPartialFiles(t *testing.T) {
	input := writeRaw(t, accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"})
	out := t.TempDir()
	metrics := observability.NewMetrics()

	p := pipeline.New(build(t, pipeline.TemporalName, nil),
		csvadapter.NewLoader(discardLogger()),
		&failingSink{Writer: csvadapter.NewWriter(out), fail: pipeline.SeverityCountsFile},
		discardLogger(),
		metrics,
	)
	_, err := p.Run(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrWrite)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "first output must not be published alone")
}

func TestRun_FailedCommitLeavesNoPartialFiles(t *testing.T) {
	input := writeRaw(t, accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"})
	out := t.TempDir()
	blocked := filepath.Join(out, pipeline.SeverityCountsFile)
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))

	p := pipeline.New(build(t, pipeline.TemporalName, nil),
		csvadapter.NewLoader(discardLogger()), csvadapter.NewWriter(out),
		discardLogger(), observability.NewMetrics())
	_, err := p.Run(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrWrite)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pipeline.SeverityCountsFile, entries[0].Name())
	assert.True(t, entries[0].IsDir())
}

func TestRun_CancelledContext(t *testing.T) {
	input := writeRaw(t, accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"})
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pipeline.New(build(t, pipeline.TemporalName, nil),
		csvadapter.NewLoader(discardLogger()), csvadapter.NewWriter(out),
		discardLogger(), observability.NewMetrics())
	_, err := p.Run(ctx, input)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_WritesManifest(t *testing.T) {
	fixed := time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	defer domain.SetClock(nil)

	input := writeRaw(t,
		accident{Source: "Source2", Severity: "2", Start: "2021-01-04 08:15:00", State: "TX"},
		accident{Source: "Source2", Severity: "x", Start: "2021-01-04 08:15:00", State: "TX"},
	)
	out := t.TempDir()

	report, err := runPipeline(t, build(t, pipeline.TemporalName, nil), input, out)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Column]int{domain.ColSeverity: 1}, report.Unparseable)

	var manifest pipeline.Report
	data := readOutput(t, out, "temporal.manifest.json")
	require.NoError(t, json.Unmarshal([]byte(data), &manifest))

	assert.True(t, fixed.Equal(manifest.StartedAt))
	assert.Equal(t, "temporal", manifest.Pipeline)
	if diff := cmp.Diff(report.Outputs, manifest.Outputs); diff != "" {
		t.Fatalf("manifest outputs mismatch (-want +got):\n%s", diff)
	}
	for _, o := range manifest.Outputs {
		sum, err := csvadapter.Checksum(filepath.Join(out, o.File))
		require.NoError(t, err)
		assert.Equal(t, o.Checksum, sum, o.File)
	}
}
