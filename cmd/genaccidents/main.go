// Command genaccidents writes a deterministic synthetic accident CSV in the
// raw source layout, for local runs of the pipelines and for test fixtures.
// It prints per-state and per-severity counts derived with the domain package
// so test assertions can be updated from its output.
//
// Usage:
//
//	go run ./cmd/genaccidents -out data/raw/US_Accidents.csv -rows 50000 -seed 7
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/weather"
)

var header = []string{
	"ID", "Source", "Severity", "Start_Time", "Start_Lat", "Start_Lng", "City", "State",
	"Temperature(F)", "Humidity(%)", "Weather_Condition",
}

type place struct {
	state    string
	city     string
	lat, lng float64
}

var places = []place{
	{"CA", "Los Angeles", 34.05, -118.24},
	{"CA", "Sacramento", 38.58, -121.49},
	{"TX", "Houston", 29.76, -95.37},
	{"TX", "Dallas", 32.78, -96.80},
	{"FL", "Miami", 25.76, -80.19},
	{"NY", "New York", 40.71, -74.01},
	{"WA", "Seattle", 47.61, -122.33},
	{"MN", "Minneapolis", 44.98, -93.27},
	{"AZ", "Phoenix", 33.45, -112.07},
	{"AK", "Anchorage", 61.22, -149.90},
}

var conditions = []string{
	"Fair", "Fair", "Fair", "Clear", "Cloudy", "Mostly Cloudy", "Partly Cloudy",
	"Overcast", "Light Rain", "Rain", "Heavy Rain", "Light Snow", "Snow", "Fog",
	"Haze", "Thunderstorm", "Light Drizzle", "Fair / Windy",
}

var (
	firstDay = time.Date(2016, time.February, 8, 0, 0, 0, 0, time.UTC)
	lastDay  = time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC)
)

type options struct {
	out      string
	rows     int
	seed     uint64
	nullRate float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.out, "out", "data/raw/US_Accidents.csv", "output path for the raw CSV")
	flag.IntVar(&o.rows, "rows", 10_000, "number of accident rows")
	flag.Uint64Var(&o.seed, "seed", 42, "random seed")
	flag.Float64Var(&o.nullRate, "null-rate", 0.02, "probability that an optional cell is left empty")
	flag.Parse()

	if o.rows <= 0 {
		flag.Usage()
		return fmt.Errorf("-rows must be positive, got %d", o.rows)
	}
	if o.nullRate < 0 || o.nullRate >= 1 {
		return fmt.Errorf("-null-rate must be in [0, 1), got %g", o.nullRate)
	}

	rows := generate(o)
	if err := writeCSV(o.out, rows); err != nil {
		return fmt.Errorf("writing %s: %w", o.out, err)
	}
	log.Printf("wrote %d rows to %s", len(rows), o.out)

	return printStats(rows)
}

// generate builds the rows. The same options always yield the same rows.
func generate(o options) [][]string {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	span := int64(lastDay.Sub(firstDay) / time.Second)

	maybe := func(s string) string {
		if rng.Float64() < o.nullRate {
			return ""
		}
		return s
	}

	rows := make([][]string, 0, o.rows)
	for i := range o.rows {
		p := places[rng.IntN(len(places))]
		start := firstDay.Add(time.Duration(rng.Int64N(span)) * time.Second)
		source := "Source2"
		if rng.IntN(3) == 0 {
			source = "Source1"
		}

		rows = append(rows, []string{
			"A-" + strconv.Itoa(i+1),
			source,
			strconv.Itoa(severity(rng)),
			start.Format(time.DateTime),
			strconv.FormatFloat(p.lat+rng.NormFloat64()*0.2, 'f', 6, 64),
			strconv.FormatFloat(p.lng+rng.NormFloat64()*0.2, 'f', 6, 64),
			p.city,
			maybe(p.state),
			maybe(strconv.FormatFloat(-20+rng.Float64()*130, 'f', 1, 64)),
			maybe(strconv.Itoa(rng.IntN(101))),
			maybe(conditions[rng.IntN(len(conditions))]),
		})
	}
	return rows
}

// severity skews towards 2, as in the real source.
func severity(rng *rand.Rand) int {
	switch r := rng.Float64(); {
	case r < 0.02:
		return 1
	case r < 0.82:
		return 2
	case r < 0.95:
		return 3
	default:
		return 4
	}
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

// printStats decodes the generated rows with the domain package and prints
// the counts the pipelines will see.
func printStats(rows [][]string) error {
	var (
		cols []string
		idx  []int
	)
	for i, h := range header {
		if domain.Column(h).IsRaw() {
			cols = append(cols, h)
			idx = append(idx, i)
		}
	}
	dec, err := domain.NewDecoder(cols)
	if err != nil {
		return err
	}
	classify := weather.NewClassifier(weather.ExtendedKeywords)

	states := map[string]int{}
	severities := map[string]int{}
	categories := map[string]int{}
	sources := map[string]int{}
	var unparseable int

	cells := make([]string, len(idx))
	for _, row := range rows {
		for j, i := range idx {
			cells[j] = row[i]
		}
		raw, _ := dec.Decode(cells)
		rec, err := domain.Derive(raw, domain.FeatureTime|domain.FeatureWeather,
			domain.DeriveOptions{Classifier: classify})
		if err != nil {
			unparseable++
			continue
		}
		sources[rec.Source]++
		if rec.Has(domain.ColState) {
			states[rec.State]++
		}
		severities[strconv.Itoa(rec.Severity)]++
		if rec.Features.Has(domain.FeatureWeather) {
			for name, on := range map[string]bool{
				"rain": rec.Weather.Rain, "snow": rec.Weather.Snow, "fog": rec.Weather.Fog,
				"clear": rec.Weather.Clear, "cloud": rec.Weather.Cloud,
			} {
				if on {
					categories[name]++
				}
			}
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (unparseable Start_Time: %d)\n", len(rows), unparseable)
	for _, section := range []struct {
		title  string
		counts map[string]int
	}{
		{"By source", sources},
		{"By state", states},
		{"By severity", severities},
		{"By weather category", categories},
	} {
		fmt.Printf("%s:", section.title)
		for _, c := range sortedCounts(section.counts) {
			fmt.Printf(" %s=%d", c.key, c.n)
		}
		fmt.Println()
	}
	return nil
}
