package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Defaults are the pipeline-specific fallbacks applied when a variable is
// unset.
type Defaults struct {
	SampleSize            int
	Seed                  uint64
	FilterSource          bool
	SourceTag             string
	HighSeverityThreshold int
	Since                 time.Time
	ClassifierCacheSize   int
}

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputPath string
	OutputDir string
	LogLevel  string
	LogFormat string

	// MetricsTextfile, when set, receives the run metrics in Prometheus
	// textfile format.
	MetricsTextfile string

	SampleSize            int
	Seed                  uint64
	FilterSource          bool
	SourceTag             string
	HighSeverityThreshold int
	Since                 time.Time
	ClassifierCacheSize   int
}

const sinceLayout = "2006-01-02"

// Load reads configuration from environment variables, applying d where unset.
func Load(d Defaults) (*Config, error) {
	sampleSize, err := parseNonNegative("SAMPLE_SIZE", d.SampleSize)
	if err != nil {
		return nil, err
	}

	seed := d.Seed
	if s := os.Getenv("SAMPLE_SEED"); s != "" {
		seed, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid SAMPLE_SEED: must be a non-negative integer")
		}
	}

	filterSource := d.FilterSource
	if s := os.Getenv("FILTER_SOURCE"); s != "" {
		filterSource, err = strconv.ParseBool(s)
		if err != nil {
			return nil, errors.New("invalid FILTER_SOURCE: must be true or false")
		}
	}

	threshold := d.HighSeverityThreshold
	if s := os.Getenv("HIGH_SEVERITY_THRESHOLD"); s != "" {
		threshold, err = strconv.Atoi(s)
		if err != nil || threshold < 1 || threshold > 4 {
			return nil, errors.New("invalid HIGH_SEVERITY_THRESHOLD: must be 1-4")
		}
	}

	since := d.Since
	if s := os.Getenv("SINCE"); s != "" {
		since, err = time.Parse(sinceLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid SINCE: want YYYY-MM-DD: %w", err)
		}
	}

	cacheSize, err := parseNonNegative("CLASSIFIER_CACHE_SIZE", d.ClassifierCacheSize)
	if err != nil {
		return nil, err
	}

	sourceTag := d.SourceTag
	if sourceTag == "" {
		sourceTag = "Source2"
	}

	cfg := &Config{
		InputPath:       sharedcfg.EnvOrDefault("INPUT_PATH", "data_raw/US_Accidents_March23.csv"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		SampleSize:            sampleSize,
		Seed:                  seed,
		FilterSource:          filterSource,
		SourceTag:             sharedcfg.EnvOrDefault("SOURCE_TAG", sourceTag),
		HighSeverityThreshold: threshold,
		Since:                 since,
		ClassifierCacheSize:   cacheSize,
	}

	return cfg, nil
}

func parseNonNegative(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}
