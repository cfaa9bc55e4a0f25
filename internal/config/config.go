package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source files. Relative paths resolve against DataDir; http(s) URLs are fetched.
	DataDir              string
	SeriesFiles          []string
	MapFile              string
	VaccinationFile      string
	FIPSReferenceFile    string
	HospitalFile         string
	GeometryURL          string
	AdmissionsTimeframes []string

	DefaultMetric   domain.Metric
	RefreshInterval time.Duration // 0 builds once at startup
	SourceTimeout   time.Duration
	SourceCacheSize int // 0 disables the parsed dataset cache

	// Snapshot publishing.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

const defaultSeriesFiles = "us-counties-2020.csv,us-counties-2021.csv,us-counties-2022.csv,us-counties-2023.csv"

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "0s", true)
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := parseDuration("SOURCE_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	metric, err := domain.ParseMetric(sharedcfg.EnvOrDefault("DEFAULT_METRIC", string(domain.MetricCases)))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_METRIC: %w", err)
	}

	timeframes := splitList(sharedcfg.EnvOrDefault("ADMISSIONS_TIMEFRAMES", "weekly"))
	for _, tf := range timeframes {
		if _, err := domain.ParseTimeframe(tf); err != nil {
			return nil, fmt.Errorf("invalid ADMISSIONS_TIMEFRAMES: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:              sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		SeriesFiles:          splitList(sharedcfg.EnvOrDefault("SERIES_FILES", defaultSeriesFiles)),
		MapFile:              sharedcfg.EnvOrDefault("MAP_FILE", "us-counties-2023.csv"),
		VaccinationFile:      sharedcfg.EnvOrDefault("VACCINATION_FILE", "COVID-19_Vaccinations_in_the_United_States_County.csv"),
		FIPSReferenceFile:    sharedcfg.EnvOrDefault("FIPS_REFERENCE_FILE", "fips-by-state.csv"),
		HospitalFile:         sharedcfg.EnvOrDefault("HOSPITAL_FILE", "COVID-19_Reported_Patient_Impact_and_Hospital_Capacity_by_State__RAW_.csv"),
		GeometryURL:          sharedcfg.EnvOrDefault("GEOMETRY_URL", "https://d3js.org/us-10m.v1.json"),
		AdmissionsTimeframes: timeframes,

		DefaultMetric:   metric,
		RefreshInterval: refreshInterval,
		SourceTimeout:   sourceTimeout,
		SourceCacheSize: cacheSize,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "covid-dashboard-snapshots"),
	}

	if len(cfg.SeriesFiles) == 0 {
		return nil, errors.New("SERIES_FILES is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() (int, error) {
	s := os.Getenv("SOURCE_CACHE_SIZE")
	if s == "" {
		return 16, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid SOURCE_CACHE_SIZE")
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
