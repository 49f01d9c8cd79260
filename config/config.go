// Package config loads the run configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jamespfennell/gtfsgo/aggregate"
	"github.com/jamespfennell/gtfsgo/unify"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Source is a GTFS static zip archive or a directory holding the tables.
	Source string `yaml:"source"`
	// Output is the directory the GeoJSON and CSV files are written to.
	Output string `yaml:"output"`

	IgnoreShapes  bool `yaml:"ignore_shapes"`
	IgnoreNoRoute bool `yaml:"ignore_no_route"`

	Aggregate AggregateConfig `yaml:"aggregate"`
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
}

type AggregateConfig struct {
	NoUnify           bool    `yaml:"no_unify"`
	Delimiter         string  `yaml:"delimiter"`
	MaxDistanceDegree float64 `yaml:"max_distance_degree" validate:"gte=0"`
	Date              string  `yaml:"date"`
	BeginTime         string  `yaml:"begin_time" validate:"required_with=EndTime"`
	EndTime           string  `yaml:"end_time" validate:"required_with=BeginTime"`
	// SQLite is the path of a database the aggregation is also written to. Empty disables it.
	SQLite string `yaml:"sqlite"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

type FetchConfig struct {
	RepositoryURL string `yaml:"repository_url" validate:"omitempty,url"`
}

// Default returns the configuration used for values the file does not set.
func Default() Config {
	return Config{
		Output: ".",
		Aggregate: AggregateConfig{
			MaxDistanceDegree: unify.DefaultMaxDistanceDegree,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the default configuration and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration. Malformed dates and times are reported as gtfs.InvalidDateError.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.AggregateOptions().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AggregateOptions converts the aggregation section into aggregator options.
func (c Config) AggregateOptions() aggregate.Options {
	return aggregate.Options{
		Unify: unify.Options{
			Enabled:           !c.Aggregate.NoUnify,
			Delimiter:         c.Aggregate.Delimiter,
			MaxDistanceDegree: c.Aggregate.MaxDistanceDegree,
		},
		Date:      c.Aggregate.Date,
		BeginTime: c.Aggregate.BeginTime,
		EndTime:   c.Aggregate.EndTime,
	}
}
