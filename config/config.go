// Package config holds scraper configuration and its sources.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL       string
	MaxPages      int
	Delay         time.Duration // polite wait between successive page fetches
	Timeout       time.Duration // per-request bound
	UserAgent     string
	OutputFile    string
	OutputFormat  string // csv, json, or dual
	SinglePage    bool   // scrape the start page only, never follow pagination
	DedupeMaxSize int    // 0 disables URL dedupe
	MetricsAddr   string // "" disables the metrics endpoint
	Verbose       bool
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://books.toscrape.com",
		MaxPages:      50,
		Delay:         1 * time.Second,
		Timeout:       10 * time.Second,
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputFile:    "output/books.csv",
		OutputFormat:  "csv",
		SinglePage:    false,
		DedupeMaxSize: 0,
		MetricsAddr:   "",
		Verbose:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// fileConfig mirrors Config for YAML loading. Pointer fields distinguish
// "absent" from zero values; durations are parsed from strings like "1s".
type fileConfig struct {
	BaseURL       *string `yaml:"base_url"`
	MaxPages      *int    `yaml:"max_pages"`
	Delay         *string `yaml:"delay"`
	Timeout       *string `yaml:"timeout"`
	UserAgent     *string `yaml:"user_agent"`
	OutputFile    *string `yaml:"output_file"`
	OutputFormat  *string `yaml:"output_format"`
	SinglePage    *bool   `yaml:"single_page"`
	DedupeMaxSize *int    `yaml:"dedupe_max_size"`
	MetricsAddr   *string `yaml:"metrics_addr"`
	Verbose       *bool   `yaml:"verbose"`
}

// LoadFile overlays settings from a YAML file onto c. Fields absent from
// the file keep their current values.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.BaseURL != nil {
		c.BaseURL = *fc.BaseURL
	}
	if fc.MaxPages != nil {
		c.MaxPages = *fc.MaxPages
	}
	if fc.Delay != nil {
		d, err := time.ParseDuration(*fc.Delay)
		if err != nil {
			return fmt.Errorf("parse delay %q: %w", *fc.Delay, err)
		}
		c.Delay = d
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout %q: %w", *fc.Timeout, err)
		}
		c.Timeout = d
	}
	if fc.UserAgent != nil {
		c.UserAgent = *fc.UserAgent
	}
	if fc.OutputFile != nil {
		c.OutputFile = *fc.OutputFile
	}
	if fc.OutputFormat != nil {
		c.OutputFormat = *fc.OutputFormat
	}
	if fc.SinglePage != nil {
		c.SinglePage = *fc.SinglePage
	}
	if fc.DedupeMaxSize != nil {
		c.DedupeMaxSize = *fc.DedupeMaxSize
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
	if fc.Verbose != nil {
		c.Verbose = *fc.Verbose
	}

	return nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting presence.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
