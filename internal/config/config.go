// Package config loads recordkit settings from an optional TOML or YAML file
// with RECORDKIT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "RECORDKIT_"

// Config is the full runtime configuration.
type Config struct {
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	Hashing   HashingConfig   `toml:"hashing" yaml:"hashing"`
	Geo       GeoConfig       `toml:"geo" yaml:"geo"`
	Normalize NormalizeConfig `toml:"normalize" yaml:"normalize"`
	Desktop   DesktopConfig   `toml:"desktop" yaml:"desktop"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// StorageConfig locates the sqlite database used for the geolocation
// cache and verification history. An empty DataDir disables persistence.
type StorageConfig struct {
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

type HashingConfig struct {
	Workers    int    `toml:"workers" yaml:"workers"`
	ChunkSize  int    `toml:"chunk_size" yaml:"chunk_size"`
	ReportName string `toml:"report_name" yaml:"report_name"`
	// PDFLicenseKey is passed to the PDF library when set.
	PDFLicenseKey string `toml:"pdf_license_key" yaml:"pdf_license_key"`
}

type GeoConfig struct {
	Endpoint       string        `toml:"endpoint" yaml:"endpoint"`
	Fields         string        `toml:"fields" yaml:"fields"`
	Lang           string        `toml:"lang" yaml:"lang"`
	BatchSize      int           `toml:"batch_size" yaml:"batch_size"`
	Timeout        time.Duration `toml:"timeout" yaml:"timeout"`
	RequestsPerMin int           `toml:"requests_per_minute" yaml:"requests_per_minute"`
	Retries        int           `toml:"retries" yaml:"retries"`
	SafetyMargin   time.Duration `toml:"safety_margin" yaml:"safety_margin"`
	CacheSize      int           `toml:"cache_size" yaml:"cache_size"`
	TimeZone       string        `toml:"time_zone" yaml:"time_zone"`
}

type NormalizeConfig struct {
	ExtractTimeout time.Duration `toml:"extract_timeout" yaml:"extract_timeout"`
}

type DesktopConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path" yaml:"textfile_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Hashing: HashingConfig{
			Workers:    4,
			ChunkSize:  32 * 1024,
			ReportName: "relatorio_hashes.pdf",
		},
		Geo: GeoConfig{
			Endpoint:       "http://ip-api.com/batch",
			Fields:         "asname,as,region,city,mobile,proxy,hosting,lat,lon,timezone,countryCode,status,query",
			Lang:           "pt-BR",
			BatchSize:      100,
			Timeout:        30 * time.Second,
			RequestsPerMin: 15,
			Retries:        3,
			SafetyMargin:   2 * time.Second,
			CacheSize:      4096,
			TimeZone:       "America/Sao_Paulo",
		},
		Normalize: NormalizeConfig{ExtractTimeout: 2 * time.Minute},
		Desktop:   DesktopConfig{Addr: "127.0.0.1:8090"},
	}
}

// Load reads path (when non-empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides replaces fields with RECORDKIT_* variables when set.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "HASH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Hashing.Workers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "PDF_LICENSE_KEY"); v != "" {
		c.Hashing.PDFLicenseKey = v
	}
	if v := os.Getenv(EnvPrefix + "GEO_ENDPOINT"); v != "" {
		c.Geo.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "TIME_ZONE"); v != "" {
		c.Geo.TimeZone = v
	}
	if v := os.Getenv(EnvPrefix + "DESKTOP_ADDR"); v != "" {
		c.Desktop.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Hashing.Workers < 1 {
		return fmt.Errorf("hashing.workers must be positive, got %d", c.Hashing.Workers)
	}
	if c.Hashing.ChunkSize < 512 {
		return fmt.Errorf("hashing.chunk_size too small: %d", c.Hashing.ChunkSize)
	}
	if c.Hashing.ReportName == "" {
		return fmt.Errorf("hashing.report_name is required")
	}
	if c.Geo.BatchSize < 1 || c.Geo.BatchSize > 100 {
		return fmt.Errorf("geo.batch_size must be within 1..100, got %d", c.Geo.BatchSize)
	}
	if c.Geo.Endpoint == "" {
		return fmt.Errorf("geo.endpoint is required")
	}
	if c.Geo.Retries < 0 {
		return fmt.Errorf("geo.retries must not be negative")
	}
	if _, err := time.LoadLocation(c.Geo.TimeZone); err != nil {
		return fmt.Errorf("geo.time_zone: %w", err)
	}
	if c.Normalize.ExtractTimeout <= 0 {
		return fmt.Errorf("normalize.extract_timeout must be positive")
	}
	return nil
}

// Location returns the presentation time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Geo.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
