package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Detector DetectorConfig `yaml:"detector"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// PipelineConfig exposes the pipeline's tunable thresholds as
// configuration rather than hardcoded literals.
type PipelineConfig struct {
	DetectionBatchSize     int           `yaml:"detection_batch_size"`
	DetectionBatchTimeout  time.Duration `yaml:"detection_batch_timeout"`
	DetectionTimeout       time.Duration `yaml:"detection_timeout"`
	DetectionConfidence    float64       `yaml:"detection_confidence"`
	MatchingBatchSize      int           `yaml:"matching_batch_size"`
	MatchingBatchTimeout   time.Duration `yaml:"matching_batch_timeout"`
	MatchingTimeout        time.Duration `yaml:"matching_timeout"`
	MatchingThreshold      float64       `yaml:"matching_threshold"`
	HighConfidenceThreshold float64      `yaml:"high_confidence_threshold"`
	NormalModeMinMatches   int           `yaml:"normal_mode_min_matches"`
	TrackDistancePx        float64       `yaml:"track_distance_px"`
	TrackSizeRatio         float64       `yaml:"track_size_ratio"`
	MinCropWidth           int           `yaml:"min_crop_width"`
	MinCropHeight          int           `yaml:"min_crop_height"`
	ScratchDir             string        `yaml:"scratch_dir"`
}

type DetectorConfig struct {
	BaseURL string `yaml:"base_url"`
}

type MatcherConfig struct {
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides, same two-pass idiom as the upstream template this module
// was bootstrapped from: unmarshal, override from env, fill zero-value
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Pipeline.DetectionBatchSize == 0 {
		cfg.Pipeline.DetectionBatchSize = 6
	}
	if cfg.Pipeline.DetectionBatchTimeout == 0 {
		cfg.Pipeline.DetectionBatchTimeout = 800 * time.Millisecond
	}
	if cfg.Pipeline.DetectionTimeout == 0 {
		cfg.Pipeline.DetectionTimeout = 25 * time.Second
	}
	if cfg.Pipeline.DetectionConfidence == 0 {
		cfg.Pipeline.DetectionConfidence = 0.25
	}
	if cfg.Pipeline.MatchingBatchSize == 0 {
		cfg.Pipeline.MatchingBatchSize = 3
	}
	if cfg.Pipeline.MatchingBatchTimeout == 0 {
		cfg.Pipeline.MatchingBatchTimeout = 800 * time.Millisecond
	}
	if cfg.Pipeline.MatchingTimeout == 0 {
		cfg.Pipeline.MatchingTimeout = 15 * time.Second
	}
	if cfg.Pipeline.MatchingThreshold == 0 {
		cfg.Pipeline.MatchingThreshold = 0.6
	}
	if cfg.Pipeline.HighConfidenceThreshold == 0 {
		cfg.Pipeline.HighConfidenceThreshold = 0.95
	}
	if cfg.Pipeline.NormalModeMinMatches == 0 {
		cfg.Pipeline.NormalModeMinMatches = 3
	}
	if cfg.Pipeline.TrackDistancePx == 0 {
		cfg.Pipeline.TrackDistancePx = 150
	}
	if cfg.Pipeline.TrackSizeRatio == 0 {
		cfg.Pipeline.TrackSizeRatio = 0.6
	}
	if cfg.Pipeline.MinCropWidth == 0 {
		cfg.Pipeline.MinCropWidth = 50
	}
	if cfg.Pipeline.MinCropHeight == 0 {
		cfg.Pipeline.MinCropHeight = 100
	}
	if cfg.Pipeline.ScratchDir == "" {
		cfg.Pipeline.ScratchDir = os.TempDir()
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRACEPIPE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRACEPIPE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("TRACEPIPE_DETECTOR_URL"); v != "" {
		cfg.Detector.BaseURL = v
	}
	if v := os.Getenv("TRACEPIPE_MATCHER_URL"); v != "" {
		cfg.Matcher.BaseURL = v
	}
	if v := os.Getenv("TRACEPIPE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TRACEPIPE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TRACEPIPE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("TRACEPIPE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TRACEPIPE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TRACEPIPE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TRACEPIPE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("TRACEPIPE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("TRACEPIPE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("TRACEPIPE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
}
