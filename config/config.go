package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure returned by LoadConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	OnErrorSkip = "skip"
	OnErrorFail = "fail"
)

type Config struct {
	Pairflow  PairflowConfig  `yaml:"pairflow"`
	Input     InputConfig     `yaml:"input"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Processor ProcessorConfig `yaml:"processor"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PairflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type InputConfig struct {
	Quotes    string `yaml:"quotes"`
	Trades    string `yaml:"trades"`
	HasHeader bool   `yaml:"has_header"`
	OnError   string `yaml:"on_error"`
}

type ChannelsConfig struct {
	EventBuffer int `yaml:"event_buffer"`
	PairBuffer  int `yaml:"pair_buffer"`
}

type ProcessorConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type WriterConfig struct {
	CSV          CSVConfig          `yaml:"csv"`
	Parquet      ParquetConfig      `yaml:"parquet"`
	Partitioning PartitioningConfig `yaml:"partitioning"`
}

type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
	Directory   string `yaml:"directory"`
	Prefix      string `yaml:"prefix"`
}

type PartitioningConfig struct {
	TimeFormat string `yaml:"time_format"`
}

type StorageConfig struct {
	S3       S3Config       `yaml:"s3"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Brokers           []string      `yaml:"brokers"`
	Topic             string        `yaml:"topic"`
	MessagesPerSecond float64       `yaml:"messages_per_second"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	ConnStr string `yaml:"conn_str"`
	Table   string `yaml:"table"`
}

type MetricsConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	ReportInterval time.Duration `yaml:"report_interval"`
	CloudWatch     CloudWatch    `yaml:"cloudwatch"`
}

type CloudWatch struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when no file is supplied: read
// headerless CSV feeds and print pairs to stdout.
func Default() Config {
	return Config{
		Pairflow: PairflowConfig{Name: "pairflow", Version: "dev"},
		Input:    InputConfig{OnError: OnErrorSkip},
		Channels: ChannelsConfig{EventBuffer: 1024, PairBuffer: 1024},
		Processor: ProcessorConfig{
			BatchSize: 500,
		},
		Writer: WriterConfig{
			CSV:          CSVConfig{Enabled: true, Output: "stdout"},
			Parquet:      ParquetConfig{Compression: "snappy", Prefix: "closed_pairs"},
			Partitioning: PartitioningConfig{TimeFormat: "2006-01-02"},
		},
		Storage: StorageConfig{
			Kafka:    KafkaConfig{Topic: "closed-pairs", WriteTimeout: 10 * time.Second},
			Postgres: PostgresConfig{Table: "closed_pairs"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := Default()
	config.Input.OnError = defaultOnError(AppEnvironment())

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	// Override S3 settings from environment variables if available
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Storage.S3.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = strings.TrimSpace(v)
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		config.Storage.Kafka.Brokers = brokers
	}

	if v := os.Getenv("PAIRFLOW_DB_CONN_STR"); v != "" {
		config.Storage.Postgres.ConnStr = strings.TrimSpace(v)
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func validateConfig(cfg *Config) error {
	if cfg.Pairflow.Name == "" {
		return invalid("pairflow.name is required")
	}

	if cfg.Pairflow.Version == "" {
		return invalid("pairflow.version is required")
	}

	switch cfg.Input.OnError {
	case OnErrorSkip, OnErrorFail:
	default:
		return invalid("input.on_error must be %q or %q, got %q", OnErrorSkip, OnErrorFail, cfg.Input.OnError)
	}

	if cfg.Channels.EventBuffer <= 0 {
		return invalid("channels.event_buffer must be greater than 0")
	}
	if cfg.Channels.PairBuffer <= 0 {
		return invalid("channels.pair_buffer must be greater than 0")
	}

	if cfg.Processor.BatchSize <= 0 {
		return invalid("processor.batch_size must be greater than 0")
	}

	if cfg.Writer.Parquet.Enabled {
		switch strings.ToLower(cfg.Writer.Parquet.Compression) {
		case "", "snappy", "gzip", "zstd", "uncompressed":
		default:
			return invalid("writer.parquet.compression '%s' is not supported", cfg.Writer.Parquet.Compression)
		}
		if !cfg.Storage.S3.Enabled && cfg.Writer.Parquet.Directory == "" {
			return invalid("writer.parquet.directory is required when S3 is disabled")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return invalid("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return invalid("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return invalid("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return invalid("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return invalid("storage.kafka.topic is required when Kafka is enabled")
		}
	}

	if cfg.Storage.Postgres.Enabled {
		if cfg.Storage.Postgres.ConnStr == "" {
			return invalid("storage.postgres.conn_str is required when Postgres is enabled")
		}
		if !tableNameRegexp.MatchString(cfg.Storage.Postgres.Table) {
			return invalid("storage.postgres.table '%s' is invalid", cfg.Storage.Postgres.Table)
		}
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		cfg.Metrics.CloudWatch.Namespace = "PairFlow"
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

var tableNameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

// UsesS3 reports whether path names an object as s3://bucket/key.
func UsesS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}
