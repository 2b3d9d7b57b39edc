package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		ScoresTopic  string   `yaml:"scores_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Scoring struct {
		CycleInterval    time.Duration `yaml:"cycle_interval"`
		RetrainInterval  time.Duration `yaml:"retrain_interval"`
		InitialDelay     time.Duration `yaml:"initial_delay"`
		WorkerLimit      int           `yaml:"worker_limit"`
		MinTrainingRows  int           `yaml:"min_training_rows"`
		ErrorTolerance   float64       `yaml:"error_tolerance"`
		ArtifactDir      string        `yaml:"artifact_dir"`
		FundamentalsDays int           `yaml:"fundamentals_days"`
		MarketDays       int           `yaml:"market_days"`
		NewsDays         int           `yaml:"news_days"`
	} `yaml:"scoring"`
	API struct {
		CacheTTL struct {
			LatestScore time.Duration `yaml:"latest_score"`
			Dashboard   time.Duration `yaml:"dashboard"`
		} `yaml:"cache_ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"api"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_SCORES_TOPIC"); v != "" {
		c.Kafka.ScoresTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.API.Redis.Addr = v
	}
	if v := os.Getenv("ARTIFACT_DIR"); v != "" {
		c.Scoring.ArtifactDir = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Scoring.CycleInterval == 0 {
		c.Scoring.CycleInterval = 10 * time.Minute
	}
	if c.Scoring.RetrainInterval == 0 {
		c.Scoring.RetrainInterval = 6 * time.Hour
	}
	if c.Scoring.InitialDelay == 0 {
		c.Scoring.InitialDelay = 30 * time.Second
	}
	if c.Scoring.WorkerLimit == 0 {
		c.Scoring.WorkerLimit = 4
	}
	if c.Scoring.MinTrainingRows == 0 {
		c.Scoring.MinTrainingRows = 10
	}
	if c.Scoring.ErrorTolerance == 0 {
		c.Scoring.ErrorTolerance = 0.1
	}
	if c.Scoring.FundamentalsDays == 0 {
		c.Scoring.FundamentalsDays = 90
	}
	if c.Scoring.MarketDays == 0 {
		c.Scoring.MarketDays = 30
	}
	if c.Scoring.NewsDays == 0 {
		c.Scoring.NewsDays = 7
	}
	if c.API.CacheTTL.LatestScore == 0 {
		c.API.CacheTTL.LatestScore = 30 * time.Second
	}
	if c.API.CacheTTL.Dashboard == 0 {
		c.API.CacheTTL.Dashboard = time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	if c.Scoring.ArtifactDir == "" {
		return fmt.Errorf("scoring.artifact_dir is required")
	}
	if c.Scoring.ErrorTolerance < 0 || c.Scoring.ErrorTolerance > 1 {
		return fmt.Errorf("scoring.error_tolerance must be within [0,1], got %v", c.Scoring.ErrorTolerance)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.ScoresTopic == "" {
		return fmt.Errorf("kafka.scores_topic is required when brokers are set")
	}
	return nil
}
