package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	S3         S3Config         `yaml:"s3" mapstructure:"s3"`
	FTP        FTPConfig        `yaml:"ftp" mapstructure:"ftp"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging. File, when set, receives log output in
// addition to stderr.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// FetchConfig configures the fetch phase.
type FetchConfig struct {
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TolerateFailures bool    `yaml:"tolerate_failures" mapstructure:"tolerate_failures"`
}

// S3Config configures the S3 client. Credentials come from the default AWS
// chain.
type S3Config struct {
	Region       string `yaml:"region" mapstructure:"region"`
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
}

// FTPConfig holds FTP credentials used when the location carries none.
type FTPConfig struct {
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HTTPConfig configures http(s) sources.
type HTTPConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the run history database. An empty DatabaseURL
// disables run history.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures how results are written.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures run history alerting.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DuplicateRateThreshold float64 `yaml:"duplicate_rate_threshold" mapstructure:"duplicate_rate_threshold"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("S3DEDUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("fetch.concurrency", 16)
	v.SetDefault("fetch.rate_limit", 0)
	v.SetDefault("fetch.retry_attempts", 3)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.tolerate_failures", false)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("ftp.user", "")
	v.SetDefault("ftp.password", "")
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("http.user_agent", "s3-dedupe/1.0")
	v.SetDefault("store.database_url", "")
	v.SetDefault("output.format", "json")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.duplicate_rate_threshold", 0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a run depends on and reports every problem
// found at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Fetch.Concurrency < 0 || c.Fetch.Concurrency > 256 {
		problems = append(problems, "fetch.concurrency must be between 0 and 256")
	}
	if c.Fetch.RateLimit < 0 {
		problems = append(problems, "fetch.rate_limit must be >= 0")
	}
	if c.Fetch.RetryAttempts < 1 {
		problems = append(problems, "fetch.retry_attempts must be >= 1")
	}
	if c.Fetch.TimeoutSecs < 0 {
		problems = append(problems, "fetch.timeout_secs must be >= 0")
	}
	switch c.Output.Format {
	case "json", "ndjson", "yaml":
	default:
		problems = append(problems, "output.format must be one of json, ndjson, yaml")
	}
	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
		problems = append(problems, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if c.Monitoring.DuplicateRateThreshold < 0 || c.Monitoring.DuplicateRateThreshold > 1 {
		problems = append(problems, "monitoring.duplicate_rate_threshold must be between 0 and 1")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, "log.format must be json or console")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
