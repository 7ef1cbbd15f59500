package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inference InferenceConfig `mapstructure:"inference"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Features  FeaturesConfig  `mapstructure:"features"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// StorageConfig describes where uploads, per-task result directories and
// task state live. Driver selects the task store backend: "file" keeps one
// JSON snapshot per task under StateDir, "postgres" uses the database.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	UploadDir  string `mapstructure:"upload_dir"`
	ResultsDir string `mapstructure:"results_dir"`
	StateDir   string `mapstructure:"state_dir"`
}

type InferenceConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	HealthURL     string        `mapstructure:"health_url"`
	ModelsURL     string        `mapstructure:"models_url"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultPrompt string        `mapstructure:"default_prompt"`
	Staging       StagingConfig `mapstructure:"staging"`
}

// StagingConfig controls how page images are exposed to the inference
// endpoint, which addresses them by path inside its own workspace. Mode
// "local" copies into a shared volume; "sftp" uploads to a remote GPU host.
type StagingConfig struct {
	Mode       string `mapstructure:"mode"`
	Dir        string `mapstructure:"dir"`
	RemoteDir  string `mapstructure:"remote_dir"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	PrivateKey string `mapstructure:"private_key"`
}

type WorkerConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("OCRLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.ResultsDir == "" {
		c.Storage.ResultsDir = "results"
	}
	if c.Storage.StateDir == "" {
		c.Storage.StateDir = "logs"
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 120 * time.Second
	}
	if c.Inference.MaxTokens == 0 {
		c.Inference.MaxTokens = 4096
	}
	if c.Inference.Staging.Mode == "" {
		c.Inference.Staging.Mode = "local"
	}
	if c.Inference.Staging.Dir == "" {
		c.Inference.Staging.Dir = "workspace"
	}
	if c.Inference.Staging.RemoteDir == "" {
		c.Inference.Staging.RemoteDir = "/workspace"
	}
	if c.Worker.Workers == 0 {
		c.Worker.Workers = 4
	}
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = 32
	}
}
