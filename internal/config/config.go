package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	MinIO        MinIOConfig        `yaml:"minio"`
	Recognition  RecognitionConfig  `yaml:"recognition"`
	Lighting     LightingConfig     `yaml:"lighting"`
	Session      SessionConfig      `yaml:"session"`
	Offline      OfflineConfig      `yaml:"offline"`
	Notification NotificationConfig `yaml:"notification"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
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

type RecognitionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	DetectionThreshold   float64 `yaml:"detection_threshold"`
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`
	MaxTemplatesPerIdent int     `yaml:"max_templates_per_identity"`
}

type LightingConfig struct {
	BrightnessThreshold float64 `yaml:"brightness_threshold"`
	EnhancementEnabled  *bool   `yaml:"enhancement_enabled"`
}

// Enhance reports whether low-light enhancement is enabled (default true).
func (l LightingConfig) Enhance() bool {
	if l.EnhancementEnabled == nil {
		return true
	}
	return *l.EnhancementEnabled
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type OfflineConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
}

type NotificationConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ResendAPIKey string `yaml:"resend_api_key"`
	FromAddress  string `yaml:"from_address"`
	AdminEmail   string `yaml:"admin_email"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognition.DetectionThreshold == 0 {
		cfg.Recognition.DetectionThreshold = 0.5
	}
	if cfg.Recognition.ConfidenceThreshold == 0 {
		cfg.Recognition.ConfidenceThreshold = 60
	}
	if cfg.Recognition.MaxTemplatesPerIdent == 0 {
		cfg.Recognition.MaxTemplatesPerIdent = 5
	}
	if cfg.Lighting.BrightnessThreshold == 0 {
		cfg.Lighting.BrightnessThreshold = 50
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 60 * time.Second
	}
	if cfg.Offline.MaxBatchSize == 0 {
		cfg.Offline.MaxBatchSize = 50
	}
	if cfg.Notification.MaxAttempts == 0 {
		cfg.Notification.MaxAttempts = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func (cfg *Config) validate() error {
	if cfg.Lighting.BrightnessThreshold < 0 || cfg.Lighting.BrightnessThreshold > 255 {
		return fmt.Errorf("brightness threshold %.1f out of range [0,255]", cfg.Lighting.BrightnessThreshold)
	}
	if cfg.Recognition.ConfidenceThreshold < 0 || cfg.Recognition.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold %.1f out of range [0,100]", cfg.Recognition.ConfidenceThreshold)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PRESENCE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PRESENCE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PRESENCE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PRESENCE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PRESENCE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PRESENCE_MODELS_DIR"); v != "" {
		cfg.Recognition.ModelsDir = v
	}
	if v := os.Getenv("PRESENCE_BRIGHTNESS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Lighting.BrightnessThreshold = f
		}
	}
	if v := os.Getenv("PRESENCE_ENHANCEMENT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Lighting.EnhancementEnabled = &b
		}
	}
	if v := os.Getenv("PRESENCE_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("PRESENCE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("PRESENCE_RESEND_API_KEY"); v != "" {
		cfg.Notification.ResendAPIKey = v
	}
	if v := os.Getenv("PRESENCE_ADMIN_EMAIL"); v != "" {
		cfg.Notification.AdminEmail = v
	}
}
