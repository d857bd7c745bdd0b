package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/manu4linux/archivedir/internal/core"
)

type Config struct {
	Backup     BackupConfig     `mapstructure:"backup"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	S3         S3Config         `mapstructure:"s3"`
	GDrive     GDriveConfig     `mapstructure:"gdrive"`
	OneDrive   OneDriveConfig   `mapstructure:"onedrive"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// BackupConfig holds archive creation settings.
type BackupConfig struct {
	Sources         []string `mapstructure:"sources"`
	Destination     string   `mapstructure:"destination"`
	SplitSizeGB     float64  `mapstructure:"split_size_gb"`
	CompressLevel   int      `mapstructure:"compress_level"`
	Excludes        []string `mapstructure:"excludes"`
	DefaultExcludes bool     `mapstructure:"default_excludes"`
	ProgressEvery   string   `mapstructure:"progress_every"`
}

// EncryptionConfig holds archive encryption settings.
type EncryptionConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Password   string `mapstructure:"password"`
	Salt       string `mapstructure:"salt"`
	Iterations int    `mapstructure:"iterations"`
}

// S3Config holds S3-compatible destination credentials.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GDriveConfig holds Google Drive OAuth credentials.
type GDriveConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// OneDriveConfig holds OneDrive OAuth credentials.
type OneDriveConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	TenantID     string `mapstructure:"tenant_id"`
}

// RetryConfig holds destination retry settings.
type RetryConfig struct {
	Attempts       int           `mapstructure:"attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// MetricsConfig holds metrics exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backup: BackupConfig{
			SplitSizeGB:     3.5,
			CompressLevel:   core.DefaultCompressLevel,
			DefaultExcludes: true,
			ProgressEvery:   "100ms",
		},
		Encryption: EncryptionConfig{
			Iterations: core.DefaultIterations,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9090",
		},
	}
}

// SplitSizeBytes converts the configured part size to bytes. Zero or
// negative values fall back to the default split size.
func (c *Config) SplitSizeBytes() int64 {
	if c.Backup.SplitSizeGB <= 0 {
		return core.DefaultSplitSize
	}
	return int64(c.Backup.SplitSizeGB * 1024 * 1024 * 1024)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backup.CompressLevel < 1 || c.Backup.CompressLevel > 9 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("compress_level must be between 1 and 9, got %d", c.Backup.CompressLevel))
	}
	if c.Backup.SplitSizeGB < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("split_size_gb cannot be negative, got %f", c.Backup.SplitSizeGB))
	}

	if c.Encryption.Enabled {
		if c.Encryption.Password == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("encryption password required when encryption is enabled"))
		}
		if c.Encryption.Iterations < 1 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("encryption iterations must be positive, got %d", c.Encryption.Iterations))
		}
	}

	if c.Retry.Attempts < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts))
	}

	if _, err := time.ParseDuration(c.Backup.ProgressEvery); c.Backup.ProgressEvery != "" && err != nil {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("progress_every is not a duration: %w", err))
	}

	return nil
}
