package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	S3          S3Config          `mapstructure:"s3"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Derivatives DerivativesConfig `mapstructure:"derivatives"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the metadata store. Driver is "mongo" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// StorageConfig selects the object store. Driver is "s3" or "local".
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	// UseSSL picks https or http for an Endpoint given without a scheme.
	UseSSL bool `mapstructure:"use_ssl"`
	// PublicBaseURL is the CDN or bucket URL objects are served from.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// UploadConfig controls admission limits, staging and the remote upload retry policy.
type UploadConfig struct {
	StagingDir    string        `mapstructure:"staging_dir"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	AllowedTypes  []string      `mapstructure:"allowed_types"`
	Folder        string        `mapstructure:"folder"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

// DerivativesConfig points at the transcoding queue. An empty QueueURL
// disables derivative requests.
type DerivativesConfig struct {
	QueueURL    string `mapstructure:"queue_url"`
	Region      string `mapstructure:"region"`
	StreamWidth int    `mapstructure:"stream_width"`
	Concurrency int    `mapstructure:"concurrency"`
	WorkDir     string `mapstructure:"work_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, upload.max_bytes -> UPLOAD_MAX_BYTES
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Running on defaults and env vars only
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	// The browser client gives an upload 5 minutes end to end
	v.SetDefault("server.read_timeout", "5m")
	v.SetDefault("server.write_timeout", "6m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "navistream")

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.local_dir", "./data/objects")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/media")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("jwt.expiration", "24h")

	v.SetDefault("upload.staging_dir", "./data/staging")
	v.SetDefault("upload.max_bytes", 100<<20)
	v.SetDefault("upload.allowed_types", []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/x-matroska"})
	v.SetDefault("upload.folder", "navistream/videos")
	v.SetDefault("upload.max_retries", 3)
	v.SetDefault("upload.retry_interval", "500ms")
	v.SetDefault("upload.timeout", "5m")
	v.SetDefault("upload.stale_after", "1h")

	v.SetDefault("derivatives.region", "us-east-1")
	v.SetDefault("derivatives.stream_width", 1280)
	v.SetDefault("derivatives.concurrency", 2)
	v.SetDefault("derivatives.work_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
