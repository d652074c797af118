package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Detection DetectionConfig `mapstructure:"detection"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Retention RetentionConfig `mapstructure:"retention"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds database settings.
type DBConfig struct {
	File string `mapstructure:"file"` // Path to the SQLite database file
}

// CameraConfig holds livestream discovery and capture settings.
type CameraConfig struct {
	ID                    int    `mapstructure:"id"`
	PageURL               string `mapstructure:"page_url"`
	AuthEndpoint          string `mapstructure:"auth_endpoint"`
	FFmpegBin             string `mapstructure:"ffmpeg_bin"`
	CaptureTimeoutSeconds int    `mapstructure:"capture_timeout_seconds"`
	JPEGQuality           int    `mapstructure:"jpeg_quality"` // ffmpeg -q:v, lower is better
}

// DetectionConfig holds settings for the person detection model.
type DetectionConfig struct {
	ModelPath  string  `mapstructure:"model_path"` // Path to the ONNX model file
	ModelName  string  `mapstructure:"model_name"` // Identifier persisted with each capture
	Confidence float64 `mapstructure:"confidence"`
	Backend    string  `mapstructure:"backend"` // DNN backend: "default", "cuda", "opencl"
	Target     string  `mapstructure:"target"`  // DNN target: "cpu", "cuda", "opencl"
}

// WorkerConfig holds settings for the periodic ingestion loop.
type WorkerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
}

// RetentionConfig holds image retention settings.
type RetentionConfig struct {
	ImageTTLDays       int `mapstructure:"image_ttl_days"`
	SweepIntervalHours int `mapstructure:"sweep_interval_hours"`
}

// MQTTConfig holds settings for the optional MQTT count publisher.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// Load reads configuration from the given file, overlays environment
// variables and fills in defaults for everything left unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Environment variables overlay the file, e.g. QUEUE_WATCH_CAMERA_ID
	v.AutomaticEnv()
	v.SetEnvPrefix("QUEUE_WATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the reference deployment defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/queue-watch.log")

	v.SetDefault("db.file", "/data/queue-watch.db")

	v.SetDefault("camera.id", 461)
	v.SetDefault("camera.page_url", "https://balticlivecam.com/ru/cameras/estonia/narva/narva/")
	v.SetDefault("camera.auth_endpoint", "https://balticlivecam.com/wp-admin/admin-ajax.php")
	v.SetDefault("camera.ffmpeg_bin", "ffmpeg")
	v.SetDefault("camera.capture_timeout_seconds", 30)
	v.SetDefault("camera.jpeg_quality", 2)

	v.SetDefault("detection.model_path", "/data/models/yolov8n.onnx")
	v.SetDefault("detection.model_name", "yolov8n")
	v.SetDefault("detection.confidence", 0.25)
	v.SetDefault("detection.backend", "default")
	v.SetDefault("detection.target", "cpu")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.interval_seconds", 60)

	v.SetDefault("retention.image_ttl_days", 30)
	v.SetDefault("retention.sweep_interval_hours", 24)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "queue-watch")
	v.SetDefault("mqtt.topic", "queue-watch/count")
}

// ensureDirectories makes sure all directories the service writes to exist.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
