// Package config loads the server's YAML configuration, following the
// teacher's manifest-loading convention: a typed struct with yaml tags,
// sane defaults applied after unmarshal, and a single LoadFile entrypoint.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// QueueConfig holds the per-queue-group watermarks from spec §4.10.
type QueueConfig struct {
	ThrottleSize int `yaml:"throttle_size"`
	MaxSize      int `yaml:"max_size"`
}

// ServerConfig is the top-level configuration for a restpose server process.
type ServerConfig struct {
	DataDir string `yaml:"data_dir"`

	SearchWorkers     int `yaml:"search_workers"`
	ProcessingWorkers int `yaml:"processing_workers"`
	IndexingWorkers   int `yaml:"indexing_workers"`

	ProcessingQueue QueueConfig `yaml:"processing_queue"`
	IndexingQueue   QueueConfig `yaml:"indexing_queue"`

	IdleCommitTimeout time.Duration `yaml:"idle_commit_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
	MetricsOn bool   `yaml:"metrics"`
}

// Default returns a ServerConfig with production-sized queue watermarks
// (throttle 1000 / max 2000 for both the processing and indexing queues).
func Default() ServerConfig {
	return ServerConfig{
		DataDir:           "./data",
		SearchWorkers:     4,
		ProcessingWorkers: 4,
		IndexingWorkers:   4,
		ProcessingQueue:   QueueConfig{ThrottleSize: 1000, MaxSize: 2000},
		IndexingQueue:     QueueConfig{ThrottleSize: 1000, MaxSize: 2000},
		IdleCommitTimeout: 2 * time.Second,
		LogLevel:          "info",
		LogJSON:           true,
		MetricsOn:         true,
	}
}

// LoadFile reads and parses a YAML config file, filling in defaults for any
// zero-valued field.
func LoadFile(path string) (ServerConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *ServerConfig) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.SearchWorkers == 0 {
		cfg.SearchWorkers = def.SearchWorkers
	}
	if cfg.ProcessingWorkers == 0 {
		cfg.ProcessingWorkers = def.ProcessingWorkers
	}
	if cfg.IndexingWorkers == 0 {
		cfg.IndexingWorkers = def.IndexingWorkers
	}
	if cfg.ProcessingQueue.ThrottleSize == 0 {
		cfg.ProcessingQueue = def.ProcessingQueue
	}
	if cfg.IndexingQueue.ThrottleSize == 0 {
		cfg.IndexingQueue = def.IndexingQueue
	}
	if cfg.IdleCommitTimeout == 0 {
		cfg.IdleCommitTimeout = def.IdleCommitTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}
