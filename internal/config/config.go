package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/oarkflow/smpp-engine/pkg/smpp"
)

// ConfigManager loads and validates the engine's TOML configuration
// file, applying defaults for any field the file leaves undefined
// (grounded on the teacher's config.go shape, TOML decoding and the
// meta.IsDefined selective-override idiom adopted from
// danmuck-edgectl/cmd/ghostctl/config.go).
type ConfigManager struct {
	configPath string
	config     *smpp.Config
}

// fileConfig is the raw TOML shape. Durations are strings
// (time.ParseDuration syntax, e.g. "30s") so the file stays
// human-editable; smpp.Config stores them as time.Duration.
type fileConfig struct {
	Server  serverFileConfig   `toml:"server"`
	Client  clientFileConfig   `toml:"client"`
	Logging loggingFileConfig  `toml:"logging"`
	Metrics smpp.MetricsConfig `toml:"metrics"`
}

type serverFileConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	MaxConnections     int    `toml:"max_connections"`
	ReadTimeout        string `toml:"read_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
	IdleTimeout        string `toml:"idle_timeout"`
	EnquireLinkTimeout string `toml:"enquire_link_timeout"`
	BindTimeout        string `toml:"bind_timeout"`
	LogLevel           string `toml:"log_level"`
	LogFile            string `toml:"log_file"`
	MetricsEnabled     bool   `toml:"metrics_enabled"`
	MetricsPort        int    `toml:"metrics_port"`
}

type clientFileConfig struct {
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	SystemID             string `toml:"system_id"`
	Password             string `toml:"password"`
	SystemType           string `toml:"system_type"`
	BindType             string `toml:"bind_type"`
	ConnectTimeout       string `toml:"connect_timeout"`
	ReadTimeout          string `toml:"read_timeout"`
	WriteTimeout         string `toml:"write_timeout"`
	EnquireLinkInterval  string `toml:"enquire_link_interval"`
	ReconnectInterval    string `toml:"reconnect_interval"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
	LogLevel             string `toml:"log_level"`
}

type loggingFileConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
	File   string `toml:"file"`
}

// NewConfigManager constructs a manager reading from configPath. An
// empty configPath leaves LoadConfig returning pure defaults.
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{configPath: configPath}
}

// LoadConfig reads configPath (if set and present), applying it field
// by field over DefaultConfig so an absent or partial file still
// yields a valid configuration.
func (cm *ConfigManager) LoadConfig() (*smpp.Config, error) {
	config := DefaultConfig()

	if cm.configPath != "" && cm.fileExists(cm.configPath) {
		var raw fileConfig
		meta, err := toml.DecodeFile(cm.configPath, &raw)
		if err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if err := cm.applyServer(meta, &raw.Server, &config.Server); err != nil {
			return nil, fmt.Errorf("apply server config: %w", err)
		}
		if err := cm.applyClient(meta, &raw.Client, &config.Client); err != nil {
			return nil, fmt.Errorf("apply client config: %w", err)
		}
		cm.applyLogging(meta, &raw.Logging, &config.Logging)
		if meta.IsDefined("metrics") {
			config.Metrics = raw.Metrics
		}
	}

	cm.config = config
	if err := cm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (cm *ConfigManager) applyServer(meta toml.MetaData, raw *serverFileConfig, cfg *smpp.ServerConfig) error {
	if meta.IsDefined("server", "host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("server", "port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("server", "max_connections") {
		cfg.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("server", "log_level") {
		cfg.LogLevel = raw.LogLevel
	}
	if meta.IsDefined("server", "log_file") {
		cfg.LogFile = raw.LogFile
	}
	if meta.IsDefined("server", "metrics_enabled") {
		cfg.MetricsEnabled = raw.MetricsEnabled
	}
	if meta.IsDefined("server", "metrics_port") {
		cfg.MetricsPort = raw.MetricsPort
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
		{"enquire_link_timeout", raw.EnquireLinkTimeout, &cfg.EnquireLinkTimeout},
		{"bind_timeout", raw.BindTimeout, &cfg.BindTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined("server", d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse server.%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (cm *ConfigManager) applyClient(meta toml.MetaData, raw *clientFileConfig, cfg *smpp.ClientConfig) error {
	if meta.IsDefined("client", "host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("client", "port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("client", "system_id") {
		cfg.SystemID = raw.SystemID
	}
	if meta.IsDefined("client", "password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("client", "system_type") {
		cfg.SystemType = raw.SystemType
	}
	if meta.IsDefined("client", "bind_type") {
		cfg.BindType = raw.BindType
	}
	if meta.IsDefined("client", "max_reconnect_attempts") {
		cfg.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}
	if meta.IsDefined("client", "log_level") {
		cfg.LogLevel = raw.LogLevel
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"enquire_link_interval", raw.EnquireLinkInterval, &cfg.EnquireLinkInterval},
		{"reconnect_interval", raw.ReconnectInterval, &cfg.ReconnectInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined("client", d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse client.%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (cm *ConfigManager) applyLogging(meta toml.MetaData, raw *loggingFileConfig, cfg *smpp.LoggingConfig) {
	if meta.IsDefined("logging", "level") {
		cfg.Level = raw.Level
	}
	if meta.IsDefined("logging", "format") {
		cfg.Format = raw.Format
	}
	if meta.IsDefined("logging", "output") {
		cfg.Output = raw.Output
	}
	if meta.IsDefined("logging", "file") {
		cfg.File = raw.File
	}
}

// SaveConfig writes the in-memory configuration back to configPath as
// TOML.
func (cm *ConfigManager) SaveConfig() error {
	if cm.config == nil {
		return fmt.Errorf("no configuration to save")
	}
	if cm.configPath == "" {
		return fmt.Errorf("no config path specified")
	}
	f, err := os.Create(cm.configPath)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cm.config); err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}
	return nil
}

// GetServerConfig returns the loaded server configuration, or nil if
// LoadConfig has not run.
func (cm *ConfigManager) GetServerConfig() *smpp.ServerConfig {
	if cm.config == nil {
		return nil
	}
	return &cm.config.Server
}

// GetClientConfig returns the loaded client configuration, or nil if
// LoadConfig has not run.
func (cm *ConfigManager) GetClientConfig() *smpp.ClientConfig {
	if cm.config == nil {
		return nil
	}
	return &cm.config.Client
}

// UpdateConfig replaces a section of the in-memory configuration and
// re-validates.
func (cm *ConfigManager) UpdateConfig(config interface{}) error {
	if cm.config == nil {
		cm.config = DefaultConfig()
	}
	switch c := config.(type) {
	case *smpp.Config:
		cm.config = c
	case *smpp.ServerConfig:
		cm.config.Server = *c
	case *smpp.ClientConfig:
		cm.config.Client = *c
	case *smpp.LoggingConfig:
		cm.config.Logging = *c
	case *smpp.MetricsConfig:
		cm.config.Metrics = *c
	default:
		return fmt.Errorf("unsupported config type: %T", config)
	}
	return cm.Validate()
}

// Reload re-reads the configuration file from disk.
func (cm *ConfigManager) Reload() error {
	_, err := cm.LoadConfig()
	return err
}

// Validate checks the loaded configuration for internal consistency.
func (cm *ConfigManager) Validate() error {
	if cm.config == nil {
		return fmt.Errorf("configuration is nil")
	}
	if err := cm.validateServerConfig(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := cm.validateClientConfig(); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	if err := cm.validateLoggingConfig(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if err := cm.validateMetricsConfig(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	return nil
}

func (cm *ConfigManager) validateServerConfig() error {
	server := &cm.config.Server
	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", server.Port)
	}
	if server.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive: %d", server.MaxConnections)
	}
	if server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive: %v", server.ReadTimeout)
	}
	if server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive: %v", server.WriteTimeout)
	}
	return nil
}

func (cm *ConfigManager) validateClientConfig() error {
	client := &cm.config.Client
	if client.Host == "" {
		return fmt.Errorf("client host cannot be empty")
	}
	if client.Port <= 0 || client.Port > 65535 {
		return fmt.Errorf("invalid client port: %d", client.Port)
	}
	if client.SystemID == "" {
		return fmt.Errorf("system ID cannot be empty")
	}

	validBindTypes := map[string]bool{"transmitter": true, "receiver": true, "transceiver": true}
	if !validBindTypes[client.BindType] {
		return fmt.Errorf("invalid bind type: %s", client.BindType)
	}
	if client.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive: %v", client.ConnectTimeout)
	}
	if client.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts cannot be negative: %d", client.MaxReconnectAttempts)
	}
	return nil
}

func (cm *ConfigManager) validateLoggingConfig() error {
	logging := &cm.config.Logging

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[logging.Level] {
		return fmt.Errorf("invalid log level: %s", logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[logging.Format] {
		return fmt.Errorf("invalid log format: %s", logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[logging.Output] {
		return fmt.Errorf("invalid log output: %s", logging.Output)
	}
	if logging.Output == "file" && logging.File == "" {
		return fmt.Errorf("log file path required when output is file")
	}
	return nil
}

func (cm *ConfigManager) validateMetricsConfig() error {
	metrics := &cm.config.Metrics
	if metrics.Enabled {
		if metrics.Port <= 0 || metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", metrics.Port)
		}
		if metrics.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}
	return nil
}

// DefaultConfig returns the engine's built-in configuration defaults.
func DefaultConfig() *smpp.Config {
	return &smpp.Config{
		Server: smpp.ServerConfig{
			Host:               "0.0.0.0",
			Port:               2775,
			MaxConnections:     100,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        300 * time.Second,
			EnquireLinkTimeout: 60 * time.Second,
			BindTimeout:        30 * time.Second,
			LogLevel:           "info",
		},
		Client: smpp.ClientConfig{
			Host:                 "localhost",
			Port:                 2775,
			SystemID:             "test",
			Password:             "test",
			SystemType:           "SMPP",
			BindType:             "transceiver",
			ConnectTimeout:       10 * time.Second,
			ReadTimeout:          30 * time.Second,
			WriteTimeout:         10 * time.Second,
			EnquireLinkInterval:  30 * time.Second,
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 5,
		},
		Logging: smpp.LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: smpp.MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "smpp",
			Subsystem: "engine",
		},
	}
}

func (cm *ConfigManager) fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// GetConfig returns the currently loaded configuration.
func (cm *ConfigManager) GetConfig() *smpp.Config {
	return cm.config
}
