package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

// Type aliases so callers only need one import for configuration
type (
	WorkerConfig = configtypes.WorkerConfig
	RouteConfig  = configtypes.RouteConfig
	LogConfig    = configtypes.LogConfig
	RedisConfig  = configtypes.RedisConfig
)

// Compile-time interface satisfaction check
var _ configtypes.ConfigManager = (*Manager)(nil)

// Manager loads the worker configuration and serves it read-only
type Manager struct {
	config     atomic.Pointer[WorkerConfig]
	configPath string
	logger     *zap.Logger
}

func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	cm := &Manager{
		configPath: configPath,
		logger:     logger,
	}

	if err := cm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// LoadConfig reads, defaults and validates the configuration file.
// The previously loaded configuration stays active if anything fails.
func (cm *Manager) LoadConfig() error {
	cfg, err := Load(cm.configPath)
	if err != nil {
		return err
	}

	cm.config.Store(cfg)
	cm.emitConfigWarnings(cfg)
	return nil
}

// GetConfig returns the current configuration
func (cm *Manager) GetConfig() *WorkerConfig {
	return cm.config.Load()
}

// SetConfig replaces the configuration (for testing)
func (cm *Manager) SetConfig(cfg *WorkerConfig) {
	cm.config.Store(cfg)
}

// Load reads a configuration file, applies defaults and validates it
func Load(path string) (*WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies defaults and validates the result
func Parse(data []byte) (*WorkerConfig, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}
	return cfg, nil
}

// Decode strictly decodes YAML configuration bytes and applies defaults.
// The result is not validated.
func Decode(data []byte) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := unmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// unmarshalStrict rejects unknown fields to surface typos early
func unmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(v); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "field") && strings.Contains(errStr, "not found") {
			return fmt.Errorf("unknown configuration field (check for typos): %w", err)
		}
		return err
	}
	return nil
}

func (cm *Manager) emitConfigWarnings(cfg *WorkerConfig) {
	if cm.logger == nil {
		return
	}
	if len(cfg.Origins.Allow) == 0 {
		cm.logger.Info("origins.allow is empty, using built-in origin rules")
	}
	if cfg.Fetch.SSRFProtection != nil && !*cfg.Fetch.SSRFProtection {
		cm.logger.Warn("fetch.ssrf_protection=false (outbound requests may reach private addresses)")
	}
}

// formatValidationErrors folds validation errors into one error
func formatValidationErrors(errs []error) error {
	if len(errs) == 1 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return fmt.Errorf("invalid configuration (%d errors): %w", len(errs), errors.Join(errs...))
}
