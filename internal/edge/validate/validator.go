package validate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/toeverything/edge-workers/internal/common/config"
)

// ValidationResult is the outcome of a configuration test
type ValidationResult struct {
	Valid      bool
	ConfigPath string
	Config     *config.WorkerConfig
	Errors     []ValidationError
	Warnings   []ValidationError
}

// ValidateConfiguration loads the configuration file and reports every
// problem with a line number where one can be found. The returned error is
// only set when the file cannot be read at all.
func ValidateConfiguration(configPath string) (*ValidationResult, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", absPath, err)
	}

	filename := filepath.Base(absPath)
	collector := NewErrorCollector()
	result := &ValidationResult{ConfigPath: absPath}

	cfg, err := config.Decode(data)
	if err != nil {
		// yaml errors carry their own line numbers
		collector.Add(filename, 0, "%v", err)
		return finish(result, collector), nil
	}

	tracker, err := NewLineTracker(data)
	if err != nil {
		tracker = &LineTracker{lines: map[string]int{}}
	}

	for _, verr := range config.Validate(cfg) {
		msg := verr.Error()
		collector.Add(filename, tracker.LineForMessage(msg), "%s", msg)
	}
	collectWarnings(cfg, filename, tracker, collector)

	result.Config = cfg
	return finish(result, collector), nil
}

func collectWarnings(cfg *config.WorkerConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	if len(cfg.Origins.Allow) == 0 {
		collector.AddWarning(filename, lt.GetLine("origins"), "origins.allow is empty, built-in origin rules apply")
	}
	if cfg.Fetch.SSRFProtection != nil && !*cfg.Fetch.SSRFProtection {
		collector.AddWarning(filename, lt.GetLine("fetch.ssrf_protection"), "fetch.ssrf_protection is disabled, outbound requests may reach private addresses")
	}
	if lt.GetLine("routes") == 0 {
		collector.AddWarning(filename, 0, "no routes configured, default routes apply")
	}
}

func finish(result *ValidationResult, collector *ErrorCollector) *ValidationResult {
	result.Errors = collector.Errors()
	result.Warnings = collector.Warnings()
	result.Valid = !collector.HasErrors()
	if !result.Valid {
		result.Config = nil
	}
	return result
}
