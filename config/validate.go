package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !strings.HasPrefix(cfg.Project.Extension, ".") {
		add("project.extension", "must start with '.', got %q", cfg.Project.Extension)
	}
	if cfg.Project.Package == "" {
		add("project.package", "must not be empty")
	}

	if cfg.Tests.TimeoutSeconds < 0 {
		add("tests.timeoutSeconds", "must be >= 0, got %d", cfg.Tests.TimeoutSeconds)
	}

	validProviders := []string{"openai", "anthropic", "mock"}
	if !slices.Contains(validProviders, cfg.Model.Provider) {
		add("model.provider", "must be one of %v, got %q", validProviders, cfg.Model.Provider)
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		add("model.temperature", "must be 0-2, got %v", cfg.Model.Temperature)
	}
	if cfg.Model.MaxTokens < 0 {
		add("model.maxTokens", "must be >= 0, got %d", cfg.Model.MaxTokens)
	}

	if cfg.Agents.MaxTurns < 0 {
		add("agents.maxTurns", "must be >= 0, got %d", cfg.Agents.MaxTurns)
	}
	if cfg.Workforce.MaxTasks < 0 {
		add("workforce.maxTasks", "must be >= 0, got %d", cfg.Workforce.MaxTasks)
	}
	if cfg.Workforce.ReplyTimeoutSeconds < 0 {
		add("workforce.replyTimeoutSeconds", "must be >= 0, got %d", cfg.Workforce.ReplyTimeoutSeconds)
	}

	validDrivers := []string{"memory", "sqlite"}
	if !slices.Contains(validDrivers, cfg.Journal.Driver) {
		add("journal.driver", "must be one of %v, got %q", validDrivers, cfg.Journal.Driver)
	}
	if cfg.Journal.Driver == "sqlite" && cfg.Journal.Path == "" {
		add("journal.path", "required for the sqlite driver")
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		add("logging.format", "must be one of %v, got %q", validFormats, cfg.Logging.Format)
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLevels, cfg.Logging.Level)
	}

	return issues
}

// Check validates cfg and folds all issues into one error.
func Check(cfg *Config) error {
	issues := Validate(cfg)
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, issue := range issues {
		msgs[i] = issue.String()
	}
	return &ConfigError{Message: strings.Join(msgs, "; ")}
}
