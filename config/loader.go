package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

func expandSensitiveFields(cfg *Config) {
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Model.BaseURL = expandEnvVars(cfg.Model.BaseURL)
	cfg.Project.Root = expandEnvVars(cfg.Project.Root)
	cfg.Journal.Path = expandEnvVars(cfg.Journal.Path)
}

// Load reads the config file, applies defaults and environment overrides.
// A missing file yields the defaults. An empty path skips reading.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		applyEnvOverrides(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields that the file may have cleared.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Project.Root == "" {
		cfg.Project.Root = d.Project.Root
	}
	if cfg.Project.BeansDir == "" {
		cfg.Project.BeansDir = d.Project.BeansDir
	}
	if cfg.Project.Extension == "" {
		cfg.Project.Extension = d.Project.Extension
	}
	if cfg.Project.Package == "" {
		cfg.Project.Package = d.Project.Package
	}
	if cfg.Project.DocOpen == "" {
		cfg.Project.DocOpen = d.Project.DocOpen
	}
	if cfg.Project.DocClose == "" {
		cfg.Project.DocClose = d.Project.DocClose
	}
	if len(cfg.Tests.Command) == 0 {
		cfg.Tests.Command = d.Tests.Command
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = d.Model.Provider
	}
	if cfg.Agents.Coordinator == "" {
		cfg.Agents.Coordinator = d.Agents.Coordinator
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = d.Journal.Driver
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
}

// applyEnvOverrides reads ENCAPT_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENCAPT_PROJECT_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("ENCAPT_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ENCAPT_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("ENCAPT_MAX_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workforce.MaxTasks = n
		}
	}
	if v := os.Getenv("ENCAPT_JOURNAL_DRIVER"); v != "" {
		cfg.Journal.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("ENCAPT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
