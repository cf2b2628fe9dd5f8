package config

import "path/filepath"

// Config is the root of the encapt configuration file.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Tests     TestsConfig     `yaml:"tests"`
	Model     ModelConfig     `yaml:"model"`
	Agents    AgentsConfig    `yaml:"agents"`
	Workforce WorkforceConfig `yaml:"workforce"`
	Tools     ToolsConfig     `yaml:"tools"`
	Journal   JournalConfig   `yaml:"journal"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProjectConfig locates the managed Kotlin project.
type ProjectConfig struct {
	Root      string `yaml:"root"`
	BeansDir  string `yaml:"beansDir"` // relative to Root unless absolute
	Extension string `yaml:"extension"`
	Package   string `yaml:"package"`
	DocOpen   string `yaml:"docOpen"`
	DocClose  string `yaml:"docClose"`
}

// BeansPath returns the directory holding the beans.
func (p ProjectConfig) BeansPath() string {
	if filepath.IsAbs(p.BeansDir) {
		return p.BeansDir
	}
	return filepath.Join(p.Root, p.BeansDir)
}

// TestsConfig configures the test command.
type TestsConfig struct {
	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	MaxOutputBytes int      `yaml:"maxOutputBytes"`
}

// ModelConfig selects the language model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, mock
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"`
}

// AgentsConfig tunes the agents.
type AgentsConfig struct {
	Coordinator        string `yaml:"coordinator"`
	MaxTurns           int    `yaml:"maxTurns"`
	MaxHistory         int    `yaml:"maxHistory"`
	ToolTimeoutSeconds int    `yaml:"toolTimeoutSeconds"`
}

// WorkforceConfig tunes task routing.
type WorkforceConfig struct {
	MaxTasks            int `yaml:"maxTasks"`
	ReplyTimeoutSeconds int `yaml:"replyTimeoutSeconds"`
}

// ToolsConfig configures the agent tool surface.
type ToolsConfig struct {
	EnforceOwnership bool `yaml:"enforceOwnership"`
}

// JournalConfig selects the task journal backend.
type JournalConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	Path   string `yaml:"path"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}
