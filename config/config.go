// Package config loads the encapt YAML configuration, applying defaults,
// ENCAPT_* environment overrides and ${VAR} expansion for credentials.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config matching the stock encapt project layout.
func Defaults() Config {
	return Config{
		Project: ProjectConfig{
			Root:      "./encapt-project",
			BeansDir:  "src/main/kotlin/org/camelai/beans",
			Extension: ".kt",
			Package:   "org.camelai.beans",
			DocOpen:   "/**",
			DocClose:  "*/",
		},
		Tests: TestsConfig{
			Command:        []string{"./gradlew", "test"},
			TimeoutSeconds: 600,
			MaxOutputBytes: 100_000,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o",
			Temperature: 0.0,
			MaxTokens:   4096,
		},
		Agents: AgentsConfig{
			Coordinator:        "Manager",
			MaxTurns:           25,
			MaxHistory:         50,
			ToolTimeoutSeconds: 900,
		},
		Workforce: WorkforceConfig{
			MaxTasks:            100,
			ReplyTimeoutSeconds: 300,
		},
		Tools: ToolsConfig{
			EnforceOwnership: true,
		},
		Journal: JournalConfig{
			Driver: "memory",
			Path:   ".encapt/journal.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
