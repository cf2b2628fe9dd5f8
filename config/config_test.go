package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encapt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "./encapt-project", cfg.Project.Root)
	assert.Equal(t, filepath.Join("encapt-project", "src", "main", "kotlin", "org", "camelai", "beans"), cfg.Project.BeansPath())
	assert.Equal(t, ".kt", cfg.Project.Extension)
	assert.Equal(t, "org.camelai.beans", cfg.Project.Package)
	assert.Equal(t, []string{"./gradlew", "test"}, cfg.Tests.Command)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, 0.0, cfg.Model.Temperature)
	assert.Equal(t, "Manager", cfg.Agents.Coordinator)
	assert.True(t, cfg.Tools.EnforceOwnership)
	assert.Equal(t, 300, cfg.Workforce.ReplyTimeoutSeconds)
	assert.Equal(t, "memory", cfg.Journal.Driver)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/encapt.yaml")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
}

func TestLoadValidYAML(t *testing.T) {
	t.Setenv("TEST_ENCAPT_KEY", "sk-secret")

	path := writeConfig(t, `
project:
  root: /srv/shop
  beansDir: src/main/kotlin/com/shop
  package: com.shop
tests:
  command: ["./gradlew", "check"]
  timeoutSeconds: 120
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
  apiKey: ${TEST_ENCAPT_KEY}
agents:
  maxTurns: 10
tools:
  enforceOwnership: false
journal:
  driver: sqlite
  path: /tmp/encapt.db
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/shop/src/main/kotlin/com/shop", cfg.Project.BeansPath())
	assert.Equal(t, "com.shop", cfg.Project.Package)
	assert.Equal(t, ".kt", cfg.Project.Extension)
	assert.Equal(t, []string{"./gradlew", "check"}, cfg.Tests.Command)
	assert.Equal(t, 120, cfg.Tests.TimeoutSeconds)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "sk-secret", cfg.Model.APIKey)
	assert.Equal(t, 10, cfg.Agents.MaxTurns)
	assert.Equal(t, 50, cfg.Agents.MaxHistory)
	assert.False(t, cfg.Tools.EnforceOwnership)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "model: [unterminated"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENCAPT_MODEL_PROVIDER", "MOCK")
	t.Setenv("ENCAPT_MAX_TASKS", "7")
	t.Setenv("ENCAPT_LOG_LEVEL", "WARN")
	t.Setenv("ENCAPT_PROJECT_ROOT", "/work")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 7, cfg.Workforce.MaxTasks)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/work", cfg.Project.Root)
}

func TestExpandEnvVars_UnsetLeftAlone(t *testing.T) {
	assert.Equal(t, "${ENCAPT_SURELY_UNSET_VAR}", expandEnvVars("${ENCAPT_SURELY_UNSET_VAR}"))
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Provider = "llama"
	cfg.Model.Temperature = 3
	cfg.Journal.Driver = "sqlite"
	cfg.Journal.Path = ""
	cfg.Project.Extension = "kt"
	cfg.Logging.Format = "xml"
	cfg.Workforce.ReplyTimeoutSeconds = -1

	paths := map[string]bool{}
	for _, issue := range Validate(&cfg) {
		paths[issue.Path] = true
	}
	for _, p := range []string{"model.provider", "model.temperature", "journal.path", "project.extension", "logging.format", "workforce.replyTimeoutSeconds"} {
		assert.True(t, paths[p], "expected issue for %s", p)
	}

	err := Check(&cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "model.provider")

	ok := Defaults()
	assert.NoError(t, Check(&ok))
}
