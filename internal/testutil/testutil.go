// Package testutil builds throwaway encapt projects for tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encapt/config"
)

// Project creates a project under t.TempDir() containing the given bean
// files (name → content) and returns a config pointing at it. The config
// uses the mock model provider and the in-memory journal.
func Project(t *testing.T, beans map[string]string) config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Project.Root = t.TempDir()
	cfg.Model.Provider = "mock"
	cfg.Model.Name = "mock"
	cfg.Journal.Driver = "memory"

	dir := cfg.Project.BeansPath()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range beans {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return cfg
}

// StockBeans returns a two bean project resembling the sample shop.
func StockBeans() map[string]string {
	return map[string]string{
		"UserService.kt": `package org.camelai.beans

/**
 * Manages user accounts.
 */
@ApplicationScoped
class UserService`,
		"OrderService.kt": `package org.camelai.beans

/** Places and tracks orders. */
@ApplicationScoped
class OrderService`,
	}
}

// TestRunner is an in-memory workspace.TestRunner recording its calls.
type TestRunner struct {
	mu     sync.Mutex
	Output string
	Err    error
	calls  []string
}

// RunAll records "*" and returns the configured outcome.
func (r *TestRunner) RunAll(context.Context) (string, error) {
	return r.record("*")
}

// RunUnit records unit and returns the configured outcome.
func (r *TestRunner) RunUnit(_ context.Context, unit string) (string, error) {
	return r.record(unit)
}

// Calls returns the recorded units.
func (r *TestRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *TestRunner) record(unit string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, unit)
	return r.Output, r.Err
}
