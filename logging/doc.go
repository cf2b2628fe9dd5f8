// Package logging provides a minimal logging interface and adapters for encapt.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the workforce, agents and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a configured JSON or text slog handler
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.Config{Level: logging.LevelInfo, Format: "text"})
//	logger = logging.With(logger, "component", "workforce")
package logging
