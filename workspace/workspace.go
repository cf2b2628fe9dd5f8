// Package workspace confines file system access to the beans directory and
// runs the project's test command.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/encapt/logging"
)

var (
	// ErrOutsideRoot is returned when a name resolves outside the workspace root.
	ErrOutsideRoot = errors.New("path escapes workspace root")
	// ErrInvalidName is returned for names that are empty or have the wrong
	// extension.
	ErrInvalidName = errors.New("invalid file name")
)

// Options configure a Workspace.
type Options struct {
	// Extension required for written files. Empty disables the check.
	Extension string
	Logger    logging.Logger
}

// Workspace is a directory sandbox for agent writes.
type Workspace struct {
	root      string
	extension string
	locks     keyedMutex
	logger    logging.Logger
}

// New creates a Workspace rooted at root. The root itself is created lazily
// on first write.
func New(root string, optFns ...func(o *Options)) (*Workspace, error) {
	opts := Options{
		Extension: ".kt",
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", root, err)
	}

	return &Workspace{
		root:      filepath.Clean(abs),
		extension: opts.Extension,
		logger:    opts.Logger,
	}, nil
}

// Root returns the absolute root directory.
func (w *Workspace) Root() string { return w.root }

// Extension returns the required file extension.
func (w *Workspace) Extension() string { return w.extension }

// WriteFile creates or overwrites a file below the root. name is relative to
// the root and may point into a subdirectory, which is created as needed.
func (w *Workspace) WriteFile(name, content string) error {
	if w.extension != "" && !strings.HasSuffix(name, w.extension) {
		return fmt.Errorf("%w: %q must end with %s", ErrInvalidName, name, w.extension)
	}

	path, err := w.resolve(name)
	if err != nil {
		return err
	}
	if filepath.Base(path) == w.extension {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	unlock := w.locks.lock(path)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	w.logger.Debug("workspace.write", "file", name, "bytes", len(content))
	return nil
}

// CreateDir creates a directory (and parents) below the root. Existing
// directories are not an error.
func (w *Workspace) CreateDir(name string) error {
	path, err := w.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", name, err)
	}

	w.logger.Debug("workspace.mkdir", "dir", name)
	return nil
}

// ReadFile reads a file below the root.
func (w *Workspace) ReadFile(name string) (string, error) {
	path, err := w.resolve(name)
	if err != nil {
		return "", err
	}

	unlock := w.locks.lock(path)
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// resolve maps a relative name to an absolute path inside the root.
func (w *Workspace) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
		}
	}

	path := filepath.Clean(filepath.Join(w.root, name))
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	return path, nil
}

// keyedMutex hands out one mutex per key. Entries are never removed; the key
// space is bounded by the number of files in the workspace.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
