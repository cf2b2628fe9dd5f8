// Package bean discovers the source units ("beans") managed by encapt and
// extracts the short responsibility descriptor each one declares in its
// leading documentation comment.
package bean

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default layout and markers for Kotlin/Quarkus beans.
const (
	DefaultExtension = ".kt"
	DefaultDocOpen   = "/**"
	DefaultDocClose  = "*/"
)

// ErrDuplicateBean is returned when two files share a base name, which would
// break the one agent per bean invariant.
var ErrDuplicateBean = errors.New("duplicate bean name")

// Bean is a single source file under management.
type Bean struct {
	Name    string // base file name without extension
	Path    string
	RelPath string // slash separated, relative to the beans directory
	Content string
	Doc     string // trimmed leading doc comment, possibly empty
}

// TestName returns the conventional name of the bean's test class.
func (b Bean) TestName() string { return b.Name + "Test" }

// FileName returns the bean's file name including its extension.
func (b Bean) FileName() string { return filepath.Base(b.Path) }

// Location returns the bean's path relative to the beans directory, falling
// back to the file name for beans not produced by Load.
func (b Bean) Location() string {
	if b.RelPath != "" {
		return b.RelPath
	}
	return b.FileName()
}

// Summary renders "<Name>: <Doc>" as used in peer listings.
func (b Bean) Summary() string { return b.Name + ": " + b.Doc }

// Options configure discovery and doc extraction.
type Options struct {
	Extension string
	DocOpen   string
	DocClose  string
}

func (o *Options) applyDefaults() {
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.DocOpen == "" {
		o.DocOpen = DefaultDocOpen
	}
	if o.DocClose == "" {
		o.DocClose = DefaultDocClose
	}
}

// Load walks dir recursively and returns one Bean per file with the
// configured extension, sorted by name. A missing root yields no beans. Any
// read failure aborts the load.
func Load(ctx context.Context, dir string, optFns ...func(o *Options)) ([]Bean, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.applyDefaults()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []Bean{}, nil
	}

	beans := []Bean{}
	seen := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), opts.Extension) {
			return nil
		}

		b, err := read(path, opts)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b.RelPath = filepath.ToSlash(rel)
		if prev, dup := seen[b.Name]; dup {
			return fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateBean, b.Name, prev, path)
		}
		seen[b.Name] = path
		beans = append(beans, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load beans from %s: %w", dir, err)
	}

	sort.Slice(beans, func(i, j int) bool { return beans[i].Name < beans[j].Name })
	return beans, nil
}

func read(path string, opts Options) (Bean, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bean{}, fmt.Errorf("read bean %s: %w", path, err)
	}
	content := string(data)
	base := filepath.Base(path)
	return Bean{
		Name:    strings.TrimSuffix(base, opts.Extension),
		Path:    path,
		Content: content,
		Doc:     ExtractDoc(content, opts.DocOpen, opts.DocClose),
	}, nil
}

// ExtractDoc returns the trimmed text between the first open marker and the
// next close marker after it. A missing marker yields "".
func ExtractDoc(content, open, close string) string {
	start := strings.Index(content, open)
	if start < 0 {
		return ""
	}
	body := content[start+len(open):]
	end := strings.Index(body, close)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}

// Names returns the bean names in order.
func Names(beans []Bean) []string {
	names := make([]string, len(beans))
	for i, b := range beans {
		names[i] = b.Name
	}
	return names
}
