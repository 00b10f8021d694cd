package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader loads and optionally hot-reloads intent catalogs from a directory
// of YAML files, one catalog per file.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewLoader creates a catalog loader for the given directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dir:      dir,
		logger:   logger,
		catalogs: make(map[string]*Catalog),
	}
}

// LoadAll parses every .yaml and .yml file in the directory. Either all
// files load and replace the current set, or the current set is kept and
// the first error is returned.
func (l *Loader) LoadAll() (map[string]*Catalog, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir %q: %w", l.dir, err)
	}

	result := make(map[string]*Catalog)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		c, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		if _, dup := result[c.Name]; dup {
			return nil, fmt.Errorf("load %q: catalog %q defined twice", path, c.Name)
		}
		result[c.Name] = c
	}

	l.mu.Lock()
	l.catalogs = result
	l.mu.Unlock()

	return result, nil
}

// Get returns a loaded catalog by name.
func (l *Loader) Get(name string) (*Catalog, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.catalogs[name]
	return c, ok
}

// Source returns a lookup for the named catalog that follows reloads. Until
// the name is loaded it yields the built-in default catalog.
func (l *Loader) Source(name string) func() *Catalog {
	def := DefaultCatalog()
	return func() *Catalog {
		if l == nil {
			return def
		}
		if c, ok := l.Get(name); ok {
			return c
		}
		return def
	}
}

// Names lists the loaded catalog names.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.catalogs))
	for name := range l.catalogs {
		names = append(names, name)
	}
	return names
}

func loadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		c.Name = trimExt(filepath.Base(path))
	}
	return c, nil
}

// WatchAndReload watches the catalog directory and reloads on change until
// ctx is cancelled. Sessions already running keep the catalog they started
// with; a failed reload is logged and leaves the previous set in place.
func (l *Loader) WatchAndReload(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if _, err := l.LoadAll(); err != nil {
					l.logger.Warn("catalog reload failed", slog.String("error", err.Error()))
					continue
				}
				l.logger.Info("catalogs reloaded", slog.Any("names", l.Names()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
