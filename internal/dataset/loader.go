// Package dataset serves derived JSON files (crawl results and enriched
// tables) through the cache, loading each file at most once per expiry.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/frostyslav/OSGenome/internal/cache"
)

// ErrNotFound marks a dataset key with no backing file.
var ErrNotFound = errors.New("dataset not found")

// LoadError reports a failed dataset load with enough context to tell a
// missing file from a corrupt one.
type LoadError struct {
	Key  string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %q from %s: %v", e.Key, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader reads datasets lazily. Concurrent requests for the same cold key
// share one disk load; failures are returned to every waiter and never
// cached, so the next request retries.
type Loader struct {
	dir    string
	fsys   fs.FS
	cache  *cache.Store
	group  singleflight.Group
	logger *zap.Logger
}

// NewLoader builds a Loader over dir. The cache is required; logger may be
// nil.
func NewLoader(dir string, store *cache.Store, logger *zap.Logger) (*Loader, error) {
	if dir == "" {
		return nil, fmt.Errorf("dataset directory is required")
	}
	if store == nil {
		return nil, fmt.Errorf("dataset cache is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{dir: dir, fsys: os.DirFS(dir), cache: store, logger: logger}, nil
}

// Get returns the dataset for key, loading it from disk on a cache miss.
func (l *Loader) Get(key string) ([]json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if cached, ok := l.cache.Get(key); ok {
		return cached.([]json.RawMessage), nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// Another waiter may have populated the cache while this call
		// queued behind an earlier load.
		if cached, ok := l.cache.Get(key); ok {
			return cached, nil
		}
		items, err := l.loadFile(key)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, items)
		l.logger.Debug("dataset loaded",
			zap.String("key", key),
			zap.Int("items", len(items)),
		)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]json.RawMessage), nil
}

// loadFile reads <dir>/<key>.json. A top-level array is returned in file
// order; a top-level object is flattened to its values ordered by key, so
// pagination over map-shaped files is stable across loads.
func (l *Loader) loadFile(key string) ([]json.RawMessage, error) {
	path := filepath.Join(l.dir, key+".json")
	raw, err := fs.ReadFile(l.fsys, key+".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Key: key, Path: path, Err: ErrNotFound}
		}
		return nil, &LoadError{Key: key, Path: path, Err: err}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &LoadError{Key: key, Path: path, Err: fmt.Errorf("not a JSON array or object: %w", err)}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]json.RawMessage, 0, len(obj))
	for _, k := range keys {
		items = append(items, obj[k])
	}
	return items, nil
}

// Invalidate drops key from the cache so the next Get reloads from disk.
func (l *Loader) Invalidate(key string) bool {
	return l.cache.Invalidate(key)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("dataset key is required")
	}
	// Keys name files directly under the data dir; reject anything that
	// could escape it.
	if key != filepath.Base(key) || key == ".." {
		return fmt.Errorf("invalid dataset key %q", key)
	}
	return nil
}
