// Package uploads manages the gateway's upload directory: storing incoming
// files, resolving the public /uploads/ URLs the chat client sends back, and
// inlining stored images as data URIs for the vision and edit paths.
package uploads

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// urlMarker is the path segment that separates the public prefix from the
// stored file name in an upload URL.
const urlMarker = "/uploads/"

// Dir is an upload directory with an fsnotify-backed index of its contents.
// The index keeps existence checks cheap and stays current when files are
// added or removed out-of-band (manual cleanup, external sync).
type Dir struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	files map[string]struct{}

	done chan struct{}
}

// NewDir opens (creating if needed) the upload directory at path and starts
// watching it.
func NewDir(path string, logger *zap.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch upload dir: %w", err)
	}

	d := &Dir{
		path:    path,
		logger:  logger,
		watcher: watcher,
		files:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("scan upload dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			d.files[entry.Name()] = struct{}{}
		}
	}

	go d.watch()

	return d, nil
}

// watch keeps the index in sync with the directory.
func (d *Dir) watch() {
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			switch {
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				d.mu.Lock()
				d.files[name] = struct{}{}
				d.mu.Unlock()
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				d.mu.Lock()
				delete(d.files, name)
				d.mu.Unlock()
				d.logger.Debug("upload removed", zap.String("file", name))
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("upload watcher error", zap.Error(err))
		}
	}
}

// Save stores the contents of r under a timestamp-prefixed variant of
// originalName and returns the stored name.
func (d *Dir) Save(originalName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(originalName))

	f, err := os.Create(filepath.Join(d.path, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	d.mu.Lock()
	d.files[name] = struct{}{}
	d.mu.Unlock()

	return name, nil
}

// Resolve extracts the stored file name from a public upload URL. It returns
// false when the URL doesn't reference this directory.
func (d *Dir) Resolve(publicURL string) (string, bool) {
	_, name, ok := strings.Cut(publicURL, urlMarker)
	if !ok || name == "" {
		return "", false
	}
	// Only bare file names are valid; anything with path separators is not
	// something Save ever produced.
	if name != filepath.Base(name) {
		return "", false
	}
	return name, true
}

// Exists reports whether a stored file is present. The index answers first; a
// stat backs it up so a missed event can't turn into a wrong answer.
func (d *Dir) Exists(name string) bool {
	d.mu.RLock()
	_, ok := d.files[name]
	d.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := os.Stat(filepath.Join(d.path, name)); err != nil {
		return false
	}
	d.mu.Lock()
	d.files[name] = struct{}{}
	d.mu.Unlock()
	return true
}

// ReadFile returns the raw bytes of a stored file.
func (d *Dir) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.path, name))
}

// DataURI reads a stored file and inlines it as a base64 data URI with the
// given media type.
func (d *Dir) DataURI(name, mediaType string) (string, error) {
	data, err := d.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Path returns the directory's filesystem path.
func (d *Dir) Path() string {
	return d.path
}

// Close stops the watcher.
func (d *Dir) Close() error {
	close(d.done)
	return d.watcher.Close()
}
