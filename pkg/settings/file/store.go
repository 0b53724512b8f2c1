// Package file stores each settings file as a JSON, YAML or TOML document on
// disk, one document per settings name.
package file

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Opener opens settings files inside one directory.
type Opener struct {
	dir    string
	format Format

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOpener returns an Opener writing <dir>/<name><ext> files.
func NewOpener(dir string, format Format) *Opener {
	return &Opener{dir: dir, format: format, locks: map[string]*sync.Mutex{}}
}

// Dir returns the directory holding the settings files.
func (o *Opener) Dir() string { return o.dir }

// Path returns the file backing the named settings.
func (o *Opener) Path(name string) string {
	return filepath.Join(o.dir, name+o.format.Ext())
}

// Open binds the named settings file, creating an empty one if it does not
// exist yet.
func (o *Opener) Open(name string) (settings.Store, error) {
	if err := settings.ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := ParseFormat(string(o.format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating settings dir: %w", err)
	}

	s := &Store{name: name, path: o.Path(name), format: o.format, lock: o.lockFor(name)}

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(map[string]settings.Value{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat settings file: %w", err)
	}
	return s, nil
}

func (o *Opener) lockFor(name string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[name]
	if !ok {
		l = &sync.Mutex{}
		o.locks[name] = l
	}
	return l
}

// Store is one settings file on disk. Reads always go to disk, so handles on
// the same file observe each other's commits.
type Store struct {
	name   string
	path   string
	format Format
	lock   *sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

func (s *Store) Name() string { return s.name }

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

func (s *Store) All() (map[string]settings.Value, error) {
	if s.isClosed() {
		return nil, settings.ErrClosed
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.read()
}

func (s *Store) Edit() settings.Editor {
	return &editor{store: s}
}

func (s *Store) Close() error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()
	return nil
}

// Revision derives a token from the file's modification time and a hash of
// its contents, so same-size rewrites within one mtime tick still differ.
func (s *Store) Revision() (string, error) {
	if s.isClosed() {
		return "", settings.ErrClosed
	}
	fi, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "absent", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat settings file: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "absent", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading settings file %s: %w", s.path, err)
	}
	sum := fnv.New64a()
	sum.Write(data)
	return strconv.FormatInt(fi.ModTime().UnixNano(), 36) + "-" + strconv.FormatUint(sum.Sum64(), 36), nil
}

// Watch calls fn whenever the file is written, replaced or removed, until
// ctx is done.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Commits replace the file by rename, so the directory is watched.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				fn()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("settings: watcher error", "path", s.path, "error", err)
		}
	}
}

func (s *Store) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

func (s *Store) read() (map[string]settings.Value, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]settings.Value{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", s.path, err)
	}
	values, err := s.format.unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", s.path, err)
	}
	return values, nil
}

// write replaces the file atomically.
func (s *Store) write(values map[string]settings.Value) error {
	data, err := s.format.marshal(values)
	if err != nil {
		return fmt.Errorf("encoding settings file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

type editor struct {
	settings.Batch
	store *Store
}

func (e *editor) Commit() error {
	s := e.store
	if s.isClosed() {
		return settings.ErrClosed
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	e.ApplyTo(values)
	if err := s.write(values); err != nil {
		return err
	}
	e.Reset()
	return nil
}
