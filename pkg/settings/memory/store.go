// Package memory is a process-local settings backend intended for tests and
// examples. Stores opened under the same name on one Backend share data.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Backend holds every settings file opened through it.
type Backend struct {
	mu    sync.RWMutex
	files map[string]*file
}

type file struct {
	data     map[string]settings.Value
	revision string
	watchers map[*Store]chan struct{}
}

func New() *Backend {
	return &Backend{files: map[string]*file{}}
}

// Open returns a handle to the named settings file, creating it when needed.
func (b *Backend) Open(name string) (settings.Store, error) {
	if err := settings.ValidateName(name); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if _, ok := b.files[name]; !ok {
		b.files[name] = &file{
			data:     map[string]settings.Value{},
			revision: uuid.NewString(),
			watchers: map[*Store]chan struct{}{},
		}
	}
	b.mu.Unlock()
	return &Store{backend: b, name: name}, nil
}

// Store is a handle to one settings file of a Backend.
type Store struct {
	backend *Backend
	name    string

	mu     sync.Mutex
	closed bool
}

func (s *Store) Name() string { return s.name }

func (s *Store) All() (map[string]settings.Value, error) {
	if s.isClosed() {
		return nil, settings.ErrClosed
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	return settings.Clone(s.backend.files[s.name].data), nil
}

func (s *Store) Revision() (string, error) {
	if s.isClosed() {
		return "", settings.ErrClosed
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	return s.backend.files[s.name].revision, nil
}

// Watch calls fn after every commit made through another handle to the same
// settings file. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	if s.isClosed() {
		return settings.ErrClosed
	}
	ch := make(chan struct{}, 1)
	b := s.backend
	b.mu.Lock()
	f := b.files[s.name]
	if _, ok := f.watchers[s]; ok {
		b.mu.Unlock()
		return errors.New("memory: store is already watched")
	}
	f.watchers[s] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(f.watchers, s)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			fn()
		}
	}
}

func (s *Store) Edit() settings.Editor {
	return &editor{store: s}
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type editor struct {
	settings.Batch
	store *Store
}

func (e *editor) Commit() error {
	if e.store.isClosed() {
		return settings.ErrClosed
	}
	b := e.store.backend
	b.mu.Lock()
	f := b.files[e.store.name]
	e.ApplyTo(f.data)
	f.revision = uuid.NewString()
	for w, ch := range f.watchers {
		if w == e.store {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
	e.Reset()
	return nil
}
