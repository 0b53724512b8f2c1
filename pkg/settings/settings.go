package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotSupported is returned when a store lacks an optional capability.
	ErrNotSupported = errors.New("settings: not supported")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("settings: store closed")
	// ErrInvalidName is returned when a settings file name cannot be used.
	ErrInvalidName = errors.New("settings: invalid name")
)

// Store is one named, durable key/value settings file.
type Store interface {
	// Name returns the settings file name the store was opened with.
	Name() string
	// All returns a snapshot of every stored entry. The map is owned by
	// the caller.
	All() (map[string]Value, error)
	// Edit starts a batch of mutations that takes effect on Commit.
	Edit() Editor
	Close() error
}

// Editor records mutations in order and applies them atomically on Commit.
type Editor interface {
	Put(key string, v Value)
	Remove(key string)
	Clear()
	Commit() error
}

// Opener opens (or creates) a settings store by name.
type Opener interface {
	Open(name string) (Store, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string) (Store, error)

func (f OpenerFunc) Open(name string) (Store, error) { return f(name) }

// Revisioner is implemented by stores that can report an opaque token which
// changes on every committed write, including writes by other handles.
type Revisioner interface {
	Revision() (string, error)
}

// Watcher is implemented by stores that can notify about changes made
// outside the current handle. Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, fn func()) error
}

// ValidateName rejects names that cannot be used as a settings file name on
// every backend.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
