package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Definition names a settings file and the descriptors stored in it.
// Applications usually implement it on a small struct of their own.
type Definition interface {
	SettingsFileName() string
	Descriptors() []Entry
}

type staticDefinition struct {
	name    string
	entries []Entry
}

// NewDefinition returns a Definition with a fixed descriptor registry.
func NewDefinition(name string, entries ...Entry) Definition {
	return &staticDefinition{name: name, entries: entries}
}

func (d *staticDefinition) SettingsFileName() string { return d.name }
func (d *staticDefinition) Descriptors() []Entry     { return d.entries }

// Option configures a Handler.
type Option func(*Handler)

// WithCodec sets the codec used for complex values. The default is JSONCodec.
func WithCodec(c Codec) Option {
	return func(h *Handler) {
		if c != nil {
			h.codec = c
		}
	}
}

// WithPermissive switches the handler to the permissive policy: values are
// dispatched on their runtime kind and complex values the configured codec
// cannot represent are encoded as JSON.
func WithPermissive(permissive bool) Option {
	return func(h *Handler) {
		h.permissive = permissive
	}
}

// WithResolver sets how key identifiers map to stored keys. The default uses
// identifiers as keys.
func WithResolver(r KeyResolver) Option {
	return func(h *Handler) {
		if r != nil {
			h.resolver = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Handler reads and writes descriptor values in one settings file. It keeps
// a snapshot of every stored entry which is refreshed on construction, after
// every write it performs, and on demand.
//
// Individual operations are safe for concurrent use. Sequences such as a Get
// followed by a Set are not atomic.
type Handler struct {
	def        Definition
	store      settings.Store
	codec      Codec
	permissive bool
	resolver   KeyResolver
	logger     *slog.Logger

	// refreshMu serializes the read-and-swap of RefreshCache so an older
	// snapshot never replaces a newer one.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	cache     map[string]settings.Value
	revision  string

	listenersMu  sync.Mutex
	listeners    map[uint64]*listener
	nextListener uint64
}

// New opens the settings file named by def and loads its entries.
func New(def Definition, opener settings.Opener, opts ...Option) (*Handler, error) {
	if def == nil || opener == nil {
		return nil, fmt.Errorf("%w: definition and opener are required", ErrInvalidArgument)
	}
	h := &Handler{
		def:       def,
		codec:     JSONCodec{},
		resolver:  IdentityResolver{},
		logger:    slog.Default(),
		cache:     map[string]settings.Value{},
		listeners: map[uint64]*listener{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	store, err := opener.Open(def.SettingsFileName())
	if err != nil {
		return nil, fmt.Errorf("prefs: opening settings %q: %w", def.SettingsFileName(), err)
	}
	h.store = store

	if err := h.RefreshCache(); err != nil {
		store.Close()
		return nil, err
	}
	h.logger.Debug("prefs: handler ready",
		"file", def.SettingsFileName(),
		"entries", len(h.cache),
		"codec", h.codec.Name(),
		"permissive", h.permissive,
	)
	return h, nil
}

func (h *Handler) SettingsFileName() string { return h.def.SettingsFileName() }

func (h *Handler) Descriptors() []Entry { return h.def.Descriptors() }

// Find returns the descriptor whose resolved key equals key.
func (h *Handler) Find(key string) (Entry, bool) {
	for _, e := range h.def.Descriptors() {
		if e == nil {
			continue
		}
		k, err := h.resolver.Resolve(e.Key())
		if err != nil {
			continue
		}
		if k == key {
			return e, true
		}
	}
	return nil, false
}

// Key returns the stored key of e.
func (h *Handler) Key(e Entry) (string, error) {
	return h.keyOf(e)
}

// RefreshCache reloads every entry from the store and swaps the snapshot in
// one step. Concurrent refreshes are serialized. Change listeners run
// afterwards on the caller's goroutine.
func (h *Handler) RefreshCache() error {
	old, cur, err := h.reload()
	if err != nil {
		return err
	}
	h.notify(old, cur)
	return nil
}

func (h *Handler) reload() (old, cur map[string]settings.Value, err error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	var rev string
	if r, ok := h.store.(settings.Revisioner); ok {
		if rev, err = r.Revision(); err != nil {
			return nil, nil, fmt.Errorf("prefs: reading revision of %q: %w", h.SettingsFileName(), err)
		}
	}
	all, err := h.store.All()
	if err != nil {
		return nil, nil, fmt.Errorf("prefs: loading %q: %w", h.SettingsFileName(), err)
	}

	h.mu.Lock()
	old = h.cache
	h.cache = all
	h.revision = rev
	h.mu.Unlock()
	return old, all, nil
}

// Snapshot returns a copy of the cached entries.
func (h *Handler) Snapshot() map[string]settings.Value {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return settings.Clone(h.cache)
}

// Stale reports whether the store changed since the last refresh. Stores
// without revisions return settings.ErrNotSupported.
func (h *Handler) Stale() (bool, error) {
	r, ok := h.store.(settings.Revisioner)
	if !ok {
		return false, settings.ErrNotSupported
	}
	rev, err := r.Revision()
	if err != nil {
		return false, fmt.Errorf("prefs: reading revision of %q: %w", h.SettingsFileName(), err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return rev != h.revision, nil
}

// Watch refreshes the cache whenever the store reports an outside change.
// It blocks until ctx is done. Stores that cannot notify return
// settings.ErrNotSupported.
func (h *Handler) Watch(ctx context.Context) error {
	w, ok := h.store.(settings.Watcher)
	if !ok {
		return settings.ErrNotSupported
	}
	return w.Watch(ctx, func() {
		if err := h.RefreshCache(); err != nil {
			h.logger.Warn("prefs: refresh after change failed", "file", h.SettingsFileName(), "error", err)
		}
	})
}

func (h *Handler) Close() error {
	return h.store.Close()
}

func (h *Handler) keyOf(e Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	key, err := h.resolver.Resolve(e.Key())
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: identifier %q resolved to an empty key", ErrInvalidArgument, e.Key())
	}
	return key, nil
}

func (h *Handler) lookup(key string) (settings.Value, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.cache[key]
	return v, ok
}
