package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// fileBackend stores config as a TOML document. Dotted keys map to tables,
// so "store.backend" lives under [store].
type fileBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("config: could not read config file, using defaults", "path", b.path, "error", err)
		}
		return
	}
	if err := toml.Unmarshal(data, &b.data); err != nil {
		slog.Warn("config: could not parse config file, using defaults", "path", b.path, "error", err)
		b.data = make(map[string]any)
	}
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(b.data)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

// table walks to the table holding the last segment of key. With create
// set, missing tables are added.
func (b *fileBackend) table(key string, create bool) (map[string]any, string, error) {
	parts := strings.Split(key, ".")
	t := b.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := t[p]
		if !ok {
			if !create {
				return nil, "", nil
			}
			m := make(map[string]any)
			t[p] = m
			t = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%s: %q is not a table", key, p)
		}
		t = m
	}
	return t, parts[len(parts)-1], nil
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	t, leaf, err := b.table(key, false)
	if err != nil || t == nil {
		return "", false, err
	}
	v, ok := t[leaf]
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case map[string]any, []any:
		return "", true, fmt.Errorf("invalid type for %s", key)
	default:
		return fmt.Sprintf("%v", val), true, nil
	}
}

func (b *fileBackend) set(key string, val any) error {
	t, leaf, err := b.table(key, true)
	if err != nil {
		return err
	}
	t[leaf] = val
	return b.save()
}

func (b *fileBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *fileBackend) SetBool(key string, val bool) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	t, leaf, err := b.table(key, false)
	if err != nil || t == nil {
		return err
	}
	delete(t, leaf)
	return b.save()
}
