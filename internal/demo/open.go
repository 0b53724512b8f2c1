package demo

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/typedprefs/internal/config"
	"github.com/kalambet/typedprefs/pkg/prefs"
	"github.com/kalambet/typedprefs/pkg/settings"
	"github.com/kalambet/typedprefs/pkg/settings/file"
	"github.com/kalambet/typedprefs/pkg/settings/memory"
	"github.com/kalambet/typedprefs/pkg/settings/sqlite"
)

// Opener returns the settings opener selected by cfg. The returned function
// releases resources the opener holds and must be called once the handlers
// using it are closed.
func Opener(cfg config.Config) (settings.Opener, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendFile:
		format, err := file.ParseFormat(cfg.Store.Format)
		if err != nil {
			return nil, nil, err
		}
		return file.NewOpener(cfg.Store.Dir, format), noop, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.BackendMemory:
		return memory.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Options turns cfg into handler options.
func Options(cfg config.Config, logger *slog.Logger) ([]prefs.Option, error) {
	codec, err := prefs.CodecByName(cfg.Prefs.Codec)
	if err != nil {
		return nil, err
	}
	return []prefs.Option{
		prefs.WithCodec(codec),
		prefs.WithPermissive(cfg.Prefs.Permissive),
		prefs.WithResolver(Keys),
		prefs.WithLogger(logger),
	}, nil
}

// Open builds the demo handler for cfg. Closing the returned cleanup
// function closes the handler and the backend.
func Open(cfg config.Config, logger *slog.Logger) (*prefs.Handler, func() error, error) {
	opener, release, err := Opener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	opts, err := Options(cfg, logger)
	if err != nil {
		release()
		return nil, nil, err
	}
	h, err := prefs.New(Preferences{}, opener, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	closeAll := func() error {
		herr := h.Close()
		if err := release(); err != nil {
			return err
		}
		return herr
	}
	return h, closeAll, nil
}
