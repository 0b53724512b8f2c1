package main

import (
	"context"
	"errors"
	"time"

	"github.com/kalambet/typedprefs/internal/demo"
	"github.com/kalambet/typedprefs/pkg/prefs"
	"github.com/kalambet/typedprefs/pkg/settings"
)

// follow keeps h's cache current until ctx is done. Stores that cannot
// notify are polled for revision changes instead.
func follow(ctx context.Context, h *prefs.Handler, interval time.Duration) error {
	err := h.Watch(ctx)
	if !errors.Is(err, settings.ErrNotSupported) {
		return err
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stale, err := h.Stale()
			if errors.Is(err, settings.ErrNotSupported) {
				stale = true
			} else if err != nil {
				return err
			}
			if stale {
				if err := h.RefreshCache(); err != nil {
					return err
				}
			}
		}
	}
}

// reportChanges registers a change listener on every demo preference. The
// returned function unregisters them.
func reportChanges(h *prefs.Handler, emit func(string)) (func(), error) {
	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, register := range []func() (func(), error){
		func() (func(), error) { return onChange(h, demo.ThemeSetting, emit) },
		func() (func(), error) { return onChange(h, demo.BooleanSetting, emit) },
		func() (func(), error) { return onChange(h, demo.ComplexSetting, emit) },
	} {
		cancel, err := register()
		if err != nil {
			cancelAll()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return cancelAll, nil
}

func onChange[T any](h *prefs.Handler, d *prefs.Descriptor[T], emit func(string)) (func(), error) {
	key, err := h.Key(d)
	if err != nil {
		return nil, err
	}
	return prefs.OnChange(h, d, func(old, new T) {
		emit(changeLine(key, old, new))
	})
}
