package prefs

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/kalambet/typedprefs/pkg/settings"
)

type listener struct {
	key  string
	fire func(old, new settings.Value, hadOld, hasNew bool)
}

// OnChange registers fn to run after a refresh changed the value of d. A
// missing entry counts as the default, so persisting the default on first
// read does not fire. The returned function unregisters fn.
func OnChange[T any](h *Handler, d *Descriptor[T], fn func(old, new T)) (func(), error) {
	key, err := h.keyOf(d)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrInvalidArgument
	}

	value := func(raw settings.Value, ok bool) (T, bool) {
		if !ok {
			v, err := h.freshDefault(d)
			if err != nil {
				h.logger.Warn("prefs: change listener could not copy default", "key", key, "error", err)
				return d.def, true
			}
			t, ok := v.(T)
			return t, ok
		}
		v, err := h.decode(d, key, raw)
		if err != nil {
			h.logger.Warn("prefs: change listener skipped undecodable value", "key", key, "error", err)
			var zero T
			return zero, false
		}
		t, ok := v.(T)
		return t, ok
	}

	l := &listener{
		key: key,
		fire: func(oldRaw, newRaw settings.Value, hadOld, hasNew bool) {
			ov, ok := value(oldRaw, hadOld)
			if !ok {
				return
			}
			nv, ok := value(newRaw, hasNew)
			if !ok {
				return
			}
			if reflect.DeepEqual(ov, nv) {
				return
			}
			fn(ov, nv)
		},
	}

	h.listenersMu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = l
	h.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.listenersMu.Lock()
			delete(h.listeners, id)
			h.listenersMu.Unlock()
		})
	}, nil
}

// notify runs listeners, in registration order, whose entry differs between
// the two snapshots.
func (h *Handler) notify(old, cur map[string]settings.Value) {
	h.listenersMu.Lock()
	if len(h.listeners) == 0 {
		h.listenersMu.Unlock()
		return
	}
	ids := slices.Sorted(maps.Keys(h.listeners))
	ls := make([]*listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, h.listeners[id])
	}
	h.listenersMu.Unlock()

	for _, l := range ls {
		ov, hadOld := old[l.key]
		nv, hasNew := cur[l.key]
		if hadOld == hasNew && ov == nv {
			continue
		}
		l.fire(ov, nv, hadOld, hasNew)
	}
}

// RemoveListeners unregisters every change listener of e.
func (h *Handler) RemoveListeners(e Entry) error {
	key, err := h.keyOf(e)
	if err != nil {
		return err
	}
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	for id, l := range h.listeners {
		if l.key == key {
			delete(h.listeners, id)
		}
	}
	return nil
}

// RemoveAllListeners unregisters every change listener of the handler.
func (h *Handler) RemoveAllListeners() {
	h.listenersMu.Lock()
	clear(h.listeners)
	h.listenersMu.Unlock()
}
