package prefs

import (
	"fmt"
	"reflect"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Get returns the value of d. A missing entry is initialized with the
// default, which is persisted before it is returned.
func Get[T any](h *Handler, d *Descriptor[T]) (T, error) {
	var zero T
	if d == nil {
		return zero, fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	v, err := h.get(d)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q decoded to %T", ErrTypeMismatch, d.key, v)
	}
	return t, nil
}

// Set stores v under d and refreshes the cache.
func Set[T any](h *Handler, d *Descriptor[T], v T) error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	return h.set(d, v)
}

// GetAny is the untyped form of Get for tools that only hold an Entry.
func (h *Handler) GetAny(e Entry) (any, error) {
	return h.get(e)
}

// SetAny is the untyped form of Set. v goes through the same policy checks.
func (h *Handler) SetAny(e Entry, v any) error {
	return h.set(e, v)
}

// Has reports whether the cache holds an entry for e. It does not persist
// the default.
func (h *Handler) Has(e Entry) (bool, error) {
	key, err := h.keyOf(e)
	if err != nil {
		return false, err
	}
	_, ok := h.lookup(key)
	return ok, nil
}

// Clear removes the entry of e. The next Get returns the default.
func (h *Handler) Clear(e Entry) error {
	key, err := h.keyOf(e)
	if err != nil {
		return err
	}
	ed := h.store.Edit()
	ed.Remove(key)
	if err := ed.Commit(); err != nil {
		return fmt.Errorf("prefs: removing %q: %w", key, err)
	}
	h.logger.Debug("prefs: removed value", "file", h.SettingsFileName(), "key", key)
	return h.RefreshCache()
}

// ClearAll removes every entry of the settings file, including keys no
// descriptor knows about.
func (h *Handler) ClearAll() error {
	ed := h.store.Edit()
	ed.Clear()
	if err := ed.Commit(); err != nil {
		return fmt.Errorf("prefs: clearing %q: %w", h.SettingsFileName(), err)
	}
	h.logger.Debug("prefs: cleared all values", "file", h.SettingsFileName())
	return h.RefreshCache()
}

// ParseText converts user input into a value of e's type. Primitive kinds
// use their canonical text form; complex values are decoded with the codec.
func (h *Handler) ParseText(e Entry, text string) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	if e.IsPrimitiveType() {
		raw, err := settings.Parse(e.Kind().native(), text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %s: %w", ErrInvalidArgument, text, e.Kind(), err)
		}
		return reflect.ValueOf(raw.Interface()).Convert(e.Schema()).Interface(), nil
	}
	v, err := h.codecFor(e.Schema()).Decode(text, e.Schema())
	if err != nil {
		return nil, fmt.Errorf("%w: %q as %s: %w", ErrInvalidArgument, text, e.Schema(), err)
	}
	return v, nil
}

// FormatText renders v the way ParseText reads it back.
func (h *Handler) FormatText(e Entry, v any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	if isNil(v) {
		return "", fmt.Errorf("%w: nil value", ErrInvalidArgument)
	}
	if e.IsPrimitiveType() {
		rv := reflect.ValueOf(v)
		if kindOf(rv.Type()) != e.Kind() {
			return "", fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, e.Kind())
		}
		return nativeValue(rv, e.Kind()).Text(), nil
	}
	return h.codecFor(e.Schema()).Encode(v, e.Schema())
}

func (h *Handler) get(e Entry) (any, error) {
	key, err := h.keyOf(e)
	if err != nil {
		return nil, err
	}
	raw, ok := h.lookup(key)
	if !ok {
		// The persisted entry is decoded so callers never share the
		// descriptor's default.
		if raw, err = h.put(e, e.Default()); err != nil {
			return nil, fmt.Errorf("prefs: persisting default of %q: %w", key, err)
		}
	}
	return h.decode(e, key, raw)
}

// freshDefault returns a copy of e's default that shares no memory with the
// descriptor.
func (h *Handler) freshDefault(e Entry) (any, error) {
	if e.IsPrimitiveType() {
		return e.Default(), nil
	}
	c := h.codecFor(e.Schema())
	text, err := c.Encode(e.Default(), e.Schema())
	if err != nil {
		return nil, err
	}
	return c.Decode(text, e.Schema())
}

func (h *Handler) decode(e Entry, key string, raw settings.Value) (any, error) {
	if e.IsPrimitiveType() {
		if raw.Kind() != e.Kind().native() {
			return nil, fmt.Errorf("%w: %q holds %s, want %s", ErrTypeMismatch, key, raw.Kind(), e.Kind())
		}
		return reflect.ValueOf(raw.Interface()).Convert(e.Schema()).Interface(), nil
	}
	if raw.Kind() != settings.KindString {
		return nil, fmt.Errorf("%w: %q holds %s, want encoded %s", ErrTypeMismatch, key, raw.Kind(), e.Schema())
	}
	v, err := h.codecFor(e.Schema()).Decode(raw.Text(), e.Schema())
	if err != nil {
		return nil, fmt.Errorf("%w: %q as %s: %w", ErrDeserialization, key, e.Schema(), err)
	}
	return v, nil
}

func (h *Handler) set(e Entry, v any) error {
	_, err := h.put(e, v)
	return err
}

// put stores v under e, refreshes the cache and returns the stored value.
func (h *Handler) put(e Entry, v any) (settings.Value, error) {
	key, err := h.keyOf(e)
	if err != nil {
		return settings.Value{}, err
	}
	if isNil(v) {
		return settings.Value{}, fmt.Errorf("%w: nil value for %q", ErrInvalidArgument, key)
	}
	val, err := h.encode(e, key, v)
	if err != nil {
		return settings.Value{}, err
	}
	if err := e.check(v); err != nil {
		return settings.Value{}, fmt.Errorf("prefs: %q: %w", key, err)
	}

	ed := h.store.Edit()
	ed.Put(key, val)
	if err := ed.Commit(); err != nil {
		return settings.Value{}, fmt.Errorf("prefs: storing %q: %w", key, err)
	}
	h.logger.Debug("prefs: stored value", "file", h.SettingsFileName(), "key", key, "kind", val.Kind())
	return val, h.RefreshCache()
}

// encode turns v into a stored value. Primitive runtime kinds are stored
// natively; anything else becomes structured text under e's schema.
func (h *Handler) encode(e Entry, key string, v any) (settings.Value, error) {
	rv := reflect.ValueOf(v)
	rk := kindOf(rv.Type())

	if !h.permissive {
		if e.IsPrimitiveType() {
			if rk == KindComplex {
				return settings.Value{}, fmt.Errorf("%w: %q wants %s, got %T", ErrUnsupportedType, key, e.Kind(), v)
			}
			if rk != e.Kind() {
				return settings.Value{}, fmt.Errorf("%w: %q wants %s, got %T", ErrTypeMismatch, key, e.Kind(), v)
			}
			return nativeValue(rv, rk), nil
		}
		if rv.Type() != e.Schema() {
			return settings.Value{}, fmt.Errorf("%w: %q wants %s, got %T", ErrUnsupportedType, key, e.Schema(), v)
		}
		if !h.codec.Supports(e.Schema()) {
			return settings.Value{}, fmt.Errorf("%w: %s codec cannot represent %s", ErrUnsupportedType, h.codec.Name(), e.Schema())
		}
	} else if rk != KindComplex {
		return nativeValue(rv, rk), nil
	}

	text, err := h.codecFor(e.Schema()).Encode(v, e.Schema())
	if err != nil {
		return settings.Value{}, fmt.Errorf("%w: encoding %q: %w", ErrUnsupportedType, key, err)
	}
	return settings.String(text), nil
}

// codecFor returns the codec used for schema. In permissive mode schemas
// the configured codec cannot represent fall back to JSON.
func (h *Handler) codecFor(schema reflect.Type) Codec {
	if h.permissive && !h.codec.Supports(schema) {
		return JSONCodec{}
	}
	return h.codec
}

func nativeValue(rv reflect.Value, k Kind) settings.Value {
	switch k {
	case KindBool:
		return settings.Bool(rv.Bool())
	case KindString:
		return settings.String(rv.String())
	case KindInt32:
		return settings.Int32(int32(rv.Int()))
	case KindFloat32:
		return settings.Float32(float32(rv.Float()))
	case KindInt64:
		return settings.Int64(rv.Int())
	default:
		return settings.Value{}
	}
}
