package prefs

import (
	"fmt"
	"reflect"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Kind is the storage class of a descriptor, decided once from the runtime
// type of its default value.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindString
	KindInt32
	KindFloat32
	KindInt64
	// KindComplex values are stored as structured text.
	KindComplex
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindInt64:
		return "int64"
	case KindComplex:
		return "complex"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// native returns the settings kind a primitive Kind is stored as. Complex
// values are stored as strings.
func (k Kind) native() settings.Kind {
	switch k {
	case KindBool:
		return settings.KindBool
	case KindString, KindComplex:
		return settings.KindString
	case KindInt32:
		return settings.KindInt32
	case KindFloat32:
		return settings.KindFloat32
	case KindInt64:
		return settings.KindInt64
	default:
		return settings.KindInvalid
	}
}

func kindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.String:
		return KindString
	case reflect.Int32:
		return KindInt32
	case reflect.Float32:
		return KindFloat32
	case reflect.Int64:
		return KindInt64
	default:
		return KindComplex
	}
}

// Entry is the type-erased view of a Descriptor used by registries and tools.
// Only Descriptor implements it.
type Entry interface {
	Key() string
	Kind() Kind
	IsPrimitiveType() bool
	// Schema is the runtime type of the default value. Complex values are
	// encoded and decoded against it.
	Schema() reflect.Type
	Default() any
	Rule() string

	check(v any) error
}

// Descriptor identifies one setting: its key identifier, its default value
// and how the value is stored. Descriptors are immutable and safe to share.
type Descriptor[T any] struct {
	key    string
	def    T
	kind   Kind
	schema reflect.Type
	rule   *rule
}

// DescriptorOption configures a Descriptor at construction.
type DescriptorOption func(*descriptorConfig)

type descriptorConfig struct {
	rule string
}

// WithRule attaches a boolean expr-lang expression over `value` that every
// stored value must satisfy, e.g. "value >= 0 && value <= 2".
func WithRule(expression string) DescriptorOption {
	return func(cfg *descriptorConfig) {
		cfg.rule = expression
	}
}

// NewDescriptor returns a descriptor for key with the given default. The
// default must not be nil and must satisfy the rule, if any.
func NewDescriptor[T any](key string, def T, opts ...DescriptorOption) (*Descriptor[T], error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	if isNil(def) {
		return nil, fmt.Errorf("%w: default value for %q must not be nil", ErrInvalidArgument, key)
	}

	cfg := descriptorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	schema := reflect.TypeOf(any(def))
	d := &Descriptor[T]{
		key:    key,
		def:    def,
		kind:   kindOf(schema),
		schema: schema,
	}

	if cfg.rule != "" {
		r, err := compileRule(cfg.rule, def)
		if err != nil {
			return nil, fmt.Errorf("descriptor %q: %w", key, err)
		}
		d.rule = r
		if err := r.check(def); err != nil {
			return nil, fmt.Errorf("descriptor %q default: %w", key, err)
		}
	}
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on error. It simplifies
// package-level descriptor variables.
func MustDescriptor[T any](key string, def T, opts ...DescriptorOption) *Descriptor[T] {
	d, err := NewDescriptor(key, def, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Key returns the key identifier. A Handler resolves it to the stored key.
func (d *Descriptor[T]) Key() string { return d.key }

// DefaultValue returns the typed default.
func (d *Descriptor[T]) DefaultValue() T { return d.def }

func (d *Descriptor[T]) Default() any { return d.def }

func (d *Descriptor[T]) Kind() Kind { return d.kind }

// IsPrimitiveType reports whether the value is stored natively rather than
// as structured text.
func (d *Descriptor[T]) IsPrimitiveType() bool { return d.kind != KindComplex }

func (d *Descriptor[T]) Schema() reflect.Type { return d.schema }

// Rule returns the validation expression, or "" when there is none.
func (d *Descriptor[T]) Rule() string {
	if d.rule == nil {
		return ""
	}
	return d.rule.source
}

func (d *Descriptor[T]) check(v any) error {
	if d.rule == nil {
		return nil
	}
	return d.rule.check(v)
}

// Get is shorthand for Get(h, d).
func (d *Descriptor[T]) Get(h *Handler) (T, error) { return Get(h, d) }

// Set is shorthand for Set(h, d, v).
func (d *Descriptor[T]) Set(h *Handler, v T) error { return Set(h, d, v) }

// Clear is shorthand for h.Clear(d).
func (d *Descriptor[T]) Clear(h *Handler) error { return h.Clear(d) }

func (d *Descriptor[T]) String() string {
	return fmt.Sprintf("%s(%s)", d.key, d.kind)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
