package prefs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Codec turns complex values into structured text and back. The schema is
// always supplied by the caller; codecs never infer a type from the text.
type Codec interface {
	Name() string
	// Supports reports whether values of schema can be encoded and decoded.
	Supports(schema reflect.Type) bool
	Encode(v any, schema reflect.Type) (string, error)
	Decode(text string, schema reflect.Type) (any, error)
}

// CodecByName returns the codec registered under name ("json", "yaml" or
// "toml").
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	case "toml":
		return TOMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec encodes with encoding/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Supports(schema reflect.Type) bool {
	return encodable(schema, jsonMapKey, map[reflect.Type]bool{})
}

func (JSONCodec) Encode(v any, schema reflect.Type) (string, error) {
	b, err := json.Marshal(asSchema(v, schema))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONCodec) Decode(text string, schema reflect.Type) (any, error) {
	return decodeInto(schema, func(target any) error {
		return json.Unmarshal([]byte(text), target)
	})
}

// YAMLCodec encodes with gopkg.in/yaml.v3.
type YAMLCodec struct{}

func (YAMLCodec) Name() string { return "yaml" }

func (YAMLCodec) Supports(schema reflect.Type) bool {
	return encodable(schema, func(reflect.Type) bool { return true }, map[reflect.Type]bool{})
}

func (YAMLCodec) Encode(v any, schema reflect.Type) (string, error) {
	b, err := yaml.Marshal(asSchema(v, schema))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (YAMLCodec) Decode(text string, schema reflect.Type) (any, error) {
	return decodeInto(schema, func(target any) error {
		return yaml.Unmarshal([]byte(text), target)
	})
}

// TOMLCodec encodes with go-toml/v2. A TOML document is a table, so only
// structs and string-keyed maps are supported at the top level.
type TOMLCodec struct{}

func (TOMLCodec) Name() string { return "toml" }

func (TOMLCodec) Supports(schema reflect.Type) bool {
	if schema == nil {
		return false
	}
	top := schema
	if top.Kind() == reflect.Pointer {
		top = top.Elem()
	}
	switch {
	case top.Kind() == reflect.Struct:
	case top.Kind() == reflect.Map && top.Key().Kind() == reflect.String:
	default:
		return false
	}
	return encodable(schema, func(k reflect.Type) bool { return k.Kind() == reflect.String }, map[reflect.Type]bool{})
}

func (TOMLCodec) Encode(v any, schema reflect.Type) (string, error) {
	b, err := toml.Marshal(asSchema(v, schema))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (TOMLCodec) Decode(text string, schema reflect.Type) (any, error) {
	return decodeInto(schema, func(target any) error {
		return toml.Unmarshal([]byte(text), target)
	})
}

// asSchema converts v to schema when the types differ but are convertible,
// so named types encode the same way as the descriptor's default.
func asSchema(v any, schema reflect.Type) any {
	rv := reflect.ValueOf(v)
	if schema == nil || !rv.IsValid() || rv.Type() == schema || !rv.Type().ConvertibleTo(schema) {
		return v
	}
	return rv.Convert(schema).Interface()
}

func decodeInto(schema reflect.Type, unmarshal func(target any) error) (any, error) {
	if schema == nil {
		return nil, fmt.Errorf("no schema to decode into")
	}
	target := reflect.New(schema)
	if err := unmarshal(target.Interface()); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

var textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

func jsonMapKey(k reflect.Type) bool {
	if k.Implements(textMarshaler) {
		return true
	}
	switch k.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// encodable walks schema and rejects types no text codec can carry.
func encodable(t reflect.Type, mapKey func(reflect.Type) bool, seen map[reflect.Type]bool) bool {
	if t == nil {
		return false
	}
	if seen[t] {
		return true
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return encodable(t.Elem(), mapKey, seen)
	case reflect.Map:
		return mapKey(t.Key()) && encodable(t.Elem(), mapKey, seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if tag := f.Tag.Get("json"); tag == "-" {
				continue
			}
			if !encodable(f.Type, mapKey, seen) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
