package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/typedprefs/pkg/settings"
)

// Format selects the on-disk encoding of a settings file.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("unknown settings file format %q", s)
	}
}

// Ext returns the file extension, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// entry is how a single value is laid out on disk. The value is kept in its
// canonical text form so int64 and float32 survive every format unchanged.
type entry struct {
	Type  string `json:"type" yaml:"type" toml:"type"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

func (f Format) marshal(values map[string]settings.Value) ([]byte, error) {
	doc := make(map[string]entry, len(values))
	for k, v := range values {
		doc[k] = entry{Type: v.Kind().String(), Value: v.Text()}
	}
	switch f {
	case JSON:
		return json.MarshalIndent(doc, "", "  ")
	case YAML:
		return yaml.Marshal(doc)
	case TOML:
		return toml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown settings file format %q", f)
	}
}

func (f Format) unmarshal(data []byte) (map[string]settings.Value, error) {
	doc := map[string]entry{}
	if len(bytes.TrimSpace(data)) > 0 {
		var err error
		switch f {
		case JSON:
			err = json.Unmarshal(data, &doc)
		case YAML:
			err = yaml.Unmarshal(data, &doc)
		case TOML:
			err = toml.Unmarshal(data, &doc)
		default:
			err = fmt.Errorf("unknown settings file format %q", f)
		}
		if err != nil {
			return nil, err
		}
	}

	values := make(map[string]settings.Value, len(doc))
	for k, e := range doc {
		kind, err := settings.ParseKind(e.Type)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		v, err := settings.Parse(kind, e.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		values[k] = v
	}
	return values, nil
}
