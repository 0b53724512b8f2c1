package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKeyIn writes a config key to the config file at path.
func SetKeyIn(path, key, value string) error {
	return setKeyWith(newFileBackend(path), key, value)
}

// UnsetKeyIn removes a config key from the config file at path so the
// default applies again.
func UnsetKeyIn(path, key string) error {
	if _, ok := lookupSpec(key); !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	return newFileBackend(path).Delete(key)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	// Validate against the full config so bad values never reach the file.
	cfg := defaults()
	switch s.typ {
	case kString:
		s.apply(&cfg, value)
	case kBool:
		bv, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value for %s: %w", key, err)
		}
		s.apply(&cfg, bv)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch s.typ {
	case kBool:
		return b.SetBool(key, s.extract(cfg).(bool))
	default:
		return b.SetString(key, value)
	}
}

// ValidKeys returns the list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
