package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "store.backend", typ: kString, env: "PREFS_STORE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Store.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Backend },
	},
	{
		key: "store.dir", typ: kString, env: "PREFS_STORE_DIR",
		apply:   func(cfg *Config, v any) { cfg.Store.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Dir },
	},
	{
		key: "store.format", typ: kString, env: "PREFS_STORE_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Store.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Format },
	},
	{
		key: "prefs.codec", typ: kString, env: "PREFS_CODEC",
		apply:   func(cfg *Config, v any) { cfg.Prefs.Codec = v.(string) },
		extract: func(cfg Config) any { return cfg.Prefs.Codec },
	},
	{
		key: "prefs.permissive", typ: kBool, env: "PREFS_PERMISSIVE",
		apply:   func(cfg *Config, v any) { cfg.Prefs.Permissive = v.(bool) },
		extract: func(cfg Config) any { return cfg.Prefs.Permissive },
	},
	{
		key: "log.level", typ: kString, env: "PREFS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		v, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kBool:
			if v == "" {
				continue
			}
			if bv, err := strconv.ParseBool(v); err == nil {
				s.apply(cfg, bv)
			} else {
				slog.Warn("config: could not parse bool, using default", "key", s.key, "value", v, "error", err)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				slog.Warn("config: could not parse bool from env, using default", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
