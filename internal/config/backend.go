package config

// ConfigBackend abstracts where the demo's own configuration is persisted.
// Keys are dotted paths such as "store.backend".
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	SetString(key, val string) error
	SetBool(key string, val bool) error
	Delete(key string) error
}
