package prefs

import "fmt"

// KeyResolver maps a descriptor's key identifier to the literal key used in
// the settings store.
type KeyResolver interface {
	Resolve(id string) (string, error)
}

// ResolverFunc adapts a function to KeyResolver.
type ResolverFunc func(id string) (string, error)

func (f ResolverFunc) Resolve(id string) (string, error) { return f(id) }

// IdentityResolver uses key identifiers as stored keys.
type IdentityResolver struct{}

func (IdentityResolver) Resolve(id string) (string, error) { return id, nil }

// KeyTable resolves identifiers through a fixed table. Unknown identifiers
// are an error.
type KeyTable map[string]string

func (t KeyTable) Resolve(id string) (string, error) {
	key, ok := t[id]
	if !ok || key == "" {
		return "", fmt.Errorf("%w: no key for identifier %q", ErrUnknownKey, id)
	}
	return key, nil
}
