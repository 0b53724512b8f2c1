package prefs

import "errors"

var (
	// ErrInvalidArgument is returned for nil defaults or values, empty keys
	// and values rejected by a descriptor rule.
	ErrInvalidArgument = errors.New("prefs: invalid argument")
	// ErrTypeMismatch is returned when a stored value does not have the
	// kind the descriptor expects.
	ErrTypeMismatch = errors.New("prefs: type mismatch")
	// ErrUnsupportedType is returned in strict mode for values the codec
	// cannot represent under the descriptor's schema.
	ErrUnsupportedType = errors.New("prefs: unsupported type")
	// ErrDeserialization is returned when stored text cannot be decoded
	// into the descriptor's schema.
	ErrDeserialization = errors.New("prefs: deserialization failed")
	// ErrUnknownKey is returned when no descriptor or key table entry
	// matches a key.
	ErrUnknownKey = errors.New("prefs: unknown key")
)
