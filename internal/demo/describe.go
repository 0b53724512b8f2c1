package demo

import (
	"fmt"

	"github.com/kalambet/typedprefs/pkg/prefs"
)

// EntryView is a printable row describing one preference.
type EntryView struct {
	Key     string `json:"key"`
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
	Default string `json:"default"`
	Stored  bool   `json:"stored"`
	Rule    string `json:"rule,omitempty"`
}

// Lookup finds a descriptor by stored key or by identifier.
func Lookup(h *prefs.Handler, key string) (prefs.Entry, error) {
	if e, ok := h.Find(key); ok {
		return e, nil
	}
	for _, e := range h.Descriptors() {
		if e.Key() == key {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", prefs.ErrUnknownKey, key)
}

// Describe renders e without persisting its default.
func Describe(h *prefs.Handler, e prefs.Entry) (EntryView, error) {
	key, err := h.Key(e)
	if err != nil {
		return EntryView{}, err
	}
	def, err := h.FormatText(e, e.Default())
	if err != nil {
		return EntryView{}, fmt.Errorf("formatting default of %s: %w", key, err)
	}
	view := EntryView{
		Key:     key,
		ID:      e.Key(),
		Kind:    e.Kind().String(),
		Value:   def,
		Default: def,
		Rule:    e.Rule(),
	}

	stored, err := h.Has(e)
	if err != nil {
		return EntryView{}, err
	}
	if !stored {
		return view, nil
	}
	v, err := h.GetAny(e)
	if err != nil {
		return EntryView{}, err
	}
	if view.Value, err = h.FormatText(e, v); err != nil {
		return EntryView{}, fmt.Errorf("formatting %s: %w", key, err)
	}
	view.Stored = true
	return view, nil
}

// DescribeAll describes every registered preference in registry order.
func DescribeAll(h *prefs.Handler) ([]EntryView, error) {
	views := make([]EntryView, 0, len(h.Descriptors()))
	for _, e := range h.Descriptors() {
		v, err := Describe(h, e)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
