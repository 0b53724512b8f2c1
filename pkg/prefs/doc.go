// Package prefs provides typed access to a persistent settings file.
//
// A Descriptor names one setting and carries its default value. The default's
// runtime type decides how the value is stored: bool, string, int32, float32
// and int64 (and named types over them) are stored natively, anything else is
// encoded as structured text with a Codec against the default's type.
//
//	var Theme = prefs.MustDescriptor("theme", int32(0), prefs.WithRule("value >= 0 && value <= 2"))
//
//	h, err := prefs.New(prefs.NewDefinition("preferences", Theme), opener)
//	theme, err := prefs.Get(h, Theme)
//	err = prefs.Set(h, Theme, 2)
//
// A Handler caches every stored entry. The cache is refreshed after each
// write the handler performs; writes made through another handle become
// visible after RefreshCache, or continuously while Watch runs.
package prefs
