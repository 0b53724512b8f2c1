// Package demo declares the preferences of the demo application.
package demo

import (
	"fmt"

	"github.com/kalambet/typedprefs/pkg/prefs"
)

// SettingsFileName is the settings file every demo surface uses.
const SettingsFileName = "preferences"

// Theme selects the colour scheme of the demo UI.
type Theme int32

const (
	ThemeLight Theme = iota
	ThemeDark
	ThemeSystem
)

var themeNames = map[Theme]string{
	ThemeLight:  "light",
	ThemeDark:   "dark",
	ThemeSystem: "system",
}

func (t Theme) String() string {
	if name, ok := themeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("theme(%d)", int32(t))
}

// ComplexClass is stored as structured text.
type ComplexClass struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Number int    `json:"number" yaml:"number" toml:"number"`
	List   []int  `json:"list" yaml:"list" toml:"list"`
}

func (c ComplexClass) String() string {
	return fmt.Sprintf("ComplexClass(name=%s, number=%d, list=%v)", c.Name, c.Number, c.List)
}

var (
	ThemeSetting   = prefs.MustDescriptor("THEME", ThemeLight, prefs.WithRule("value >= 0 && value <= 2"))
	BooleanSetting = prefs.MustDescriptor("BOOLEAN_SETTING", true)
	ComplexSetting = prefs.MustDescriptor("COMPLEX_SETTING", ComplexClass{
		Name:   "Complex ^",
		Number: 10,
		List:   []int{1, 2, 3},
	})
)

// Keys maps descriptor identifiers to the keys stored in the settings file.
var Keys = prefs.KeyTable{
	"THEME":           "theme",
	"BOOLEAN_SETTING": "boolean_setting",
	"COMPLEX_SETTING": "complex_setting",
}

// Preferences is the demo's settings file definition.
type Preferences struct{}

func (Preferences) SettingsFileName() string { return SettingsFileName }

func (Preferences) Descriptors() []prefs.Entry {
	return []prefs.Entry{ThemeSetting, BooleanSetting, ComplexSetting}
}
