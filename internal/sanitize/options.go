package sanitize

import (
	"fmt"
	"strings"
)

// Theme selects the palette applied to rendered output
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark" (case-insensitive); empty means light
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ThemeLight):
		return ThemeLight, nil
	case string(ThemeDark):
		return ThemeDark, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Options controls a single transformation. It is a value type; nothing
// in the sanitizer keeps per-call state.
type Options struct {
	LoadExternalImages bool  `json:"loadExternalImages"`
	Theme              Theme `json:"theme"`
}
