package waybar

import (
	"sort"
	"strings"

	"github.com/bnema/presence-board/internal/nerdfonts"
)

// Theme maps board states to symbols and CSS classes. Waybar styles the
// module through the class list, so a theme never carries colours itself.
type Theme struct {
	Name      string
	Class     string
	Present   string
	Absent    string
	Updated   string
	Comment   string
	Separator string
}

var themes = map[string]Theme{
	"light": {
		Name:      "light",
		Class:     "theme-light",
		Present:   nerdfonts.CheckCircle,
		Absent:    nerdfonts.Circle,
		Updated:   nerdfonts.Bell,
		Comment:   nerdfonts.InfoCircle,
		Separator: "━",
	},
	"dark": {
		Name:      "dark",
		Class:     "theme-dark",
		Present:   nerdfonts.StatusActive,
		Absent:    nerdfonts.StatusIdle,
		Updated:   nerdfonts.Bell,
		Comment:   nerdfonts.InfoCircle,
		Separator: "─",
	},
	"contrast": {
		Name:      "contrast",
		Class:     "theme-contrast",
		Present:   "[x]",
		Absent:    "[ ]",
		Updated:   "*",
		Comment:   "-",
		Separator: "=",
	},
}

// DefaultTheme is used for unknown theme names.
const DefaultTheme = "light"

// LookupTheme returns the named theme, falling back to the default one.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return themes[DefaultTheme], false
	}
	return t, true
}

// ThemeNames lists the available themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
