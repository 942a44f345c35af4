// Package ui holds the bubbletea models: the session selector shown at
// startup, the sidebar that lives in its tmux pane, and the feature input
// flow for plan generation.
package ui

import (
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/lazyaider/lazyaider/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Theme is the resolved color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var darkColors = struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Green, Yellow, Red         lipgloss.Color
}{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
}

var lightColors = struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Green, Yellow, Red         lipgloss.Color
}{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
}

// Active color variables, set by InitTheme before any rendering.
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorRed     lipgloss.Color
)

// Progress label styles, derived from label_color_completed and
// label_color_current.
var (
	StyleCompleted lipgloss.Style
	StyleCurrent   lipgloss.Style
)

// themeMu protects the global color/style variables during live theme
// switches driven by the OS theme watcher.
var themeMu sync.RWMutex

var currentTheme = ThemeLight

// ResolveTheme maps a theme_name config value to a concrete theme. "system"
// asks the OS; failure to detect falls back to light, matching the config
// default.
func ResolveTheme(name string) Theme {
	switch name {
	case "dark":
		return ThemeDark
	case "light":
		return ThemeLight
	case "system":
		isDark, err := dark.IsDarkMode()
		if err != nil {
			uiLog.Warn("dark_mode_detect_failed", slog.String("error", err.Error()))
			return ThemeLight
		}
		if isDark {
			return ThemeDark
		}
		return ThemeLight
	default:
		uiLog.Warn("unknown_theme", slog.String("theme_name", name))
		return ThemeLight
	}
}

// InitTheme sets the active palette and rebuilds the label styles.
// completedColor and currentColor come straight from the config; they accept
// CSS color names, hex values, or ANSI numbers.
func InitTheme(theme Theme, completedColor, currentColor string) {
	themeMu.Lock()
	defer themeMu.Unlock()

	currentTheme = theme
	c := darkColors
	if theme == ThemeLight {
		c = lightColors
	}
	ColorBg = c.Bg
	ColorSurface = c.Surface
	ColorBorder = c.Border
	ColorText = c.Text
	ColorTextDim = c.TextDim
	ColorAccent = c.Accent
	ColorGreen = c.Green
	ColorYellow = c.Yellow
	ColorRed = c.Red

	StyleCompleted = lipgloss.NewStyle().Foreground(namedColor(completedColor, ColorGreen))
	StyleCurrent = lipgloss.NewStyle().Foreground(namedColor(currentColor, ColorYellow)).Bold(true)
}

// CurrentTheme returns the active theme.
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// cssColors maps the color names the config documents to terminal-safe hex.
var cssColors = map[string]string{
	"black":   "#000000",
	"red":     "#e06c75",
	"green":   "#98c379",
	"yellow":  "#e5c07b",
	"blue":    "#61afef",
	"magenta": "#c678dd",
	"cyan":    "#56b6c2",
	"white":   "#ffffff",
	"orange":  "#d19a66",
	"grey":    "#5c6370",
	"gray":    "#5c6370",
}

// namedColor converts a configured color string to a lipgloss color. Known
// names map to hex; anything else (hex, ANSI number) passes through. Empty
// falls back to the given default.
func namedColor(name string, fallback lipgloss.Color) lipgloss.Color {
	if name == "" {
		return fallback
	}
	if hex, ok := cssColors[name]; ok {
		return lipgloss.Color(hex)
	}
	return lipgloss.Color(name)
}
