// Package ui styles calcsnap terminal output with adaptive light/dark colors.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette (Ayu light/dark).
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle    = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle    = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle    = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle  = lipgloss.NewStyle().Foreground(ColorAccent)
	HeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass    = "✓"
	IconWarn    = "⚠"
	IconFail    = "✗"
	IconPending = "○"
)

// Plain fallbacks when icons are disabled.
var plainIcons = map[string]string{
	IconPass:    "ok",
	IconWarn:    "!",
	IconFail:    "x",
	IconPending: "-",
}

func icon(s string) string {
	if ShouldUseEmoji() {
		return s
	}
	return plainIcons[s]
}

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeading renders a section header in uppercase.
func RenderHeading(s string) string {
	return HeadingStyle.Render(strings.ToUpper(s))
}

func RenderPassIcon() string    { return PassStyle.Render(icon(IconPass)) }
func RenderWarnIcon() string    { return WarnStyle.Render(icon(IconWarn)) }
func RenderFailIcon() string    { return FailStyle.Render(icon(IconFail)) }
func RenderPendingIcon() string { return MutedStyle.Render(icon(IconPending)) }

// KeyValue renders "key: value" with a muted key, padding key to width.
func KeyValue(key string, width int, value string) string {
	if pad := width - len(key); pad > 0 {
		key += strings.Repeat(" ", pad)
	}
	return RenderMuted(key+":") + " " + value
}
