package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 -- fd fits in int
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions:
// NO_COLOR wins, then CLICOLOR=0, then CLICOLOR_FORCE, then the TTY check.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok && os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if f := os.Getenv("CLICOLOR_FORCE"); f != "" && f != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons render as symbols.
// CALCSNAP_NO_EMOJI forces the plain fallbacks.
func ShouldUseEmoji() bool {
	if os.Getenv("CALCSNAP_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// Init configures lipgloss for the current output. Call it once after
// flags are parsed.
func Init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && !IsTerminal() {
		lipgloss.SetColorProfile(termenv.ANSI256)
	}
}
