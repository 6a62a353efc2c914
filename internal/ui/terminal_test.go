package ui

import (
	"testing"
)

// colorEnv lists every variable ShouldUseColor reads, so each case starts
// from a clean slate regardless of the developer's shell.
var colorEnv = []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"}

func TestShouldUseColorEnvironment(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"no_color set", map[string]string{"NO_COLOR": "1"}, false},
		{"clicolor zero", map[string]string{"CLICOLOR": "0"}, false},
		{"forced without tty", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"force zero is not force", map[string]string{"CLICOLOR_FORCE": "0"}, false},
		{"no_color beats force", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"nothing set, not a tty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range colorEnv {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldUseEmoji(t *testing.T) {
	t.Setenv("CALCSNAP_NO_EMOJI", "1")
	if ShouldUseEmoji() {
		t.Error("CALCSNAP_NO_EMOJI=1 should disable symbols")
	}

	t.Setenv("CALCSNAP_NO_EMOJI", "")
	if ShouldUseEmoji() != IsTerminal() {
		t.Error("without CALCSNAP_NO_EMOJI the tty check decides")
	}
}

func TestIconsFallBackWithoutEmoji(t *testing.T) {
	t.Setenv("CALCSNAP_NO_EMOJI", "1")
	t.Setenv("NO_COLOR", "1")
	Init()

	for name, tc := range map[string]struct {
		render func() string
		want   string
	}{
		"pass":    {RenderPassIcon, "ok"},
		"warn":    {RenderWarnIcon, "!"},
		"fail":    {RenderFailIcon, "x"},
		"pending": {RenderPendingIcon, "-"},
	} {
		if got := tc.render(); got != tc.want {
			t.Errorf("%s icon = %q, want %q", name, got, tc.want)
		}
	}
}

func TestKeyValue(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	Init()

	if got := KeyValue("rows", 6, "12"); got != "rows  : 12" {
		t.Errorf("KeyValue() = %q, want %q", got, "rows  : 12")
	}
}
