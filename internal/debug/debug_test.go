package debug

import (
	"bytes"
	"testing"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    bool
	}{
		{"enabled by env", true, false, true},
		{"enabled by verbose flag", false, true, true},
		{"disabled by default", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled, oldVerbose := enabled, verboseMode
			defer func() { enabled, verboseMode = oldEnabled, oldVerbose }()

			enabled = tt.env
			verboseMode = tt.verbose

			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantOutput string
	}{
		{"outputs when enabled", true, "backfill: read 3 rows\n"},
		{"no output when disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := enabled
			defer func() { enabled = oldEnabled }()
			enabled = tt.enabled

			var out, errOut bytes.Buffer
			restore := SetOutput(&out, &errOut)
			defer restore()

			Logf("backfill: read %d rows\n", 3)

			if got := errOut.String(); got != tt.wantOutput {
				t.Errorf("Logf() stderr = %q, want %q", got, tt.wantOutput)
			}
			if out.Len() != 0 {
				t.Errorf("Logf() wrote to stdout: %q", out.String())
			}
		})
	}
}

func TestWarnfIgnoresQuiet(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()
	SetQuiet(true)

	var out, errOut bytes.Buffer
	restore := SetOutput(&out, &errOut)
	defer restore()

	Warnf("parent %s has conflicting headers\n", "P1")

	if got, want := errOut.String(), "Warning: parent P1 has conflicting headers\n"; got != want {
		t.Errorf("Warnf() = %q, want %q", got, want)
	}
}

func TestPrintNormal(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
		want  string
	}{
		{"prints when not quiet", false, "applied 1 migration\n"},
		{"suppressed when quiet", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldQuiet := quietMode
			defer func() { quietMode = oldQuiet }()
			SetQuiet(tt.quiet)

			var out, errOut bytes.Buffer
			restore := SetOutput(&out, &errOut)
			defer restore()

			PrintNormal("applied %d migration\n", 1)
			if got := out.String(); got != tt.want {
				t.Errorf("PrintNormal() = %q, want %q", got, tt.want)
			}
			if IsQuiet() != tt.quiet {
				t.Errorf("IsQuiet() = %v, want %v", IsQuiet(), tt.quiet)
			}
		})
	}
}
