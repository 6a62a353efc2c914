// Package debug routes diagnostic output for the calcsnap CLI.
//
// Logf is silent unless CALCSNAP_DEBUG is set or --verbose is passed.
// PrintNormal is suppressed by --quiet. Warnf always reaches stderr.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("CALCSNAP_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects normal and diagnostic output. It returns a func that
// restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		outMu.Lock()
		defer outMu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		write(stderrWriter(), format, args...)
	}
}

// Warnf reports a condition the operator should see even in quiet mode,
// such as data the migration skipped or resolved by policy.
func Warnf(format string, args ...interface{}) {
	write(stderrWriter(), "Warning: "+format, args...)
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		write(stdoutWriter(), format, args...)
	}
}

func write(w io.Writer, format string, args ...interface{}) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintf(w, format, args...)
}

func stdoutWriter() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return stdout
}

func stderrWriter() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return stderr
}
