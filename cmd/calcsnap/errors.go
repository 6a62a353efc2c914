package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/steveyegge/calcsnap/internal/backfill"
)

// FatalError writes an error message to stderr and exits with code 1.
// With --json the error is written as a JSON object instead.
//
// Example:
//
//	if err := runner.Up(ctx); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	shutdown()
	if jsonOutput {
		outputJSONError(errors.New(msg), errorCode(args...))
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("cannot reach database", "Start the server with 'dolt sql-server'")
func FatalErrorWithHint(message, hint string) {
	shutdown()
	if jsonOutput {
		outputJSONError(errors.New(message), "")
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

var errorCodes = []struct {
	err  error
	code string
}{
	{backfill.ErrSchema, "schema"},
	{backfill.ErrQuery, "query"},
	{backfill.ErrUnknownClassification, "unknown_classification"},
	{backfill.ErrMalformedPayload, "malformed_payload"},
	{backfill.ErrConflictingHeader, "conflicting_header"},
	{backfill.ErrInvalidIdentifier, "invalid_identifier"},
	{backfill.ErrWrite, "write"},
}

// errorCode classifies the first error among args that wraps a known
// sentinel, for machine-readable output.
func errorCode(args ...interface{}) string {
	for _, a := range args {
		err, ok := a.(error)
		if !ok {
			continue
		}
		for _, c := range errorCodes {
			if errors.Is(err, c.err) {
				return c.code
			}
		}
	}
	return ""
}
