package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	_ = writeJSON(os.Stderr, errObj) // Best effort: exit code still reports the failure
	os.Exit(1)
}

func writeYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// outputFormatted writes v to stdout as json or yaml.
func outputFormatted(format string, v interface{}) error {
	switch format {
	case "", "json":
		return writeJSON(os.Stdout, v)
	case "yaml", "yml":
		return writeYAML(os.Stdout, v)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
