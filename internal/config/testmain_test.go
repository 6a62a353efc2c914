package config

import (
	"log"
	"os"
	"path/filepath"
	"testing"
)

// TestMain runs the package from an empty scratch directory with HOME and
// the XDG config dir pointed inside it, so no real .calcsnap/config.yaml is
// ever discovered.
func TestMain(m *testing.M) {
	os.Exit(runIsolated(m))
}

func runIsolated(m *testing.M) int {
	scratch, err := os.MkdirTemp("", "calcsnap-config-*")
	if err != nil {
		log.Printf("scratch dir: %v", err)
		return 1
	}
	defer os.RemoveAll(scratch)

	wd, err := os.Getwd()
	if err != nil {
		log.Printf("getwd: %v", err)
		return 1
	}
	defer os.Chdir(wd) //nolint:errcheck

	if err := os.Chdir(scratch); err != nil {
		log.Printf("chdir: %v", err)
		return 1
	}
	for k, v := range map[string]string{
		"HOME":            scratch,
		"USERPROFILE":     scratch,
		"XDG_CONFIG_HOME": filepath.Join(scratch, "xdg"),
	} {
		os.Setenv(k, v)
	}
	ResetForTesting()
	return m.Run()
}
