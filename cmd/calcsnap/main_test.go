package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/calculation"
	"github.com/steveyegge/calcsnap/internal/config"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/migrate"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want string
	}{
		{"no args", nil, ""},
		{"plain string", []interface{}{"boom"}, ""},
		{"unwrapped error", []interface{}{errors.New("boom")}, ""},
		{"schema", []interface{}{fmt.Errorf("alter: %w", backfill.ErrSchema)}, "schema"},
		{"write", []interface{}{fmt.Errorf("update: %w", backfill.ErrWrite)}, "write"},
		{"classification", []interface{}{fmt.Errorf("calculation x: %w", calculation.ErrUnknownClassification)}, "unknown_classification"},
		{"first match wins", []interface{}{"ctx", fmt.Errorf("%w", backfill.ErrQuery), backfill.ErrWrite}, "query"},
		{"through migration", []interface{}{fmt.Errorf("migration 1 add_calculation_snapshot failed: %w", backfill.ErrConflictingHeader)}, "conflicting_header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.args...))
		})
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	err := writeYAML(&buf, map[string]interface{}{"database": map[string]interface{}{"port": 3307}})
	require.NoError(t, err)
	assert.Equal(t, "database:\n  port: 3307\n", buf.String())
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, migrationRef{Version: 1, Name: "add_calculation_snapshot"}))
	assert.Equal(t, "{\n  \"version\": 1,\n  \"name\": \"add_calculation_snapshot\"\n}\n", buf.String())
}

func TestOutputFormattedRejectsUnknownFormat(t *testing.T) {
	err := outputFormatted("toml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "toml")
}

func TestRedactSettings(t *testing.T) {
	settings := map[string]interface{}{
		"database": map[string]interface{}{"password": "hunter2", "user": "root"},
		"json":     false,
	}
	got := redactSettings(settings)
	db := got["database"].(map[string]interface{})
	assert.Equal(t, "********", db["password"])
	assert.Equal(t, "root", db["user"])

	empty := redactSettings(map[string]interface{}{"database": map[string]interface{}{"password": ""}})
	assert.Equal(t, "", empty["database"].(map[string]interface{})["password"])

	assert.NotPanics(t, func() { redactSettings(map[string]interface{}{}) })
}

func TestRedactSettingsMasksDSNPassword(t *testing.T) {
	for _, dsn := range []string{
		"root:secret@tcp(127.0.0.1:3307)/calcsnap?parseTime=true",
		"postgres://calc:secret@db:5432/calcsnap?sslmode=disable",
		"host=db user=calc password=secret dbname=calcsnap",
	} {
		t.Run(dsn, func(t *testing.T) {
			got := redactSettings(map[string]interface{}{
				"database": map[string]interface{}{"dsn": dsn},
			})
			masked := got["database"].(map[string]interface{})["dsn"].(string)
			assert.NotContains(t, masked, "secret")
			assert.Contains(t, masked, redacted)
		})
	}

	t.Run("no password keeps dsn", func(t *testing.T) {
		assert.Equal(t, "postgres://db:5432/calcsnap", redactDSN("postgres://db:5432/calcsnap"))
	})
}

func TestBindFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CALCSNAP_BACKFILL_STRICT_HEADERS", "")
	require.NoError(t, config.Initialize())
	t.Cleanup(config.ResetForTesting)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("strict-headers", false, "")
	cmd.Flags().Bool("lenient-foreign-income", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--strict-headers"}))

	bindFlags(cmd, map[string]string{
		"strict-headers":         "backfill.strict-headers",
		"lenient-foreign-income": "backfill.lenient-foreign-income",
		"not-a-flag":             "backfill.schema-only",
	})

	opts := config.BackfillOptions()
	assert.True(t, opts.StrictHeaders, "explicit flag wins")
	assert.False(t, opts.LenientForeignIncome, "unset flag keeps the default")
	assert.False(t, opts.SchemaOnly)
}

func TestRefs(t *testing.T) {
	got := refs([]migrate.Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}})
	assert.Equal(t, []migrationRef{{1, "a"}, {2, "b"}}, got)
	assert.NotNil(t, refs(nil))
}

func TestPrintBackfillResult(t *testing.T) {
	var out, errOut bytes.Buffer
	restore := debug.SetOutput(&out, &errOut)
	defer restore()

	printBackfillResult(&backfill.Result{Rows: 5, Parents: 3, Deductions: 3, Written: 3, Conflicts: 1})
	text := out.String()
	for _, want := range []string{"rows", "parents", "deductions", "written", "1 conflicting header rows ignored"} {
		assert.Contains(t, text, want)
	}

	out.Reset()
	printBackfillResult(&backfill.Result{SchemaOnly: true})
	assert.Contains(t, out.String(), "schema only")
	assert.False(t, strings.Contains(out.String(), "written"))
}

func TestConnectHint(t *testing.T) {
	assert.Contains(t, connectHint(nil), "config.yaml")
}
