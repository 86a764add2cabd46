package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// An HCL file with a syntax error is guaranteed to make app.NewApp()
	// panic during configuration loading.
	invalidHCL := `
		data {
			input = "x.tsv"
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "remodel.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to load configuration"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	configHCL := `
data {
  input     = "data/iris.tsv"
  dimension = 4
  scale     = 2.5
}

target "laptop" {
  fast_memory = 262144
  winograd    = true
}
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "remodel.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(configHCL), 0600))

	args := []string{"--log-format=text", "--log-level=error", "--target=laptop", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err)
	output := out.String()
	require.Contains(t, output, "target: laptop")
	require.Contains(t, output, "compilable: true")
	// Normalization refines to an affine and fuses with the scale node.
	require.Contains(t, output, "affine")
	require.NotContains(t, output, "normalize")
}
