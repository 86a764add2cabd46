package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, hcl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remodel.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hcl), 0600))
	return path
}

func quietConfig(path, target string) *Config {
	return &Config{
		ConfigPath:          path,
		TargetName:          target,
		LogFormat:           "text",
		LogLevel:            "error",
		MaxRefineIterations: 10,
	}
}

func TestNewApp_TargetSelection(t *testing.T) {
	path := writeConfig(t, `
data {
  input     = "x.tsv"
  dimension = 3
}

target "first" {
  fast_memory = 1024
}

target "second" {
  fast_memory = 2048
}
`)

	t.Run("named target wins", func(t *testing.T) {
		a := NewApp(&bytes.Buffer{}, quietConfig(path, "second"))
		assert.Equal(t, "second", a.target.Name)
	})

	t.Run("first target is the default", func(t *testing.T) {
		a := NewApp(&bytes.Buffer{}, quietConfig(path, ""))
		assert.Equal(t, "first", a.target.Name)
	})

	t.Run("unknown target name panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewApp(&bytes.Buffer{}, quietConfig(path, "gpu"))
		})
	})
}

func TestNewApp_NoTargets(t *testing.T) {
	path := writeConfig(t, `
data {
  input     = "x.tsv"
  dimension = 3
}
`)
	a := NewApp(&bytes.Buffer{}, quietConfig(path, ""))
	assert.Equal(t, "generic", a.target.Name)
}

func TestRun_NoDataBlock(t *testing.T) {
	path := writeConfig(t, `
target "only" {
  fast_memory = 1024
}
`)
	a := NewApp(&bytes.Buffer{}, quietConfig(path, ""))
	err := a.Run(context.Background())
	assert.ErrorContains(t, err, "no data block")
}

func TestRun_Summary(t *testing.T) {
	path := writeConfig(t, `
data {
  input     = "x.tsv"
  dimension = 4
  scale     = 3
}
`)
	out := &bytes.Buffer{}
	a := NewApp(out, quietConfig(path, ""))
	require.NoError(t, a.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "target: generic")
	assert.Contains(t, s, "nodes: 4 -> 3")
	assert.Contains(t, s, "scale=3")
	assert.Contains(t, s, "compilable: true")
}
