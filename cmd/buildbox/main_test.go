package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/buildbox/sandbox"
)

func TestCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["build"])
	assert.True(t, names["container"])
	assert.True(t, names["languages"])

	sub := make(map[string]bool)
	for _, c := range containerCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, name := range []string{"prepare", "start", "stop", "remove", "status"} {
		assert.True(t, sub[name], name)
	}
}

func TestParseLanguageArg(t *testing.T) {
	lang, err := parseLanguageArg([]string{"Kotlin", "gradle", "test"})
	require.NoError(t, err)
	assert.Equal(t, sandbox.LanguageKotlin, lang)

	_, err = parseLanguageArg([]string{"fortran"})
	require.ErrorIs(t, err, sandbox.ErrUnsupportedLanguage)
}

func TestLoadConfigVerboseFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data, err := yaml.Marshal(map[string]any{
		"cache":   map[string]any{"backend": "memory"},
		"sandbox": map[string]any{"dir": filepath.Join(dir, "sandbox")},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	configFlag, verboseFlag = path, true
	t.Cleanup(func() { configFlag, verboseFlag = "", false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Sandbox.Verbose)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}
