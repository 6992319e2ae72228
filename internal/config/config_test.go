package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParseExportDefaults(t *testing.T) {
	cfg, exit, err := ParseExport(nil, &bytes.Buffer{}, env(nil))
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, &Export{}, cfg)
}

func TestParseExportFlags(t *testing.T) {
	cfg, _, err := ParseExport([]string{
		"-C", "game", "-q", "-o", "out.zip", "-s", "-M", "-b", "-f", "-w",
		"-omit-empty-js", "-verify-bundle", "-exclude", "**/*.map", "-exclude", "README.md",
	}, &bytes.Buffer{}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, &Export{
		Cwd:          "game",
		Output:       "out.zip",
		Quiet:        true,
		Strip:        true,
		Minify:       true,
		Bundle:       true,
		OmitEmptyJs:  true,
		VerifyBundle: true,
		Exclude:      []string{"**/*.map", "README.md"},
		Force:        true,
		Watch:        true,
	}, cfg)

	cfg, _, err = ParseExport([]string{"-cwd=game", "-output", "dir", "-strip", "-verbose"}, &bytes.Buffer{}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "game", cfg.Cwd)
	assert.Equal(t, "dir", cfg.Output)
	assert.True(t, cfg.Strip)
	assert.True(t, cfg.Verbose)
}

func TestParseExportHashFilename(t *testing.T) {
	for args, want := range map[string]int{
		"-H":                   DefaultHashLength,
		"-H=8":                 8,
		"-H=1":                 1,
		"-hash-filename":       DefaultHashLength,
		"-hash-filename=20":    20,
		"-hash-filename=false": 0,
	} {
		t.Run(args, func(t *testing.T) {
			cfg, _, err := ParseExport([]string{args}, &bytes.Buffer{}, env(nil))
			require.NoError(t, err)
			assert.Equal(t, want, cfg.HashFilename)
		})
	}

	_, _, err := ParseExport([]string{"-H=abc"}, &bytes.Buffer{}, env(nil))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseExportPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "export.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
output: from-file.zip
strip: true
hash-filename: 12
exclude:
  - "*.md"
  - "**/*.map"
`), 0644))

	cfg, _, err := ParseExport([]string{"-config", file}, &bytes.Buffer{}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "from-file.zip", cfg.Output)
	assert.True(t, cfg.Strip)
	assert.Equal(t, 12, cfg.HashFilename)
	assert.Equal(t, []string{"*.md", "**/*.map"}, cfg.Exclude)

	vars := map[string]string{
		"AKASHIC_EXPORT_ZIP_OUTPUT":  "from-env.zip",
		"AKASHIC_EXPORT_ZIP_EXCLUDE": "a/**, b",
		"AKASHIC_EXPORT_ZIP_MINIFY":  "true",
	}
	cfg, _, err = ParseExport([]string{"-config", file}, &bytes.Buffer{}, env(vars))
	require.NoError(t, err)
	assert.Equal(t, "from-env.zip", cfg.Output)
	assert.Equal(t, []string{"a/**", "b"}, cfg.Exclude)
	assert.True(t, cfg.Minify)
	assert.True(t, cfg.Strip)

	cfg, _, err = ParseExport([]string{"-config", file, "-o", "from-flag.zip", "-s=false"}, &bytes.Buffer{}, env(vars))
	require.NoError(t, err)
	assert.Equal(t, "from-flag.zip", cfg.Output)
	assert.False(t, cfg.Strip)

	vars["AKASHIC_EXPORT_ZIP_CONFIG"] = file
	cfg, _, err = ParseExport(nil, &bytes.Buffer{}, env(vars))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.HashFilename)
}

func TestParseExportErrors(t *testing.T) {
	var exitErr *ExitError

	_, _, err := ParseExport([]string{"-nope"}, &bytes.Buffer{}, env(nil))
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	_, _, err = ParseExport([]string{"stray"}, &bytes.Buffer{}, env(nil))
	assert.ErrorContains(t, err, `unexpected argument "stray"`)

	_, _, err = ParseExport([]string{"-config", filepath.Join(t.TempDir(), "missing.yml")}, &bytes.Buffer{}, env(nil))
	assert.Error(t, err)

	_, _, err = ParseExport(nil, &bytes.Buffer{}, env(map[string]string{"AKASHIC_EXPORT_ZIP_STRIP": "maybe"}))
	assert.ErrorContains(t, err, "AKASHIC_EXPORT_ZIP_STRIP")
}

func TestParseExportHelp(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := ParseExport([]string{"-h"}, out, env(nil))
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "-hash-filename")
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseServe(t *testing.T) {
	cfg, _, err := ParseServe([]string{"-b"}, &bytes.Buffer{}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.Bundle)

	cfg, _, err = ParseServe(nil, &bytes.Buffer{}, env(map[string]string{"AKASHIC_EXPORT_ZIP_PORT": "9000"}))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)

	cfg, _, err = ParseServe([]string{"-port", "7000"}, &bytes.Buffer{}, env(map[string]string{"AKASHIC_EXPORT_ZIP_PORT": "9000"}))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "AKASHIC_EXPORT_ZIP_OMIT_EMPTY_JS", EnvName("omit-empty-js"))
	assert.Equal(t, "AKASHIC_EXPORT_ZIP_HASH_FILENAME", EnvName("hash-filename"))
	assert.Equal(t, "AKASHIC_EXPORT_ZIP_CWD", EnvName("cwd"))
}
