package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"pkgs.hcl"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	require.NotNil(t, cfg)
	assert.Equal(t, "pkgs.hcl", cfg.ManifestPath)
	assert.Empty(t, cfg.Targets)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.FetchBackoff)
	assert.Equal(t, 30*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_FlagsAndTargets(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-out", "dist",
		"-staging", "/tmp/stage",
		"-keep-staging",
		"-workers", "4",
		"-fetch-attempts", "5",
		"-fetch-backoff", "2s",
		"-build-timeout", "10m",
		"-log-format", "JSON",
		"-log-level", "DEBUG",
		"manifests/",
		"agent", "global",
	}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "manifests/", cfg.ManifestPath)
	assert.Equal(t, []string{"agent", "global"}, cfg.Targets)
	assert.Equal(t, "dist", cfg.OutputDir)
	assert.Equal(t, "/tmp/stage", cfg.StagingDir)
	assert.True(t, cfg.KeepStaging)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5, cfg.FetchAttempts)
	assert.Equal(t, 2*time.Second, cfg.FetchBackoff)
	assert.Equal(t, 10*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "MANIFEST_PATH")
}

func TestParse_HelpFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParse_InvalidLogFormat(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := Parse([]string{"-log-format", "yaml", "pkgs.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "log-format")
}

func TestParse_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := Parse([]string{"-log-level", "verbose", "pkgs.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_InvalidFetchAttempts(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := Parse([]string{"-fetch-attempts", "0", "pkgs.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "fetch-attempts")
}

func TestParse_UnknownFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := Parse([]string{"-bogus", "pkgs.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
