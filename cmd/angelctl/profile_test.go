package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "angelctl.yaml")

	p, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, p.BaseURL())
	assert.Empty(t, p.Token())

	require.NoError(t, p.SetToken("tok-123"))
	again, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", again.Token())

	require.NoError(t, again.Clear())
	cleared, err := loadProfile(path)
	require.NoError(t, err)
	assert.Empty(t, cleared.Token())
}

func TestProfileEnvOverrides(t *testing.T) {
	t.Setenv("ANGELCTL_BASE_URL", "https://api.example.com")
	p, err := loadProfile(filepath.Join(t.TempDir(), "angelctl.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", p.BaseURL())
}

func TestParseID(t *testing.T) {
	_, err := parseID("", "project id")
	assert.EqualError(t, err, "project id is required")
	_, err = parseID("nope", "project id")
	assert.EqualError(t, err, `invalid project id "nope"`)
}
