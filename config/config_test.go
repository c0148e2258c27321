package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreCompiled = cmpopts.IgnoreUnexported(UsernameRequirements{})

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path, logr.Discard())
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg, ignoreCompiled); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path, logr.Discard())
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, again, ignoreCompiled); diff != "" {
		t.Errorf("reloaded config differs (-first +second):\n%s", diff)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"performanceSettings":{"workerThreadCount":2}}`), 0o644))

	cfg, err := Load(path, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PerformanceSettings.WorkerThreadCount)
	assert.Equal(t, 30, cfg.PerformanceSettings.RequestTimeout)
	assert.Equal(t, int64(7200), cfg.AuthenticationSettings.Expiration)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"authenticationSettings":{"expiration":0}}`), 0o644))
	_, err := Load(path, logr.Discard())
	assert.ErrorContains(t, err, "expiration")

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = Load(path, logr.Discard())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.DatabaseSettings.Driver = "oracle" }, "driver"},
		{"no workers", func(c *Config) { c.PerformanceSettings.WorkerThreadCount = 0 }, "workerThreadCount"},
		{"negative queue", func(c *Config) { c.PerformanceSettings.QueueCapacity = -1 }, "queueCapacity"},
		{"bad username bounds", func(c *Config) { c.AuthenticationSettings.UsernameRequirements.MaxLength = 60 }, "usernameRequirements"},
		{"bad pattern", func(c *Config) { c.AuthenticationSettings.UsernameRequirements.AllowedCharacters = "[" }, "allowedCharacters"},
		{"bad loan days", func(c *Config) { c.RequestSettings.MaxLoanDays = 0 }, "maxLoanDays"},
		{"bad level", func(c *Config) { c.LogSettings.LogLevel = "loud" }, "logLevel"},
		{"bad format", func(c *Config) { c.LogSettings.Format = "xml" }, "format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestWarnings(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Warnings())
	cfg.AuthenticationSettings.Expiration = 60
	assert.Len(t, cfg.Warnings(), 1)
}

func TestUsernameRequirements(t *testing.T) {
	u := Default().AuthenticationSettings.UsernameRequirements
	assert.True(t, u.Allows("alice_01"))
	assert.False(t, u.Allows("al"))
	assert.False(t, u.Allows("bob smith"))
	assert.False(t, u.Allows("ålice"))
}
