package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/portal_forge/portal/settings"
)

func writeSettingsFile(
	tb testing.TB,
	content string,
) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "settings.yaml")

	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(tb, err)

	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeSettingsFile(t, `github:
  token: tok-from-file
  username: user-from-file
`)

	st, err := settings.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "tok-from-file", st.GitHub.Token)
	assert.Equal(t, "user-from-file", st.GitHub.Username)
}

func TestLoad_partial_file(t *testing.T) {
	t.Parallel()

	path := writeSettingsFile(t, `github:
  username: only-user
`)

	st, err := settings.Load(path)

	require.NoError(t, err)
	assert.Empty(t, st.GitHub.Token)
	assert.Equal(t, "only-user", st.GitHub.Username)
}

func TestLoad_missing_file(t *testing.T) {
	t.Parallel()

	_, err := settings.Load(
		filepath.Join(t.TempDir(), "absent.yaml"),
	)

	assert.Error(t, err)
}

func TestLoad_malformed_file(t *testing.T) {
	t.Parallel()

	// Tab indentation is invalid YAML.
	path := writeSettingsFile(t, "github:\n\ttoken: x\n")

	_, err := settings.Load(path)

	assert.Error(t, err)
}

func TestResolve_explicit_wins(t *testing.T) {
	t.Setenv(settings.EnvToken, "env-token")
	t.Setenv(settings.EnvUsername, "env-user")

	st := &settings.Settings{
		GitHub: settings.GitHub{
			Token:    "file-token",
			Username: "file-user",
		},
	}

	creds := settings.Resolve(
		"explicit-token", "explicit-user", st,
	)

	assert.Equal(t, "explicit-token", creds.Token)
	assert.Equal(t, "explicit-user", creds.Username)
}

func TestResolve_settings_beat_environment(t *testing.T) {
	t.Setenv(settings.EnvToken, "env-token")
	t.Setenv(settings.EnvUsername, "env-user")

	st := &settings.Settings{
		GitHub: settings.GitHub{
			Token:    "file-token",
			Username: "file-user",
		},
	}

	creds := settings.Resolve("", "", st)

	assert.Equal(t, "file-token", creds.Token)
	assert.Equal(t, "file-user", creds.Username)
}

func TestResolve_environment_fallback(t *testing.T) {
	t.Setenv(settings.EnvToken, "env-token")
	t.Setenv(settings.EnvUsername, "env-user")

	creds := settings.Resolve("", "", nil)

	assert.Equal(t, "env-token", creds.Token)
	assert.Equal(t, "env-user", creds.Username)
}

func TestResolve_all_sources_empty(t *testing.T) {
	t.Setenv(settings.EnvToken, "")
	t.Setenv(settings.EnvUsername, "")

	creds := settings.Resolve("", "", nil)

	assert.Empty(t, creds.Token)
	assert.Empty(t, creds.Username)
}

func TestResolve_fields_resolve_independently(t *testing.T) {
	t.Setenv(settings.EnvToken, "")
	t.Setenv(settings.EnvUsername, "env-user")

	st := &settings.Settings{
		GitHub: settings.GitHub{Token: "file-token"},
	}

	creds := settings.Resolve("", "", st)

	assert.Equal(t, "file-token", creds.Token)
	assert.Equal(t, "env-user", creds.Username)
}
