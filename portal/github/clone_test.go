package github_test

import (
	"context"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/portal_forge/portal/github"
	"github.com/byte4ever/portal_forge/portal/settings"
)

// initGitRepo creates a git repository with one initial commit. Git
// hooks are disabled to avoid interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"config", "core.hooksPath", "/dev/null"},
		{"commit", "--allow-empty", "-m", "initial"},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}
}

// gitCmd runs a git command in the given directory.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	//nolint:gosec // test helper
	cmd := oe.CommandContext(
		context.Background(), "git", args...,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf(
			"git %v failed: %s: %v",
			args, string(out), err,
		)
	}
}

// initBareRepo creates a bare repository with one commit on main at
// path, for use as a clone remote.
func initBareRepo(tb testing.TB, path string) {
	tb.Helper()

	work := tb.TempDir()

	initGitRepo(tb, work)
	gitCmd(tb, "", "clone", "--bare", work, path)
}

func TestCloneRepository_into_temp_dir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	initBareRepo(
		t, filepath.Join(base, "me", "portal.git"),
	)

	cl, err := github.NewClient(github.Config{
		CloneBaseURL: base,
	})
	require.NoError(t, err)

	dir, err := cl.CloneRepository(
		context.Background(),
		github.CloneOptions{
			Owner: "me",
			Repo:  "portal",
		},
	)

	require.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.DirExists(t, filepath.Join(dir, ".git"))
}

func TestCloneRepository_into_target_dir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	initBareRepo(
		t, filepath.Join(base, "me", "portal.git"),
	)

	cl, err := github.NewClient(github.Config{
		CloneBaseURL: base,
	})
	require.NoError(t, err)

	// Nested target directories are created on demand.
	target := filepath.Join(t.TempDir(), "work", "portal")

	dir, err := cl.CloneRepository(
		context.Background(),
		github.CloneOptions{
			Owner:     "me",
			Repo:      "portal",
			TargetDir: target,
		},
	)

	require.NoError(t, err)
	assert.Equal(t, target, dir)
	assert.DirExists(t, filepath.Join(dir, ".git"))
}

func TestCloneRepository_missing_remote(t *testing.T) {
	t.Parallel()

	cl, err := github.NewClient(github.Config{
		CloneBaseURL: t.TempDir(),
	})
	require.NoError(t, err)

	_, cloneErr := cl.CloneRepository(
		context.Background(),
		github.CloneOptions{
			Owner: "me",
			Repo:  "absent",
		},
	)

	assert.ErrorContains(
		t, cloneErr, "cloning repository",
	)
}

func TestCloneRepository_redacts_token(t *testing.T) {
	t.Parallel()

	cl, err := github.NewClient(github.Config{
		Token:        "sekret",
		Username:     "me",
		CloneBaseURL: "http://127.0.0.1:1",
	})
	require.NoError(t, err)

	_, cloneErr := cl.CloneRepository(
		context.Background(),
		github.CloneOptions{
			Owner:     "me",
			Repo:      "portal",
			TargetDir: t.TempDir(),
		},
	)

	require.Error(t, cloneErr)
	assert.NotContains(t, cloneErr.Error(), "sekret")
	assert.Contains(t, cloneErr.Error(), "***@")
}

func TestCloneRepository_missing_owner(t *testing.T) {
	t.Parallel()

	cl, err := github.NewClient(github.Config{})
	require.NoError(t, err)

	_, cloneErr := cl.CloneRepository(
		context.Background(),
		github.CloneOptions{Repo: "portal"},
	)

	assert.ErrorContains(
		t, cloneErr, "owner must be set",
	)
}

func TestCloneURL(t *testing.T) {
	// Pin the environment so ambient credentials cannot
	// leak into the no-token cases.
	t.Setenv(settings.EnvToken, "")
	t.Setenv(settings.EnvUsername, "")

	tests := []struct {
		name string
		cfg  github.Config
		want string
	}{
		{
			name: "default base without token",
			cfg:  github.Config{},
			want: "https://github.com/me/portal.git",
		},
		{
			name: "default base with token",
			cfg:  github.Config{Token: "tok"},
			want: "https://tok@github.com/me/portal.git",
		},
		{
			name: "custom base trailing slash",
			cfg: github.Config{
				CloneBaseURL: "https://git.example.com/",
			},
			want: "https://git.example.com/me/portal.git",
		},
		{
			name: "http base with token",
			cfg: github.Config{
				Token:        "tok",
				CloneBaseURL: "http://127.0.0.1:8080",
			},
			want: "http://tok@127.0.0.1:8080/me/portal.git",
		},
		{
			name: "local path ignores token",
			cfg: github.Config{
				Token:        "tok",
				CloneBaseURL: "/srv/git",
			},
			want: "/srv/git/me/portal.git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, err := github.NewClient(tt.cfg)
			require.NoError(t, err)

			got := cl.CloneURLForTest("me", "portal")
			assert.Equal(t, tt.want, got)
		})
	}
}
