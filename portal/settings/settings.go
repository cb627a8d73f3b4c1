package settings

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	// EnvToken is the environment variable consulted when no token is
	// set explicitly or in the settings file.
	EnvToken = "GITHUB_TOKEN"

	// EnvUsername is the environment variable consulted when no
	// username is set explicitly or in the settings file.
	EnvUsername = "GITHUB_USERNAME"
)

// Settings mirrors the YAML settings file layout.
type Settings struct {
	// GitHub holds the github section of the settings file.
	GitHub GitHub `yaml:"github"`
}

// GitHub holds credential defaults for GitHub operations.
type GitHub struct {
	// Token is a personal access token.
	Token string `yaml:"token"`
	// Username is the account owning repositories created without an
	// organization.
	Username string `yaml:"username"`
}

// Credentials is the effective token and username pair after
// resolution. Either field may be empty; operations enforce their own
// requirements.
type Credentials struct {
	Token    string
	Username string
}

// Load reads and parses the settings file at path.
func Load(path string) (*Settings, error) {
	const errCtx = "loading settings"

	//nolint:gosec // path comes from a CLI flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var st Settings
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf(
			"%s: parsing %s: %w", errCtx, path, err,
		)
	}

	return &st, nil
}

// Resolve applies the credential precedence to each field
// independently: explicit argument, then settings file, then
// environment variable. A nil st skips the settings file layer.
func Resolve(
	token string,
	username string,
	st *Settings,
) Credentials {
	var fileToken, fileUsername string

	if st != nil {
		fileToken = st.GitHub.Token
		fileUsername = st.GitHub.Username
	}

	return Credentials{
		Token: firstNonEmpty(
			token, fileToken, os.Getenv(EnvToken),
		),
		Username: firstNonEmpty(
			username, fileUsername, os.Getenv(EnvUsername),
		),
	}
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
