// Package settings loads the YAML settings file and resolves GitHub
// credentials. Resolution follows a fixed precedence: an explicitly
// supplied value wins over the settings file, which wins over the
// GITHUB_TOKEN and GITHUB_USERNAME environment variables.
//
// The settings file is never discovered implicitly; callers pass its
// path and inject the loaded Settings where credentials are needed.
package settings
