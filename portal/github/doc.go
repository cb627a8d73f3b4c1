// Package github wraps the GitHub REST API operations needed to
// provision portal repositories: forking, Actions and Pages setup,
// cloning via the git CLI, and single-file pushes committed through the
// contents API.
//
// A Client is built from a Config carrying explicit credentials, an
// optional settings file, and optional base URL overrides for the API
// endpoint and the clone remote. Missing credentials are not fatal at
// construction time; each operation that needs a token fails before
// issuing any network request when none was resolved.
package github
