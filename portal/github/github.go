package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/portal_forge/portal/exec"
	"github.com/byte4ever/portal_forge/portal/settings"
)

// DefaultCloneBaseURL is the remote base used to build clone URLs when
// Config.CloneBaseURL is empty.
const DefaultCloneBaseURL = "https://github.com"

// Config holds the settings needed to create a Client.
type Config struct {
	// Token is an explicit personal access token. When empty, the
	// settings file and the GITHUB_TOKEN environment variable are
	// consulted.
	Token string
	// Username is an explicit account name. When empty, the settings
	// file and the GITHUB_USERNAME environment variable are
	// consulted.
	Username string
	// APIBaseURL overrides the REST API endpoint (a GitHub
	// Enterprise installation or a test server). Leave empty for
	// api.github.com.
	APIBaseURL string
	// CloneBaseURL overrides the remote base for clone URLs. Leave
	// empty for https://github.com. A local directory also works.
	CloneBaseURL string
	// Settings supplies credential defaults from a settings file.
	Settings *settings.Settings
}

// Client performs repository provisioning operations against the
// GitHub REST API and the git CLI. Construct with NewClient; a Client
// is immutable afterwards and holds no state between operations.
type Client struct {
	gh           *gh.Client
	creds        settings.Credentials
	cloneBaseURL string
}

// NewClient resolves credentials from cfg and returns a Client.
// Missing credentials are logged, not fatal: each operation enforces
// its own requirements.
func NewClient(cfg Config) (*Client, error) {
	const errCtx = "creating github client"

	creds := settings.Resolve(
		cfg.Token, cfg.Username, cfg.Settings,
	)

	if creds.Token == "" {
		slog.Warn(
			"no github token provided," +
				" some operations may fail",
		)
	}

	if creds.Username == "" {
		slog.Warn(
			"no github username provided," +
				" some operations may fail",
		)
	}

	client := gh.NewClient(nil)
	if creds.Token != "" {
		client = client.WithAuthToken(creds.Token)
	}

	if cfg.APIBaseURL != "" {
		base, err := url.Parse(cfg.APIBaseURL)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: api base url: %w", errCtx, err,
			)
		}

		// The client library requires the trailing slash.
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}

		client.BaseURL = base
	}

	cloneBase := cfg.CloneBaseURL
	if cloneBase == "" {
		cloneBase = DefaultCloneBaseURL
	}

	return &Client{
		gh:           client,
		creds:        creds,
		cloneBaseURL: strings.TrimSuffix(cloneBase, "/"),
	}, nil
}

// Username returns the resolved account name. May be empty.
func (c *Client) Username() string {
	return c.creds.Username
}

// ForkOptions configures CreateFork.
type ForkOptions struct {
	// Owner of the repository to fork.
	Owner string
	// Repo is the repository name (without owner).
	Repo string
	// NewName renames the fork after creation when it differs from
	// Repo. Optional.
	NewName string
	// Organization receives the fork instead of the user account.
	// Optional.
	Organization string
	// Description set on the fork during the rename. Optional.
	Description string
}

// CreateFork forks Owner/Repo and optionally renames the fork. The
// fork request is asynchronous on the GitHub side: an accepted
// response already carries the new repository descriptor. A failed
// rename is logged and the unrenamed descriptor is returned, so the
// result may carry a different name than requested.
func (c *Client) CreateFork(
	ctx context.Context,
	opts ForkOptions,
) (*gh.Repository, error) {
	const errCtx = "creating fork"

	if opts.Owner == "" {
		return nil, fmt.Errorf(
			"%s: owner must be set", errCtx,
		)
	}

	if opts.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if c.creds.Token == "" {
		return nil, fmt.Errorf(
			"%s: a github token is required", errCtx,
		)
	}

	forkOpts := &gh.RepositoryCreateForkOptions{
		Organization: opts.Organization,
	}

	fork, _, err := c.gh.Repositories.CreateFork(
		ctx, opts.Owner, opts.Repo, forkOpts,
	)
	if err != nil {
		// HTTP 202: the fork is being created
		// asynchronously and the descriptor is already
		// populated from the response body.
		var accepted *gh.AcceptedError
		if !errors.As(err, &accepted) {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	slog.Info(
		"created fork",
		"full_name", fork.GetFullName(),
	)

	if opts.NewName == "" || opts.NewName == opts.Repo {
		return fork, nil
	}

	return c.renameFork(ctx, fork, opts), nil
}

// renameFork issues the follow-up rename after a fork. The fork still
// carries the source repository name at this point, so the edit
// targets that name under the fork's owner. Failures are soft: the
// unrenamed descriptor is returned and a warning logged.
func (c *Client) renameFork(
	ctx context.Context,
	fork *gh.Repository,
	opts ForkOptions,
) *gh.Repository {
	owner := opts.Organization
	if owner == "" {
		owner = c.creds.Username
	}

	edit := &gh.Repository{Name: &opts.NewName}
	if opts.Description != "" {
		edit.Description = &opts.Description
	}

	renamed, _, err := c.gh.Repositories.Edit(
		ctx, owner, opts.Repo, edit,
	)
	if err != nil {
		slog.Warn(
			"failed to rename fork",
			"owner", owner,
			"repo", opts.Repo,
			"error", err,
		)

		return fork
	}

	slog.Info(
		"renamed fork",
		"full_name", renamed.GetFullName(),
	)

	return renamed
}

// PagesOptions configures ConfigurePagesAndActions.
type PagesOptions struct {
	// Owner of the repository.
	Owner string
	// Repo is the repository name (without owner).
	Repo string
	// Branch to publish the site from. Defaults to "gh-pages".
	Branch string
	// Path is the directory to publish. Defaults to "/".
	Path string
}

// SetupOutcome reports each best-effort configuration step separately
// so callers can distinguish a partial setup from a complete one.
type SetupOutcome struct {
	// ActionsErr is the failure of the Actions permissions step, nil
	// on success.
	ActionsErr error
	// PagesErr is the failure of the Pages publishing step, nil on
	// success.
	PagesErr error
}

// ConfigurePagesAndActions enables GitHub Actions with write workflow
// permissions and turns on Pages publishing from the given branch and
// path. The two steps are independent and best-effort: a failed step
// is logged and recorded in the outcome without aborting the other.
// The error return covers preconditions only.
func (c *Client) ConfigurePagesAndActions(
	ctx context.Context,
	opts PagesOptions,
) (SetupOutcome, error) {
	const errCtx = "configuring pages and actions"

	if opts.Owner == "" {
		return SetupOutcome{}, fmt.Errorf(
			"%s: owner must be set", errCtx,
		)
	}

	if opts.Repo == "" {
		return SetupOutcome{}, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if c.creds.Token == "" {
		return SetupOutcome{}, fmt.Errorf(
			"%s: a github token is required", errCtx,
		)
	}

	branch := opts.Branch
	if branch == "" {
		branch = "gh-pages"
	}

	pagesPath := opts.Path
	if pagesPath == "" {
		pagesPath = "/"
	}

	var outcome SetupOutcome

	outcome.ActionsErr = c.enableActions(
		ctx, opts.Owner, opts.Repo,
	)
	outcome.PagesErr = c.enablePages(
		ctx, opts.Owner, opts.Repo, branch, pagesPath,
	)

	return outcome, nil
}

// enableActions turns on Actions for all action types and elevates the
// default workflow token to write permissions.
func (c *Client) enableActions(
	ctx context.Context,
	owner string,
	repo string,
) error {
	enabled := true
	allowed := "all"

	_, _, err := c.gh.Repositories.EditActionsPermissions(
		ctx, owner, repo,
		gh.ActionsPermissionsRepository{
			Enabled:        &enabled,
			AllowedActions: &allowed,
		},
	)

	if err == nil {
		perms := "write"

		_, _, err = c.gh.Repositories.
			EditDefaultWorkflowPermissions(
				ctx, owner, repo,
				gh.DefaultWorkflowPermissionRepository{
					DefaultWorkflowPermissions: &perms,
				},
			)
	}

	if err != nil {
		slog.Warn(
			"failed to update actions permissions",
			"owner", owner,
			"repo", repo,
			"error", err,
		)

		return err
	}

	slog.Info(
		"enabled github actions",
		"repo", owner+"/"+repo,
	)

	return nil
}

// enablePages switches on Pages publishing from branch and path.
func (c *Client) enablePages(
	ctx context.Context,
	owner string,
	repo string,
	branch string,
	pagesPath string,
) error {
	update := &gh.PagesUpdate{
		Source: &gh.PagesSource{
			Branch: &branch,
			Path:   &pagesPath,
		},
	}

	_, err := c.gh.Repositories.UpdatePages(
		ctx, owner, repo, update,
	)
	if err != nil {
		slog.Warn(
			"failed to enable github pages",
			"owner", owner,
			"repo", repo,
			"error", err,
		)

		return err
	}

	slog.Info(
		"enabled github pages",
		"repo", owner+"/"+repo,
		"branch", branch,
	)

	return nil
}

// CloneOptions configures CloneRepository.
type CloneOptions struct {
	// Owner of the repository to clone.
	Owner string
	// Repo is the repository name (without owner).
	Repo string
	// TargetDir receives the clone. Created (with parents) when
	// missing; a fresh temporary directory is allocated when empty.
	// The caller owns the directory's lifecycle either way.
	TargetDir string
	// Branch to check out. Defaults to "main".
	Branch string
}

// CloneRepository clones Owner/Repo into the target directory using
// the git CLI and returns the directory. The resolved token, when
// present, is embedded in the clone URL for authentication and
// redacted from logs and error text.
func (c *Client) CloneRepository(
	ctx context.Context,
	opts CloneOptions,
) (string, error) {
	const errCtx = "cloning repository"

	if opts.Owner == "" {
		return "", fmt.Errorf(
			"%s: owner must be set", errCtx,
		)
	}

	if opts.Repo == "" {
		return "", fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	dir, err := cloneTarget(opts.TargetDir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	out, err := exec.Ex(
		ctx, "",
		"git", "clone",
		"--branch", branch,
		c.cloneURL(opts.Owner, opts.Repo),
		dir,
	)
	if err != nil {
		msg := strings.TrimSpace(exec.Redact(out))
		if msg == "" {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, msg, err,
		)
	}

	slog.Info(
		"cloned repository",
		"repo", opts.Owner+"/"+opts.Repo,
		"dir", dir,
	)

	return dir, nil
}

// cloneTarget resolves the clone directory, creating it and its
// parents as needed. Empty means a fresh temporary directory.
func cloneTarget(targetDir string) (string, error) {
	const errCtx = "resolving clone target"

	if targetDir == "" {
		dir, err := os.MkdirTemp("", "portal-clone-")
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return dir, nil
	}

	dir, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return dir, nil
}

// cloneURL builds the remote URL for a clone. The token is embedded
// as URL userinfo only for http(s) bases; plain paths pass through
// untouched.
func (c *Client) cloneURL(owner string, repo string) string {
	raw := fmt.Sprintf(
		"%s/%s/%s.git", c.cloneBaseURL, owner, repo,
	)

	if c.creds.Token == "" {
		return raw
	}

	for _, scheme := range []string{"https://", "http://"} {
		if rest, ok := strings.CutPrefix(
			raw, scheme,
		); ok {
			return scheme + c.creds.Token + "@" + rest
		}
	}

	return raw
}

// PushOptions configures PushFile.
type PushOptions struct {
	// Owner of the target repository.
	Owner string
	// Repo is the repository name (without owner).
	Repo string
	// Path of the file inside the repository.
	Path string
	// Content is the file payload. See FileContent variants.
	Content FileContent
	// Message is the commit message.
	Message string
	// Branch to commit to. Defaults to "main".
	Branch string
}

// PushFile commits a single file to Owner/Repo on the given branch
// via the contents API. It first reads the path to learn the current
// blob SHA: overwriting an existing file without its SHA is rejected
// by GitHub's concurrency check. Nothing is cached between calls;
// every push re-reads the current state.
func (c *Client) PushFile(
	ctx context.Context,
	opts PushOptions,
) (*gh.RepositoryContentResponse, error) {
	const errCtx = "pushing file"

	if opts.Owner == "" {
		return nil, fmt.Errorf(
			"%s: owner must be set", errCtx,
		)
	}

	if opts.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if opts.Path == "" {
		return nil, fmt.Errorf(
			"%s: path must be set", errCtx,
		)
	}

	if opts.Content == nil {
		return nil, fmt.Errorf(
			"%s: content must be set", errCtx,
		)
	}

	if c.creds.Token == "" {
		return nil, fmt.Errorf(
			"%s: a github token is required", errCtx,
		)
	}

	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	sha, err := c.currentFileSHA(
		ctx, opts.Owner, opts.Repo, opts.Path, branch,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	raw, err := opts.Content.contentBytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	fileOpts := &gh.RepositoryContentFileOptions{
		Message: &opts.Message,
		Content: raw,
		Branch:  &branch,
	}

	var result *gh.RepositoryContentResponse

	if sha == "" {
		result, _, err = c.gh.Repositories.CreateFile(
			ctx, opts.Owner, opts.Repo,
			opts.Path, fileOpts,
		)
	} else {
		fileOpts.SHA = &sha

		result, _, err = c.gh.Repositories.UpdateFile(
			ctx, opts.Owner, opts.Repo,
			opts.Path, fileOpts,
		)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"pushed file",
		"path", opts.Path,
		"repo", opts.Owner+"/"+opts.Repo,
		"branch", branch,
	)

	return result, nil
}

// currentFileSHA reads the blob SHA of path at branch. A missing file
// yields an empty SHA with no error; any other read failure is hard.
func (c *Client) currentFileSHA(
	ctx context.Context,
	owner string,
	repo string,
	path string,
	branch string,
) (string, error) {
	const errCtx = "reading current file revision"

	current, _, resp, err := c.gh.Repositories.GetContents(
		ctx, owner, repo, path,
		&gh.RepositoryContentGetOptions{Ref: branch},
	)
	if err != nil {
		if resp != nil &&
			resp.StatusCode == http.StatusNotFound {
			return "", nil
		}

		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	if current == nil {
		// The path resolved to a directory listing;
		// there is no file SHA to carry.
		return "", nil
	}

	return current.GetSHA(), nil
}
