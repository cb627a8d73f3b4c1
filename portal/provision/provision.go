package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v68/github"
	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/portal_forge/portal/github"
	"github.com/byte4ever/portal_forge/portal/settings"
)

const (
	// TemplateOwner is the account owning the portal template
	// repository.
	TemplateOwner = "globus"

	// TemplateRepo is the fixed upstream template every portal fork
	// starts from.
	TemplateRepo = "template-search-portal"

	// StaticConfigName is the portal configuration file written into
	// the repository root.
	StaticConfigName = "static.json"

	// DefaultCommitMessage is used when publishing static.json
	// without an explicit commit message.
	DefaultCommitMessage = "Configure portal"

	// DefaultBranch is the branch written to when none is given.
	DefaultBranch = "main"
)

// ForkConfig holds all settings for a template portal fork. Use a
// ForkConfig struct instead of many arguments.
type ForkConfig struct {
	// NewName is the name of the forked repository. Required.
	NewName string

	// Description set on the forked repository.
	Description string

	// Organization receives the fork instead of the user account.
	Organization string

	// Token is an explicit GitHub token; falls back to the settings
	// file and the environment.
	Token string

	// Username is an explicit GitHub account name; falls back to the
	// settings file and the environment.
	Username string

	// CloneDir, when set, receives a clone of the fresh fork. Empty
	// skips cloning.
	CloneDir string

	// Settings supplies credential defaults from a settings file.
	Settings *settings.Settings

	// APIBaseURL overrides the REST API endpoint.
	APIBaseURL string

	// CloneBaseURL overrides the remote base for clone URLs.
	CloneBaseURL string
}

// ForkResult carries the fork descriptor and, when a clone was
// requested, the local clone path.
type ForkResult struct {
	// Repository is the descriptor returned by the fork, possibly
	// renamed.
	Repository *gh.Repository `json:"repository"`

	// ClonePath is the local clone directory, empty when cloning was
	// not requested.
	ClonePath string `json:"clone_path"`
}

// ForkTemplatePortal forks the Globus template search portal under
// the requested name and optionally clones the fork. The clone owner
// is the organization when given, then the resolved username, then
// the owner login reported by the fork descriptor.
func ForkTemplatePortal(
	ctx context.Context,
	cfg ForkConfig,
) (*ForkResult, error) {
	const errCtx = "forking template portal"

	if cfg.NewName == "" {
		return nil, fmt.Errorf(
			"%s: new name must be set", errCtx,
		)
	}

	client, err := github.NewClient(github.Config{
		Token:        cfg.Token,
		Username:     cfg.Username,
		APIBaseURL:   cfg.APIBaseURL,
		CloneBaseURL: cfg.CloneBaseURL,
		Settings:     cfg.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	fork, err := client.CreateFork(
		ctx,
		github.ForkOptions{
			Owner:        TemplateOwner,
			Repo:         TemplateRepo,
			NewName:      cfg.NewName,
			Organization: cfg.Organization,
			Description:  cfg.Description,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	result := &ForkResult{Repository: fork}

	if cfg.CloneDir == "" {
		return result, nil
	}

	owner := cfg.Organization
	if owner == "" {
		owner = client.Username()
	}

	if owner == "" {
		owner = fork.GetOwner().GetLogin()
	}

	clonePath, err := client.CloneRepository(
		ctx,
		github.CloneOptions{
			Owner:     owner,
			Repo:      cfg.NewName,
			TargetDir: cfg.CloneDir,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	result.ClonePath = clonePath

	return result, nil
}

// StaticConfig holds all settings for writing and optionally
// publishing a portal's static.json.
type StaticConfig struct {
	// RepoDir is the local repository directory receiving the file.
	// Required.
	RepoDir string

	// IndexID is the Globus Search index UUID, used both as the
	// index uuid and its display name. Required.
	IndexID string

	// Title is the portal branding title; omitted when empty.
	Title string

	// Subtitle is the portal branding subtitle; omitted when empty.
	Subtitle string

	// Extra is merged into the document top level after generation.
	// Keys overwrite generated ones, including "index" and
	// "branding".
	Extra map[string]any

	// Publish pushes the written file to GitHub.
	Publish bool

	// Owner of the target repository. Required when Publish is set.
	Owner string

	// Repo is the target repository name. Required when Publish is
	// set.
	Repo string

	// Token is an explicit GitHub token; falls back to the settings
	// file and the environment.
	Token string

	// Username is an explicit GitHub account name; falls back to the
	// settings file and the environment.
	Username string

	// CommitMessage for the publish. Defaults to "Configure portal".
	CommitMessage string

	// Branch to publish to. Defaults to "main".
	Branch string

	// Settings supplies credential defaults from a settings file.
	Settings *settings.Settings

	// APIBaseURL overrides the REST API endpoint.
	APIBaseURL string
}

// ConfigureStaticJSON builds the portal configuration document, writes
// it to <RepoDir>/static.json, and optionally publishes it. The local
// write happens first and is not rolled back: a failed publish leaves
// the file in place.
func ConfigureStaticJSON(
	ctx context.Context,
	cfg StaticConfig,
) (string, error) {
	const errCtx = "configuring static json"

	if cfg.RepoDir == "" {
		return "", fmt.Errorf(
			"%s: repo dir must be set", errCtx,
		)
	}

	if cfg.IndexID == "" {
		return "", fmt.Errorf(
			"%s: index id must be set", errCtx,
		)
	}

	repoDir, err := filepath.Abs(cfg.RepoDir)
	if err != nil {
		return "", fmt.Errorf(
			"%s: resolve repo dir: %w", errCtx, err,
		)
	}

	doc := buildStaticDocument(cfg)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf(
			"%s: marshal document: %w", errCtx, err,
		)
	}

	path := filepath.Join(repoDir, StaticConfigName)

	//nolint:gosec // portal configuration is not sensitive
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf(
			"%s: write %s: %w", errCtx, path, err,
		)
	}

	slog.Info("configured static json", "path", path)

	if !cfg.Publish {
		return path, nil
	}

	if err := publishStaticJSON(ctx, cfg, path); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return path, nil
}

// buildStaticDocument assembles the static.json content: the index
// block, a branding block with only the provided keys, then the extra
// configuration merged shallowly at the top level. Last write wins.
func buildStaticDocument(cfg StaticConfig) map[string]any {
	branding := map[string]any{}

	if cfg.Title != "" {
		branding["title"] = cfg.Title
	}

	if cfg.Subtitle != "" {
		branding["subtitle"] = cfg.Subtitle
	}

	doc := map[string]any{
		"index": map[string]any{
			"uuid": cfg.IndexID,
			"name": cfg.IndexID,
		},
		"branding": branding,
	}

	for key, val := range cfg.Extra {
		doc[key] = val
	}

	return doc
}

// publishStaticJSON reads the freshly written file back and pushes it
// under the configured commit message and branch.
func publishStaticJSON(
	ctx context.Context,
	cfg StaticConfig,
	path string,
) error {
	const errCtx = "publishing static json"

	if cfg.Owner == "" || cfg.Repo == "" {
		return fmt.Errorf(
			"%s: owner and repo must be set", errCtx,
		)
	}

	client, err := github.NewClient(github.Config{
		Token:      cfg.Token,
		Username:   cfg.Username,
		APIBaseURL: cfg.APIBaseURL,
		Settings:   cfg.Settings,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	//nolint:gosec // path was built above
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(
			"%s: read back %s: %w", errCtx, path, err,
		)
	}

	message := cfg.CommitMessage
	if message == "" {
		message = DefaultCommitMessage
	}

	branch := cfg.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	if _, err := client.PushFile(
		ctx,
		github.PushOptions{
			Owner:   cfg.Owner,
			Repo:    cfg.Repo,
			Path:    StaticConfigName,
			Content: github.Text(content),
			Message: message,
			Branch:  branch,
		},
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"published static json",
		"repo", cfg.Owner+"/"+cfg.Repo,
		"branch", branch,
	)

	return nil
}

// CreateConfig holds all settings for an end-to-end portal creation.
type CreateConfig struct {
	// Name of the forked portal repository. Required.
	Name string

	// IndexID is the Globus Search index UUID. Required.
	IndexID string

	// Description set on the forked repository.
	Description string

	// Organization receives the fork instead of the user account.
	Organization string

	// Token is an explicit GitHub token; falls back to the settings
	// file and the environment.
	Token string

	// Username is an explicit GitHub account name; falls back to the
	// settings file and the environment.
	Username string

	// Title is the portal branding title.
	Title string

	// Subtitle is the portal branding subtitle.
	Subtitle string

	// Extra is merged into the static.json top level.
	Extra map[string]any

	// EnablePages also configures Actions and Pages publishing.
	EnablePages bool

	// PagesBranch is the Pages publishing branch. Defaults to
	// "gh-pages".
	PagesBranch string

	// PagesPath is the Pages publishing directory. Defaults to "/".
	PagesPath string

	// CloneDir receives the clone; a temporary directory is used
	// when empty.
	CloneDir string

	// Settings supplies credential defaults from a settings file.
	Settings *settings.Settings

	// APIBaseURL overrides the REST API endpoint.
	APIBaseURL string

	// CloneBaseURL overrides the remote base for clone URLs.
	CloneBaseURL string
}

// CreateResult reports everything produced by CreatePortal.
type CreateResult struct {
	// Repository is the fork descriptor.
	Repository *gh.Repository `json:"repository"`

	// RepositoryURL is the canonical web URL of the new repository.
	RepositoryURL string `json:"repository_url"`

	// PortalURL is the Pages site URL, set only when pages were
	// configured.
	PortalURL string `json:"portal_url,omitempty"`

	// IndexID is the Globus Search index the portal serves.
	IndexID string `json:"search_index"`

	// ClonePath is the local clone directory.
	ClonePath string `json:"clone_path"`

	// Setup reports the Pages and Actions steps when EnablePages was
	// set, nil otherwise.
	Setup *github.SetupOutcome `json:"-"`
}

// CreatePortal runs the full workflow: fork and clone the template,
// write and publish static.json, and optionally configure Pages and
// Actions.
func CreatePortal(
	ctx context.Context,
	cfg CreateConfig,
) (*CreateResult, error) {
	const errCtx = "creating portal"

	if cfg.Name == "" {
		return nil, fmt.Errorf(
			"%s: name must be set", errCtx,
		)
	}

	if cfg.IndexID == "" {
		return nil, fmt.Errorf(
			"%s: index id must be set", errCtx,
		)
	}

	cloneDir := cfg.CloneDir
	if cloneDir == "" {
		tmp, err := os.MkdirTemp("", "portal-")
		if err != nil {
			return nil, fmt.Errorf(
				"%s: temp clone dir: %w", errCtx, err,
			)
		}

		cloneDir = tmp

		slog.Info(
			"using temporary clone directory",
			"dir", cloneDir,
		)
	}

	// Step 1: Fork and clone the template portal.
	forkRes, err := ForkTemplatePortal(ctx, ForkConfig{
		NewName:      cfg.Name,
		Description:  cfg.Description,
		Organization: cfg.Organization,
		Token:        cfg.Token,
		Username:     cfg.Username,
		CloneDir:     cloneDir,
		Settings:     cfg.Settings,
		APIBaseURL:   cfg.APIBaseURL,
		CloneBaseURL: cfg.CloneBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// Step 2: Determine the account owning the new
	// repository.
	owner, err := portalOwner(cfg, forkRes.Repository)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// Step 3: Configure and publish static.json.
	if _, err := ConfigureStaticJSON(
		ctx,
		StaticConfig{
			RepoDir:    forkRes.ClonePath,
			IndexID:    cfg.IndexID,
			Title:      cfg.Title,
			Subtitle:   cfg.Subtitle,
			Extra:      cfg.Extra,
			Publish:    true,
			Owner:      owner,
			Repo:       cfg.Name,
			Token:      cfg.Token,
			Username:   cfg.Username,
			Settings:   cfg.Settings,
			APIBaseURL: cfg.APIBaseURL,
		},
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	result := &CreateResult{
		Repository: forkRes.Repository,
		RepositoryURL: fmt.Sprintf(
			"https://github.com/%s/%s",
			owner, cfg.Name,
		),
		IndexID:   cfg.IndexID,
		ClonePath: forkRes.ClonePath,
	}

	if !cfg.EnablePages {
		return result, nil
	}

	// Step 4: Configure Pages and Actions, best effort.
	client, err := github.NewClient(github.Config{
		Token:      cfg.Token,
		Username:   cfg.Username,
		APIBaseURL: cfg.APIBaseURL,
		Settings:   cfg.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	outcome, err := client.ConfigurePagesAndActions(
		ctx,
		github.PagesOptions{
			Owner:  owner,
			Repo:   cfg.Name,
			Branch: cfg.PagesBranch,
			Path:   cfg.PagesPath,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	result.Setup = &outcome
	result.PortalURL = fmt.Sprintf(
		"https://%s.github.io/%s", owner, cfg.Name,
	)

	return result, nil
}

// portalOwner resolves the account owning the new portal repository:
// the organization, then the resolved username, then the owner login
// from the fork descriptor.
func portalOwner(
	cfg CreateConfig,
	fork *gh.Repository,
) (string, error) {
	const errCtx = "resolving portal owner"

	if cfg.Organization != "" {
		return cfg.Organization, nil
	}

	creds := settings.Resolve(
		cfg.Token, cfg.Username, cfg.Settings,
	)
	if creds.Username != "" {
		return creds.Username, nil
	}

	if login := fork.GetOwner().GetLogin(); login != "" {
		return login, nil
	}

	return "", fmt.Errorf(
		"%s: could not determine repository owner",
		errCtx,
	)
}

// LoadExtraConfig reads an additional configuration JSON file and
// expands {{index}} and {{name}} placeholders before parsing, so one
// file can template several portals. Unknown placeholders are
// preserved untouched.
func LoadExtraConfig(
	path string,
	indexID string,
	name string,
) (map[string]any, error) {
	const errCtx = "loading extra configuration"

	//nolint:gosec // path comes from a CLI flag
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	expanded := fasttemplate.ExecuteStringStd(
		string(raw), "{{", "}}",
		map[string]any{
			"index": indexID,
			"name":  name,
		},
	)

	var extra map[string]any
	if err := json.Unmarshal(
		[]byte(expanded), &extra,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: parsing %s: %w", errCtx, path, err,
		)
	}

	return extra, nil
}
