// Command provision_portal creates and configures Globus search
// portal repositories on GitHub. It forks the template search portal,
// writes the static.json portal configuration, pushes it back, and
// optionally enables Pages and Actions for automatic publishing.
//
// Usage:
//
//	provision_portal fork -name NAME [flags]
//	provision_portal configure [flags] REPO_DIR
//	provision_portal create -name NAME -search-index UUID [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/portal_forge/portal/github"
	"github.com/byte4ever/portal_forge/portal/provision"
	"github.com/byte4ever/portal_forge/portal/settings"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	const errCtx = "running provision_portal"

	if len(args) == 0 {
		return fmt.Errorf(
			"%s: usage: provision_portal"+
				" <fork|configure|create> [flags]",
			errCtx,
		)
	}

	switch args[0] {
	case "fork":
		return runFork(args[1:])
	case "configure":
		return runConfigure(args[1:])
	case "create":
		return runCreate(args[1:])
	default:
		return fmt.Errorf(
			"%s: unknown command %q (expected fork,"+
				" configure, or create)",
			errCtx, args[0],
		)
	}
}

// commonOptions holds the flags shared by every subcommand.
type commonOptions struct {
	settingsPath string
	verbose      bool
}

// register adds the shared flags to fs.
func (co *commonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(
		&co.settingsPath, "settings", "",
		"Path to the YAML settings file",
	)
	fs.BoolVar(
		&co.verbose, "verbose", false,
		"Enable debug logging",
	)
}

// apply raises the log level and loads the settings file when one was
// given.
func (co *commonOptions) apply() (*settings.Settings, error) {
	const errCtx = "applying common options"

	if co.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if co.settingsPath == "" {
		return nil, nil
	}

	st, err := settings.Load(co.settingsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"loaded settings",
		"path", co.settingsPath,
	)

	return st, nil
}

//nolint:funlen // CLI flag setup is inherently long
func runFork(args []string) error {
	const errCtx = "forking template portal"

	fs := flag.NewFlagSet("fork", flag.ContinueOnError)

	var common commonOptions

	common.register(fs)

	name := fs.String(
		"name", "",
		"Name for the forked repository (required)",
	)
	description := fs.String(
		"description", "",
		"Description for the new repository",
	)
	organization := fs.String(
		"organization", "",
		"Organization to create the fork in",
	)
	token := fs.String(
		"token", "",
		"GitHub personal access token (overrides"+
			" settings and environment)",
	)
	username := fs.String(
		"username", "",
		"GitHub username (overrides settings and"+
			" environment)",
	)
	cloneDir := fs.String(
		"clone-dir", "",
		"Directory to clone the fork into",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	st, err := common.apply()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *name == "" {
		return fmt.Errorf(
			"%s: -name is required", errCtx,
		)
	}

	res, err := provision.ForkTemplatePortal(
		context.Background(),
		provision.ForkConfig{
			NewName:      *name,
			Description:  *description,
			Organization: *organization,
			Token:        *token,
			Username:     *username,
			CloneDir:     *cloneDir,
			Settings:     st,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fmt.Printf(
		"Successfully forked repository: %s\n",
		res.Repository.GetHTMLURL(),
	)

	if res.ClonePath != "" {
		fmt.Printf(
			"Cloned repository to: %s\n",
			res.ClonePath,
		)
	}

	return nil
}

//nolint:funlen // CLI flag setup is inherently long
func runConfigure(args []string) error {
	const errCtx = "configuring portal"

	fs := flag.NewFlagSet(
		"configure", flag.ContinueOnError,
	)

	var common commonOptions

	common.register(fs)

	searchIndex := fs.String(
		"search-index", "",
		"UUID of the Globus Search index (required)",
	)
	title := fs.String(
		"title", "",
		"Title for the portal",
	)
	subtitle := fs.String(
		"subtitle", "",
		"Subtitle for the portal",
	)
	configFile := fs.String(
		"config-file", "",
		"Path to an additional configuration JSON file",
	)
	push := fs.Bool(
		"push", false,
		"Push static.json to GitHub after writing it",
	)
	repoOwner := fs.String(
		"repo-owner", "",
		"Owner of the repository (required with -push"+
			" or -enable-pages)",
	)
	repoName := fs.String(
		"repo-name", "",
		"Name of the repository (required with -push"+
			" or -enable-pages)",
	)
	token := fs.String(
		"token", "",
		"GitHub personal access token (overrides"+
			" settings and environment)",
	)
	commitMessage := fs.String(
		"commit-message", provision.DefaultCommitMessage,
		"Commit message for the push",
	)
	branch := fs.String(
		"branch", provision.DefaultBranch,
		"Branch to push to",
	)
	enablePages := fs.Bool(
		"enable-pages", false,
		"Enable GitHub Pages and Actions for the"+
			" repository",
	)
	pagesBranch := fs.String(
		"pages-branch", "main",
		"Branch to publish GitHub Pages from",
	)
	pagesPath := fs.String(
		"pages-path", "/",
		"Directory to publish GitHub Pages from",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	repoDir := fs.Arg(0)
	if repoDir == "" {
		return fmt.Errorf(
			"%s: repository directory argument is"+
				" required",
			errCtx,
		)
	}

	st, err := common.apply()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *searchIndex == "" {
		return fmt.Errorf(
			"%s: -search-index is required", errCtx,
		)
	}

	if (*push || *enablePages) &&
		(*repoOwner == "" || *repoName == "") {
		return fmt.Errorf(
			"%s: -repo-owner and -repo-name are"+
				" required with -push or -enable-pages",
			errCtx,
		)
	}

	var extra map[string]any

	if *configFile != "" {
		extra, err = provision.LoadExtraConfig(
			*configFile, *searchIndex, *repoName,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	ctx := context.Background()

	path, err := provision.ConfigureStaticJSON(
		ctx,
		provision.StaticConfig{
			RepoDir:       repoDir,
			IndexID:       *searchIndex,
			Title:         *title,
			Subtitle:      *subtitle,
			Extra:         extra,
			Publish:       *push,
			Owner:         *repoOwner,
			Repo:          *repoName,
			Token:         *token,
			CommitMessage: *commitMessage,
			Branch:        *branch,
			Settings:      st,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *push {
		fmt.Printf(
			"Successfully configured static.json at:"+
				" %s and pushed to %s/%s\n",
			path, *repoOwner, *repoName,
		)
	} else {
		fmt.Printf(
			"Successfully configured static.json at:"+
				" %s\n",
			path,
		)
	}

	if !*enablePages {
		return nil
	}

	client, err := github.NewClient(github.Config{
		Token:    *token,
		Settings: st,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	outcome, err := client.ConfigurePagesAndActions(
		ctx,
		github.PagesOptions{
			Owner:  *repoOwner,
			Repo:   *repoName,
			Branch: *pagesBranch,
			Path:   *pagesPath,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	reportSetup(outcome)

	if outcome.ActionsErr == nil &&
		outcome.PagesErr == nil {
		fmt.Printf(
			"Successfully enabled GitHub Pages and"+
				" Actions for %s/%s\n",
			*repoOwner, *repoName,
		)
	}

	return nil
}

//nolint:funlen // CLI flag setup is inherently long
func runCreate(args []string) error {
	const errCtx = "creating portal"

	fs := flag.NewFlagSet("create", flag.ContinueOnError)

	var common commonOptions

	common.register(fs)

	name := fs.String(
		"name", "",
		"Name for the portal repository (required)",
	)
	searchIndex := fs.String(
		"search-index", "",
		"UUID of the Globus Search index (required)",
	)
	description := fs.String(
		"description", "",
		"Description for the new repository",
	)
	organization := fs.String(
		"organization", "",
		"Organization to create the repository in",
	)
	token := fs.String(
		"token", "",
		"GitHub personal access token (overrides"+
			" settings and environment)",
	)
	username := fs.String(
		"username", "",
		"GitHub username (overrides settings and"+
			" environment)",
	)
	title := fs.String(
		"title", "",
		"Title for the portal",
	)
	subtitle := fs.String(
		"subtitle", "",
		"Subtitle for the portal",
	)
	configFile := fs.String(
		"config-file", "",
		"Path to an additional configuration JSON file",
	)
	enablePages := fs.Bool(
		"enable-pages", false,
		"Enable GitHub Pages and Actions for the new"+
			" repository",
	)
	pagesBranch := fs.String(
		"pages-branch", "main",
		"Branch to publish GitHub Pages from",
	)
	pagesPath := fs.String(
		"pages-path", "/",
		"Directory to publish GitHub Pages from",
	)
	cloneDir := fs.String(
		"clone-dir", "",
		"Directory to clone the repository into"+
			" (temporary directory when empty)",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	st, err := common.apply()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *name == "" {
		return fmt.Errorf(
			"%s: -name is required", errCtx,
		)
	}

	if *searchIndex == "" {
		return fmt.Errorf(
			"%s: -search-index is required", errCtx,
		)
	}

	var extra map[string]any

	if *configFile != "" {
		extra, err = provision.LoadExtraConfig(
			*configFile, *searchIndex, *name,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	res, err := provision.CreatePortal(
		context.Background(),
		provision.CreateConfig{
			Name:         *name,
			IndexID:      *searchIndex,
			Description:  *description,
			Organization: *organization,
			Token:        *token,
			Username:     *username,
			Title:        *title,
			Subtitle:     *subtitle,
			Extra:        extra,
			EnablePages:  *enablePages,
			PagesBranch:  *pagesBranch,
			PagesPath:    *pagesPath,
			CloneDir:     *cloneDir,
			Settings:     st,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fmt.Printf(
		"Repository URL: %s\n", res.RepositoryURL,
	)

	if res.PortalURL != "" {
		fmt.Printf("Portal URL: %s\n", res.PortalURL)
	}

	fmt.Printf("Clone path: %s\n", res.ClonePath)

	if res.Setup != nil {
		reportSetup(*res.Setup)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf(
			"%s: marshal result: %w", errCtx, err,
		)
	}

	fmt.Println(string(out))

	return nil
}

// reportSetup prints a warning for each failed best-effort setup
// step.
func reportSetup(outcome github.SetupOutcome) {
	if outcome.ActionsErr != nil {
		fmt.Printf(
			"Warning: Actions permissions not"+
				" updated: %v\n",
			outcome.ActionsErr,
		)
	}

	if outcome.PagesErr != nil {
		fmt.Printf(
			"Warning: GitHub Pages not enabled: %v\n",
			outcome.PagesErr,
		)
	}
}
