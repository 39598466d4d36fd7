// nagger reminds merge-request authors to set milestones and aggregates
// merged work for a milestone into changelogs, wiki pages, homepage
// articles, git tags and releases.
//
// Usage:
//
//	nagger <command> [-n] [args]
//
// Commands that take a milestone argument fall back to an interactive
// choice of active version-like milestones when the argument is omitted.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/modioab/nagger/glclient"
	"github.com/modioab/nagger/internal/config"
	"github.com/modioab/nagger/internal/oauth"
	"github.com/modioab/nagger/internal/render"
	"github.com/modioab/nagger/nag"
	"github.com/modioab/nagger/notes"
	"github.com/modioab/nagger/publish"
	"github.com/modioab/nagger/release"
	"github.com/modioab/nagger/server"
)

const usageText = `usage: nagger <command> [flags] [args]

commands:
  nag                                   reconcile the CI merge request(s)
  tag-to-release                        turn the CI tag into a release
  changelog [milestone]                 print the milestone changelog
  changelog-homepage [milestone] [-n]   upsert the homepage article
  changelog-wiki [milestone] [-n]       upsert the release-notes wiki page
  milestone-wiki [milestone] [-n]       upsert the milestone issue tree page
  fixup [milestone] [-n]                assign stray merged MRs to the milestone
  tag-release <tag-name> [-n]           tag and release every involved project
  move-milestone-items [src] [dst] [-n] move MRs and issues between milestones
  serve [milestone]                     serve the changelog as JSON
  login                                 obtain an API token interactively
  debug-variables                       print all CI variables
`

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "setting up logging:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger) error {
	// Best effort, CI provides real environment variables.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	// These two run without an API token.
	switch command {
	case "debug-variables":
		debugVariables()
		return nil
	case "login":
		return login(log)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "render everything but write nothing to the forge")
	fs.BoolVar(dryRun, "n", false, "shorthand for -dry-run")
	addr := fs.String("addr", ":8080", "listen address for serve")
	if command == "fixup" {
		// Fixup stomps over many merge requests at once; pretending is
		// the default and writing is the opt-in.
		*dryRun = true
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load("", log)
	if err != nil {
		return err
	}
	client, err := newClient(log, cfg)
	if err != nil {
		return err
	}

	releaseCfg := release.Config{
		IgnoreProjects: cfg.IgnoreProjects,
		AlwaysRelease:  cfg.ReleaseProjects,
		Important:      cfg.ImportantProjects,
		DefaultBranch:  cfg.DefaultBranch,
	}
	publishCfg := publish.Config{
		WikiProject:     cfg.WikiProject,
		HomepageProject: cfg.HomepageProject,
		DefaultBranch:   cfg.DefaultBranch,
		Changelog:       changelogOptions(cfg),
	}

	switch command {
	case "nag":
		return nagCommand(client, log)
	case "tag-to-release":
		return tagToRelease(client, log)
	case "changelog":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return printChangelog(client, log, cfg, milestone)
	case "changelog-homepage":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return publish.ChangelogHomepage(client, log, publishCfg, milestone, *dryRun)
	case "changelog-wiki":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return publish.ChangelogWiki(client, log, publishCfg, milestone, *dryRun)
	case "milestone-wiki":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return publish.MilestoneWiki(client, log, publishCfg, milestone, *dryRun)
	case "fixup":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return release.MilestoneFixup(client, log, releaseCfg, milestone, *dryRun)
	case "tag-release":
		if fs.NArg() < 1 {
			return fmt.Errorf("tag-release needs a full tag name, e.g. v3.15.0")
		}
		return release.MilestoneRelease(client, log, releaseCfg, fs.Arg(0), *dryRun)
	case "move-milestone-items":
		source, target, err := resolveMilestonePair(client, fs)
		if err != nil {
			return err
		}
		return release.MoveMilestoneItems(client, log, source, target, *dryRun)
	case "serve":
		milestone, err := resolveMilestone(client, fs)
		if err != nil {
			return err
		}
		return server.Serve(client, log, changelogOptions(cfg), milestone, *addr)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func changelogOptions(cfg config.Config) notes.Options {
	return notes.Options{
		AlwaysInclude: cfg.ReleaseProjects,
		Important:     cfg.ImportantProjects,
	}
}

func newClient(log *zap.Logger, cfg config.Config) (*glclient.Client, error) {
	token, err := glclient.Token()
	if err != nil {
		return nil, err
	}
	baseURL, err := glclient.APIURL()
	if err != nil {
		return nil, err
	}
	return glclient.New(log, baseURL, token, cfg.Group)
}

// nagCommand reconciles the merge requests of the current CI pipeline:
// either the one the pipeline runs for, or the open ones attached to the
// pipeline's commit.
func nagCommand(client *glclient.Client, log *zap.Logger) error {
	projectID, err := glclient.ProjectID()
	if err != nil {
		return err
	}
	engine := nag.New(client, log)

	if iid, err := glclient.MergeRequestIID(); err == nil {
		mr, err := client.MergeRequest(projectID, iid)
		if err != nil {
			return err
		}
		return engine.Reconcile(mr)
	}

	// No merge request pipeline, guess from the commit instead.
	sha, err := glclient.CommitSHA()
	if err != nil {
		return err
	}
	candidates, err := client.CommitMergeRequests(projectID, sha)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		if !strings.Contains(candidate.State, "open") || candidate.ProjectID != projectID {
			continue
		}
		mr, err := client.MergeRequest(projectID, candidate.IID)
		if err != nil {
			log.Error("loading merge request", zap.Int("mr_iid", candidate.IID), zap.Error(err))
			continue
		}
		if err := engine.Reconcile(mr); err != nil {
			log.Error("reconciling merge request", zap.Int("mr_iid", candidate.IID), zap.Error(err))
		}
	}
	return nil
}

func tagToRelease(client *glclient.Client, log *zap.Logger) error {
	projectID, err := glclient.ProjectID()
	if err != nil {
		return err
	}
	tagName, err := glclient.CommitTag()
	if err != nil {
		return err
	}
	return release.TagToRelease(client, log, projectID, tagName)
}

// printChangelog writes the external changelog between scissor markers,
// then the full internal one, to stdout.
func printChangelog(client *glclient.Client, log *zap.Logger, cfg config.Config, milestoneName string) error {
	changelogs, err := notes.BuildMilestoneChangelog(client, log, milestoneName, changelogOptions(cfg))
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("--8<--", 10) + "\n")
	for _, project := range changelogs {
		text, err := render.Render("changelog_external.md", project)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	fmt.Println(strings.Repeat("-->8--", 10) + "\n")

	color.New(color.Bold).Println("# Internal only changes")
	fmt.Println()
	for _, project := range changelogs {
		text, err := render.Render("changelog_internal.md", project)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	return nil
}

// resolveMilestone takes the milestone from the arguments, or asks.
func resolveMilestone(client *glclient.Client, fs *flag.FlagSet) (string, error) {
	if fs.NArg() > 0 {
		return fs.Arg(0), nil
	}
	return chooseMilestone(client)
}

func resolveMilestonePair(client *glclient.Client, fs *flag.FlagSet) (string, string, error) {
	source, target := fs.Arg(0), fs.Arg(1)
	var err error
	if source == "" {
		fmt.Println("Choose the source milestone:")
		if source, err = chooseMilestone(client); err != nil {
			return "", "", err
		}
	}
	if target == "" {
		fmt.Println("Choose the target milestone:")
		if target, err = chooseMilestone(client); err != nil {
			return "", "", err
		}
	}
	return source, target, nil
}

// chooseMilestone offers the active version-like milestones on stdin.
func chooseMilestone(client *glclient.Client) (string, error) {
	titles, err := client.ActiveVersionMilestones()
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("no active version milestones to choose from")
	}
	sort.Strings(titles)

	for i, title := range titles {
		fmt.Printf("%3d) %s\n", i+1, color.CyanString(title))
	}
	fmt.Print("Milestone: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading choice: %w", err)
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(titles) {
		return "", fmt.Errorf("invalid choice %q", strings.TrimSpace(line))
	}
	return titles[choice-1], nil
}

func login(log *zap.Logger) error {
	baseURL, err := glclient.APIURL()
	if err != nil {
		return err
	}
	token, err := oauth.Login(context.Background(), baseURL)
	if err != nil {
		return err
	}
	fmt.Println("export NAGGUS_KEY=" + token)
	return nil
}

// debugVariables prints every CI-related environment variable.
func debugVariables() {
	var keys []string
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, "CI") {
			keys = append(keys, entry)
		}
	}
	sort.Strings(keys)
	for _, entry := range keys {
		fmt.Println(entry)
	}
}
