// Package publish upserts rendered changelogs into their destinations:
// wiki pages and a homepage article delivered through a merge request.
// Every upsert treats "not found" as the create branch, and dry-run
// renders everything without issuing a single write.
package publish

import (
	"fmt"
	"time"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/modioab/nagger/glclient"
	"github.com/modioab/nagger/internal/render"
	"github.com/modioab/nagger/notes"
)

// Forge is the part of the remote store the publishers need.
type Forge interface {
	notes.Forge
	CurrentUser() *gitlab.User
	WikiPages(pid interface{}) ([]*gitlab.Wiki, error)
	CreateWikiPage(pid interface{}, title, content string) error
	UpdateWikiPage(pid interface{}, slug, title, content string) error
	Branches(pid interface{}) ([]*gitlab.Branch, error)
	CreateBranch(pid interface{}, name, ref string) (*gitlab.Branch, error)
	ProjectMergeRequests(pid interface{}, state string) ([]*gitlab.MergeRequest, error)
	CreateMergeRequest(pid interface{}, title, source, target string) (*gitlab.MergeRequest, error)
	File(pid interface{}, path, ref string) (*gitlab.File, error)
	CreateFile(pid interface{}, path, branch, content, message string) error
	UpdateFile(pid interface{}, path, branch, content, message string) error
	MilestoneIssues(milestoneID int) ([]*gitlab.Issue, error)
	IssueRelations(pid interface{}, iid int) ([]*gitlab.Issue, error)
}

// Config names the destination projects.
type Config struct {
	// WikiProject hosts the release-notes and milestone wiki pages.
	WikiProject string
	// HomepageProject hosts the news articles.
	HomepageProject string
	// DefaultBranch is the target for homepage merge requests.
	DefaultBranch string
	// Changelog selects the projects of the aggregation.
	Changelog notes.Options
}

// UpsertWikiPage writes content under title, creating or overwriting the
// page. Several pages sharing the slug cannot be told apart, so that page
// is skipped with a log line instead of guessing.
func UpsertWikiPage(f Forge, log *zap.Logger, pid interface{}, title, content string, dryRun bool) error {
	log = log.With(zap.String("title", title))
	if dryRun {
		fmt.Println("DRY RUN:", title)
		fmt.Println(content)
		return nil
	}

	pages, err := f.WikiPages(pid)
	if err != nil {
		return err
	}
	var found []*gitlab.Wiki
	for _, page := range pages {
		if page.Slug == title {
			found = append(found, page)
		}
	}
	switch len(found) {
	case 0:
		log.Info("creating page")
		return f.CreateWikiPage(pid, title, content)
	case 1:
		log.Info("updating page")
		return f.UpdateWikiPage(pid, found[0].Slug, title, content)
	default:
		log.Warn("duplicate page title, ignoring")
		return nil
	}
}

// ChangelogWiki renders the milestone changelog and upserts it as a wiki
// page named after the milestone.
func ChangelogWiki(f Forge, log *zap.Logger, cfg Config, milestoneName string, dryRun bool) error {
	log = log.With(zap.String("wiki_project", cfg.WikiProject), zap.String("milestone_name", milestoneName))

	changelogs, err := notes.BuildMilestoneChangelog(f, log, milestoneName, cfg.Changelog)
	if err != nil {
		return err
	}
	content, err := render.Render("wiki.md", render.Changelog{
		Milestone: milestoneName,
		Projects:  changelogs,
	})
	if err != nil {
		return err
	}
	title := "Release-notes-" + milestoneName
	return UpsertWikiPage(f, log, cfg.WikiProject, title, content, dryRun)
}

// ChangelogHomepage renders the milestone changelog as a homepage news
// article and pushes it onto a merge request against the homepage project.
func ChangelogHomepage(f Forge, log *zap.Logger, cfg Config, milestoneName string, dryRun bool) error {
	log = log.With(zap.String("www_project", cfg.HomepageProject), zap.String("milestone_name", milestoneName))

	changelogs, err := notes.BuildMilestoneChangelog(f, log, milestoneName, cfg.Changelog)
	if err != nil {
		return err
	}
	content, err := render.Render("homepage.md", render.Homepage{
		Milestone: milestoneName,
		Author:    f.CurrentUser().Name,
		Date:      time.Now().Format("2006-01-02"),
		Projects:  changelogs,
	})
	if err != nil {
		return err
	}

	filePath := fmt.Sprintf("content/news/release-%s.md", milestoneName)
	if dryRun {
		fmt.Println("DRY RUN:", filePath)
		fmt.Println(content)
		return nil
	}

	mr, err := ensureMergeRequest(f, log, cfg.HomepageProject, milestoneName, cfg.DefaultBranch)
	if err != nil {
		return err
	}
	if err := ensureFileContent(f, log, cfg.HomepageProject, mr.SourceBranch, filePath, content, "Nagger generated release notes"); err != nil {
		return err
	}
	log.Info("homepage article updated")
	return nil
}

// ensureBranch makes sure a branch of this name exists in the project.
func ensureBranch(f Forge, log *zap.Logger, pid interface{}, name, ref string) (*gitlab.Branch, error) {
	branches, err := f.Branches(pid)
	if err != nil {
		return nil, err
	}
	for _, branch := range branches {
		if branch.Name == name {
			log.Info("found branch", zap.String("branch_name", name))
			return branch, nil
		}
	}
	log.Info("creating new branch", zap.String("branch_name", name), zap.String("ref", ref))
	return f.CreateBranch(pid, name, ref)
}

// ensureMergeRequest makes sure an open merge request with this title
// exists, creating branch and merge request when needed.
func ensureMergeRequest(f Forge, log *zap.Logger, pid interface{}, title, target string) (*gitlab.MergeRequest, error) {
	mrs, err := f.ProjectMergeRequests(pid, "opened")
	if err != nil {
		return nil, err
	}
	for _, mr := range mrs {
		if mr.Title == title {
			log.Info("found merge request", zap.String("mr_title", title))
			return mr, nil
		}
	}

	branch, err := ensureBranch(f, log, pid, title, target)
	if err != nil {
		return nil, err
	}
	log.Info("creating merge request", zap.String("mr_title", title), zap.String("source_branch", branch.Name))
	return f.CreateMergeRequest(pid, title, branch.Name, target)
}

// ensureFileContent writes content to the file on the branch, creating it
// when absent.
func ensureFileContent(f Forge, log *zap.Logger, pid interface{}, branch, path, content, message string) error {
	log = log.With(zap.String("file_name", path), zap.String("branch", branch))
	_, err := f.File(pid, path, branch)
	switch {
	case err == nil:
		log.Info("updating file")
		return f.UpdateFile(pid, path, branch, content, message)
	case glclient.IsNotFound(err):
		log.Info("creating file")
		return f.CreateFile(pid, path, branch, content, message)
	default:
		return err
	}
}
