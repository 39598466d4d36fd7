package publish

import (
	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/modioab/nagger/internal/render"
)

type issueKey struct {
	projectID int
	iid       int
}

// buildIssueTree expands one issue and its linked issues into a tree.
// Revisits are suppressed through the shared visited set, so cyclic links
// terminate and an issue appears once across the whole page.
func buildIssueTree(f Forge, log *zap.Logger, issue *gitlab.Issue, visited map[issueKey]bool) *render.IssueNode {
	key := issueKey{projectID: issue.ProjectID, iid: issue.IID}
	if visited[key] {
		return nil
	}
	visited[key] = true

	node := &render.IssueNode{
		Ref:    issueRef(issue),
		Title:  issue.Title,
		State:  issue.State,
		WebURL: issue.WebURL,
	}
	if tc := issue.TaskCompletionStatus; tc != nil && tc.Count > 0 {
		node.Progress = &render.Progress{Completed: tc.CompletedCount, Total: tc.Count}
	}

	related, err := f.IssueRelations(issue.ProjectID, issue.IID)
	if err != nil {
		log.Error("listing linked issues", zap.String("issue", node.Ref), zap.Error(err))
		return node
	}
	for _, rel := range related {
		if child := buildIssueTree(f, log, rel, visited); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func issueRef(issue *gitlab.Issue) string {
	if issue.References != nil && issue.References.Full != "" {
		return issue.References.Full
	}
	return issue.WebURL
}

// MilestoneWiki renders the milestone's issues as a hierarchical wiki
// page, linked issues nested below the milestone issues they relate to.
func MilestoneWiki(f Forge, log *zap.Logger, cfg Config, milestoneName string, dryRun bool) error {
	log = log.With(zap.String("wiki_project", cfg.WikiProject), zap.String("milestone_name", milestoneName))

	ms, err := f.GroupMilestone(milestoneName)
	if err != nil {
		return err
	}
	issues, err := f.MilestoneIssues(ms.ID)
	if err != nil {
		return err
	}

	visited := make(map[issueKey]bool)
	var roots []*render.IssueNode
	for _, issue := range issues {
		if node := buildIssueTree(f, log, issue, visited); node != nil {
			roots = append(roots, node)
		}
	}

	content, err := render.Render("issues_wiki.md", render.IssueTree{
		Milestone: milestoneName,
		Roots:     roots,
	})
	if err != nil {
		return err
	}
	title := "Milestone-" + milestoneName
	return UpsertWikiPage(f, log, cfg.WikiProject, title, content, dryRun)
}
