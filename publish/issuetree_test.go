package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
)

func issue(projectID, iid int, title, state string) *gitlab.Issue {
	return &gitlab.Issue{
		IID:       iid,
		ProjectID: projectID,
		Title:     title,
		State:     state,
		WebURL:    "https://gitlab.example.com/grp/alpha/-/issues/1",
		References: &gitlab.IssueReferences{
			Full: "grp/alpha#1",
		},
	}
}

func TestBuildIssueTree(t *testing.T) {
	f := newPublishFake()
	root := issue(1, 1, "epic", "opened")
	child := issue(1, 2, "subtask", "closed")
	f.relations[issueKey{projectID: 1, iid: 1}] = []*gitlab.Issue{child}

	node := buildIssueTree(f, zap.NewNop(), root, map[issueKey]bool{})
	require.NotNil(t, node)
	assert.Equal(t, "epic", node.Title)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "subtask", node.Children[0].Title)
	assert.Equal(t, "closed", node.Children[0].State)
}

func TestBuildIssueTreeSurvivesCycles(t *testing.T) {
	f := newPublishFake()
	a := issue(1, 1, "a", "opened")
	b := issue(1, 2, "b", "opened")
	f.relations[issueKey{projectID: 1, iid: 1}] = []*gitlab.Issue{b}
	f.relations[issueKey{projectID: 1, iid: 2}] = []*gitlab.Issue{a}

	node := buildIssueTree(f, zap.NewNop(), a, map[issueKey]bool{})
	require.NotNil(t, node)
	require.Len(t, node.Children, 1)
	assert.Empty(t, node.Children[0].Children)
}

func TestBuildIssueTreeProgress(t *testing.T) {
	f := newPublishFake()
	root := issue(1, 1, "epic", "opened")
	root.TaskCompletionStatus = &gitlab.TasksCompletionStatus{Count: 4, CompletedCount: 1}

	node := buildIssueTree(f, zap.NewNop(), root, map[issueKey]bool{})
	require.NotNil(t, node)
	require.NotNil(t, node.Progress)
	assert.Equal(t, 1, node.Progress.Completed)
	assert.Equal(t, 4, node.Progress.Total)
}

func TestMilestoneWiki(t *testing.T) {
	f := newPublishFake()
	root := issue(1, 1, "epic", "opened")
	child := issue(1, 2, "subtask", "closed")
	child.References.Full = "grp/alpha#2"
	f.issues = []*gitlab.Issue{root}
	f.relations[issueKey{projectID: 1, iid: 1}] = []*gitlab.Issue{child}

	require.NoError(t, MilestoneWiki(f, zap.NewNop(), testConfig(), "v1.2", false))

	require.Len(t, f.pages, 1)
	page := f.pages[0]
	assert.Equal(t, "Milestone-v1.2", page.Slug)
	assert.Contains(t, page.Content, "epic")
	assert.Contains(t, page.Content, "subtask")
	assert.Contains(t, page.Content, "```mermaid")
}

func TestMilestoneWikiIssueAppearsOnce(t *testing.T) {
	f := newPublishFake()
	a := issue(1, 1, "a", "opened")
	b := issue(1, 2, "b", "opened")
	b.References.Full = "grp/alpha#2"
	// b is both a milestone issue and linked from a; the link wins.
	f.issues = []*gitlab.Issue{a, b}
	f.relations[issueKey{projectID: 1, iid: 1}] = []*gitlab.Issue{b}

	require.NoError(t, MilestoneWiki(f, zap.NewNop(), testConfig(), "v1.2", false))
	require.Len(t, f.pages, 1)
}
