package release

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/modioab/nagger/glclient"
)

// releaseFake implements Forge in memory. Mutations land in the created*
// slices so tests can assert on exactly what was written.
type releaseFake struct {
	milestone *gitlab.GroupMilestone
	group     *gitlab.Group
	mrs       []*gitlab.MergeRequest
	groupMRs  []*gitlab.MergeRequest
	issues    []*gitlab.Issue
	projects  map[string]*gitlab.Project
	tags      map[string]*gitlab.Tag
	releases  map[string]*gitlab.Release
	commits   map[string]*gitlab.Commit

	createdTags     []string
	createdReleases []string
	movedMRs        []int
	movedIssues     []int

	failTagFor string
	failMoveMR int
}

func newReleaseFake() *releaseFake {
	alpha := &gitlab.Project{ID: 1, PathWithNamespace: "grp/alpha", Name: "alpha"}
	beta := &gitlab.Project{ID: 2, PathWithNamespace: "grp/beta", Name: "beta"}
	return &releaseFake{
		milestone: &gitlab.GroupMilestone{ID: 7, IID: 7, Title: "v3.14"},
		group:     &gitlab.Group{ID: 5, WebURL: "https://gitlab.example.com/groups/grp"},
		projects: map[string]*gitlab.Project{
			"1": alpha, "grp/alpha": alpha,
			"2": beta, "grp/beta": beta,
		},
		tags:     map[string]*gitlab.Tag{},
		releases: map[string]*gitlab.Release{},
		commits:  map[string]*gitlab.Commit{},
	}
}

func (f *releaseFake) GroupMilestone(name string) (*gitlab.GroupMilestone, error) {
	if f.milestone != nil && f.milestone.Title == name {
		return f.milestone, nil
	}
	return nil, fmt.Errorf("milestone %q: not found", name)
}

func (f *releaseFake) Group() (*gitlab.Group, error) { return f.group, nil }

func (f *releaseFake) MilestoneMergeRequests(milestoneID int) ([]*gitlab.MergeRequest, error) {
	return f.mrs, nil
}

func (f *releaseFake) MilestoneIssues(milestoneID int) ([]*gitlab.Issue, error) {
	return f.issues, nil
}

func (f *releaseFake) MergedGroupMergeRequests() ([]*gitlab.MergeRequest, error) {
	return f.groupMRs, nil
}

func (f *releaseFake) MergedProjectMergeRequests(pid interface{}) ([]*gitlab.MergeRequest, error) {
	project, err := f.Project(pid)
	if err != nil {
		return nil, err
	}
	var out []*gitlab.MergeRequest
	for _, mr := range f.groupMRs {
		if mr.ProjectID == project.ID {
			out = append(out, mr)
		}
	}
	return out, nil
}

func (f *releaseFake) Project(id interface{}) (*gitlab.Project, error) {
	p, ok := f.projects[fmt.Sprintf("%v", id)]
	if !ok {
		return nil, fmt.Errorf("project %v: not found", id)
	}
	return p, nil
}

func (f *releaseFake) UpdateMergeRequestMilestone(pid interface{}, iid, milestoneID int) (*gitlab.MergeRequest, error) {
	if iid == f.failMoveMR && f.failMoveMR != 0 {
		return nil, fmt.Errorf("409 conflict")
	}
	f.movedMRs = append(f.movedMRs, iid)
	return &gitlab.MergeRequest{IID: iid}, nil
}

func (f *releaseFake) UpdateIssueMilestone(pid interface{}, iid, milestoneID int) (*gitlab.Issue, error) {
	f.movedIssues = append(f.movedIssues, iid)
	return &gitlab.Issue{IID: iid}, nil
}

func (f *releaseFake) Tag(pid interface{}, name string) (*gitlab.Tag, error) {
	tag, ok := f.tags[fmt.Sprintf("%v/%s", pid, name)]
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", name, glclient.ErrNotFound)
	}
	return tag, nil
}

func (f *releaseFake) CreateTag(pid interface{}, name, ref, message string) (*gitlab.Tag, error) {
	key := fmt.Sprintf("%v", pid)
	if key == f.failTagFor {
		return nil, fmt.Errorf("403 forbidden")
	}
	f.createdTags = append(f.createdTags, key+"/"+name)
	tag := &gitlab.Tag{Name: name, Message: message, Target: "abc123"}
	f.tags[key+"/"+name] = tag
	return tag, nil
}

func (f *releaseFake) Release(pid interface{}, tagName string) (*gitlab.Release, error) {
	rel, ok := f.releases[fmt.Sprintf("%v/%s", pid, tagName)]
	if !ok {
		return nil, fmt.Errorf("release %q: %w", tagName, glclient.ErrNotFound)
	}
	return rel, nil
}

func (f *releaseFake) CreateRelease(pid interface{}, name, tagName, description string) (*gitlab.Release, error) {
	key := fmt.Sprintf("%v/%s", pid, tagName)
	f.createdReleases = append(f.createdReleases, key)
	rel := &gitlab.Release{Name: name, TagName: tagName, Description: description}
	f.releases[key] = rel
	return rel, nil
}

func (f *releaseFake) Commit(pid interface{}, sha string) (*gitlab.Commit, error) {
	commit, ok := f.commits[sha]
	if !ok {
		return nil, fmt.Errorf("commit %q: %w", sha, glclient.ErrNotFound)
	}
	return commit, nil
}

func mergedMR(projectID, iid int, title string, labels ...string) *gitlab.MergeRequest {
	return &gitlab.MergeRequest{
		IID:       iid,
		ProjectID: projectID,
		Title:     title,
		State:     "merged",
		Labels:    gitlab.Labels(labels),
		References: &gitlab.IssueReferences{
			Full: fmt.Sprintf("project-%d!%d", projectID, iid),
		},
	}
}

func TestMilestoneName(t *testing.T) {
	tests := []struct {
		tag     string
		want    string
		wantErr bool
	}{
		{tag: "v3.14.2", want: "v3.14"},
		{tag: "3.14.0", want: "3.14"},
		{tag: "v3.14.0.1", want: "v3.14.0"},
		{tag: "v3.14", wantErr: true},
		{tag: "autumn", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := MilestoneName(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMilestoneRelease(t *testing.T) {
	f := newReleaseFake()
	f.mrs = []*gitlab.MergeRequest{
		mergedMR(1, 1, "alpha feature", "Feature"),
		mergedMR(2, 1, "beta fix", "Bug"),
	}
	cfg := Config{DefaultBranch: "main"}

	require.NoError(t, MilestoneRelease(f, zap.NewNop(), cfg, "v3.14.0", false))

	assert.Equal(t, []string{"grp/alpha/v3.14.0", "grp/beta/v3.14.0"}, f.createdTags)
	assert.Equal(t, []string{"grp/alpha/v3.14.0", "grp/beta/v3.14.0"}, f.createdReleases)

	tag := f.tags["grp/alpha/v3.14.0"]
	assert.Contains(t, tag.Message, "Release v3.14.0 of grp/alpha")
	assert.Contains(t, tag.Message, "alpha feature")

	rel := f.releases["grp/beta/v3.14.0"]
	assert.Contains(t, rel.Description, "beta fix")
	assert.Contains(t, rel.Description, "v3.14")
}

func TestMilestoneReleaseDryRun(t *testing.T) {
	f := newReleaseFake()
	f.mrs = []*gitlab.MergeRequest{mergedMR(1, 1, "alpha feature", "Feature")}

	require.NoError(t, MilestoneRelease(f, zap.NewNop(), Config{DefaultBranch: "main"}, "v3.14.0", true))

	assert.Empty(t, f.createdTags)
	assert.Empty(t, f.createdReleases)
}

func TestMilestoneReleaseIgnoresProjects(t *testing.T) {
	f := newReleaseFake()
	f.mrs = []*gitlab.MergeRequest{
		mergedMR(1, 1, "alpha feature", "Feature"),
		mergedMR(2, 1, "beta fix", "Bug"),
	}
	cfg := Config{DefaultBranch: "main", IgnoreProjects: []string{"grp/beta"}}

	require.NoError(t, MilestoneRelease(f, zap.NewNop(), cfg, "v3.14.0", false))

	assert.Equal(t, []string{"grp/alpha/v3.14.0"}, f.createdTags)
}

func TestMilestoneReleaseContinuesPastTagFailure(t *testing.T) {
	f := newReleaseFake()
	f.mrs = []*gitlab.MergeRequest{
		mergedMR(1, 1, "alpha feature", "Feature"),
		mergedMR(2, 1, "beta fix", "Bug"),
	}
	f.failTagFor = "grp/alpha"

	require.NoError(t, MilestoneRelease(f, zap.NewNop(), Config{DefaultBranch: "main"}, "v3.14.0", false))

	// alpha's tag failed but its release and all of beta still happened.
	assert.Equal(t, []string{"grp/beta/v3.14.0"}, f.createdTags)
	assert.Equal(t, []string{"grp/alpha/v3.14.0", "grp/beta/v3.14.0"}, f.createdReleases)
}

func TestMilestoneReleaseBadTag(t *testing.T) {
	f := newReleaseFake()
	assert.Error(t, MilestoneRelease(f, zap.NewNop(), Config{}, "v3.14", false))
}

func TestTagToReleaseExisting(t *testing.T) {
	f := newReleaseFake()
	f.releases["1/v3.14.0"] = &gitlab.Release{TagName: "v3.14.0"}

	require.NoError(t, TagToRelease(f, zap.NewNop(), 1, "v3.14.0"))
	assert.Empty(t, f.createdReleases)
}

func TestTagToRelease(t *testing.T) {
	f := newReleaseFake()
	f.tags["1/v3.14.0"] = &gitlab.Tag{
		Name:    "v3.14.0",
		Message: "Release v3.14.0 of alpha\n\n* alpha feature\n",
		Target:  "abc123",
	}
	f.commits["v3.14.0"] = &gitlab.Commit{ID: "abc123"}

	require.NoError(t, TagToRelease(f, zap.NewNop(), 1, "v3.14.0"))

	require.Len(t, f.createdReleases, 1)
	rel := f.releases["1/v3.14.0"]
	assert.Equal(t, "Release v3.14.0 of alpha", rel.Name)
	assert.Equal(t, "* alpha feature\n", rel.Description)
}

func TestTagToReleaseEmptyMessage(t *testing.T) {
	f := newReleaseFake()
	f.tags["1/v3.14.0"] = &gitlab.Tag{Name: "v3.14.0", Target: "abc123"}
	f.commits["v3.14.0"] = &gitlab.Commit{ID: "abc123"}

	// A lightweight tag cannot carry release notes, logged and skipped.
	require.NoError(t, TagToRelease(f, zap.NewNop(), 1, "v3.14.0"))
	assert.Empty(t, f.createdReleases)
}

func TestTagToReleaseTargetMismatch(t *testing.T) {
	f := newReleaseFake()
	f.tags["1/v3.14.0"] = &gitlab.Tag{Name: "v3.14.0", Message: "msg", Target: "abc123"}
	f.commits["v3.14.0"] = &gitlab.Commit{ID: "fff999"}

	assert.Error(t, TagToRelease(f, zap.NewNop(), 1, "v3.14.0"))
	assert.Empty(t, f.createdReleases)
}

func TestMoveMilestoneItems(t *testing.T) {
	f := newReleaseFake()
	target := &gitlab.GroupMilestone{ID: 8, IID: 8, Title: "v3.15"}
	f.mrs = []*gitlab.MergeRequest{mergedMR(1, 1, "one"), mergedMR(1, 2, "two")}
	f.issues = []*gitlab.Issue{{IID: 9, ProjectID: 1, Title: "issue"}}
	fakeWithTarget := &twoMilestoneFake{releaseFake: f, target: target}

	require.NoError(t, MoveMilestoneItems(fakeWithTarget, zap.NewNop(), "v3.14", "v3.15", false))
	assert.Equal(t, []int{1, 2}, f.movedMRs)
	assert.Equal(t, []int{9}, f.movedIssues)
}

func TestMoveMilestoneItemsDryRun(t *testing.T) {
	f := newReleaseFake()
	target := &gitlab.GroupMilestone{ID: 8, IID: 8, Title: "v3.15"}
	f.mrs = []*gitlab.MergeRequest{mergedMR(1, 1, "one")}
	fakeWithTarget := &twoMilestoneFake{releaseFake: f, target: target}

	require.NoError(t, MoveMilestoneItems(fakeWithTarget, zap.NewNop(), "v3.14", "v3.15", true))
	assert.Empty(t, f.movedMRs)
	assert.Empty(t, f.movedIssues)
}

func TestMoveMilestoneItemsContinuesPastFailure(t *testing.T) {
	f := newReleaseFake()
	target := &gitlab.GroupMilestone{ID: 8, IID: 8, Title: "v3.15"}
	f.mrs = []*gitlab.MergeRequest{mergedMR(1, 1, "one"), mergedMR(1, 2, "two")}
	f.failMoveMR = 1
	fakeWithTarget := &twoMilestoneFake{releaseFake: f, target: target}

	require.NoError(t, MoveMilestoneItems(fakeWithTarget, zap.NewNop(), "v3.14", "v3.15", false))
	assert.Equal(t, []int{2}, f.movedMRs)
}

// twoMilestoneFake adds a second resolvable milestone on top of releaseFake.
type twoMilestoneFake struct {
	*releaseFake
	target *gitlab.GroupMilestone
}

func (f *twoMilestoneFake) GroupMilestone(name string) (*gitlab.GroupMilestone, error) {
	if f.target != nil && f.target.Title == name {
		return f.target, nil
	}
	return f.releaseFake.GroupMilestone(name)
}
