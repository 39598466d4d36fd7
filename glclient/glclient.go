// Package glclient wraps the GitLab client behind the operations the rest
// of the program needs. Every method is one or more blocking round-trips;
// nothing is retried here.
package glclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/modioab/nagger/notes"
)

// ErrNotFound marks a lookup whose subject does not exist on the forge.
// Callers that treat absence as a normal branch test for it with
// IsNotFound.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err represents a missing remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func wrap(resp *gitlab.Response, err error) error {
	if err != nil && resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// Client talks to one GitLab instance as one authenticated user. Project
// lookups are cached for the lifetime of the run, never re-fetched.
type Client struct {
	gl    *gitlab.Client
	log   *zap.Logger
	user  *gitlab.User
	group string

	projects map[string]*gitlab.Project
	grp      *gitlab.Group
}

// New authenticates against the forge and resolves the bot's own account.
func New(log *zap.Logger, baseURL, token, group string) (*Client, error) {
	gl, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	user, _, err := gl.Users.CurrentUser()
	if err != nil {
		return nil, fmt.Errorf("authenticating against %s: %w", baseURL, err)
	}
	log.Info("authenticated", zap.String("api_url", baseURL), zap.String("api_user", user.Username))
	return &Client{
		gl:       gl,
		log:      log,
		user:     user,
		group:    group,
		projects: make(map[string]*gitlab.Project),
	}, nil
}

// CurrentUser returns the account the client authenticated as.
func (c *Client) CurrentUser() *gitlab.User {
	return c.user
}

// Group returns the configured group.
func (c *Client) Group() (*gitlab.Group, error) {
	if c.grp != nil {
		return c.grp, nil
	}
	group, resp, err := c.gl.Groups.GetGroup(c.group, &gitlab.GetGroupOptions{})
	if err != nil {
		return nil, fmt.Errorf("looking up group %q: %w", c.group, wrap(resp, err))
	}
	c.grp = group
	return group, nil
}

// Project looks up a project by numeric id or path, cached per run.
func (c *Client) Project(id interface{}) (*gitlab.Project, error) {
	key := fmt.Sprintf("%v", id)
	if p, ok := c.projects[key]; ok {
		return p, nil
	}
	project, resp, err := c.gl.Projects.GetProject(id, nil)
	if err != nil {
		return nil, fmt.Errorf("looking up project %v: %w", id, wrap(resp, err))
	}
	c.projects[key] = project
	c.projects[fmt.Sprintf("%d", project.ID)] = project
	c.projects[project.PathWithNamespace] = project
	return project, nil
}

// GroupMilestone finds the active group milestone with exactly this title.
func (c *Client) GroupMilestone(name string) (*gitlab.GroupMilestone, error) {
	opt := &gitlab.ListGroupMilestonesOptions{
		State:       gitlab.Ptr("active"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		milestones, resp, err := c.gl.GroupMilestones.ListGroupMilestones(c.group, opt)
		if err != nil {
			return nil, fmt.Errorf("listing milestones for group %q: %w", c.group, err)
		}
		for _, m := range milestones {
			if m.Title == name {
				return m, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return nil, fmt.Errorf("milestone %q in group %q: %w", name, c.group, ErrNotFound)
}

// ActiveVersionMilestones lists the titles of active milestones that look
// like version numbers, for interactive selection.
func (c *Client) ActiveVersionMilestones() ([]string, error) {
	opt := &gitlab.ListGroupMilestonesOptions{
		State:       gitlab.Ptr("active"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var titles []string
	for {
		milestones, resp, err := c.gl.GroupMilestones.ListGroupMilestones(c.group, opt)
		if err != nil {
			return nil, fmt.Errorf("listing milestones for group %q: %w", c.group, err)
		}
		for _, m := range milestones {
			if notes.IsVersion(m.Title) {
				titles = append(titles, m.Title)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return titles, nil
}

// MilestoneMergeRequests lists every merge request assigned to the group
// milestone, in any state.
func (c *Client) MilestoneMergeRequests(milestoneID int) ([]*gitlab.MergeRequest, error) {
	opt := &gitlab.GetGroupMilestoneMergeRequestsOptions{PerPage: 100}
	var all []*gitlab.MergeRequest
	for {
		mrs, resp, err := c.gl.GroupMilestones.GetGroupMilestoneMergeRequests(c.group, milestoneID, opt)
		if err != nil {
			return nil, fmt.Errorf("listing merge requests for milestone %d: %w", milestoneID, err)
		}
		all = append(all, mrs...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// MilestoneIssues lists every issue assigned to the group milestone.
func (c *Client) MilestoneIssues(milestoneID int) ([]*gitlab.Issue, error) {
	opt := &gitlab.GetGroupMilestoneIssuesOptions{PerPage: 100}
	var all []*gitlab.Issue
	for {
		issues, resp, err := c.gl.GroupMilestones.GetGroupMilestoneIssues(c.group, milestoneID, opt)
		if err != nil {
			return nil, fmt.Errorf("listing issues for milestone %d: %w", milestoneID, err)
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// MergedGroupMergeRequests lists every merged merge request in the group.
func (c *Client) MergedGroupMergeRequests() ([]*gitlab.MergeRequest, error) {
	opt := &gitlab.ListGroupMergeRequestsOptions{
		State:       gitlab.Ptr("merged"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var all []*gitlab.MergeRequest
	for {
		mrs, resp, err := c.gl.MergeRequests.ListGroupMergeRequests(c.group, opt)
		if err != nil {
			return nil, fmt.Errorf("listing merged merge requests for group %q: %w", c.group, err)
		}
		all = append(all, mrs...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// MergedProjectMergeRequests lists every merged merge request of one
// project, oldest first.
func (c *Client) MergedProjectMergeRequests(pid interface{}) ([]*gitlab.MergeRequest, error) {
	opt := &gitlab.ListProjectMergeRequestsOptions{
		State:       gitlab.Ptr("merged"),
		OrderBy:     gitlab.Ptr("created_at"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var all []*gitlab.MergeRequest
	for {
		mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(pid, opt)
		if err != nil {
			return nil, fmt.Errorf("listing merged merge requests for project %v: %w", pid, err)
		}
		all = append(all, mrs...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// ProjectMergeRequests lists a project's merge requests in the given state.
func (c *Client) ProjectMergeRequests(pid interface{}, state string) ([]*gitlab.MergeRequest, error) {
	opt := &gitlab.ListProjectMergeRequestsOptions{
		State:       gitlab.Ptr(state),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var all []*gitlab.MergeRequest
	for {
		mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(pid, opt)
		if err != nil {
			return nil, fmt.Errorf("listing %s merge requests for project %v: %w", state, pid, err)
		}
		all = append(all, mrs...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// MergeRequest fetches the current remote state of one merge request.
func (c *Client) MergeRequest(pid interface{}, iid int) (*gitlab.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(pid, iid, nil)
	if err != nil {
		return nil, fmt.Errorf("loading merge request %v!%d: %w", pid, iid, wrap(resp, err))
	}
	return mr, nil
}

// CommitMergeRequests lists the merge requests associated with a commit.
func (c *Client) CommitMergeRequests(pid interface{}, sha string) ([]*gitlab.MergeRequest, error) {
	mrs, resp, err := c.gl.Commits.ListMergeRequestsByCommit(pid, sha)
	if err != nil {
		return nil, fmt.Errorf("listing merge requests for commit %s: %w", sha, wrap(resp, err))
	}
	return mrs, nil
}

// SaveTitle writes a new title on the merge request.
func (c *Client) SaveTitle(pid interface{}, iid int, title string) (*gitlab.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.UpdateMergeRequest(pid, iid, &gitlab.UpdateMergeRequestOptions{
		Title: gitlab.Ptr(title),
	})
	return mr, wrap(resp, err)
}

// SaveLabels replaces the label set on the merge request.
func (c *Client) SaveLabels(pid interface{}, iid int, labels []string) (*gitlab.MergeRequest, error) {
	opts := gitlab.LabelOptions(labels)
	mr, resp, err := c.gl.MergeRequests.UpdateMergeRequest(pid, iid, &gitlab.UpdateMergeRequestOptions{
		Labels: &opts,
	})
	return mr, wrap(resp, err)
}

// UpdateMergeRequestMilestone assigns the merge request to a milestone.
func (c *Client) UpdateMergeRequestMilestone(pid interface{}, iid, milestoneID int) (*gitlab.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.UpdateMergeRequest(pid, iid, &gitlab.UpdateMergeRequestOptions{
		MilestoneID: gitlab.Ptr(milestoneID),
	})
	return mr, wrap(resp, err)
}

// UpdateIssueMilestone assigns the issue to a milestone.
func (c *Client) UpdateIssueMilestone(pid interface{}, iid, milestoneID int) (*gitlab.Issue, error) {
	issue, resp, err := c.gl.Issues.UpdateIssue(pid, iid, &gitlab.UpdateIssueOptions{
		MilestoneID: gitlab.Ptr(milestoneID),
	})
	return issue, wrap(resp, err)
}

// IssueRelations lists the issues linked to the given issue.
func (c *Client) IssueRelations(pid interface{}, iid int) ([]*gitlab.Issue, error) {
	issues, resp, err := c.gl.IssueLinks.ListIssueRelations(pid, iid)
	if err != nil {
		return nil, fmt.Errorf("listing linked issues for %v#%d: %w", pid, iid, wrap(resp, err))
	}
	return issues, nil
}
