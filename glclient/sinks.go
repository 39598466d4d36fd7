package glclient

import (
	"fmt"

	"github.com/xanzy/go-gitlab"
)

// Tag fetches an existing git tag.
func (c *Client) Tag(pid interface{}, name string) (*gitlab.Tag, error) {
	tag, resp, err := c.gl.Tags.GetTag(pid, name)
	if err != nil {
		return nil, fmt.Errorf("loading tag %q: %w", name, wrap(resp, err))
	}
	return tag, nil
}

// CreateTag creates an annotated tag on ref.
func (c *Client) CreateTag(pid interface{}, name, ref, message string) (*gitlab.Tag, error) {
	tag, resp, err := c.gl.Tags.CreateTag(pid, &gitlab.CreateTagOptions{
		TagName: gitlab.Ptr(name),
		Ref:     gitlab.Ptr(ref),
		Message: gitlab.Ptr(message),
	})
	return tag, wrap(resp, err)
}

// Release fetches the release attached to a tag. Absence comes back as
// ErrNotFound.
func (c *Client) Release(pid interface{}, tagName string) (*gitlab.Release, error) {
	release, resp, err := c.gl.Releases.GetRelease(pid, tagName)
	if err != nil {
		return nil, fmt.Errorf("loading release %q: %w", tagName, wrap(resp, err))
	}
	return release, nil
}

// CreateRelease creates a release for an existing tag. Group milestones
// cannot be referenced by name on project releases, so none are attached.
func (c *Client) CreateRelease(pid interface{}, name, tagName, description string) (*gitlab.Release, error) {
	release, resp, err := c.gl.Releases.CreateRelease(pid, &gitlab.CreateReleaseOptions{
		Name:        gitlab.Ptr(name),
		TagName:     gitlab.Ptr(tagName),
		Description: gitlab.Ptr(description),
		Milestones:  &[]string{},
	})
	return release, wrap(resp, err)
}

// Commit fetches a commit by sha or ref name.
func (c *Client) Commit(pid interface{}, sha string) (*gitlab.Commit, error) {
	commit, resp, err := c.gl.Commits.GetCommit(pid, sha)
	if err != nil {
		return nil, fmt.Errorf("loading commit %q: %w", sha, wrap(resp, err))
	}
	return commit, nil
}

// WikiPages lists the wiki pages of a project, without content.
func (c *Client) WikiPages(pid interface{}) ([]*gitlab.Wiki, error) {
	pages, resp, err := c.gl.Wikis.ListWikis(pid, &gitlab.ListWikisOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing wiki pages for %v: %w", pid, wrap(resp, err))
	}
	return pages, nil
}

// CreateWikiPage creates a new wiki page.
func (c *Client) CreateWikiPage(pid interface{}, title, content string) error {
	_, resp, err := c.gl.Wikis.CreateWikiPage(pid, &gitlab.CreateWikiPageOptions{
		Title:   gitlab.Ptr(title),
		Content: gitlab.Ptr(content),
	})
	return wrap(resp, err)
}

// UpdateWikiPage overwrites an existing wiki page addressed by slug.
func (c *Client) UpdateWikiPage(pid interface{}, slug, title, content string) error {
	_, resp, err := c.gl.Wikis.EditWikiPage(pid, slug, &gitlab.EditWikiPageOptions{
		Title:   gitlab.Ptr(title),
		Content: gitlab.Ptr(content),
	})
	return wrap(resp, err)
}

// Branches lists the branches of a project.
func (c *Client) Branches(pid interface{}) ([]*gitlab.Branch, error) {
	opt := &gitlab.ListBranchesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	var all []*gitlab.Branch
	for {
		branches, resp, err := c.gl.Branches.ListBranches(pid, opt)
		if err != nil {
			return nil, fmt.Errorf("listing branches for %v: %w", pid, err)
		}
		all = append(all, branches...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// CreateBranch creates a branch from ref.
func (c *Client) CreateBranch(pid interface{}, name, ref string) (*gitlab.Branch, error) {
	branch, resp, err := c.gl.Branches.CreateBranch(pid, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(name),
		Ref:    gitlab.Ptr(ref),
	})
	return branch, wrap(resp, err)
}

// CreateMergeRequest opens a merge request with the source branch removed
// on merge.
func (c *Client) CreateMergeRequest(pid interface{}, title, source, target string) (*gitlab.MergeRequest, error) {
	mr, resp, err := c.gl.MergeRequests.CreateMergeRequest(pid, &gitlab.CreateMergeRequestOptions{
		Title:              gitlab.Ptr(title),
		SourceBranch:       gitlab.Ptr(source),
		TargetBranch:       gitlab.Ptr(target),
		RemoveSourceBranch: gitlab.Ptr(true),
	})
	return mr, wrap(resp, err)
}

// File checks for a repository file on a branch. Absence comes back as
// ErrNotFound.
func (c *Client) File(pid interface{}, path, ref string) (*gitlab.File, error) {
	file, resp, err := c.gl.RepositoryFiles.GetFile(pid, path, &gitlab.GetFileOptions{
		Ref: gitlab.Ptr(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("loading file %q on %q: %w", path, ref, wrap(resp, err))
	}
	return file, nil
}

// CreateFile commits a new repository file to a branch.
func (c *Client) CreateFile(pid interface{}, path, branch, content, message string) error {
	_, resp, err := c.gl.RepositoryFiles.CreateFile(pid, path, &gitlab.CreateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(content),
		CommitMessage: gitlab.Ptr(message),
	})
	return wrap(resp, err)
}

// UpdateFile commits new content for an existing repository file.
func (c *Client) UpdateFile(pid interface{}, path, branch, content, message string) error {
	_, resp, err := c.gl.RepositoryFiles.UpdateFile(pid, path, &gitlab.UpdateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(content),
		CommitMessage: gitlab.Ptr(message),
	})
	return wrap(resp, err)
}
