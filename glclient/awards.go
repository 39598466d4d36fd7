package glclient

import (
	"fmt"

	"github.com/xanzy/go-gitlab"
)

// MergeRequestNotes lists every note on a merge request, oldest first.
func (c *Client) MergeRequestNotes(pid interface{}, iid int) ([]*gitlab.Note, error) {
	opt := &gitlab.ListMergeRequestNotesOptions{
		OrderBy:     gitlab.Ptr("created_at"),
		Sort:        gitlab.Ptr("asc"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var all []*gitlab.Note
	for {
		ns, resp, err := c.gl.Notes.ListMergeRequestNotes(pid, iid, opt)
		if err != nil {
			return nil, fmt.Errorf("listing notes for %v!%d: %w", pid, iid, err)
		}
		all = append(all, ns...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// CreateMergeRequestNote adds a note to a merge request.
func (c *Client) CreateMergeRequestNote(pid interface{}, iid int, body string) (*gitlab.Note, error) {
	note, resp, err := c.gl.Notes.CreateMergeRequestNote(pid, iid, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	})
	return note, wrap(resp, err)
}

// UpdateMergeRequestNote replaces the body of an existing note.
func (c *Client) UpdateMergeRequestNote(pid interface{}, iid, noteID int, body string) error {
	_, resp, err := c.gl.Notes.UpdateMergeRequestNote(pid, iid, noteID, &gitlab.UpdateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	})
	return wrap(resp, err)
}

// DeleteMergeRequestNote removes a note from a merge request.
func (c *Client) DeleteMergeRequestNote(pid interface{}, iid, noteID int) error {
	resp, err := c.gl.Notes.DeleteMergeRequestNote(pid, iid, noteID)
	return wrap(resp, err)
}

// MergeRequestAwards lists the award emoji on a merge request.
func (c *Client) MergeRequestAwards(pid interface{}, iid int) ([]*gitlab.AwardEmoji, error) {
	opt := &gitlab.ListAwardEmojiOptions{PerPage: 100}
	var all []*gitlab.AwardEmoji
	for {
		awards, resp, err := c.gl.AwardEmoji.ListMergeRequestAwardEmoji(pid, iid, opt)
		if err != nil {
			return nil, fmt.Errorf("listing awards for %v!%d: %w", pid, iid, err)
		}
		all = append(all, awards...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// CreateMergeRequestAward attaches a named award emoji as the current user.
func (c *Client) CreateMergeRequestAward(pid interface{}, iid int, name string) error {
	_, resp, err := c.gl.AwardEmoji.CreateMergeRequestAwardEmoji(pid, iid, &gitlab.CreateAwardEmojiOptions{
		Name: name,
	})
	return wrap(resp, err)
}

// DeleteMergeRequestAward removes an award emoji by id.
func (c *Client) DeleteMergeRequestAward(pid interface{}, iid, awardID int) error {
	resp, err := c.gl.AwardEmoji.DeleteMergeRequestAwardEmoji(pid, iid, awardID)
	return wrap(resp, err)
}

// MergeRequestNoteAwards lists the award emoji on a single note.
func (c *Client) MergeRequestNoteAwards(pid interface{}, iid, noteID int) ([]*gitlab.AwardEmoji, error) {
	awards, resp, err := c.gl.AwardEmoji.ListMergeRequestAwardEmojiOnNote(pid, iid, noteID, &gitlab.ListAwardEmojiOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("listing note awards for %v!%d: %w", pid, iid, wrap(resp, err))
	}
	return awards, nil
}

// CreateMergeRequestNoteAward attaches an award emoji to a note.
func (c *Client) CreateMergeRequestNoteAward(pid interface{}, iid, noteID int, name string) error {
	_, resp, err := c.gl.AwardEmoji.CreateMergeRequestAwardEmojiOnNote(pid, iid, noteID, &gitlab.CreateAwardEmojiOptions{
		Name: name,
	})
	return wrap(resp, err)
}
