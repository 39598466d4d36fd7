// Package nag reconciles merge requests that lack a milestone into a
// canonical flagged state, and back again once a milestone is set.
//
// The engine keeps no state of its own. Every decision is derived from the
// remote fields at the moment of the decision, and the merge request is
// re-fetched before each dependent mutation because any earlier write may
// have failed or raced. Failed writes are logged and the engine moves on
// to the next independent step; re-running the whole reconciliation must
// converge without extra side effects.
package nag

import (
	"fmt"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
)

const (
	labelReady   = "Ready"
	labelPending = "Pending"

	awardClear   = "house"
	awardFlagged = "house_abandoned"
	awardSeen    = "thumbsup"

	draftPrefix = "Draft: "
)

// Forge is the part of the remote store the engine reads and mutates.
type Forge interface {
	CurrentUser() *gitlab.User
	Project(id interface{}) (*gitlab.Project, error)
	MergeRequest(pid interface{}, iid int) (*gitlab.MergeRequest, error)
	SaveTitle(pid interface{}, iid int, title string) (*gitlab.MergeRequest, error)
	SaveLabels(pid interface{}, iid int, labels []string) (*gitlab.MergeRequest, error)
	MergeRequestNotes(pid interface{}, iid int) ([]*gitlab.Note, error)
	CreateMergeRequestNote(pid interface{}, iid int, body string) (*gitlab.Note, error)
	UpdateMergeRequestNote(pid interface{}, iid, noteID int, body string) error
	DeleteMergeRequestNote(pid interface{}, iid, noteID int) error
	MergeRequestAwards(pid interface{}, iid int) ([]*gitlab.AwardEmoji, error)
	CreateMergeRequestAward(pid interface{}, iid int, name string) error
	DeleteMergeRequestAward(pid interface{}, iid, awardID int) error
	MergeRequestNoteAwards(pid interface{}, iid, noteID int) ([]*gitlab.AwardEmoji, error)
	CreateMergeRequestNoteAward(pid interface{}, iid, noteID int, name string) error
}

// Engine drives single merge requests toward their canonical state.
type Engine struct {
	forge Forge
	log   *zap.Logger
}

// New returns an engine working through the given forge.
func New(forge Forge, log *zap.Logger) *Engine {
	return &Engine{forge: forge, log: log}
}

func flaggedNote(author string) string {
	return fmt.Sprintf("Hello @%s.\n\n"+
		"You forgot to add a Milestone to this Merge Request.\n\n"+
		"I will try to mark it as `Pending` and `Draft` "+
		"so you do not forget to add a Milestone.\n\n"+
		"Please, make sure the title is descriptive.", author)
}

func clearedNote(author string) string {
	return fmt.Sprintf("Hello @%s.\n\n"+
		"~~You forgot to add a Milestone to this Merge Request.~~\n\n"+
		"~~I will try to mark it as `Pending` and `Draft` "+
		"so you do not forget to add a Milestone.~~\n\n"+
		"Please, make sure the title is descriptive.", author)
}

// Reconcile drives one merge request to its flagged or clear state,
// depending on whether a milestone is set.
func (e *Engine) Reconcile(mr *gitlab.MergeRequest) error {
	user := e.forge.CurrentUser()
	project, err := e.forge.Project(mr.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %d: %w", mr.ProjectID, err)
	}

	var author string
	if mr.Author != nil {
		author = mr.Author.Username
	}
	log := e.log.With(
		zap.String("project", project.PathWithNamespace),
		zap.String("mr_title", mr.Title),
		zap.String("author", author),
	)

	if mr.Milestone == nil {
		e.flag(log, mr, user.ID, author)
		return nil
	}
	e.clear(log, mr, user.ID, author)
	return nil
}

// flag marks a milestone-less merge request: swap awards, leave exactly
// one note, mark the title as draft, swap Ready for Pending.
func (e *Engine) flag(log *zap.Logger, mr *gitlab.MergeRequest, userID int, author string) {
	pid, iid := mr.ProjectID, mr.IID

	e.removeOwnAward(log, pid, iid, userID, awardClear)
	e.ensureOwnAward(log, pid, iid, userID, awardFlagged)

	ns, err := e.forge.MergeRequestNotes(pid, iid)
	if err != nil {
		log.Error("listing notes", zap.Error(err))
	} else if len(ownNotes(ns, userID)) == 0 {
		if _, err := e.forge.CreateMergeRequestNote(pid, iid, flaggedNote(author)); err != nil {
			log.Error("creating note", zap.Error(err))
		} else {
			log.Info("commented on merge request")
		}
	}

	// The earlier writes may have failed, reload before deciding on the
	// title.
	current, err := e.forge.MergeRequest(pid, iid)
	if err != nil {
		log.Error("reloading merge request", zap.Error(err))
		return
	}
	if !current.Draft {
		e.makeDraft(log, current)
	}

	current, err = e.forge.MergeRequest(pid, iid)
	if err != nil {
		log.Error("reloading merge request", zap.Error(err))
		return
	}
	if hasLabel(current.Labels, labelReady) || !hasLabel(current.Labels, labelPending) {
		e.makePending(log, current)
	}

	log.Info("updated merge request due to missing milestone")
}

// clear undoes the flagged state once a milestone is present: keep the
// first bot note but rewrite it as resolved, delete any extras, swap the
// awards back.
func (e *Engine) clear(log *zap.Logger, mr *gitlab.MergeRequest, userID int, author string) {
	pid, iid := mr.ProjectID, mr.IID

	ns, err := e.forge.MergeRequestNotes(pid, iid)
	if err != nil {
		log.Error("listing notes", zap.Error(err))
		ns = nil
	}
	own := ownNotes(ns, userID)
	if len(own) > 0 {
		first := own[0]
		e.ensureNoteAward(log, pid, iid, first.ID, userID, awardSeen)
		if resolved := clearedNote(author); first.Body != resolved {
			if err := e.forge.UpdateMergeRequestNote(pid, iid, first.ID, resolved); err != nil {
				log.Error("updating note", zap.Error(err))
			}
		}
		// Duplicate notes only exist after bugs or races, trim them.
		for _, extra := range own[1:] {
			log.Info("deleting extra note", zap.Int("note_id", extra.ID))
			if err := e.forge.DeleteMergeRequestNote(pid, iid, extra.ID); err != nil {
				log.Error("deleting note", zap.Error(err))
			}
		}
	}

	e.removeOwnAward(log, pid, iid, userID, awardFlagged)
	e.ensureOwnAward(log, pid, iid, userID, awardClear)
	log.Info("cleared nag state, milestone present")
}

func (e *Engine) makeDraft(log *zap.Logger, mr *gitlab.MergeRequest) {
	title := draftPrefix + mr.Title
	if _, err := e.forge.SaveTitle(mr.ProjectID, mr.IID, title); err != nil {
		log.Error("saving title, permission error?", zap.Error(err))
		return
	}
	log.Info("marked as draft", zap.String("title", title))
}

func (e *Engine) makePending(log *zap.Logger, mr *gitlab.MergeRequest) {
	labels := make([]string, 0, len(mr.Labels)+1)
	for _, l := range mr.Labels {
		if l == labelReady {
			continue
		}
		labels = append(labels, l)
	}
	if !hasLabel(labels, labelPending) {
		labels = append(labels, labelPending)
	}
	if _, err := e.forge.SaveLabels(mr.ProjectID, mr.IID, labels); err != nil {
		log.Error("saving labels, permission error?", zap.Error(err))
		return
	}
	log.Info("swapped labels", zap.Strings("labels", labels))
}

// ensureOwnAward adds the named award as the bot unless it is already
// there. Check-then-act: the list is fetched fresh each time.
func (e *Engine) ensureOwnAward(log *zap.Logger, pid interface{}, iid, userID int, name string) {
	awards, err := e.forge.MergeRequestAwards(pid, iid)
	if err != nil {
		log.Error("listing awards", zap.Error(err))
		return
	}
	for _, a := range awards {
		if a.User.ID == userID && a.Name == name {
			return
		}
	}
	if err := e.forge.CreateMergeRequestAward(pid, iid, name); err != nil {
		log.Error("adding award", zap.String("award", name), zap.Error(err))
		return
	}
	log.Info("added award", zap.String("award", name))
}

// removeOwnAward deletes every award of this name owned by the bot.
func (e *Engine) removeOwnAward(log *zap.Logger, pid interface{}, iid, userID int, name string) {
	awards, err := e.forge.MergeRequestAwards(pid, iid)
	if err != nil {
		log.Error("listing awards", zap.Error(err))
		return
	}
	for _, a := range awards {
		if a.User.ID != userID || a.Name != name {
			continue
		}
		if err := e.forge.DeleteMergeRequestAward(pid, iid, a.ID); err != nil {
			log.Error("removing award", zap.String("award", name), zap.Error(err))
			continue
		}
		log.Info("removed award", zap.String("award", name))
	}
}

func (e *Engine) ensureNoteAward(log *zap.Logger, pid interface{}, iid, noteID, userID int, name string) {
	awards, err := e.forge.MergeRequestNoteAwards(pid, iid, noteID)
	if err != nil {
		log.Error("listing note awards", zap.Error(err))
		return
	}
	for _, a := range awards {
		if a.User.ID == userID && a.Name == name {
			return
		}
	}
	if err := e.forge.CreateMergeRequestNoteAward(pid, iid, noteID, name); err != nil {
		log.Error("adding note award", zap.String("award", name), zap.Error(err))
	}
}

func ownNotes(ns []*gitlab.Note, userID int) []*gitlab.Note {
	var own []*gitlab.Note
	for _, n := range ns {
		if n.Author.ID == userID {
			own = append(own, n)
		}
	}
	return own
}

func hasLabel(labels []string, name string) bool {
	for _, l := range labels {
		if l == name {
			return true
		}
	}
	return false
}
