// Package notes defines the changelog values derived from merge requests
// and functions to aggregate them into per-project changelogs for a
// milestone.
package notes

import (
	"strings"

	"github.com/xanzy/go-gitlab"
)

// Kind is the changelog section a change belongs to. Lower values sort
// first in rendered output.
type Kind int

const (
	KindFeature Kind = iota
	KindBug
	KindMisc
)

// String returns the section heading used in rendered changelogs.
func (k Kind) String() string {
	switch k {
	case KindFeature:
		return "New features"
	case KindBug:
		return "Bug fixes"
	default:
		return "Misc changes"
	}
}

// Exposed tells whether a change should be visible outside the organisation.
type Exposed int

const (
	ExposedExternal Exposed = iota
	ExposedInternal
)

// ChangeLog is one line of a project changelog, derived from a merged
// merge request. It is a plain value; Kind and Exposed are computed from
// the label snapshot on every call, so re-classification after a label
// edit needs no re-fetch.
type ChangeLog struct {
	Slug   string   `json:"slug"`
	Text   string   `json:"text"`
	WebURL string   `json:"web_url"`
	Labels []string `json:"labels"`
}

// FromMergeRequest builds a ChangeLog line from a merge request.
func FromMergeRequest(mr *gitlab.MergeRequest) ChangeLog {
	var slug string
	if mr.References != nil {
		slug = mr.References.Full
	}
	return ChangeLog{
		Slug:   slug,
		Text:   mr.Title,
		WebURL: mr.WebURL,
		Labels: []string(mr.Labels),
	}
}

// Kind classifies the change from its labels. Feature wins over Bug, and
// anything unlabelled falls through to Misc.
func (c ChangeLog) Kind() Kind {
	for _, l := range c.Labels {
		if l == "Feature" {
			return KindFeature
		}
	}
	for _, l := range c.Labels {
		if l == "Bug" {
			return KindBug
		}
	}
	return KindMisc
}

// Exposed reports the visibility of the change. A label spelled "internal"
// in any case forces Internal.
func (c ChangeLog) Exposed() Exposed {
	for _, l := range c.Labels {
		if strings.EqualFold(l, "internal") {
			return ExposedInternal
		}
	}
	return ExposedExternal
}

// Less orders entries by (kind, exposed, text, slug) so rendered output is
// deterministic.
func (c ChangeLog) Less(o ChangeLog) bool {
	ck, ok := c.Kind(), o.Kind()
	if ck != ok {
		return ck < ok
	}
	ce, oe := c.Exposed(), o.Exposed()
	if ce != oe {
		return ce < oe
	}
	if c.Text != o.Text {
		return c.Text < o.Text
	}
	return c.Slug < o.Slug
}

// ProjectChangelog is a project and its sorted changelog lines. Changes
// holds every entry; External filters to the outside-visible subset.
type ProjectChangelog struct {
	Name    string      `json:"name"`
	Changes []ChangeLog `json:"changes"`
}

// External returns the changes visible to the outside.
func (p ProjectChangelog) External() []ChangeLog {
	var result []ChangeLog
	for _, c := range p.Changes {
		if c.Exposed() == ExposedExternal {
			result = append(result, c)
		}
	}
	return result
}

// Section groups the consecutive entries of one kind in a sorted changelog.
type Section struct {
	Kind    Kind
	Entries []ChangeLog
}

func sectionize(changes []ChangeLog) []Section {
	var sections []Section
	for _, c := range changes {
		if n := len(sections); n == 0 || sections[n-1].Kind != c.Kind() {
			sections = append(sections, Section{Kind: c.Kind()})
		}
		last := &sections[len(sections)-1]
		last.Entries = append(last.Entries, c)
	}
	return sections
}

// Sections splits all changes into per-kind sections.
func (p ProjectChangelog) Sections() []Section {
	return sectionize(p.Changes)
}

// ExternalSections splits the outside-visible changes into per-kind
// sections.
func (p ProjectChangelog) ExternalSections() []Section {
	return sectionize(p.External())
}
