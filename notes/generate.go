package notes

import (
	"fmt"
	"sort"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
)

// Forge is the part of the remote store the aggregation reads from.
type Forge interface {
	GroupMilestone(name string) (*gitlab.GroupMilestone, error)
	MilestoneMergeRequests(milestoneID int) ([]*gitlab.MergeRequest, error)
	Project(id interface{}) (*gitlab.Project, error)
}

// Options select which projects always appear in the output and which
// float to the front.
type Options struct {
	// AlwaysInclude lists projects by path that get a changelog entry even
	// with zero merged changes this cycle, so releases are still created
	// for them.
	AlwaysInclude []string
	// Important lists projects by path that are moved to the front of the
	// output, in this order. Everything else keeps its name order.
	Important []string
}

// BuildMilestoneChangelog aggregates every merged merge request of the
// named milestone into per-project changelogs, sorted by project path.
// Each distinct project is looked up once.
func BuildMilestoneChangelog(f Forge, log *zap.Logger, milestoneName string, opts Options) ([]ProjectChangelog, error) {
	ms, err := f.GroupMilestone(milestoneName)
	if err != nil {
		return nil, fmt.Errorf("resolving milestone %q: %w", milestoneName, err)
	}

	mrs, err := f.MilestoneMergeRequests(ms.ID)
	if err != nil {
		return nil, fmt.Errorf("listing merge requests for milestone %q: %w", milestoneName, err)
	}
	var merged []*gitlab.MergeRequest
	for _, mr := range mrs {
		if mr.State == "merged" {
			merged = append(merged, mr)
		}
	}

	projects := make(map[int]*gitlab.Project)
	for _, mr := range merged {
		if _, ok := projects[mr.ProjectID]; ok {
			continue
		}
		log.Info("looking up project", zap.Int("project_id", mr.ProjectID))
		project, err := f.Project(mr.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("looking up project %d: %w", mr.ProjectID, err)
		}
		projects[project.ID] = project
	}
	for _, path := range opts.AlwaysInclude {
		log.Info("looking up project", zap.String("project", path))
		project, err := f.Project(path)
		if err != nil {
			return nil, fmt.Errorf("looking up project %q: %w", path, err)
		}
		projects[project.ID] = project
	}

	changes := make(map[int][]ChangeLog)
	for id := range projects {
		changes[id] = nil
	}
	for _, mr := range merged {
		changes[mr.ProjectID] = append(changes[mr.ProjectID], FromMergeRequest(mr))
	}

	result := make([]ProjectChangelog, 0, len(projects))
	for id, project := range projects {
		entries := changes[id]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
		result = append(result, ProjectChangelog{
			Name:    project.PathWithNamespace,
			Changes: entries,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	floatImportant(result, opts.Important)
	return result, nil
}

// floatImportant moves the named projects to the front in the given order
// while keeping the relative order of all other projects.
func floatImportant(changelogs []ProjectChangelog, names []string) {
	if len(names) == 0 {
		return
	}
	rank := make(map[string]int, len(names))
	for i, name := range names {
		rank[name] = i + 1
	}
	sort.SliceStable(changelogs, func(i, j int) bool {
		ri, rj := rank[changelogs[i].Name], rank[changelogs[j].Name]
		switch {
		case ri == 0:
			return false
		case rj == 0:
			return true
		default:
			return ri < rj
		}
	})
}
