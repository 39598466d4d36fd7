package release

import (
	"fmt"
	"sort"
	"time"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
)

// MilestoneFixup assigns every merged merge request in the group that has
// no milestone, and was merged strictly inside the milestone's date
// window, to the milestone. With pretend (the default mode) the intended
// assignments are only logged. A failed save is logged and the remaining
// merge requests are still processed.
func MilestoneFixup(f Forge, log *zap.Logger, cfg Config, milestoneName string, pretend bool) error {
	log = log.With(zap.String("milestone_name", milestoneName), zap.Bool("pretend", pretend))

	ms, err := f.GroupMilestone(milestoneName)
	if err != nil {
		return err
	}
	if ms.StartDate == nil {
		return fmt.Errorf("milestone %q needs a start date set", milestoneName)
	}
	if ms.DueDate == nil {
		return fmt.Errorf("milestone %q needs a due date set", milestoneName)
	}
	start := time.Time(*ms.StartDate)
	due := time.Time(*ms.DueDate)

	// The milestone cannot provide these merge requests, we want the ones
	// NOT part of it. Walk every project with merged work plus the
	// always-release set.
	mrs, err := f.MergedGroupMergeRequests()
	if err != nil {
		return err
	}
	projects, err := collectProjects(f, log, mrs, cfg.AlwaysRelease)
	if err != nil {
		return err
	}

	for _, project := range projects {
		plog := log.With(zap.String("project", project.PathWithNamespace))
		if cfg.ignored(project.PathWithNamespace) {
			plog.Info("ignoring project")
			continue
		}

		projectMRs, err := f.MergedProjectMergeRequests(project.ID)
		if err != nil {
			plog.Error("listing merge requests", zap.Error(err))
			continue
		}
		for _, mr := range projectMRs {
			if mr.Milestone != nil {
				continue
			}
			mlog := plog.With(zap.String("mr_title", mr.Title), zap.String("mr_url", mr.WebURL))
			if mr.MergedAt == nil {
				mlog.Info("no merged date, ignoring")
				continue
			}
			if !mr.MergedAt.After(start) || !mr.MergedAt.Before(due) {
				continue
			}
			mlog.Info("assigning to milestone")
			if pretend {
				continue
			}
			if _, err := f.UpdateMergeRequestMilestone(mr.ProjectID, mr.IID, ms.ID); err != nil {
				mlog.Error("failed to update", zap.Error(err))
			}
		}
	}
	return nil
}

// collectProjects resolves the distinct projects of the merge requests,
// one lookup each, unioned with the named projects, sorted by path.
func collectProjects(f Forge, log *zap.Logger, mrs []*gitlab.MergeRequest, always []string) ([]*gitlab.Project, error) {
	projects := make(map[int]*gitlab.Project)
	for _, mr := range mrs {
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
	for _, path := range always {
		project, err := f.Project(path)
		if err != nil {
			return nil, fmt.Errorf("looking up project %q: %w", path, err)
		}
		projects[project.ID] = project
	}

	result := make([]*gitlab.Project, 0, len(projects))
	for _, project := range projects {
		result = append(result, project)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PathWithNamespace < result[j].PathWithNamespace
	})
	return result, nil
}
