package release

import (
	"go.uber.org/zap"
)

// MoveMilestoneItems reassigns every merge request and issue from the
// source milestone to the target milestone. Items are independent: one
// failed save is logged and the rest are still moved.
func MoveMilestoneItems(f Forge, log *zap.Logger, source, target string, dryRun bool) error {
	src, err := f.GroupMilestone(source)
	if err != nil {
		return err
	}
	tgt, err := f.GroupMilestone(target)
	if err != nil {
		return err
	}
	log = log.With(zap.String("source", source), zap.String("target", target), zap.Bool("dry_run", dryRun))

	mrs, err := f.MilestoneMergeRequests(src.ID)
	if err != nil {
		return err
	}
	for _, mr := range mrs {
		mlog := log.With(zap.String("mr_title", mr.Title), zap.String("mr_url", mr.WebURL))
		mlog.Info("moving merge request")
		if dryRun {
			continue
		}
		if _, err := f.UpdateMergeRequestMilestone(mr.ProjectID, mr.IID, tgt.ID); err != nil {
			mlog.Error("failed to move merge request", zap.Error(err))
		}
	}

	issues, err := f.MilestoneIssues(src.ID)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		ilog := log.With(zap.String("issue_title", issue.Title), zap.String("issue_url", issue.WebURL))
		ilog.Info("moving issue")
		if dryRun {
			continue
		}
		if _, err := f.UpdateIssueMilestone(issue.ProjectID, issue.IID, tgt.ID); err != nil {
			ilog.Error("failed to move issue", zap.Error(err))
		}
	}
	return nil
}
