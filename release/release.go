// Package release creates tags and release objects for a milestone across
// every involved project, and repairs milestone assignment on merged work.
//
// Each project is an independent unit of work: a failure to tag one
// project is logged and the loop continues, and tag creation and release
// creation are independent of each other as well. Partial completion is
// normal; the operations are safe to re-run.
package release

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/modioab/nagger/glclient"
	"github.com/modioab/nagger/internal/render"
	"github.com/modioab/nagger/notes"
)

// Forge is the part of the remote store the release operations need.
type Forge interface {
	notes.Forge
	Group() (*gitlab.Group, error)
	MergedGroupMergeRequests() ([]*gitlab.MergeRequest, error)
	MergedProjectMergeRequests(pid interface{}) ([]*gitlab.MergeRequest, error)
	MilestoneIssues(milestoneID int) ([]*gitlab.Issue, error)
	UpdateMergeRequestMilestone(pid interface{}, iid, milestoneID int) (*gitlab.MergeRequest, error)
	UpdateIssueMilestone(pid interface{}, iid, milestoneID int) (*gitlab.Issue, error)
	Tag(pid interface{}, name string) (*gitlab.Tag, error)
	CreateTag(pid interface{}, name, ref, message string) (*gitlab.Tag, error)
	Release(pid interface{}, tagName string) (*gitlab.Release, error)
	CreateRelease(pid interface{}, name, tagName, description string) (*gitlab.Release, error)
	Commit(pid interface{}, sha string) (*gitlab.Commit, error)
}

// Config carries the static project lists.
type Config struct {
	// IgnoreProjects are never tagged or fixed up.
	IgnoreProjects []string
	// AlwaysRelease get a tag and release even with zero changes.
	AlwaysRelease []string
	// Important float to the front of rendered changelogs.
	Important []string
	// DefaultBranch is the ref tags are created on.
	DefaultBranch string
}

func (c Config) ignored(path string) bool {
	for _, p := range c.IgnoreProjects {
		if p == path {
			return true
		}
	}
	return false
}

// MilestoneName derives the milestone from a full version tag by cutting
// the last dot segment: v3.14.2 belongs to milestone v3.14.
func MilestoneName(tagName string) (string, error) {
	if strings.Count(tagName, ".") < 2 {
		return "", fmt.Errorf("tag %q should be a full version, e.g. v3.14.0", tagName)
	}
	return tagName[:strings.LastIndex(tagName, ".")], nil
}

// MilestoneRelease tags every project involved in the milestone and
// creates a matching release object, rendering both from the project's
// changelog. With dryRun everything is rendered but nothing is written.
func MilestoneRelease(f Forge, log *zap.Logger, cfg Config, tagName string, dryRun bool) error {
	milestoneName, err := MilestoneName(tagName)
	if err != nil {
		return err
	}
	log = log.With(zap.String("tag_name", tagName), zap.String("milestone_name", milestoneName))

	ms, err := f.GroupMilestone(milestoneName)
	if err != nil {
		return err
	}
	group, err := f.Group()
	if err != nil {
		return err
	}
	milestoneURL := fmt.Sprintf("%s/-/milestones/%d", group.WebURL, ms.IID)

	changelogs, err := notes.BuildMilestoneChangelog(f, log, milestoneName, notes.Options{
		AlwaysInclude: cfg.AlwaysRelease,
		Important:     cfg.Important,
	})
	if err != nil {
		return err
	}

	for _, project := range changelogs {
		if cfg.ignored(project.Name) {
			continue
		}
		plog := log.With(zap.String("project", project.Name))

		tagMessage, err := render.Render("project_tag.txt", render.Tag{TagName: tagName, Project: project})
		if err != nil {
			return err
		}
		releaseMessage, err := render.Render("project_release.md", render.Release{
			TagName:         tagName,
			MilestoneTitle:  ms.Title,
			MilestoneWebURL: milestoneURL,
			Project:         project,
		})
		if err != nil {
			return err
		}

		if dryRun {
			plog.Info("would create tag and release", zap.String("ref", cfg.DefaultBranch))
			fmt.Printf("%s:\n%s\n", color.CyanString(project.Name), tagMessage)
			continue
		}

		tag, err := f.CreateTag(project.Name, tagName, cfg.DefaultBranch, tagMessage)
		if err != nil {
			plog.Error("creating tag", zap.Error(err))
		} else {
			commit := tag.Target
			if tag.Commit != nil {
				commit = tag.Commit.ID
			}
			fmt.Printf("%s:  tag: %s commit: %s\n", project.Name, tagName, commit)
		}

		// Independent of the tag outcome. The release API checks for the
		// tag itself.
		rel, err := f.CreateRelease(project.Name, tagName, tagName, releaseMessage)
		if err != nil {
			plog.Error("creating release", zap.Error(err))
			continue
		}
		fmt.Printf("%s:  tag: %s, release: %s\n", project.Name, rel.TagName, rel.Name)
	}
	return nil
}

// TagToRelease turns the CI-provided tag of a single project into a
// release object. Meant to run from a tag pipeline. An already existing
// release is a no-op, a tag whose target differs from the tag's commit is
// a fatal inconsistency.
func TagToRelease(f Forge, log *zap.Logger, pid interface{}, tagName string) error {
	log = log.With(zap.String("tag_name", tagName))

	if _, err := f.Release(pid, tagName); err == nil {
		log.Info("release found, bailing")
		return nil
	} else if !glclient.IsNotFound(err) {
		return err
	}

	tag, err := f.Tag(pid, tagName)
	if err != nil {
		return err
	}
	if tag.Message == "" {
		log.Error("tag has no message, cannot build a release")
		return nil
	}

	commit, err := f.Commit(pid, tagName)
	if err != nil {
		return err
	}
	if commit.ID != tag.Target {
		return fmt.Errorf("commit id %s and tag target %s differ", commit.ID, tag.Target)
	}

	header, description, _ := strings.Cut(tag.Message, "\n")
	description = strings.TrimPrefix(description, "\n")
	if _, err := f.CreateRelease(pid, header, tagName, description); err != nil {
		return fmt.Errorf("creating release for tag %q: %w", tagName, err)
	}
	log.Info("created release", zap.String("name", header))
	return nil
}
