// Package config loads the nagger configuration: the group to operate on
// and the static project lists.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the static configuration of a run.
type Config struct {
	// Group is the forge group everything operates on.
	Group string `yaml:"group"`
	// IgnoreProjects are exempt from fixup and release tagging.
	IgnoreProjects []string `yaml:"ignore_projects"`
	// ReleaseProjects always get a changelog, tag and release, even with
	// zero milestone changes in a cycle.
	ReleaseProjects []string `yaml:"release_projects"`
	// ImportantProjects float to the front of rendered changelogs.
	ImportantProjects []string `yaml:"important_projects"`
	// HomepageProject hosts the generated news articles.
	HomepageProject string `yaml:"homepage_project"`
	// WikiProject hosts the generated wiki pages.
	WikiProject string `yaml:"wiki_project"`
	// DefaultBranch is the ref used for tags and homepage merge requests.
	DefaultBranch string `yaml:"default_branch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Group: "ModioAB",
		IgnoreProjects: []string{
			"ModioAB/sysadmin",
			"ModioAB/clientconfig",
		},
		ReleaseProjects: []string{
			"ModioAB/afase",
			"ModioAB/mytemp-backend",
			"ModioAB/modio-api",
			"ModioAB/zabbix-containers",
			"ModioAB/submit",
			"ModioAB/plagiation",
			"ModioAB/housekeeper",
			"ModioAB/containers",
			"ModioAB/grafana-datasource",
			"ModioAB/caramel-manager",
			"ModioAB/visualisation-editor",
		},
		ImportantProjects: []string{
			"ModioAB/afase",
			"ModioAB/modio-api",
		},
		HomepageProject: "ModioAB/modio.se",
		WikiProject:     "ModioAB/agile",
		DefaultBranch:   "master",
	}
}

// Load reads the YAML file at path over the defaults. An empty path falls
// back to the NAGGER_CONFIG environment variable, and no path at all
// keeps the defaults.
func Load(path string, log *zap.Logger) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("NAGGER_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}
	log.Info("loaded configuration", zap.String("path", path), zap.String("group", cfg.Group))
	return cfg, nil
}
