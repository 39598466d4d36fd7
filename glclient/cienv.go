package glclient

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultAPIURL is used when the CI environment does not provide one.
const DefaultAPIURL = "https://gitlab.com/"

// APIURL derives the forge base URL from the CI environment. CI provides a
// full API path; only scheme and host are kept.
func APIURL() (string, error) {
	val := os.Getenv("CI_API_V4_URL")
	if val == "" {
		return DefaultAPIURL, nil
	}
	u, err := url.Parse(val)
	if err != nil {
		return "", fmt.Errorf("parsing CI_API_V4_URL: %w", err)
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Host), nil
}

// Token returns the API token the bot authenticates with.
func Token() (string, error) {
	val := os.Getenv("NAGGUS_KEY")
	if val == "" {
		return "", fmt.Errorf("environment variable NAGGUS_KEY is missing")
	}
	return strings.TrimSpace(val), nil
}

// ProjectID returns the id of the project the CI job runs for.
func ProjectID() (int, error) {
	val := os.Getenv("CI_PROJECT_ID")
	if val == "" {
		return 0, fmt.Errorf("environment variable CI_PROJECT_ID is missing")
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing CI_PROJECT_ID: %w", err)
	}
	return id, nil
}

// MergeRequestIID returns the merge request iid of the CI pipeline, if the
// pipeline runs for one.
func MergeRequestIID() (int, error) {
	val := os.Getenv("CI_MERGE_REQUEST_IID")
	if val == "" {
		return 0, fmt.Errorf("environment variable CI_MERGE_REQUEST_IID is missing")
	}
	iid, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing CI_MERGE_REQUEST_IID: %w", err)
	}
	return iid, nil
}

// CommitTag returns the tag the CI pipeline runs for.
func CommitTag() (string, error) {
	val := os.Getenv("CI_COMMIT_TAG")
	if val == "" {
		return "", fmt.Errorf("environment variable CI_COMMIT_TAG is missing")
	}
	return val, nil
}

// CommitSHA returns the commit the CI pipeline runs for.
func CommitSHA() (string, error) {
	val := os.Getenv("CI_COMMIT_SHA")
	if val == "" {
		return "", fmt.Errorf("environment variable CI_COMMIT_SHA is missing")
	}
	return val, nil
}
