package glclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIURL(t *testing.T) {
	t.Setenv("CI_API_V4_URL", "https://gitlab.example.com/api/v4")
	got, err := APIURL()
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com/", got)
}

func TestAPIURLDefault(t *testing.T) {
	t.Setenv("CI_API_V4_URL", "")
	got, err := APIURL()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, got)
}

func TestToken(t *testing.T) {
	t.Setenv("NAGGUS_KEY", " secret-token\n")
	got, err := Token()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", got)
}

func TestTokenMissing(t *testing.T) {
	t.Setenv("NAGGUS_KEY", "")
	_, err := Token()
	assert.Error(t, err)
}

func TestProjectID(t *testing.T) {
	t.Setenv("CI_PROJECT_ID", "1234")
	got, err := ProjectID()
	require.NoError(t, err)
	assert.Equal(t, 1234, got)
}

func TestProjectIDInvalid(t *testing.T) {
	t.Setenv("CI_PROJECT_ID", "alpha")
	_, err := ProjectID()
	assert.Error(t, err)
}

func TestMergeRequestIID(t *testing.T) {
	t.Setenv("CI_MERGE_REQUEST_IID", "56")
	got, err := MergeRequestIID()
	require.NoError(t, err)
	assert.Equal(t, 56, got)
}

func TestMergeRequestIIDMissing(t *testing.T) {
	t.Setenv("CI_MERGE_REQUEST_IID", "")
	_, err := MergeRequestIID()
	assert.Error(t, err)
}

func TestCommitTag(t *testing.T) {
	t.Setenv("CI_COMMIT_TAG", "v3.14.0")
	got, err := CommitTag()
	require.NoError(t, err)
	assert.Equal(t, "v3.14.0", got)
}

func TestCommitSHA(t *testing.T) {
	t.Setenv("CI_COMMIT_SHA", "abc123")
	got, err := CommitSHA()
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}
