package buildmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, k := range append(append(append([]string{}, shaEnv...), branchEnv...), buildIDEnv...) {
		t.Setenv(k, "")
	}
}

func initRepo(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.log"), []byte("FILE a new_bytes=1\n"), 0o644))
	_, err = wt.Add("build.log")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	return dir, hash.String(), head.Name().Short()
}

func TestResolve_Precedence(t *testing.T) {
	clearCIEnv(t)
	dir, sha, branch := initRepo(t)

	got := Resolve(dir, Flags{})
	require.NotNil(t, got)
	assert.Equal(t, sha, got.SHA)
	assert.Equal(t, branch, got.Branch)
	assert.Empty(t, got.BuildID)

	t.Setenv("CI_COMMIT_SHA", "envsha")
	t.Setenv("GITHUB_REF_NAME", "release")
	t.Setenv("CI_PIPELINE_ID", "77")
	got = Resolve(dir, Flags{})
	assert.Equal(t, "envsha", got.SHA)
	assert.Equal(t, "release", got.Branch)
	assert.Equal(t, "77", got.BuildID)

	t.Setenv("GITHUB_SHA", "ghsha")
	assert.Equal(t, "ghsha", Resolve(dir, Flags{}).SHA)

	got = Resolve(dir, Flags{SHA: "flagsha", Branch: "feature", BuildID: "9"})
	assert.Equal(t, "flagsha", got.SHA)
	assert.Equal(t, "feature", got.Branch)
	assert.Equal(t, "9", got.BuildID)
}

func TestResolve_NothingKnown(t *testing.T) {
	clearCIEnv(t)
	assert.Nil(t, Resolve(t.TempDir(), Flags{}))
	assert.Nil(t, Resolve("", Flags{}))
}

func TestGetRepoMeta(t *testing.T) {
	dir, sha, branch := initRepo(t)
	sub := filepath.Join(dir, "BuildOutput")
	require.NoError(t, os.Mkdir(sub, 0o755))

	meta, err := GetRepoMeta(sub)
	require.NoError(t, err)
	assert.Equal(t, sha, meta.Head)
	assert.Equal(t, branch, meta.Branch)

	_, err = GetRepoMeta(t.TempDir())
	assert.Error(t, err)
}

func TestGetRepoMeta_EmptyRepo(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	meta, err := GetRepoMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, RepoMeta{}, meta)
}
