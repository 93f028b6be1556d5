package buildmeta

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dshills/patchwaste/internal/report"
)

// Flags are explicit values from the command line. They always win.
type Flags struct {
	SHA     string
	Branch  string
	BuildID string
}

// Env variables consulted in order, first non-empty wins.
var (
	shaEnv     = []string{"GITHUB_SHA", "CI_COMMIT_SHA"}
	branchEnv  = []string{"GITHUB_REF_NAME", "CI_COMMIT_BRANCH"}
	buildIDEnv = []string{"BUILD_ID", "CI_PIPELINE_ID"}
)

// RepoMeta is what the local git repository says about HEAD.
type RepoMeta struct {
	Head   string
	Branch string
}

// GetRepoMeta opens the repository containing dir and reads HEAD. Branch is
// empty for a detached HEAD.
func GetRepoMeta(dir string) (RepoMeta, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return RepoMeta{}, nil // no commits yet
	}
	if err != nil {
		return RepoMeta{}, fmt.Errorf("reading HEAD: %w", err)
	}
	meta := RepoMeta{Head: head.Hash().String()}
	if head.Name().IsBranch() {
		meta.Branch = head.Name().Short()
	}
	return meta, nil
}

// Resolve combines flags, CI environment and the git repository at dir,
// in that order of precedence. It returns nil when nothing is known.
func Resolve(dir string, f Flags) *report.BuildMetadata {
	md := report.BuildMetadata{
		SHA:     first(f.SHA, env(shaEnv)),
		Branch:  first(f.Branch, env(branchEnv)),
		BuildID: first(f.BuildID, env(buildIDEnv)),
	}
	if (md.SHA == "" || md.Branch == "") && dir != "" {
		if rm, err := GetRepoMeta(dir); err == nil {
			md.SHA = first(md.SHA, rm.Head)
			md.Branch = first(md.Branch, rm.Branch)
		}
	}
	if md.Empty() {
		return nil
	}
	return &md
}

func env(keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
