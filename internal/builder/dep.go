package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/qgen/internal/msg"
	"go.trai.ch/zerr"
)

var sourceShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	ErrIllegalSource = zerr.New("empty or illegal source string")
	ErrFetchFailed   = zerr.New("failed to fetch source")
)

// fetchSource makes the project source available and returns its directory.
// Remote sources are cloned into toWhere once and reused afterwards; local
// paths are resolved against baseDir.
func fetchSource(source, baseDir, toWhere string) (string, error) {
	if source == "" {
		return "", ErrIllegalSource
	}

	remote, ok := remoteURL(source)
	if !ok {
		if filepath.IsAbs(source) {
			return filepath.Clean(source), nil
		}
		return filepath.Join(baseDir, source), nil
	}

	if stat, err := os.Stat(toWhere); err == nil && stat.IsDir() {
		msg.Debug("using cached checkout %s", toWhere)
		return toWhere, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", zerr.Wrap(err, "failed to inspect checkout")
	}

	msg.Info("fetching %s", source)
	if err := cloneGitRepo(remote, toWhere); err != nil {
		// a partial clone must not look cached next time
		_ = os.RemoveAll(toWhere)
		return "", zerr.With(zerr.With(fmt.Errorf("%w: %w", ErrFetchFailed, err), "source", source), "path", toWhere)
	}
	return toWhere, nil
}

// remoteURL expands shortcuts and the git: prefix. It reports false for local
// paths.
func remoteURL(source string) (string, bool) {
	// e.g. git:https://github.com/zeozeozeo/libhelloworld.git
	if rest, ok := strings.CutPrefix(source, gitPrefix); ok {
		return rest, true
	}
	// e.g. gh:zeozeozeo/libhelloworld
	for shortcut, base := range sourceShortcuts {
		if rest, ok := strings.CutPrefix(source, shortcut); ok {
			return base + rest, true
		}
	}
	if isURL(source) {
		return source, true
	}
	return "", false
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type gitURL struct {
	cleanURL    string
	branch      string
	commitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res gitURL) {
	base, rev, ok := strings.Cut(rawURL, "#")
	if ok {
		res.commitOrTag = rev
	}

	// the last '@' so that user@host URLs keep their user
	if i := strings.LastIndex(base, "@"); i >= 0 && !strings.Contains(base[i:], "/") {
		res.cleanURL, res.branch = base[:i], base[i+1:]
	} else {
		res.cleanURL = base
	}

	if !strings.HasSuffix(res.cleanURL, ".git") {
		res.cleanURL += ".git"
	}
	return res
}

// cloneGitRepo clones a Git remote into toWhere, streaming progress indented
// below the current message.
func cloneGitRepo(rawURL, toWhere string) error {
	parsedURL := parseGitURL(rawURL)

	cloneOptions := &git.CloneOptions{
		URL:               parsedURL.cleanURL,
		Progress:          &msg.IndentWriter{Indent: "    ", W: msg.Out},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if parsedURL.commitOrTag == "" {
		cloneOptions.Depth = 1 // the latest commit is all we need
	}

	if parsedURL.branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.commitOrTag == "" {
		return nil
	}

	w, err := repo.Worktree()
	if err != nil {
		return zerr.Wrap(err, "could not get worktree")
	}

	revision := parsedURL.commitOrTag
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return zerr.With(zerr.Wrap(err, "could not resolve revision"), "revision", revision)
	}

	err = w.Checkout(&git.CheckoutOptions{
		Hash:  *hash,
		Force: true,
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to checkout"), "revision", revision)
	}
	return nil
}
