package gh

import (
	"context"
	"errors"
)

// TreeEntry is one row of a flat git tree listing: both the shape returned by
// GetTree and the descriptor shape submitted to CreateTree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
	Size int
}

// CommitInfo identifies a commit and the tree it points at.
type CommitInfo struct {
	SHA     string
	TreeSHA string
}

// CommitAuthor is the identity recorded on created commits.
type CommitAuthor struct {
	Name  string
	Email string
}

// Client exposes the git object-creation operations required to mirror a
// repository tree and publish one commit. Implementations are bound to a
// single owner/repo pair.
type Client interface {
	// GetTree returns the flat, recursive tree listing for a branch or commit.
	GetTree(ctx context.Context, ref string) ([]TreeEntry, error)
	// GetBlob fetches the raw bytes of one blob object.
	GetBlob(ctx context.Context, sha string) ([]byte, error)
	// CreateBlob uploads content and returns the new blob object id.
	CreateBlob(ctx context.Context, content []byte) (string, error)
	// CreateTree creates a tree object from a flat descriptor list and returns
	// its object id.
	CreateTree(ctx context.Context, entries []TreeEntry) (string, error)
	// CreateCommit creates a commit object pointing at treeSHA with parentSHA
	// as sole parent and returns the new commit id.
	CreateCommit(ctx context.Context, treeSHA, parentSHA, message string, author CommitAuthor) (string, error)
	// UpdateRef advances the branch reference to commitSHA. A non-fast-forward
	// rejection is reported as ErrRefConflict.
	UpdateRef(ctx context.Context, branch, commitSHA string) error
	// ListCommits returns up to limit commits from the tip of branch, newest
	// first.
	ListCommits(ctx context.Context, branch string, limit int) ([]CommitInfo, error)
}

// Factory builds concrete clients (e.g., REST-backed) bound to one repository.
type Factory interface {
	New(ctx context.Context, token, owner, repo string) (Client, error)
}

// ErrRefConflict indicates the branch reference moved since its tip was read
// and the update was rejected as a non-fast-forward.
var ErrRefConflict = errors.New("github: ref update is not a fast-forward")

// ErrObjectNotFound indicates the requested object does not exist.
var ErrObjectNotFound = errors.New("github: object not found")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable
// GitHub API failure (for example, a transient network problem or rate-limited
// request). The engine never retries on its own; callers decide.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
