package publisher

import "fmt"

// Stages of a publish cycle, recorded on PublishError.
const (
	StageResolveParent = "resolve-parent"
	StageBuildTree     = "build-tree"
	StageCreateCommit  = "create-commit"
	StageUpdateRef     = "update-ref"
)

// PublishError wraps a failure of any remote object-creation step in a publish
// cycle. Blob ids already uploaded when the failure hit stay recorded on their
// tree entries, so a retry does not re-upload unchanged bytes.
type PublishError struct {
	Stage string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed during %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// NonFastForwardError indicates the branch moved remotely since its tip was
// read; publishing on top would discard the other writer's commit. The caller
// must re-sync and rebuild before retrying.
type NonFastForwardError struct {
	Branch string
	Err    error
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("branch %s moved since it was read: %v", e.Branch, e.Err)
}

func (e *NonFastForwardError) Unwrap() error {
	return e.Err
}
