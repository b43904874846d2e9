package vtree

import "fmt"

// ParentNotFoundError indicates a mutation referenced a folder path that does
// not exist in the tree (or names a file rather than a folder).
type ParentNotFoundError struct {
	Path string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("vtree: no folder at %q", e.Path)
}

// ValidationError indicates an invalid entry name was supplied to a create or
// rename operation.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vtree: invalid name %q: %s", e.Name, e.Reason)
}
