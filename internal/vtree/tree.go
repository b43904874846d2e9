// Package vtree maintains an in-memory mirror of a remote repository's file
// tree. The tree is the single owner of its structure: callers hold entry
// references but every structural change goes through the operations here, so
// the path index never drifts from the forest.
package vtree

import (
	"fmt"
	"strings"
)

// EntryType distinguishes folders from files, using git's object type names.
type EntryType string

const (
	TypeBlob EntryType = "blob"
	TypeTree EntryType = "tree"
)

// Default git filemodes for new entries.
const (
	ModeFile   = "100644"
	ModeFolder = "040000"
)

// Entry is one node of the virtual tree. Folder entries always own a non-nil
// Children slice; file entries never do. RemoteID is the object id last known
// to exist on the remote, empty for entries created locally and never
// published.
type Entry struct {
	Path     string
	Name     string
	Mode     string
	Type     EntryType
	RemoteID string
	Children []*Entry

	parent *Entry
}

// IsDir reports whether the entry is a folder.
func (e *Entry) IsDir() bool {
	return e.Type == TypeTree
}

// RemoteEntry is one row of a flat remote tree listing.
type RemoteEntry struct {
	Path string
	Mode string
	Type EntryType
	ID   string
}

// PathChange records a path rewrite caused by a rename.
type PathChange struct {
	Old string
	New string
}

// Tree is the forest mirroring the remote repository, indexed by path.
type Tree struct {
	roots  []*Entry
	byPath map[string]*Entry
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{byPath: make(map[string]*Entry)}
}

// Roots returns the top-level entries.
func (t *Tree) Roots() []*Entry {
	return t.roots
}

// FindByPath returns the entry at path, if any.
func (t *Tree) FindByPath(path string) (*Entry, bool) {
	e, ok := t.byPath[path]
	return e, ok
}

// Load populates the tree from a flat remote listing. Parent folders are
// materialized on demand, so the listing order does not matter. Folder rows
// record the remote tree id on the materialized entry.
func (t *Tree) Load(listing []RemoteEntry) error {
	for _, row := range listing {
		switch row.Type {
		case TypeTree:
			folder, err := t.Materialize(row.Path)
			if err != nil {
				return fmt.Errorf("load folder %s: %w", row.Path, err)
			}
			folder.RemoteID = row.ID
			if row.Mode != "" {
				folder.Mode = row.Mode
			}
		case TypeBlob:
			parentPath, name := splitPath(row.Path)
			if parentPath != "" {
				if _, err := t.Materialize(parentPath); err != nil {
					return fmt.Errorf("load parent of %s: %w", row.Path, err)
				}
			}
			entry, ok := t.byPath[row.Path]
			if !ok {
				var err error
				entry, err = t.Insert(parentPath, name, TypeBlob)
				if err != nil {
					return fmt.Errorf("load file %s: %w", row.Path, err)
				}
			}
			entry.RemoteID = row.ID
			if row.Mode != "" {
				entry.Mode = row.Mode
			}
		default:
			// Submodule and symlink rows are not editable content; skip them.
		}
	}
	return nil
}

// Insert creates a new entry named name under the folder at parentPath. An
// empty parentPath targets the repository root.
func (t *Tree) Insert(parentPath, name string, typ EntryType) (*Entry, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var parent *Entry
	if parentPath != "" {
		p, ok := t.byPath[parentPath]
		if !ok || !p.IsDir() {
			return nil, &ParentNotFoundError{Path: parentPath}
		}
		parent = p
	}

	path := joinPath(parentPath, name)
	if _, exists := t.byPath[path]; exists {
		return nil, &ValidationError{Name: name, Reason: fmt.Sprintf("entry already exists at %q", path)}
	}

	entry := &Entry{
		Path:   path,
		Name:   name,
		Type:   typ,
		parent: parent,
	}
	switch typ {
	case TypeTree:
		entry.Mode = ModeFolder
		entry.Children = []*Entry{}
	default:
		entry.Mode = ModeFile
	}

	if parent != nil {
		parent.Children = append(parent.Children, entry)
	} else {
		t.roots = append(t.roots, entry)
	}
	t.byPath[path] = entry

	return entry, nil
}

// Materialize ensures a folder exists at path, auto-creating any missing
// intermediate folders. Calling it for an existing folder is a no-op returning
// that folder.
func (t *Tree) Materialize(path string) (*Entry, error) {
	if path == "" {
		return nil, &ValidationError{Name: path, Reason: "folder path cannot be empty"}
	}

	if existing, ok := t.byPath[path]; ok {
		if !existing.IsDir() {
			return nil, &ParentNotFoundError{Path: path}
		}
		return existing, nil
	}

	var current string
	var folder *Entry
	for _, segment := range strings.Split(path, "/") {
		parentPath := current
		current = joinPath(current, segment)

		if existing, ok := t.byPath[current]; ok {
			if !existing.IsDir() {
				return nil, &ParentNotFoundError{Path: current}
			}
			folder = existing
			continue
		}

		created, err := t.Insert(parentPath, segment, TypeTree)
		if err != nil {
			return nil, err
		}
		folder = created
	}

	return folder, nil
}

// Rename gives the entry a new name and recomputes the path of the entry and,
// for folders, every descendant. It returns the full list of path rewrites so
// the caller can keep file records aligned.
func (t *Tree) Rename(entry *Entry, newName string) ([]PathChange, error) {
	if err := validateName(newName); err != nil {
		return nil, err
	}

	parentPath := ""
	if entry.parent != nil {
		parentPath = entry.parent.Path
	}
	newPath := joinPath(parentPath, newName)
	if newPath == entry.Path {
		return nil, nil
	}
	if _, exists := t.byPath[newPath]; exists {
		return nil, &ValidationError{Name: newName, Reason: fmt.Sprintf("entry already exists at %q", newPath)}
	}

	entry.Name = newName
	var changes []PathChange
	t.repath(entry, parentPath, &changes)
	return changes, nil
}

// repath rewrites the path of entry (named under parentPath) and recurses into
// children, moving index keys as it goes.
func (t *Tree) repath(entry *Entry, parentPath string, changes *[]PathChange) {
	oldPath := entry.Path
	newPath := joinPath(parentPath, entry.Name)

	delete(t.byPath, oldPath)
	entry.Path = newPath
	t.byPath[newPath] = entry
	*changes = append(*changes, PathChange{Old: oldPath, New: newPath})

	for _, child := range entry.Children {
		t.repath(child, newPath, changes)
	}
}

// Remove detaches the entry from the tree and returns the paths of the entry
// and every descendant, so the caller can cascade file-record removal.
func (t *Tree) Remove(entry *Entry) []string {
	if entry.parent != nil {
		entry.parent.Children = detach(entry.parent.Children, entry)
	} else {
		t.roots = detach(t.roots, entry)
	}

	var removed []string
	t.unindex(entry, &removed)
	return removed
}

func (t *Tree) unindex(entry *Entry, removed *[]string) {
	delete(t.byPath, entry.Path)
	*removed = append(*removed, entry.Path)
	for _, child := range entry.Children {
		t.unindex(child, removed)
	}
}

// Walk visits every entry depth-first, parents before children. Returning an
// error from fn stops the walk.
func (t *Tree) Walk(fn func(*Entry) error) error {
	var visit func(entries []*Entry) error
	visit = func(entries []*Entry) error {
		for _, e := range entries {
			if err := fn(e); err != nil {
				return err
			}
			if err := visit(e.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.roots)
}

func detach(entries []*Entry, target *Entry) []*Entry {
	for i, e := range entries {
		if e == target {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func joinPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

func splitPath(path string) (parent, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Name: name, Reason: "name cannot be empty"}
	}
	if strings.Contains(name, "/") {
		return &ValidationError{Name: name, Reason: "name cannot contain a path separator"}
	}
	return nil
}
