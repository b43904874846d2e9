// Package site is the editing-session facade: one synced remote tree, one
// record store, one publisher, composed behind the operations the editor UI
// and the build pipeline consume. The tree and store are constructed here and
// threaded into the builder and publisher explicitly; nothing reaches into
// shared state ambiently.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gh "github.com/statictide/gitpress/internal/github"
	"github.com/statictide/gitpress/internal/publisher"
	"github.com/statictide/gitpress/internal/records"
	"github.com/statictide/gitpress/internal/treebuild"
	"github.com/statictide/gitpress/internal/vtree"
)

// ErrNothingToPublish is returned by Publish when no file has pending edits.
var ErrNothingToPublish = errors.New("site: no pending changes to publish")

// ErrFileNotFound is returned when an operation names a path with no file.
var ErrFileNotFound = errors.New("site: file not found")

// Site is one editing session against a single branch of a remote repository.
// It is not safe for concurrent use; the editing flow is a single logical
// thread of control.
type Site struct {
	gh     gh.Client
	branch string
	tree   *vtree.Tree
	store  *records.Store
	pub    *publisher.Publisher
	log    *slog.Logger

	// structural is set by renames and removals, which change the published
	// tree without leaving a pending content hash behind.
	structural bool
}

// New returns a session for branch. Call Sync before reading or editing.
func New(client gh.Client, branch string, author gh.CommitAuthor, blobConcurrency int, logger *slog.Logger) *Site {
	builder := treebuild.New(client, blobConcurrency, logger)
	return &Site{
		gh:     client,
		branch: branch,
		tree:   vtree.New(),
		store:  records.NewStore(),
		pub:    publisher.New(client, builder, branch, author, logger),
		log:    logger,
	}
}

// Sync replaces the in-memory tree and records with a fresh mirror of the
// remote branch. File contents are not fetched; they load lazily on first
// read. Any unpublished local state is discarded, so callers must force a
// publish-or-discard decision before re-syncing a session with pending edits.
func (s *Site) Sync(ctx context.Context) error {
	entries, err := s.gh.GetTree(ctx, s.branch)
	if err != nil {
		return fmt.Errorf("sync tree for %s: %w", s.branch, err)
	}

	tree := vtree.New()
	store := records.NewStore()

	listing := make([]vtree.RemoteEntry, 0, len(entries))
	for _, entry := range entries {
		listing = append(listing, vtree.RemoteEntry{
			Path: entry.Path,
			Mode: entry.Mode,
			Type: vtree.EntryType(entry.Type),
			ID:   entry.SHA,
		})
	}
	if err := tree.Load(listing); err != nil {
		return fmt.Errorf("mirror remote tree: %w", err)
	}

	for _, entry := range entries {
		if entry.Type == string(vtree.TypeBlob) {
			store.SeedRemote(entry.Path, entry.SHA)
		}
	}

	s.tree = tree
	s.store = store
	s.structural = false

	if s.log != nil {
		s.log.Info("synced remote tree", "branch", s.branch, "entries", len(listing))
	}
	return nil
}

// Tree exposes the virtual tree for rendering. Mutations still go through the
// session operations.
func (s *Site) Tree() *vtree.Tree {
	return s.tree
}

// ReadFile returns the file's bytes, fetching the blob from the remote on
// first open and caching it in the record store.
func (s *Site) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if content, ok := s.store.Content(path); ok {
		return content, nil
	}

	entry, ok := s.tree.FindByPath(path)
	if !ok || entry.IsDir() {
		return nil, fmt.Errorf("read %s: %w", path, ErrFileNotFound)
	}
	if entry.RemoteID == "" {
		// Created locally this session and never written to.
		return nil, nil
	}

	content, err := s.gh.GetBlob(ctx, entry.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s.store.RecordRemote(path, content, entry.RemoteID)
	return content, nil
}

// WriteFile records an edit, materializing any missing parent folders so an
// upload into a brand-new sub-folder just works.
func (s *Site) WriteFile(path string, content []byte) error {
	if entry, ok := s.tree.FindByPath(path); ok {
		if entry.IsDir() {
			return fmt.Errorf("write %s: path is a folder", path)
		}
	} else {
		parentPath, name := splitPath(path)
		if parentPath != "" {
			if _, err := s.tree.Materialize(parentPath); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		}
		if _, err := s.tree.Insert(parentPath, name, vtree.TypeBlob); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	s.store.UpdateContent(path, content)
	return nil
}

// CreateFile adds an empty file under the folder at parentPath.
func (s *Site) CreateFile(parentPath, name string) (*vtree.Entry, error) {
	entry, err := s.tree.Insert(parentPath, name, vtree.TypeBlob)
	if err != nil {
		return nil, err
	}
	s.store.UpdateContent(entry.Path, nil)
	return entry, nil
}

// CreateFolder adds an empty folder under the folder at parentPath.
func (s *Site) CreateFolder(parentPath, name string) (*vtree.Entry, error) {
	return s.tree.Insert(parentPath, name, vtree.TypeTree)
}

// Rename renames the entry at path and keeps every affected file record
// aligned with its rewritten path.
func (s *Site) Rename(path, newName string) error {
	entry, ok := s.tree.FindByPath(path)
	if !ok {
		return fmt.Errorf("rename %s: %w", path, ErrFileNotFound)
	}

	changes, err := s.tree.Rename(entry, newName)
	if err != nil {
		return err
	}
	for _, change := range changes {
		s.store.Rename(change.Old, change.New)
	}
	if len(changes) > 0 {
		s.structural = true
	}
	return nil
}

// Remove deletes the entry at path, cascading record removal through every
// descendant of a removed folder.
func (s *Site) Remove(path string) error {
	entry, ok := s.tree.FindByPath(path)
	if !ok {
		return fmt.Errorf("remove %s: %w", path, ErrFileNotFound)
	}

	isDir := entry.IsDir()
	s.tree.Remove(entry)
	if isDir {
		s.store.RemovePrefix(path)
	} else {
		s.store.Remove(path)
	}
	s.structural = true
	return nil
}

// IsChanged reports whether path has unpublished edits.
func (s *Site) IsChanged(path string) bool {
	return s.store.IsChanged(path)
}

// ChangedPaths returns every path with unpublished edits, sorted.
func (s *Site) ChangedPaths() []string {
	return s.store.ChangedPaths()
}

// PublishState returns the publisher's cycle state.
func (s *Site) PublishState() publisher.State {
	return s.pub.State()
}

// Acknowledge clears a failed publish cycle.
func (s *Site) Acknowledge() {
	s.pub.Acknowledge()
}

// Publish commits every pending edit as one commit on the branch. On success
// the records roll forward (pending hashes become confirmed remote hashes); on
// any failure every local edit is left intact for a retry.
func (s *Site) Publish(ctx context.Context, message string) (publisher.CommitRef, error) {
	changed := s.store.ChangedPaths()
	if len(changed) == 0 && !s.structural {
		return publisher.CommitRef{}, ErrNothingToPublish
	}

	if s.log != nil {
		s.log.Info("publishing changes", "branch", s.branch, "files", len(changed))
	}

	ref, err := s.pub.Publish(ctx, s.tree, s.store, message)
	if err != nil {
		return publisher.CommitRef{}, err
	}

	for _, path := range changed {
		s.store.MarkPublished(path)
	}
	s.structural = false
	return ref, nil
}

func splitPath(path string) (parent, name string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}
