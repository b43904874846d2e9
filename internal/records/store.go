// Package records tracks per-file content and change state for an editing
// session. A file is "changed" when the git blob hash of its current content
// differs from the hash last confirmed on the remote, which keeps resaves of
// identical bytes from surfacing as pending edits.
package records

import (
	"sort"
	"strings"

	"github.com/statictide/gitpress/internal/githash"
)

// FileRecord holds the publishing state of one file.
type FileRecord struct {
	Path        string
	Content     []byte
	RemoteHash  string // blob id last confirmed on the remote; empty if never published
	PendingHash string // blob id of unpublished local content; empty when unchanged

	loaded bool // content fetched or written this session
}

// Store owns every FileRecord of a session, keyed by path.
type Store struct {
	records map[string]*FileRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*FileRecord)}
}

func (s *Store) ensure(path string) *FileRecord {
	if r, ok := s.records[path]; ok {
		return r
	}
	r := &FileRecord{Path: path}
	s.records[path] = r
	return r
}

// SeedRemote registers a file known to exist on the remote without fetching its
// content. Used when a tree listing arrives; the bytes are loaded lazily on
// first read.
func (s *Store) SeedRemote(path, remoteHash string) {
	r := s.ensure(path)
	r.RemoteHash = remoteHash
	r.PendingHash = ""
}

// RecordRemote stores content fetched from the remote together with its
// confirmed hash, clearing any pending state.
func (s *Store) RecordRemote(path string, content []byte, remoteHash string) {
	r := s.ensure(path)
	r.Content = content
	r.RemoteHash = remoteHash
	r.PendingHash = ""
	r.loaded = true
}

// UpdateContent records an edit and recomputes the change state. Writing bytes
// that hash to the remote hash clears the pending state; emptying a file that
// was never published also clears it, so an abandoned placeholder does not show
// up as a pending edit.
func (s *Store) UpdateContent(path string, content []byte) {
	r := s.ensure(path)
	r.Content = content
	r.loaded = true

	sum := githash.BlobSHA(content)
	switch {
	case r.RemoteHash == "" && len(content) == 0:
		r.PendingHash = ""
	case sum == r.RemoteHash:
		r.PendingHash = ""
	default:
		r.PendingHash = sum
	}
}

// Content returns the file's current bytes. The second return is false when the
// content has not been loaded or written this session.
func (s *Store) Content(path string) ([]byte, bool) {
	r, ok := s.records[path]
	if !ok || !r.loaded {
		return nil, false
	}
	return r.Content, true
}

// RemoteHash returns the last confirmed remote hash for path, or empty.
func (s *Store) RemoteHash(path string) string {
	if r, ok := s.records[path]; ok {
		return r.RemoteHash
	}
	return ""
}

// PendingHash returns the unpublished content hash for path, or empty.
func (s *Store) PendingHash(path string) string {
	if r, ok := s.records[path]; ok {
		return r.PendingHash
	}
	return ""
}

// IsChanged reports whether path has unpublished edits.
func (s *Store) IsChanged(path string) bool {
	return s.PendingHash(path) != ""
}

// ChangedPaths returns every path with unpublished edits, sorted.
func (s *Store) ChangedPaths() []string {
	var paths []string
	for path, r := range s.records {
		if r.PendingHash != "" {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// MarkPublished promotes the pending hash to the confirmed remote hash after a
// successful publish. Paths without pending edits are left untouched.
func (s *Store) MarkPublished(path string) {
	r, ok := s.records[path]
	if !ok || r.PendingHash == "" {
		return
	}
	r.RemoteHash = r.PendingHash
	r.PendingHash = ""
}

// Remove deletes the record for path, if any.
func (s *Store) Remove(path string) {
	delete(s.records, path)
}

// RemovePrefix deletes the record at prefix and every record beneath it,
// cascading a folder deletion through the store.
func (s *Store) RemovePrefix(prefix string) {
	delete(s.records, prefix)
	for path := range s.records {
		if strings.HasPrefix(path, prefix+"/") {
			delete(s.records, path)
		}
	}
}

// Rename moves the record at oldPath to newPath, keeping its state intact.
func (s *Store) Rename(oldPath, newPath string) {
	r, ok := s.records[oldPath]
	if !ok {
		return
	}
	delete(s.records, oldPath)
	r.Path = newPath
	s.records[newPath] = r
}
