// Package treebuild turns the in-memory virtual tree into a remote git tree
// object. The flatten step is pure; the build step uploads changed blobs and
// issues the single create-tree call that references them.
package treebuild

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	gh "github.com/statictide/gitpress/internal/github"
	"github.com/statictide/gitpress/internal/records"
	"github.com/statictide/gitpress/internal/vtree"
)

// DefaultConcurrency bounds how many blob uploads run at once.
const DefaultConcurrency = 8

// Builder assembles remote tree objects from a virtual tree and a record
// store.
type Builder struct {
	gh          gh.Client
	concurrency int
	log         *slog.Logger
}

// New returns a Builder using the given client. A non-positive concurrency
// falls back to DefaultConcurrency.
func New(client gh.Client, concurrency int, logger *slog.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Builder{gh: client, concurrency: concurrency, log: logger}
}

// Flatten walks the forest depth-first, children before siblings that follow
// their folder, and returns every file entry. The remote tree representation
// is flat, so folders contribute nothing beyond their descendants.
func Flatten(roots []*vtree.Entry) []*vtree.Entry {
	var blobs []*vtree.Entry
	var visit func(entries []*vtree.Entry)
	visit = func(entries []*vtree.Entry) {
		for _, e := range entries {
			if e.IsDir() {
				visit(e.Children)
				continue
			}
			blobs = append(blobs, e)
		}
	}
	visit(roots)
	return blobs
}

// Build uploads a blob for every changed file, reuses the recorded object id
// for every unchanged one, then creates a tree object from the flat descriptor
// list and returns its id.
//
// Blob uploads for distinct files are independent and run concurrently,
// bounded by the builder's concurrency; the create-tree request is issued only
// after every upload has completed. Any upload failure aborts the whole build.
// Ids of blobs that did upload are recorded on their entries, so a retried
// build skips re-uploading them (the pending hash of an uploaded file equals
// its new remote id).
func (b *Builder) Build(ctx context.Context, tree *vtree.Tree, store *records.Store) (string, error) {
	blobs := Flatten(tree.Roots())
	descriptors := make([]gh.TreeEntry, len(blobs))

	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(b.concurrency)

	uploads := 0
	for i, entry := range blobs {
		desc := gh.TreeEntry{
			Path: entry.Path,
			Mode: entry.Mode,
			Type: "blob",
			SHA:  entry.RemoteID,
		}

		pending := store.PendingHash(entry.Path)
		switch {
		case pending == "" && entry.RemoteID == "":
			// Local placeholder with nothing to publish; no object to
			// reference.
			continue
		case pending == "":
			descriptors[i] = desc
		case pending == entry.RemoteID:
			// Blob already uploaded by an earlier cycle that failed later on.
			descriptors[i] = desc
		default:
			content, ok := store.Content(entry.Path)
			if !ok {
				return "", fmt.Errorf("no content recorded for changed file %s", entry.Path)
			}

			uploads++
			p.Go(func(ctx context.Context) error {
				id, err := b.gh.CreateBlob(ctx, content)
				if err != nil {
					return fmt.Errorf("create blob for %s: %w", entry.Path, err)
				}
				entry.RemoteID = id
				desc.SHA = id
				descriptors[i] = desc
				return nil
			})
		}
	}

	if err := p.Wait(); err != nil {
		return "", err
	}

	// Entries skipped above leave zero-value holes.
	flat := descriptors[:0]
	for _, desc := range descriptors {
		if desc.Path != "" {
			flat = append(flat, desc)
		}
	}

	if b.log != nil {
		b.log.Debug("built tree descriptor list", "files", len(flat), "uploaded", uploads)
	}

	treeID, err := b.gh.CreateTree(ctx, flat)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	return treeID, nil
}
