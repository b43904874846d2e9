package site_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/statictide/gitpress/internal/githash"
	gh "github.com/statictide/gitpress/internal/github"
	"github.com/statictide/gitpress/internal/publisher"
	"github.com/statictide/gitpress/internal/site"
)

// fakeRemote is an in-memory stand-in for the Git Data API: blobs are
// content-addressed with the real git hash, trees and commits get sequential
// ids, and the branch head advances on a successful ref update.
type fakeRemote struct {
	mu sync.Mutex

	listing []gh.TreeEntry
	blobs   map[string][]byte
	head    gh.CommitInfo

	refConflict bool

	blobCreates int
	trees       [][]gh.TreeEntry
	commits     []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{blobs: map[string][]byte{}}
}

func (f *fakeRemote) addFile(path string, content []byte) {
	sha := githash.BlobSHA(content)
	f.blobs[sha] = content
	f.listing = append(f.listing, gh.TreeEntry{Path: path, Mode: "100644", Type: "blob", SHA: sha, Size: len(content)})
}

func (f *fakeRemote) addFolder(path string) {
	f.listing = append(f.listing, gh.TreeEntry{Path: path, Mode: "040000", Type: "tree", SHA: "tree-" + path})
}

func (f *fakeRemote) GetTree(context.Context, string) ([]gh.TreeEntry, error) {
	return append([]gh.TreeEntry(nil), f.listing...), nil
}

func (f *fakeRemote) GetBlob(_ context.Context, sha string) ([]byte, error) {
	content, ok := f.blobs[sha]
	if !ok {
		return nil, gh.ErrObjectNotFound
	}
	return content, nil
}

func (f *fakeRemote) CreateBlob(_ context.Context, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobCreates++
	sha := githash.BlobSHA(content)
	f.blobs[sha] = content
	return sha, nil
}

func (f *fakeRemote) CreateTree(_ context.Context, entries []gh.TreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees = append(f.trees, entries)
	return fmt.Sprintf("tree-%d", len(f.trees)), nil
}

func (f *fakeRemote) CreateCommit(_ context.Context, treeSHA, parentSHA, message string, _ gh.CommitAuthor) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("commit-%d", len(f.commits)+1)
	f.commits = append(f.commits, id)
	return id, nil
}

func (f *fakeRemote) UpdateRef(_ context.Context, branch, commitSHA string) error {
	if f.refConflict {
		return fmt.Errorf("update ref %s: %w", branch, gh.ErrRefConflict)
	}
	f.head = gh.CommitInfo{SHA: commitSHA}
	return nil
}

func (f *fakeRemote) ListCommits(context.Context, string, int) ([]gh.CommitInfo, error) {
	if f.head.SHA == "" {
		return []gh.CommitInfo{{SHA: "initial-commit", TreeSHA: "initial-tree"}}, nil
	}
	return []gh.CommitInfo{f.head}, nil
}

var _ = Describe("Site", func() {
	var (
		remote *fakeRemote
		s      *site.Site
		ctx    context.Context
	)

	author := gh.CommitAuthor{Name: "Site Editor", Email: "editor@example.com"}

	BeforeEach(func() {
		ctx = context.Background()
		remote = newFakeRemote()
	})

	sync := func() {
		s = site.New(remote, "main", author, 4, nil)
		ExpectWithOffset(1, s.Sync(ctx)).To(Succeed())
	}

	Describe("editing one file", func() {
		original := []byte("# Welcome\n")

		BeforeEach(func() {
			remote.addFile("a.md", original)
			sync()
		})

		It("round-trips an edit through publish", func() {
			content, err := s.ReadFile(ctx, "a.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(original))

			edited := []byte("# Welcome back\n")
			Expect(s.WriteFile("a.md", edited)).To(Succeed())
			Expect(s.ChangedPaths()).To(Equal([]string{"a.md"}))

			ref, err := s.Publish(ctx, "update welcome page")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref.HeadCommitID).To(Equal("commit-1"))

			Expect(s.ChangedPaths()).To(BeEmpty())

			entry, ok := s.Tree().FindByPath("a.md")
			Expect(ok).To(BeTrue())
			Expect(entry.RemoteID).To(Equal(githash.BlobSHA(edited)))

			// Re-saving the published bytes is not a new edit: the confirmed
			// remote hash rolled forward to the new blob id.
			Expect(s.WriteFile("a.md", edited)).To(Succeed())
			Expect(s.IsChanged("a.md")).To(BeFalse())
		})

		It("reports a resave of identical bytes as no change", func() {
			Expect(s.WriteFile("a.md", original)).To(Succeed())
			Expect(s.ChangedPaths()).To(BeEmpty())

			_, err := s.Publish(ctx, "noop")
			Expect(err).To(MatchError(site.ErrNothingToPublish))
		})
	})

	Describe("partial edits under a folder", func() {
		var shaA, shaB string

		BeforeEach(func() {
			remote.addFolder("posts")
			remote.addFile("posts/a.md", []byte("post a"))
			remote.addFile("posts/b.md", []byte("post b"))
			shaA = githash.BlobSHA([]byte("post a"))
			shaB = githash.BlobSHA([]byte("post b"))
			sync()
		})

		It("uploads exactly the edited blob and reuses the other", func() {
			edited := []byte("post a, revised")
			Expect(s.WriteFile("posts/a.md", edited)).To(Succeed())

			_, err := s.Publish(ctx, "revise post a")
			Expect(err).NotTo(HaveOccurred())

			Expect(remote.blobCreates).To(Equal(1))
			Expect(remote.trees).To(HaveLen(1))

			flat := remote.trees[0]
			Expect(flat).To(HaveLen(2))
			byPath := map[string]string{}
			for _, d := range flat {
				Expect(d.Path).To(HavePrefix("posts/"))
				byPath[d.Path] = d.SHA
			}
			Expect(byPath["posts/a.md"]).To(Equal(githash.BlobSHA(edited)))
			Expect(byPath["posts/a.md"]).NotTo(Equal(shaA))
			Expect(byPath["posts/b.md"]).To(Equal(shaB))
		})
	})

	Describe("a moved branch", func() {
		BeforeEach(func() {
			remote.addFile("a.md", []byte("body"))
			sync()
			remote.refConflict = true
		})

		It("surfaces NonFastForwardError and preserves every pending edit", func() {
			Expect(s.WriteFile("a.md", []byte("edited body"))).To(Succeed())

			_, err := s.Publish(ctx, "edit")

			var nonFF *publisher.NonFastForwardError
			Expect(errors.As(err, &nonFF)).To(BeTrue())
			Expect(s.ChangedPaths()).To(Equal([]string{"a.md"}), "edits must survive the failed cycle")
			Expect(s.PublishState()).To(Equal(publisher.StateFailed))

			s.Acknowledge()
			remote.refConflict = false

			_, err = s.Publish(ctx, "edit, retried")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ChangedPaths()).To(BeEmpty())
			Expect(remote.blobCreates).To(Equal(1), "retry reuses the blob uploaded by the failed cycle")
		})
	})

	Describe("renaming a folder", func() {
		BeforeEach(func() {
			remote.addFolder("posts")
			remote.addFile("posts/a.md", []byte("post a"))
			remote.addFile("posts/b.md", []byte("post b"))
			sync()
		})

		It("rewrites every descendant path and orphans no record", func() {
			Expect(s.WriteFile("posts/a.md", []byte("edited a"))).To(Succeed())

			Expect(s.Rename("posts", "articles")).To(Succeed())

			_, ok := s.Tree().FindByPath("articles")
			Expect(ok).To(BeTrue())
			_, ok = s.Tree().FindByPath("articles/a.md")
			Expect(ok).To(BeTrue())
			_, ok = s.Tree().FindByPath("articles/b.md")
			Expect(ok).To(BeTrue())
			_, ok = s.Tree().FindByPath("posts")
			Expect(ok).To(BeFalse())

			// Records moved with their entries: the pending edit follows the
			// new path, and lazily loaded content is reachable there too.
			Expect(s.ChangedPaths()).To(Equal([]string{"articles/a.md"}))

			content, err := s.ReadFile(ctx, "articles/b.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal([]byte("post b")))
		})
	})

	Describe("deleting a folder", func() {
		BeforeEach(func() {
			remote.addFolder("drafts")
			remote.addFile("drafts/a.md", []byte("a"))
			remote.addFile("drafts/b.md", []byte("b"))
			remote.addFile("drafts-index.md", []byte("index of drafts"))
			remote.addFile("keep.md", []byte("keep"))
			sync()
		})

		It("leaves sibling files sharing the name prefix alone", func() {
			Expect(s.WriteFile("drafts-index.md", []byte("edited index"))).To(Succeed())

			Expect(s.Remove("drafts")).To(Succeed())

			Expect(s.ChangedPaths()).To(Equal([]string{"drafts-index.md"}))
			content, err := s.ReadFile(ctx, "drafts-index.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal([]byte("edited index")))
		})

		It("publishes a deletion with no pending content edits", func() {
			Expect(s.Remove("drafts/b.md")).To(Succeed())
			Expect(s.ChangedPaths()).To(BeEmpty())

			_, err := s.Publish(ctx, "drop draft b")
			Expect(err).NotTo(HaveOccurred())

			Expect(remote.blobCreates).To(BeZero())
			Expect(remote.trees).To(HaveLen(1))
			paths := []string{}
			for _, d := range remote.trees[0] {
				paths = append(paths, d.Path)
			}
			Expect(paths).NotTo(ContainElement("drafts/b.md"))
			Expect(paths).To(ContainElement("drafts/a.md"))

			_, err = s.Publish(ctx, "nothing left")
			Expect(err).To(MatchError(site.ErrNothingToPublish))
		})

		It("cascades record removal through every descendant", func() {
			Expect(s.WriteFile("drafts/a.md", []byte("edited"))).To(Succeed())
			Expect(s.WriteFile("keep.md", []byte("edited keep"))).To(Succeed())

			Expect(s.Remove("drafts")).To(Succeed())

			Expect(s.ChangedPaths()).To(Equal([]string{"keep.md"}))
			_, err := s.ReadFile(ctx, "drafts/a.md")
			Expect(err).To(MatchError(site.ErrFileNotFound))
		})
	})

	Describe("writing into a new sub-folder", func() {
		BeforeEach(func() {
			remote.addFile("index.md", []byte("index"))
			sync()
		})

		It("materializes missing parent folders", func() {
			Expect(s.WriteFile("assets/images/logo.png", []byte{0x89, 0x50, 0x4e, 0x47})).To(Succeed())

			folder, ok := s.Tree().FindByPath("assets/images")
			Expect(ok).To(BeTrue())
			Expect(folder.IsDir()).To(BeTrue())
			Expect(s.ChangedPaths()).To(Equal([]string{"assets/images/logo.png"}))
		})

		It("does not publish an abandoned placeholder", func() {
			_, err := s.CreateFile("", "draft.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ChangedPaths()).To(BeEmpty())

			Expect(s.WriteFile("draft.md", []byte("scratch"))).To(Succeed())
			Expect(s.ChangedPaths()).To(Equal([]string{"draft.md"}))

			Expect(s.WriteFile("draft.md", nil)).To(Succeed())
			Expect(s.ChangedPaths()).To(BeEmpty())
		})
	})
})
