// Package publisher turns a built tree into a commit on the remote branch and
// guards the publish cycle with a small state machine so two cycles can never
// overlap.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	gh "github.com/statictide/gitpress/internal/github"
	"github.com/statictide/gitpress/internal/records"
	"github.com/statictide/gitpress/internal/vtree"
)

// CommitRef is the known tip of the branch being edited.
type CommitRef struct {
	Branch       string
	HeadCommitID string
	HeadTreeID   string
}

// State describes where the publisher is in its publish cycle.
type State string

const (
	StateIdle       State = "idle"
	StateBuilding   State = "building"
	StateCommitting State = "committing"
	StateFailed     State = "failed"
)

// ErrPublishInFlight is returned when Publish is called while a cycle is
// already running.
var ErrPublishInFlight = errors.New("publisher: a publish cycle is already in progress")

// ErrUnacknowledgedFailure is returned when Publish is called before a
// previous failure was acknowledged.
var ErrUnacknowledgedFailure = errors.New("publisher: previous publish failure must be acknowledged first")

// TreeBuilder assembles a remote tree object for the current edit set.
type TreeBuilder interface {
	Build(ctx context.Context, tree *vtree.Tree, store *records.Store) (string, error)
}

// Publisher creates one commit per publish cycle and advances the branch
// reference to it.
type Publisher struct {
	gh      gh.Client
	builder TreeBuilder
	branch  string
	author  gh.CommitAuthor
	log     *slog.Logger

	mu    sync.Mutex
	state State
}

// New returns an idle Publisher for the given branch.
func New(client gh.Client, builder TreeBuilder, branch string, author gh.CommitAuthor, logger *slog.Logger) *Publisher {
	return &Publisher{
		gh:      client,
		builder: builder,
		branch:  branch,
		author:  author,
		log:     logger,
		state:   StateIdle,
	}
}

// State returns the current cycle state.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Acknowledge clears a failed cycle, returning the publisher to idle. It is a
// no-op in any other state.
func (p *Publisher) Acknowledge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFailed {
		p.state = StateIdle
	}
}

// CurrentRef resolves the branch tip on the remote. An empty CommitRef (aside
// from the branch name) means the branch has no commits yet.
func (p *Publisher) CurrentRef(ctx context.Context) (CommitRef, error) {
	commits, err := p.gh.ListCommits(ctx, p.branch, 1)
	if err != nil {
		return CommitRef{}, fmt.Errorf("resolve tip of %s: %w", p.branch, err)
	}

	ref := CommitRef{Branch: p.branch}
	if len(commits) > 0 {
		ref.HeadCommitID = commits[0].SHA
		ref.HeadTreeID = commits[0].TreeSHA
	}
	return ref, nil
}

// Publish runs one full cycle: resolve the parent commit, build the tree,
// create the commit, advance the branch reference. The ref update is issued
// strictly after the commit exists, which in turn is strictly after the tree
// and every blob exist.
//
// A non-fast-forward rejection surfaces as NonFastForwardError and is never
// retried here: the caller must re-sync against the moved branch before trying
// again, otherwise the other writer's work would be discarded. Every failure
// leaves the publisher in the failed state until Acknowledge is called; local
// edits are never touched by a failure.
func (p *Publisher) Publish(ctx context.Context, tree *vtree.Tree, store *records.Store, message string) (CommitRef, error) {
	if err := p.begin(); err != nil {
		return CommitRef{}, err
	}

	parent, err := p.CurrentRef(ctx)
	if err != nil {
		p.fail()
		return CommitRef{}, &PublishError{Stage: StageResolveParent, Err: err}
	}

	treeID, err := p.builder.Build(ctx, tree, store)
	if err != nil {
		p.fail()
		return CommitRef{}, &PublishError{Stage: StageBuildTree, Err: err}
	}

	p.transition(StateCommitting)

	commitID, err := p.gh.CreateCommit(ctx, treeID, parent.HeadCommitID, message, p.author)
	if err != nil {
		p.fail()
		return CommitRef{}, &PublishError{Stage: StageCreateCommit, Err: err}
	}

	if err := p.gh.UpdateRef(ctx, p.branch, commitID); err != nil {
		p.fail()
		if errors.Is(err, gh.ErrRefConflict) {
			return CommitRef{}, &NonFastForwardError{Branch: p.branch, Err: err}
		}
		return CommitRef{}, &PublishError{Stage: StageUpdateRef, Err: err}
	}

	p.transition(StateIdle)

	if p.log != nil {
		p.log.Info("published commit", "branch", p.branch, "commit", commitID, "tree", treeID, "parent", parent.HeadCommitID)
	}

	return CommitRef{Branch: p.branch, HeadCommitID: commitID, HeadTreeID: treeID}, nil
}

// begin moves idle to building, refusing any other starting state.
func (p *Publisher) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		p.state = StateBuilding
		return nil
	case StateFailed:
		return ErrUnacknowledgedFailure
	default:
		return ErrPublishInFlight
	}
}

func (p *Publisher) transition(next State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = next
}

func (p *Publisher) fail() {
	p.transition(StateFailed)
}
