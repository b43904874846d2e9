package gh

import (
	"context"
	"fmt"
)

// NewNoopFactory returns a Factory that builds noop clients. Every operation
// errors, so a session built on one can never touch a remote.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) New(ctx context.Context, token, owner, repo string) (Client, error) {
	return noopClient{}, nil
}

type noopClient struct{}

func (noopClient) GetTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}

func (noopClient) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}

func (noopClient) CreateBlob(ctx context.Context, content []byte) (string, error) {
	return "", fmt.Errorf("noop github client not implemented")
}

func (noopClient) CreateTree(ctx context.Context, entries []TreeEntry) (string, error) {
	return "", fmt.Errorf("noop github client not implemented")
}

func (noopClient) CreateCommit(ctx context.Context, treeSHA, parentSHA, message string, author CommitAuthor) (string, error) {
	return "", fmt.Errorf("noop github client not implemented")
}

func (noopClient) UpdateRef(ctx context.Context, branch, commitSHA string) error {
	return fmt.Errorf("noop github client not implemented")
}

func (noopClient) ListCommits(ctx context.Context, branch string, limit int) ([]CommitInfo, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}
