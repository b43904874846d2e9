package gh

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "statictide-gitpress"

// NewRESTFactory returns a client factory backed by the go-github REST client.
// When base and upload URLs are provided, the factory targets a GitHub
// Enterprise instance.
func NewRESTFactory(baseURL, uploadURL string) Factory {
	return &restFactory{
		userAgent: defaultUserAgent,
		baseURL:   strings.TrimSpace(baseURL),
		uploadURL: strings.TrimSpace(uploadURL),
	}
}

type restFactory struct {
	userAgent string
	baseURL   string
	uploadURL string
}

type restClient struct {
	client *github.Client
	owner  string
	repo   string
}

func (f *restFactory) New(ctx context.Context, token, owner, repo string) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	if f.baseURL == "" && f.uploadURL != "" {
		return nil, fmt.Errorf("github upload url cannot be set without base url")
	}

	var ghClient *github.Client
	if f.baseURL != "" {
		baseURLNormalized, err := normalizeGitHubURL(f.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		uploadURL := f.uploadURL
		if uploadURL == "" {
			return nil, fmt.Errorf("github upload url must be provided when base url is set")
		}

		uploadURLNormalized, err := normalizeGitHubURL(uploadURL)
		if err != nil {
			return nil, fmt.Errorf("parse github upload url: %w", err)
		}

		ghClient, err = github.NewClient(tc).WithEnterpriseURLs(baseURLNormalized, uploadURLNormalized)
		if err != nil {
			return nil, fmt.Errorf("construct enterprise github client: %w", err)
		}
	} else {
		ghClient = github.NewClient(tc)
	}

	if f.userAgent != "" {
		ghClient.UserAgent = f.userAgent
	}

	return &restClient{client: ghClient, owner: owner, repo: repo}, nil
}

func normalizeGitHubURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		return "", fmt.Errorf("url must include scheme (e.g. https://)")
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("url must include host")
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}

func (c *restClient) GetTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	tree, resp, err := c.client.Git.GetTree(ctx, c.owner, c.repo, ref, true)
	if err != nil {
		if isNotFound(resp, err) {
			return nil, fmt.Errorf("get tree %s: %w", ref, ErrObjectNotFound)
		}
		err = classifyGitHubError(err)
		return nil, fmt.Errorf("get tree %s: %w", ref, err)
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry == nil {
			continue
		}
		entries = append(entries, TreeEntry{
			Path: entry.GetPath(),
			Mode: entry.GetMode(),
			Type: entry.GetType(),
			SHA:  entry.GetSHA(),
			Size: entry.GetSize(),
		})
	}

	return entries, nil
}

func (c *restClient) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	blob, resp, err := c.client.Git.GetBlob(ctx, c.owner, c.repo, sha)
	if err != nil {
		if isNotFound(resp, err) {
			return nil, fmt.Errorf("get blob %s: %w", sha, ErrObjectNotFound)
		}
		err = classifyGitHubError(err)
		return nil, fmt.Errorf("get blob %s: %w", sha, err)
	}

	content := blob.GetContent()
	switch strings.ToLower(strings.TrimSpace(blob.GetEncoding())) {
	case "base64":
		// The API wraps base64 payloads with newlines.
		decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(content))
		if err != nil {
			return nil, fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return decoded, nil
	default:
		return []byte(content), nil
	}
}

func (c *restClient) CreateBlob(ctx context.Context, content []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(content)
	blob, _, err := c.client.Git.CreateBlob(ctx, c.owner, c.repo, &github.Blob{
		Content:  github.String(encoded),
		Encoding: github.String("base64"),
	})
	if err != nil {
		err = classifyGitHubError(err)
		return "", fmt.Errorf("create blob: %w", err)
	}
	return blob.GetSHA(), nil
}

func (c *restClient) CreateTree(ctx context.Context, entries []TreeEntry) (string, error) {
	treeEntries := make([]*github.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		treeEntries = append(treeEntries, &github.TreeEntry{
			Path: github.String(entry.Path),
			Mode: github.String(entry.Mode),
			Type: github.String(entry.Type),
			SHA:  github.String(entry.SHA),
		})
	}

	tree, _, err := c.client.Git.CreateTree(ctx, c.owner, c.repo, "", treeEntries)
	if err != nil {
		err = classifyGitHubError(err)
		return "", fmt.Errorf("create tree: %w", err)
	}
	return tree.GetSHA(), nil
}

func (c *restClient) CreateCommit(ctx context.Context, treeSHA, parentSHA, message string, author CommitAuthor) (string, error) {
	commit := &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
	}
	if parentSHA != "" {
		commit.Parents = []*github.Commit{{SHA: github.String(parentSHA)}}
	}
	if author.Name != "" || author.Email != "" {
		commit.Author = &github.CommitAuthor{
			Name:  github.String(author.Name),
			Email: github.String(author.Email),
		}
	}

	created, _, err := c.client.Git.CreateCommit(ctx, c.owner, c.repo, commit)
	if err != nil {
		err = classifyGitHubError(err)
		return "", fmt.Errorf("create commit: %w", err)
	}
	return created.GetSHA(), nil
}

func (c *restClient) UpdateRef(ctx context.Context, branch, commitSHA string) error {
	ref := &github.Reference{
		Ref:    github.String(fmt.Sprintf("refs/heads/%s", branch)),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}

	if _, resp, err := c.client.Git.UpdateRef(ctx, c.owner, c.repo, ref, false); err != nil {
		if isRefConflict(resp, err) {
			return fmt.Errorf("update ref %s: %w", branch, ErrRefConflict)
		}
		err = classifyGitHubError(err)
		return fmt.Errorf("update ref %s: %w", branch, err)
	}
	return nil
}

func (c *restClient) ListCommits(ctx context.Context, branch string, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 1
	}
	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: limit},
	}

	commits, _, err := c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
	if err != nil {
		err = classifyGitHubError(err)
		return nil, fmt.Errorf("list commits on %s: %w", branch, err)
	}

	results := make([]CommitInfo, 0, limit)
	for _, commit := range commits {
		if commit == nil {
			continue
		}
		info := CommitInfo{SHA: commit.GetSHA()}
		if inner := commit.GetCommit(); inner != nil {
			info.TreeSHA = inner.GetTree().GetSHA()
		}
		results = append(results, info)
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var githubErr *github.ErrorResponse
	if errors.As(err, &githubErr) {
		if githubErr.Response != nil && githubErr.Response.StatusCode == http.StatusNotFound {
			return true
		}
	}
	return false
}

// isRefConflict recognizes the rejection GitHub issues when a ref update is
// not a fast-forward: 422 with a "fast forward" message, or 409.
func isRefConflict(resp *github.Response, err error) bool {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	var githubErr *github.ErrorResponse
	if errors.As(err, &githubErr) && githubErr.Response != nil {
		if status == 0 {
			status = githubErr.Response.StatusCode
		}
		if status == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(githubErr.Message), "fast forward") {
			return true
		}
	}

	return status == http.StatusConflict
}

func classifyGitHubError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryableGitHubError(err) {
		return &retryableError{err: err}
	}
	return err
}

func isRetryableGitHubError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if respErr.Response != nil {
			code := respErr.Response.StatusCode
			if code == http.StatusTooManyRequests || (code >= 500 && code <= 599) {
				return true
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	return false
}
