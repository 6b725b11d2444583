package radicle

import "context"

// ContentFetcher is the capability the tree store and diff merger depend on.
// Implementations return *FetchError on failure and must be safe for
// concurrent use.
type ContentFetcher interface {
	// ListDirectory lists the immediate children of path at revision.
	// The root directory is the empty path. Order is unspecified.
	ListDirectory(ctx context.Context, repoID, revision, path string) ([]Entry, error)

	// GetDiffPage fetches one page of a commit's diff. An empty pageToken
	// requests the first page.
	GetDiffPage(ctx context.Context, repoID, commitID, pageToken string) (*DiffPage, error)
}

// Client is the full seed node surface used by the browser.
type Client interface {
	ContentFetcher

	// ListRepositories lists repositories seeded by the node.
	ListRepositories(ctx context.Context) ([]Repository, error)

	// GetRepository returns a single repository.
	GetRepository(ctx context.Context, repoID string) (*Repository, error)

	// ListRemotes lists peers that published refs for a repository.
	ListRemotes(ctx context.Context, repoID string) ([]Remote, error)

	// ListCommits lists commits reachable from the default branch head.
	ListCommits(ctx context.Context, repoID string) ([]Commit, error)

	// GetCommit returns commit metadata.
	GetCommit(ctx context.Context, repoID, commitID string) (*Commit, error)

	// GetBlob returns a file's content at revision.
	GetBlob(ctx context.Context, repoID, revision, path string) (*Blob, error)

	// GetReadme returns the README at revision.
	GetReadme(ctx context.Context, repoID, revision string) (*Blob, error)

	ListIssues(ctx context.Context, repoID, state string) ([]Issue, error)
	GetIssue(ctx context.Context, repoID, issueID string) (*Issue, error)
	ListPatches(ctx context.Context, repoID, state string) ([]Patch, error)
	GetPatch(ctx context.Context, repoID, patchID string) (*Patch, error)

	// GetNodeInfo describes the seed node.
	GetNodeInfo(ctx context.Context) (*NodeInfo, error)
}
