package radicle

import (
	"context"
	"fmt"
	"sync"
)

// treeKey is a composite key for directory listings.
type treeKey struct {
	RepoID   string
	Revision string
	Path     string
}

// pageKey is a composite key for diff pages.
type pageKey struct {
	RepoID   string
	CommitID string
	Token    string
}

// MockClient implements Client with in-memory configurable data for tests
// and the mock httpd. All data is protected by a sync.RWMutex.
type MockClient struct {
	mu       sync.RWMutex
	node     NodeInfo
	repos    map[string]Repository
	order    []string
	remotes  map[string][]Remote
	commits  map[string][]Commit
	trees    map[treeKey][]Entry
	treeErrs map[treeKey][]error
	pages    map[pageKey]*DiffPage
	pageErrs map[pageKey][]error
	blobs    map[treeKey]*Blob
	readmes  map[treeKey]*Blob
	issues   map[string][]Issue
	patches  map[string][]Patch
	gates    map[string]chan struct{}
	calls    map[string]int
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		node:     NodeInfo{ID: "z6MkMockNode", Version: "mock", State: "running"},
		repos:    make(map[string]Repository),
		remotes:  make(map[string][]Remote),
		commits:  make(map[string][]Commit),
		trees:    make(map[treeKey][]Entry),
		treeErrs: make(map[treeKey][]error),
		pages:    make(map[pageKey]*DiffPage),
		pageErrs: make(map[pageKey][]error),
		blobs:    make(map[treeKey]*Blob),
		readmes:  make(map[treeKey]*Blob),
		issues:   make(map[string][]Issue),
		patches:  make(map[string][]Patch),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

// TreeGateKey names the gate that blocks ListDirectory for path.
func TreeGateKey(path string) string {
	return "tree:" + path
}

// DiffGateKey names the gate that blocks GetDiffPage for token.
func DiffGateKey(token string) string {
	return "diff:" + token
}

// --- Client interface implementation ---

func (m *MockClient) ListDirectory(ctx context.Context, repoID, revision, path string) ([]Entry, error) {
	const op = "list directory"
	key := treeKey{RepoID: repoID, Revision: revision, Path: path}
	if err := m.enter(ctx, op, TreeGateKey(path), "tree:"+repoID+"@"+revision+":"+path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.treeErrs[key]; len(errs) > 0 {
		m.treeErrs[key] = errs[1:]
		return nil, AsFetchError(op, errs[0])
	}
	entries, ok := m.trees[key]
	if !ok {
		return nil, NewNotFoundError(op, fmt.Sprintf("tree %q at %s", path, revision))
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MockClient) GetDiffPage(ctx context.Context, repoID, commitID, pageToken string) (*DiffPage, error) {
	const op = "get diff page"
	key := pageKey{RepoID: repoID, CommitID: commitID, Token: pageToken}
	if err := m.enter(ctx, op, DiffGateKey(pageToken), "diff:"+repoID+"@"+commitID+":"+pageToken); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.pageErrs[key]; len(errs) > 0 {
		m.pageErrs[key] = errs[1:]
		return nil, AsFetchError(op, errs[0])
	}
	page, ok := m.pages[key]
	if !ok {
		return nil, NewNotFoundError(op, fmt.Sprintf("diff page %q of %s", pageToken, commitID))
	}
	cp := *page
	cp.Files = append([]FileDiff(nil), page.Files...)
	if page.Stats != nil {
		stats := *page.Stats
		cp.Stats = &stats
	}
	return &cp, nil
}

func (m *MockClient) ListRepositories(context.Context) ([]Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repos := make([]Repository, 0, len(m.order))
	for _, rid := range m.order {
		repos = append(repos, m.repos[rid])
	}
	return repos, nil
}

func (m *MockClient) GetRepository(_ context.Context, repoID string) (*Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[repoID]
	if !ok {
		return nil, NewNotFoundError("get repository", "repository "+repoID)
	}
	return &repo, nil
}

func (m *MockClient) ListRemotes(_ context.Context, repoID string) ([]Remote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.repos[repoID]; !ok {
		return nil, NewNotFoundError("list remotes", "repository "+repoID)
	}
	return append([]Remote(nil), m.remotes[repoID]...), nil
}

func (m *MockClient) ListCommits(_ context.Context, repoID string) ([]Commit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.repos[repoID]; !ok {
		return nil, NewNotFoundError("list commits", "repository "+repoID)
	}
	return append([]Commit(nil), m.commits[repoID]...), nil
}

func (m *MockClient) GetCommit(_ context.Context, repoID, commitID string) (*Commit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.commits[repoID] {
		if c.ID == commitID {
			commit := c
			return &commit, nil
		}
	}
	return nil, NewNotFoundError("get commit", "commit "+commitID)
}

func (m *MockClient) GetBlob(_ context.Context, repoID, revision, path string) (*Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[treeKey{RepoID: repoID, Revision: revision, Path: path}]
	if !ok {
		return nil, NewNotFoundError("get blob", "blob "+path)
	}
	cp := *blob
	return &cp, nil
}

func (m *MockClient) GetReadme(_ context.Context, repoID, revision string) (*Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.readmes[treeKey{RepoID: repoID, Revision: revision}]
	if !ok {
		return nil, NewNotFoundError("get readme", "readme at "+revision)
	}
	cp := *blob
	return &cp, nil
}

func (m *MockClient) ListIssues(_ context.Context, repoID, state string) ([]Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Issue
	for _, i := range m.issues[repoID] {
		if state == "" || i.State == state {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *MockClient) GetIssue(_ context.Context, repoID, issueID string) (*Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.issues[repoID] {
		if i.ID == issueID {
			issue := i
			return &issue, nil
		}
	}
	return nil, NewNotFoundError("get issue", "issue "+issueID)
}

func (m *MockClient) ListPatches(_ context.Context, repoID, state string) ([]Patch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Patch
	for _, p := range m.patches[repoID] {
		if state == "" || p.State == state {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockClient) GetPatch(_ context.Context, repoID, patchID string) (*Patch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patches[repoID] {
		if p.ID == patchID {
			patch := p
			return &patch, nil
		}
	}
	return nil, NewNotFoundError("get patch", "patch "+patchID)
}

func (m *MockClient) GetNodeInfo(context.Context) (*NodeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := m.node
	return &info, nil
}

// enter records a call and waits on its gate, if one is set.
func (m *MockClient) enter(ctx context.Context, op, gateKey, callKey string) error {
	m.mu.Lock()
	m.calls[callKey]++
	gate := m.gates[gateKey]
	m.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return AsFetchError(op, ctx.Err())
	}
}

// --- Setup methods ---

// AddRepository registers a repository. Listing order follows insertion.
func (m *MockClient) AddRepository(repo Repository) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[repo.RID]; !ok {
		m.order = append(m.order, repo.RID)
	}
	m.repos[repo.RID] = repo
}

// AddRemote registers a remote of a repository.
func (m *MockClient) AddRemote(repoID string, remote Remote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remotes[repoID] = append(m.remotes[repoID], remote)
}

// AddCommit registers commit metadata.
func (m *MockClient) AddCommit(repoID string, commit Commit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[repoID] = append(m.commits[repoID], commit)
}

// AddTree registers the listing of path at revision.
func (m *MockClient) AddTree(repoID, revision, path string, entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[treeKey{RepoID: repoID, Revision: revision, Path: path}] = append([]Entry(nil), entries...)
}

// FailTree queues one failure for the next listing of path.
func (m *MockClient) FailTree(repoID, revision, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := treeKey{RepoID: repoID, Revision: revision, Path: path}
	m.treeErrs[key] = append(m.treeErrs[key], err)
}

// AddDiffPage registers the page served for token.
func (m *MockClient) AddDiffPage(repoID, commitID, token string, page *DiffPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageKey{RepoID: repoID, CommitID: commitID, Token: token}] = page
}

// FailDiffPage queues one failure for the next fetch of token.
func (m *MockClient) FailDiffPage(repoID, commitID, token string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey{RepoID: repoID, CommitID: commitID, Token: token}
	m.pageErrs[key] = append(m.pageErrs[key], err)
}

// AddBlob registers a file's content.
func (m *MockClient) AddBlob(repoID, revision string, blob Blob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[treeKey{RepoID: repoID, Revision: revision, Path: blob.Path}] = &blob
}

// SetReadme registers the README served at revision.
func (m *MockClient) SetReadme(repoID, revision string, blob Blob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readmes[treeKey{RepoID: repoID, Revision: revision}] = &blob
}

// AddIssue registers an issue.
func (m *MockClient) AddIssue(repoID string, issue Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[repoID] = append(m.issues[repoID], issue)
}

// AddPatch registers a patch.
func (m *MockClient) AddPatch(repoID string, patch Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches[repoID] = append(m.patches[repoID], patch)
}

// SetNodeInfo overrides the node description.
func (m *MockClient) SetNodeInfo(info NodeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node = info
}

// Gate blocks calls matching key until the returned release func is
// called. Release is idempotent.
func (m *MockClient) Gate(key string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[key] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[key] == ch {
				delete(m.gates, key)
			}
			m.mu.Unlock()
			close(ch)
		})
	}
}

// ListDirectoryCalls returns how often path was listed.
func (m *MockClient) ListDirectoryCalls(repoID, revision, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls["tree:"+repoID+"@"+revision+":"+path]
}

// DiffPageCalls returns how often token was fetched.
func (m *MockClient) DiffPageCalls(repoID, commitID, token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls["diff:"+repoID+"@"+commitID+":"+token]
}
