package seedmock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/diff"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tree"
)

const (
	testRID  = "rad:z3gqcJUoA1n9HaHKufZs5FCSGazv5"
	testHead = "f2de534b5e81d7c6e2dcaf58c3dd91573c0a0354"
)

// newSeed serves the fixture and returns an HTTP client pointed at it.
func newSeed(t *testing.T) (*radicle.HTTPClient, *radicle.MockClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock, err := radicle.LoadFixtureFile("../radicle/testdata/heartwood.yaml")
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router, mock, logger.Nop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := radicle.NewHTTPClient(radicle.HTTPClientConfig{BaseURL: srv.URL + "/api/v1", DiffPageSize: 2}, logger.Nop())
	return client, mock
}

func TestTreeOverHTTP(t *testing.T) {
	client, _ := newSeed(t)
	ctx := context.Background()

	store, err := tree.New(ctx, client, testRID, testHead, tree.Options{Logger: logger.Nop()})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.ExpandPaths(ctx, []string{"src", "src/node"}))
	rows, err := store.Visible()
	require.NoError(t, err)
	paths := make([]string, len(rows))
	for i, r := range rows {
		paths[i] = r.Entry.Path
	}
	assert.Equal(t,
		[]string{".github", "src", "src/node", "src/node/mod.rs", "src/main.rs", "Cargo.toml", "README.md"},
		paths)
}

func TestDiffPagesOverHTTP(t *testing.T) {
	client, _ := newSeed(t)
	ctx := context.Background()

	first, err := client.GetDiffPage(ctx, testRID, testHead, "")
	require.NoError(t, err)
	assert.Len(t, first.Files, 2)
	assert.Equal(t, "2", first.NextPageToken)

	m, err := diff.Start(ctx, client, testRID, testHead, diff.Options{Logger: logger.Nop()})
	require.NoError(t, err)
	acc, err := m.LoadAll(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Complete)
	assert.Equal(t, 2, acc.Pages)
	require.Len(t, acc.Files, 3)
	assert.Equal(t, "src/main.rs", acc.Files[0].Path)
	assert.True(t, acc.Files[2].Binary)
	assert.Equal(t, 3, acc.Stats.FilesChanged)

	commit, err := client.GetCommit(ctx, testRID, testHead)
	require.NoError(t, err)
	assert.Equal(t, "Add node module", commit.Summary)
}

func TestCatalogOverHTTP(t *testing.T) {
	client, _ := newSeed(t)
	ctx := context.Background()

	repo, err := client.GetRepository(ctx, testRID)
	require.NoError(t, err)
	assert.Equal(t, "heartwood", repo.Name)

	repos, err := client.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, repos, 1)

	issues, err := client.ListIssues(ctx, testRID, "closed")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Typo in README", issues[0].Title)

	patches, err := client.ListPatches(ctx, testRID, "")
	require.NoError(t, err)
	assert.Len(t, patches, 1)

	blob, err := client.GetBlob(ctx, testRID, testHead, "src/main.rs")
	require.NoError(t, err)
	assert.Contains(t, blob.Content, "node::run()")

	issue, err := client.GetIssue(ctx, testRID, "d87dcfe8c2b3200e78b128d9b959cfdf7063fefe")
	require.NoError(t, err)
	assert.Equal(t, "Seed sync stalls", issue.Title)
	_, err = client.GetIssue(ctx, testRID, "missing")
	assert.True(t, radicle.IsNotFound(err))

	patch, err := client.GetPatch(ctx, testRID, "6d2b1b1b0ea6e8a38ab27d1a0b06e9f5d9d0c6f4")
	require.NoError(t, err)
	assert.Equal(t, "Paginate commit diffs", patch.Title)

	commits, err := client.ListCommits(ctx, testRID)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, testHead, commits[0].ID)
	assert.Equal(t, "Add node module", commits[0].Summary)

	readme, err := client.GetReadme(ctx, testRID, testHead)
	require.NoError(t, err)
	assert.Equal(t, "# Heartwood\n", readme.Content)

	remotes, err := client.ListRemotes(ctx, testRID)
	require.NoError(t, err)
	assert.Empty(t, remotes)

	info, err := client.GetNodeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", info.Version)
}

func TestErrorsOverHTTP(t *testing.T) {
	client, mock := newSeed(t)
	ctx := context.Background()

	_, err := client.GetRepository(ctx, "rad:unknown")
	assert.True(t, radicle.IsNotFound(err))

	_, err = client.ListDirectory(ctx, testRID, testHead, "missing")
	assert.True(t, radicle.IsNotFound(err))

	mock.FailTree(testRID, testHead, "src", radicle.NewServerError("list directory", http.StatusServiceUnavailable, ""))
	_, err = client.ListDirectory(ctx, testRID, testHead, "src")
	var fe *radicle.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, radicle.ErrKindServer, fe.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)
	assert.Equal(t, "Service Unavailable", fe.Reason)

	entries, err := client.ListDirectory(ctx, testRID, testHead, "src")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
