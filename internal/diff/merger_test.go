package diff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

const (
	testRID    = "rad:z3gqcJUoA1n9HaHKufZs5FCSGazv5"
	testCommit = "f2de534b5e81d7c6e2dcaf58c3dd91573c0a0354"
)

// fileWith builds a file whose single hunk has adds additions and dels
// deletions.
func fileWith(path string, adds, dels int) radicle.FileDiff {
	var lines []radicle.Line
	for i := 0; i < dels; i++ {
		n := i + 1
		lines = append(lines, radicle.Line{Kind: radicle.LineDeletion, Text: "old", OldLineNumber: &n})
	}
	for i := 0; i < adds; i++ {
		n := i + 1
		lines = append(lines, radicle.Line{Kind: radicle.LineAddition, Text: "new", NewLineNumber: &n})
	}
	return radicle.FileDiff{
		Path:   path,
		Status: radicle.StatusModified,
		Hunks: []radicle.Hunk{{
			Header: radicle.FormatHunkHeader(radicle.Range{Start: 1, Length: dels}, radicle.Range{Start: 1, Length: adds}),
			Old:    radicle.Range{Start: 1, Length: dels},
			New:    radicle.Range{Start: 1, Length: adds},
			Lines:  lines,
		}},
	}
}

func paths(files []radicle.FileDiff) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func startTest(t *testing.T, m *radicle.MockClient, opts Options) *Merger {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	merger, err := Start(context.Background(), m, testRID, testCommit, opts)
	require.NoError(t, err)
	t.Cleanup(merger.Discard)
	return merger
}

func TestStart_SinglePage(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{
		Files: []radicle.FileDiff{fileWith("a.go", 2, 1)},
		Stats: &radicle.DiffStats{FilesChanged: 1, Insertions: 2, Deletions: 1},
	})

	merger := startTest(t, m, Options{})
	snap := merger.Snapshot()
	assert.True(t, snap.Complete)
	assert.True(t, merger.IsComplete())
	assert.Equal(t, 1, snap.Pages)
	assert.Equal(t, radicle.DiffStats{FilesChanged: 1, Insertions: 2, Deletions: 1}, snap.Stats)

	again, err := merger.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap, again)
	assert.Equal(t, 1, m.DiffPageCalls(testRID, testCommit, ""))
}

func TestStart_FirstPageFailure(t *testing.T) {
	m := radicle.NewMockClient()
	m.FailDiffPage(testRID, testCommit, "", radicle.NewServerError("get diff page", 503, ""))

	merger, err := Start(context.Background(), m, testRID, testCommit, Options{Logger: logger.Nop()})
	require.Error(t, err)
	assert.Nil(t, merger)
	var fe *radicle.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, radicle.ErrKindServer, fe.Kind)
	assert.Equal(t, "Service Unavailable", fe.Reason)
}

func TestLoadMore_ReplacesResentFileInPlace(t *testing.T) {
	m := radicle.NewMockClient()
	a, b, c := fileWith("A", 1, 0), fileWith("B", 1, 0), fileWith("C", 1, 0)
	bUpdated := fileWith("B", 5, 2)
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{a, b}, NextPageToken: "p2"})
	m.AddDiffPage(testRID, testCommit, "p2", &radicle.DiffPage{Files: []radicle.FileDiff{bUpdated, c}})

	merger := startTest(t, m, Options{})
	snap, err := merger.LoadMore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, paths(snap.Files))
	assert.Equal(t, bUpdated, snap.Files[1])
	assert.Equal(t, radicle.DiffStats{FilesChanged: 3, Insertions: 7, Deletions: 2}, snap.Stats)
}

func TestLoadMore_StatsRecomputedWhenAbsent(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{
		Files:         []radicle.FileDiff{fileWith("a", 3, 1), fileWith("b", 0, 4)},
		NextPageToken: "2",
	})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{
		Files:         []radicle.FileDiff{fileWith("c", 2, 0)},
		NextPageToken: "3",
	})
	m.AddDiffPage(testRID, testCommit, "3", &radicle.DiffPage{
		Files: []radicle.FileDiff{fileWith("d", 1, 1), {Path: "logo.png", Status: radicle.StatusAdded, Binary: true}},
	})

	merger := startTest(t, m, Options{})
	snap, err := merger.LoadAll(context.Background())
	require.NoError(t, err)

	insertions := 0
	for _, f := range snap.Files {
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Kind == radicle.LineAddition {
					insertions++
				}
			}
		}
	}
	assert.Equal(t, insertions, snap.Stats.Insertions)
	assert.Equal(t, radicle.DiffStats{FilesChanged: 5, Insertions: 6, Deletions: 6}, snap.Stats)
	assert.Equal(t, 3, snap.Pages)
}

func TestLoadMore_LatestPageStatsWin(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{
		Files:         []radicle.FileDiff{fileWith("a", 1, 0)},
		Stats:         &radicle.DiffStats{FilesChanged: 2, Insertions: 10, Deletions: 3},
		NextPageToken: "2",
	})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{
		Files: []radicle.FileDiff{fileWith("b", 1, 0)},
		Stats: &radicle.DiffStats{FilesChanged: 2, Insertions: 11, Deletions: 3},
	})

	merger := startTest(t, m, Options{})
	assert.Equal(t, 10, merger.Snapshot().Stats.Insertions)

	snap, err := merger.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, radicle.DiffStats{FilesChanged: 2, Insertions: 11, Deletions: 3}, snap.Stats)
}

func TestCompletionFlag(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("b", 1, 0)}, NextPageToken: "3"})
	m.AddDiffPage(testRID, testCommit, "3", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("c", 1, 0)}})

	merger := startTest(t, m, Options{})
	ctx := context.Background()
	assert.False(t, merger.IsComplete())

	snap, err := merger.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Complete)
	assert.Equal(t, "3", snap.NextPageToken)

	snap, err = merger.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Complete)
	assert.Empty(t, snap.NextPageToken)
	assert.Equal(t, []string{"a", "b", "c"}, paths(snap.Files))
}

func TestLoadMore_FailureKeepsTokenAndFiles(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("b", 1, 0)}})
	m.FailDiffPage(testRID, testCommit, "2", errors.New("connection refused"))

	merger := startTest(t, m, Options{})
	before := merger.Snapshot()

	snap, err := merger.LoadMore(context.Background())
	var fe *radicle.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, radicle.ErrKindNetwork, fe.Kind)
	assert.Equal(t, "2", snap.NextPageToken)
	assert.Equal(t, before.Files, snap.Files)
	assert.Equal(t, before.Stats, snap.Stats)
	assert.Equal(t, "connection refused", snap.LastError)

	snap, err = merger.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Complete)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, []string{"a", "b"}, paths(snap.Files))
	assert.Equal(t, 2, m.DiffPageCalls(testRID, testCommit, "2"))
}

func TestLoadMore_ConcurrentCallsAreNoops(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("b", 1, 0)}})
	merger := startTest(t, m, Options{})
	release := m.Gate(radicle.DiffGateKey("2"))

	errCh := make(chan error, 1)
	go func() {
		_, err := merger.LoadMore(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return merger.Snapshot().Loading }, time.Second, time.Millisecond)

	snap, err := merger.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Loading)
	assert.Len(t, snap.Files, 1)

	release()
	require.NoError(t, <-errCh)
	assert.True(t, merger.IsComplete())
	assert.Equal(t, 1, m.DiffPageCalls(testRID, testCommit, "2"))
}

func TestDiscard_IgnoresInFlightPage(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("b", 1, 0)}})
	merger := startTest(t, m, Options{})
	release := m.Gate(radicle.DiffGateKey("2"))
	defer release()

	errCh := make(chan error, 1)
	go func() {
		_, err := merger.LoadMore(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return merger.Snapshot().Loading }, time.Second, time.Millisecond)

	merger.Discard()
	assert.ErrorIs(t, <-errCh, ErrDiscarded)

	_, err := merger.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrDiscarded)
	assert.Empty(t, merger.Snapshot().Files)
}

func TestLoadMore_RejectsTokenCycle(t *testing.T) {
	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("b", 1, 0)}, NextPageToken: "2"})

	merger := startTest(t, m, Options{})
	snap, err := merger.LoadAll(context.Background())
	var fe *radicle.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, radicle.ErrKindMalformed, fe.Kind)
	assert.Equal(t, []string{"a"}, paths(snap.Files))
	assert.Equal(t, "2", snap.NextPageToken)
}

func TestNotifier_ReceivesUpdates(t *testing.T) {
	var mu sync.Mutex
	var updates []Update
	notify := func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
	}

	m := radicle.NewMockClient()
	m.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{fileWith("a", 1, 0)}, NextPageToken: "2"})
	m.FailDiffPage(testRID, testCommit, "2", errors.New("reset"))
	merger := startTest(t, m, Options{Notifier: notify})
	_, _ = merger.LoadMore(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, Update{RepoID: testRID, CommitID: testCommit, Files: 1, Pages: 1}, updates[0])
	assert.Equal(t, "reset", updates[1].Err)
}

func TestMergeFiles(t *testing.T) {
	files, index := MergeFiles(nil, nil, []radicle.FileDiff{{Path: "x"}, {Path: "y"}})
	files, index = MergeFiles(files, index, []radicle.FileDiff{{Path: "y", Status: radicle.StatusDeleted}, {Path: "z"}})

	assert.Equal(t, []string{"x", "y", "z"}, paths(files))
	assert.Equal(t, radicle.StatusDeleted, files[1].Status)
	assert.Equal(t, map[string]int{"x": 0, "y": 1, "z": 2}, index)
}
