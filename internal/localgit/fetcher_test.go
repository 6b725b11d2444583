package localgit

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

const testRID = "rad:z3gqcJUoA1n9HaHKufZs5FCSGazv5"

type testRepo struct {
	t    *testing.T
	repo *git.Repository
	fs   billy.Filesystem
	wt   *git.Worktree
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{t: t, repo: repo, fs: fs, wt: wt}
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	require.NoError(r.t, util.WriteFile(r.fs, name, []byte(content), 0o644))
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

func (r *testRepo) remove(name string) {
	r.t.Helper()
	_, err := r.wt.Remove(name)
	require.NoError(r.t, err)
}

func (r *testRepo) commit(msg string) string {
	r.t.Helper()
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Alice", Email: "alice@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(r.t, err)
	return hash.String()
}

func names(entries []radicle.Entry) []string {
	radicle.SortEntries(entries)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// seed builds a two commit history and returns both commit ids.
func seed(t *testing.T) (*testRepo, string, string) {
	r := newTestRepo(t)
	r.write("README.md", "# demo\n")
	r.write("src/main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	r.write("src/lib/util.go", "package lib\nfunc Util() int { return 1 }\n")
	first := r.commit("initial")

	r.write("src/main.go", "package main\n\nfunc main() {\n\tprintln(\"bye\")\n}\n")
	r.write("src/new.go", "hello\n")
	r.remove("src/lib/util.go")
	second := r.commit("second")
	return r, first, second
}

func TestListDirectory(t *testing.T) {
	r, first, second := seed(t)
	f := New(r.repo, testRID, 2, logger.Nop())
	ctx := context.Background()

	root, err := f.ListDirectory(ctx, testRID, first, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"src", "README.md"}, names(root))
	assert.Equal(t, radicle.KindDirectory, root[0].Kind)
	assert.Equal(t, "src", root[0].Path)
	assert.NotEmpty(t, root[1].ContentID)

	src, err := f.ListDirectory(ctx, testRID, first, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "main.go"}, names(src))
	assert.Equal(t, "src/lib", src[0].Path)
	assert.Equal(t, "src/main.go", src[1].Path)

	// The directory is gone once its only file is removed.
	_, err = f.ListDirectory(ctx, testRID, second, "src/lib")
	assert.True(t, radicle.IsNotFound(err))

	src, err = f.ListDirectory(ctx, testRID, "HEAD", "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "new.go"}, names(src))
}

func TestListDirectoryErrors(t *testing.T) {
	r, first, _ := seed(t)
	f := New(r.repo, testRID, 0, logger.Nop())
	ctx := context.Background()

	_, err := f.ListDirectory(ctx, testRID, first, "missing")
	assert.True(t, radicle.IsNotFound(err))

	_, err = f.ListDirectory(ctx, testRID, first, "README.md")
	assert.True(t, radicle.IsNotFound(err), "a file is not a directory")

	_, err = f.ListDirectory(ctx, testRID, "0000000000000000000000000000000000000000", "")
	assert.True(t, radicle.IsNotFound(err))

	_, err = f.ListDirectory(ctx, "rad:other", first, "")
	assert.True(t, radicle.IsNotFound(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.ListDirectory(cancelled, testRID, first, "")
	var fe *radicle.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, radicle.ErrKindCanceled, fe.Kind)
}

func TestGetDiffPagePaginates(t *testing.T) {
	r, _, second := seed(t)
	f := New(r.repo, testRID, 2, logger.Nop())
	ctx := context.Background()

	page1, err := f.GetDiffPage(ctx, testRID, second, "")
	require.NoError(t, err)
	require.Len(t, page1.Files, 2)
	assert.Equal(t, "src/lib/util.go", page1.Files[0].Path)
	assert.Equal(t, radicle.StatusDeleted, page1.Files[0].Status)
	assert.NotEmpty(t, page1.Files[0].OldRef)
	assert.Empty(t, page1.Files[0].NewRef)
	assert.Equal(t, "src/main.go", page1.Files[1].Path)
	assert.Equal(t, radicle.StatusModified, page1.Files[1].Status)
	assert.Equal(t, "2", page1.NextPageToken)

	require.NotNil(t, page1.Stats)
	assert.Equal(t, radicle.DiffStats{FilesChanged: 3, Insertions: 2, Deletions: 3}, *page1.Stats)

	mainGo := page1.Files[1]
	require.Len(t, mainGo.Hunks, 1)
	hunk := mainGo.Hunks[0]
	assert.Equal(t, "@@ -1,5 +1,5 @@", hunk.Header)
	require.Len(t, hunk.Lines, 6)
	assert.Equal(t, radicle.LineDeletion, hunk.Lines[3].Kind)
	assert.Equal(t, "\tprintln(\"hi\")", hunk.Lines[3].Text)
	assert.Equal(t, 4, *hunk.Lines[3].OldLineNumber)
	assert.Nil(t, hunk.Lines[3].NewLineNumber)
	assert.Equal(t, radicle.LineAddition, hunk.Lines[4].Kind)
	assert.Equal(t, 4, *hunk.Lines[4].NewLineNumber)

	page2, err := f.GetDiffPage(ctx, testRID, second, page1.NextPageToken)
	require.NoError(t, err)
	require.Len(t, page2.Files, 1)
	assert.Equal(t, "src/new.go", page2.Files[0].Path)
	assert.Equal(t, radicle.StatusAdded, page2.Files[0].Status)
	assert.Empty(t, page2.NextPageToken)
}

func TestGetDiffPageRootCommit(t *testing.T) {
	r, first, _ := seed(t)
	f := New(r.repo, testRID, 10, logger.Nop())

	page, err := f.GetDiffPage(context.Background(), testRID, first, "")
	require.NoError(t, err)
	require.Len(t, page.Files, 3)
	for _, file := range page.Files {
		assert.Equal(t, radicle.StatusAdded, file.Status, file.Path)
		assert.Empty(t, file.OldRef)
	}
	assert.Empty(t, page.NextPageToken)
	assert.Equal(t, 3, page.Stats.FilesChanged)
	assert.Equal(t, 8, page.Stats.Insertions)
}

func TestGetDiffPageBadToken(t *testing.T) {
	r, _, second := seed(t)
	f := New(r.repo, testRID, 2, logger.Nop())
	ctx := context.Background()

	for _, token := range []string{"abc", "-1", "99"} {
		_, err := f.GetDiffPage(ctx, testRID, second, token)
		var fe *radicle.FetchError
		require.ErrorAs(t, err, &fe, token)
		assert.Equal(t, radicle.ErrKindMalformed, fe.Kind, token)
	}

	_, err := f.GetDiffPage(ctx, testRID, "0000000000000000000000000000000000000000", "")
	assert.True(t, radicle.IsNotFound(err))
}
