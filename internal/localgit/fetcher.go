// Package localgit serves directory listings and paginated commit diffs from
// a local clone of a Radicle repository.
package localgit

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

const (
	opListDirectory = "list directory"
	opGetDiffPage   = "get diff page"

	defaultPageSize = 50
)

// Fetcher implements radicle.ContentFetcher on top of a go-git repository.
type Fetcher struct {
	repo     *git.Repository
	repoID   string
	pageSize int
	logger   *logger.Logger
}

// Open opens the clone at repoPath. repoID is the Radicle id the clone
// answers for; an empty repoID accepts any id.
func Open(repoPath, repoID string, pageSize int, log *logger.Logger) (*Fetcher, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", repoPath, err)
	}
	return New(repo, repoID, pageSize, log), nil
}

// New wraps an already opened repository.
func New(repo *git.Repository, repoID string, pageSize int, log *logger.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if log == nil {
		log = logger.Default()
	}
	return &Fetcher{
		repo:     repo,
		repoID:   repoID,
		pageSize: pageSize,
		logger:   log.WithFields(zap.String("component", "localgit")),
	}
}

// ListDirectory lists the immediate children of dir in the tree of revision.
func (f *Fetcher) ListDirectory(ctx context.Context, repoID, revision, dir string) ([]radicle.Entry, error) {
	if err := f.checkRepo(opListDirectory, repoID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, radicle.AsFetchError(opListDirectory, err)
	}

	commit, err := f.resolve(opListDirectory, revision)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, radicle.NewMalformedError(opListDirectory, err)
	}
	if dir != "" {
		entry, err := tree.FindEntry(dir)
		if err != nil || entry.Mode != filemode.Dir {
			return nil, radicle.NewNotFoundError(opListDirectory, "directory "+dir)
		}
		if tree, err = tree.Tree(dir); err != nil {
			return nil, radicle.NewNotFoundError(opListDirectory, "directory "+dir)
		}
	}

	entries := make([]radicle.Entry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		kind := radicle.KindFile
		if e.Mode == filemode.Dir {
			kind = radicle.KindDirectory
		}
		entries = append(entries, radicle.Entry{
			Path:      path.Join(dir, e.Name),
			Name:      e.Name,
			Kind:      kind,
			ContentID: e.Hash.String(),
		})
	}
	return entries, nil
}

// GetDiffPage returns one page of commitID's diff against its first parent.
// Pages hold up to pageSize files ordered by path; the token is the offset of
// the page's first file. Every page carries the statistics of the whole
// commit.
func (f *Fetcher) GetDiffPage(ctx context.Context, repoID, commitID, pageToken string) (*radicle.DiffPage, error) {
	if err := f.checkRepo(opGetDiffPage, repoID); err != nil {
		return nil, err
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, radicle.NewMalformedError(opGetDiffPage, fmt.Errorf("invalid page token %q", pageToken))
		}
		offset = n
	}

	files, err := f.commitDiff(ctx, commitID)
	if err != nil {
		return nil, err
	}
	if offset > len(files) {
		return nil, radicle.NewMalformedError(opGetDiffPage, fmt.Errorf("page token %q past end of diff", pageToken))
	}

	stats := radicle.SumStats(files)
	end := min(len(files), offset+f.pageSize)
	page := &radicle.DiffPage{
		Files: files[offset:end],
		Stats: &stats,
	}
	if end < len(files) {
		page.NextPageToken = strconv.Itoa(end)
	}
	f.logger.Debug("diff page built",
		zap.String("commit_id", commitID),
		zap.Int("offset", offset),
		zap.Int("files", len(page.Files)))
	return page, nil
}

func (f *Fetcher) checkRepo(op, repoID string) error {
	if f.repoID != "" && repoID != f.repoID {
		return radicle.NewNotFoundError(op, "repository "+repoID)
	}
	return nil
}

func (f *Fetcher) resolve(op, revision string) (*object.Commit, error) {
	hash, err := f.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, radicle.NewNotFoundError(op, "revision "+revision)
	}
	commit, err := f.repo.CommitObject(*hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, radicle.NewNotFoundError(op, "commit "+revision)
		}
		return nil, radicle.NewMalformedError(op, err)
	}
	return commit, nil
}

// commitDiff diffs commitID against its first parent, or against the empty
// tree for a root commit.
func (f *Fetcher) commitDiff(ctx context.Context, commitID string) ([]radicle.FileDiff, error) {
	commit, err := f.resolve(opGetDiffPage, commitID)
	if err != nil {
		return nil, err
	}
	to, err := commit.Tree()
	if err != nil {
		return nil, radicle.NewMalformedError(opGetDiffPage, err)
	}
	var from *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, radicle.NewMalformedError(opGetDiffPage, err)
		}
		if from, err = parent.Tree(); err != nil {
			return nil, radicle.NewMalformedError(opGetDiffPage, err)
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, radicle.AsFetchError(opGetDiffPage, err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return nil, radicle.AsFetchError(opGetDiffPage, err)
	}

	files := make([]radicle.FileDiff, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		files = append(files, toFileDiff(fp))
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func toFileDiff(fp fdiff.FilePatch) radicle.FileDiff {
	from, to := fp.Files()
	var fd radicle.FileDiff
	switch {
	case from == nil:
		fd.Status = radicle.StatusAdded
		fd.Path = to.Path()
		fd.NewRef = to.Hash().String()
	case to == nil:
		fd.Status = radicle.StatusDeleted
		fd.Path = from.Path()
		fd.OldRef = from.Hash().String()
	default:
		fd.Status = radicle.StatusModified
		fd.Path = to.Path()
		fd.OldRef = from.Hash().String()
		fd.NewRef = to.Hash().String()
		if from.Path() != to.Path() {
			fd.Status = radicle.StatusRenamed
			fd.OldPath = from.Path()
		}
	}
	if fp.IsBinary() {
		fd.Binary = true
		return fd
	}
	fd.Hunks = buildHunks(fp.Chunks())
	return fd
}
