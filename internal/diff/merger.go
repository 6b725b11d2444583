// Package diff merges the pages of one commit's diff into a single ordered,
// deduplicated file list with consistent statistics.
package diff

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tracing"
)

const opGetPage = "get diff page"

// ErrDiscarded is returned by operations on a discarded merger.
var ErrDiscarded = errors.New("diff accumulator discarded")

// Accumulator is a read-only snapshot of a merged diff.
type Accumulator struct {
	RepoID        string             `json:"repo_id"`
	CommitID      string             `json:"commit_id"`
	Files         []radicle.FileDiff `json:"files"`
	Stats         radicle.DiffStats  `json:"stats"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	Complete      bool               `json:"complete"`
	Loading       bool               `json:"loading"`
	Pages         int                `json:"pages"`
	LastError     string             `json:"last_error,omitempty"`
}

// Update describes a merger change delivered to a Notifier.
type Update struct {
	RepoID   string `json:"repo_id"`
	CommitID string `json:"commit_id"`
	Files    int    `json:"files"`
	Pages    int    `json:"pages"`
	Complete bool   `json:"complete"`
	Err      string `json:"error,omitempty"`
}

// Notifier receives merger updates, called without the merger lock held.
type Notifier func(Update)

// Options configures a Merger.
type Options struct {
	Notifier Notifier
	Logger   *logger.Logger
}

// Merger owns the accumulated diff of one commit. At most one page fetch is
// in flight at a time; LoadMore calls made meanwhile return immediately.
type Merger struct {
	mu       sync.Mutex
	fetcher  radicle.ContentFetcher
	repoID   string
	commitID string

	files     []radicle.FileDiff
	index     map[string]int
	stats     radicle.DiffStats
	nextToken string
	seen      map[string]bool
	pages     int
	inFlight  bool
	lastErr   *radicle.FetchError
	discarded bool

	ctx    context.Context
	cancel context.CancelFunc

	notify Notifier
	logger *logger.Logger
}

// Start fetches the first page of commitID's diff. A failed first page
// yields no merger and the fetch error.
func Start(ctx context.Context, fetcher radicle.ContentFetcher, repoID, commitID string, opts Options) (*Merger, error) {
	if fetcher == nil {
		return nil, errors.New("diff: nil fetcher")
	}
	if repoID == "" || commitID == "" {
		return nil, errors.New("diff: repository id and commit id are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	m := &Merger{
		fetcher:  fetcher,
		repoID:   repoID,
		commitID: commitID,
		index:    make(map[string]int),
		seen:     map[string]bool{"": true},
		ctx:      baseCtx,
		cancel:   cancel,
		notify:   opts.Notifier,
		logger: log.WithRepoID(repoID).WithCommitID(commitID).WithFields(
			zap.String("component", "diff-merger"),
		),
	}

	page, err := m.fetch(ctx, "")
	if err != nil {
		cancel()
		return nil, err
	}
	m.mu.Lock()
	err = m.applyLocked(page)
	upd := m.updateLocked()
	m.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}
	m.emit(upd)
	return m, nil
}

// RepoID returns the repository of the diffed commit.
func (m *Merger) RepoID() string { return m.repoID }

// CommitID returns the diffed commit.
func (m *Merger) CommitID() string { return m.commitID }

// IsComplete reports whether every page has been merged.
func (m *Merger) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextToken == ""
}

// Snapshot returns a copy of the accumulated state.
func (m *Merger) Snapshot() Accumulator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// LoadMore fetches and merges the next page. It is a no-op when the diff is
// complete or another LoadMore is in flight. A failed fetch leaves the
// accumulated state and page token untouched and returns the *FetchError;
// calling LoadMore again re-requests the same page.
func (m *Merger) LoadMore(ctx context.Context) (Accumulator, error) {
	m.mu.Lock()
	if m.discarded {
		m.mu.Unlock()
		return Accumulator{}, ErrDiscarded
	}
	if m.nextToken == "" || m.inFlight {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.inFlight = true
	token := m.nextToken
	m.mu.Unlock()

	page, err := m.fetch(ctx, token)

	m.mu.Lock()
	m.inFlight = false
	if m.discarded {
		m.mu.Unlock()
		return Accumulator{}, ErrDiscarded
	}
	if err == nil {
		err = m.applyLocked(page)
	}
	if err != nil {
		fe := radicle.AsFetchError(opGetPage, err)
		m.lastErr = fe
		upd := m.updateLocked()
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.logger.Warn("diff page failed",
			zap.String("page_token", token),
			zap.String("kind", string(fe.Kind)),
			zap.String("reason", fe.Reason))
		m.emit(upd)
		return snap, fe
	}
	upd := m.updateLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(upd)
	return snap, nil
}

// LoadAll merges pages until the diff is complete or a page fails.
func (m *Merger) LoadAll(ctx context.Context) (Accumulator, error) {
	for {
		snap, err := m.LoadMore(ctx)
		if err != nil {
			return snap, err
		}
		if snap.Complete {
			return snap, nil
		}
		if snap.Loading {
			return snap, fmt.Errorf("diff: another load is in flight for %s", m.commitID)
		}
	}
}

// Discard drops the accumulator. In-flight fetches are cancelled and their
// results ignored.
func (m *Merger) Discard() {
	m.mu.Lock()
	if m.discarded {
		m.mu.Unlock()
		return
	}
	m.discarded = true
	m.files = nil
	m.index = nil
	m.mu.Unlock()
	m.cancel()
	m.logger.Debug("diff accumulator discarded")
}

func (m *Merger) fetch(ctx context.Context, token string) (*radicle.DiffPage, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	fetchCtx, span := tracing.TraceDiffPage(fetchCtx, m.repoID, m.commitID, token)
	page, err := m.fetcher.GetDiffPage(fetchCtx, m.repoID, m.commitID, token)
	if err == nil && page == nil {
		err = radicle.NewMalformedError(opGetPage, errors.New("empty diff page"))
	}
	tracing.EndWithError(span, err)
	if err != nil {
		return nil, radicle.AsFetchError(opGetPage, err)
	}
	return page, nil
}

// applyLocked merges page into the accumulator. A continuation token that was
// already followed is rejected.
func (m *Merger) applyLocked(page *radicle.DiffPage) error {
	if page.NextPageToken != "" && m.seen[page.NextPageToken] {
		return radicle.NewMalformedError(opGetPage,
			fmt.Errorf("page token %q was already served", page.NextPageToken))
	}

	m.files, m.index = MergeFiles(m.files, m.index, page.Files)
	if page.Stats != nil {
		m.stats = *page.Stats
	} else {
		m.stats = radicle.SumStats(m.files)
	}
	m.nextToken = page.NextPageToken
	if m.nextToken != "" {
		m.seen[m.nextToken] = true
	}
	m.pages++
	m.lastErr = nil

	m.logger.Debug("diff page merged",
		zap.Int("page", m.pages),
		zap.Int("files", len(m.files)),
		zap.Bool("complete", m.nextToken == ""))
	return nil
}

// MergeFiles folds incoming files into files. A path already present is
// replaced in place (last seen wins, hunks are not unioned); new paths are
// appended. index maps path to position and is updated alongside.
func MergeFiles(files []radicle.FileDiff, index map[string]int, incoming []radicle.FileDiff) ([]radicle.FileDiff, map[string]int) {
	if index == nil {
		index = make(map[string]int, len(files)+len(incoming))
		for i, f := range files {
			index[f.Path] = i
		}
	}
	for _, f := range incoming {
		if i, ok := index[f.Path]; ok {
			files[i] = f
			continue
		}
		index[f.Path] = len(files)
		files = append(files, f)
	}
	return files, index
}

func (m *Merger) snapshotLocked() Accumulator {
	acc := Accumulator{
		RepoID:        m.repoID,
		CommitID:      m.commitID,
		Files:         append([]radicle.FileDiff(nil), m.files...),
		Stats:         m.stats,
		NextPageToken: m.nextToken,
		Complete:      m.nextToken == "",
		Loading:       m.inFlight,
		Pages:         m.pages,
	}
	if m.lastErr != nil {
		acc.LastError = m.lastErr.Reason
	}
	return acc
}

func (m *Merger) updateLocked() Update {
	u := Update{
		RepoID:   m.repoID,
		CommitID: m.commitID,
		Files:    len(m.files),
		Pages:    m.pages,
		Complete: m.nextToken == "",
	}
	if m.lastErr != nil {
		u.Err = m.lastErr.Reason
	}
	return u
}

func (m *Merger) emit(u Update) {
	if m.notify != nil {
		m.notify(u)
	}
}
