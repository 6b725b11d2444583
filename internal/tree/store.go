// Package tree implements a lazily loaded directory tree of a repository at
// one revision. Each directory's children are fetched once, on first
// expansion, and kept sorted with radicle.CompareEntries.
package tree

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tracing"
)

const expandConcurrency = 8

// Options configures a Store.
type Options struct {
	// RootPath roots the tree below the repository root.
	RootPath string
	Notifier Notifier
	Logger   *logger.Logger
}

// Store owns the nodes of one tree. All methods are safe for concurrent use;
// operations that fetch block until the fetch completes.
type Store struct {
	mu       sync.Mutex
	fetcher  radicle.ContentFetcher
	repoID   string
	revision string
	rootPath string
	nodes    map[string]*node
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc

	notify Notifier
	logger *logger.Logger
}

// NormalizePath strips surrounding slashes; the repository root is "".
func NormalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// New creates a store rooted at opts.RootPath and loads the root's children.
// A failed root fetch is reported through the root node's state, not as an
// error; errors are returned only for invalid arguments.
func New(ctx context.Context, fetcher radicle.ContentFetcher, repoID, revision string, opts Options) (*Store, error) {
	if fetcher == nil {
		return nil, errors.New("tree: nil fetcher")
	}
	if repoID == "" || revision == "" {
		return nil, errors.New("tree: repository id and revision are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	rootPath := NormalizePath(opts.RootPath)
	name := ""
	if rootPath != "" {
		name = path.Base(rootPath)
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Store{
		fetcher:  fetcher,
		repoID:   repoID,
		revision: revision,
		rootPath: rootPath,
		nodes: map[string]*node{
			rootPath: {
				entry:    radicle.Entry{Path: rootPath, Name: name, Kind: radicle.KindDirectory},
				expanded: true,
			},
		},
		ctx:    baseCtx,
		cancel: cancel,
		notify: opts.Notifier,
		logger: log.WithRepoID(repoID).WithFields(
			zap.String("component", "tree-store"),
			zap.String("revision", revision),
		),
	}

	if err := s.load(ctx, rootPath); err != nil && !errors.Is(err, ErrStoreClosed) {
		return nil, err
	}
	return s, nil
}

// RepoID returns the repository the tree belongs to.
func (s *Store) RepoID() string { return s.repoID }

// Revision returns the revision the tree is rooted at.
func (s *Store) Revision() string { return s.revision }

// RootPath returns the path of the root node.
func (s *Store) RootPath() string { return s.rootPath }

// Root returns a snapshot of the root node.
func (s *Store) Root() (Node, error) {
	return s.Node(s.rootPath)
}

// Node returns a snapshot of the node at path.
func (s *Store) Node(p string) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.lookupLocked(NormalizePath(p))
	if err != nil {
		return Node{}, err
	}
	return n.snapshot(), nil
}

// Children returns snapshots of the loaded children of path, in order.
func (s *Store) Children(p string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.lookupLocked(NormalizePath(p))
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, s.nodes[c].snapshot())
	}
	return out, nil
}

// Visible flattens the tree below the root, descending only into expanded
// and loaded directories.
func (s *Store) Visible() ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var rows []Row
	var walk func(parent *node, depth int)
	walk = func(parent *node, depth int) {
		for _, c := range parent.children {
			child := s.nodes[c]
			rows = append(rows, Row{Node: child.snapshot(), Depth: depth})
			if child.expanded && child.state == Loaded {
				walk(child, depth+1)
			}
		}
	}
	walk(s.nodes[s.rootPath], 0)
	return rows, nil
}

// ToggleExpand flips a directory's expanded flag. Expanding a NotLoaded
// directory loads it; Loaded and Failed directories are never refetched
// here. Files and the root are left untouched.
func (s *Store) ToggleExpand(ctx context.Context, p string) error {
	p = NormalizePath(p)
	s.mu.Lock()
	n, err := s.lookupLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !n.entry.IsDir() || p == s.rootPath {
		s.mu.Unlock()
		return nil
	}
	n.expanded = !n.expanded
	change := s.changeLocked(p, n)
	needsLoad := n.expanded && n.state == NotLoaded
	s.mu.Unlock()

	s.emit(change)
	if needsLoad {
		return s.load(ctx, p)
	}
	return nil
}

// Expand marks a directory expanded, loading it if it was never loaded.
func (s *Store) Expand(ctx context.Context, p string) error {
	p = NormalizePath(p)
	s.mu.Lock()
	n, err := s.lookupLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !n.entry.IsDir() {
		s.mu.Unlock()
		return nil
	}
	changed := !n.expanded
	n.expanded = true
	change := s.changeLocked(p, n)
	needsLoad := n.state == NotLoaded
	s.mu.Unlock()

	if changed {
		s.emit(change)
	}
	if needsLoad {
		return s.load(ctx, p)
	}
	return nil
}

// Collapse clears a directory's expanded flag and keeps its children.
func (s *Store) Collapse(p string) error {
	p = NormalizePath(p)
	s.mu.Lock()
	n, err := s.lookupLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !n.expanded || p == s.rootPath {
		s.mu.Unlock()
		return nil
	}
	n.expanded = false
	change := s.changeLocked(p, n)
	s.mu.Unlock()

	s.emit(change)
	return nil
}

// Retry reloads a Failed node. Nodes in any other state are left alone.
func (s *Store) Retry(ctx context.Context, p string) error {
	p = NormalizePath(p)
	s.mu.Lock()
	n, err := s.lookupLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if n.state != Failed {
		s.mu.Unlock()
		return nil
	}
	n.state = NotLoaded
	n.reason = ""
	s.mu.Unlock()

	return s.load(ctx, p)
}

// ExpandPaths expands every listed directory, parents before children.
// Directories at the same depth load concurrently. Paths that do not exist
// in this revision are skipped.
func (s *Store) ExpandPaths(ctx context.Context, paths []string) error {
	byDepth := make(map[int][]string)
	for _, p := range paths {
		p = NormalizePath(p)
		depth := 0
		if p != "" {
			depth = strings.Count(p, "/") + 1
		}
		byDepth[depth] = append(byDepth[depth], p)
	}
	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	for _, d := range depths {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(expandConcurrency)
		for _, p := range byDepth[d] {
			g.Go(func() error {
				err := s.Expand(gctx, p)
				if errors.Is(err, ErrNodeNotFound) {
					s.logger.Debug("skipping path missing from tree", zap.String("path", p))
					return nil
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Close discards the tree. In-flight fetches are cancelled and their results
// ignored.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.nodes = nil
	s.mu.Unlock()
	s.cancel()
	s.logger.Debug("tree store closed")
}

// load fetches the children of p. A load already in flight makes this a
// no-op. Fetch failures become node state; only store-level errors are
// returned.
func (s *Store) load(ctx context.Context, p string) error {
	s.mu.Lock()
	n, err := s.lookupLocked(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if n.state == Loading || n.state == Loaded || !n.entry.IsDir() {
		s.mu.Unlock()
		return nil
	}
	n.state = Loading
	n.reason = ""
	n.loadSeq++
	seq := n.loadSeq
	change := s.changeLocked(p, n)
	s.mu.Unlock()
	s.emit(change)

	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	fetchCtx, span := tracing.TraceNodeLoad(fetchCtx, s.repoID, s.revision, p)
	s.logger.Debug("loading directory", zap.String("path", p))
	entries, fetchErr := s.fetcher.ListDirectory(fetchCtx, s.repoID, s.revision, p)
	tracing.EndWithError(span, fetchErr)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if cur := s.nodes[p]; cur != n || n.loadSeq != seq {
		s.mu.Unlock()
		return nil
	}

	if fetchErr != nil {
		fe := radicle.AsFetchError("list directory", fetchErr)
		if fetchCtx.Err() != nil {
			// Abandoned by the caller: collapse so the next toggle loads again.
			n.state = NotLoaded
			if p != s.rootPath {
				n.expanded = false
			}
		} else {
			n.state = Failed
			n.reason = fe.Reason
		}
		change = s.changeLocked(p, n)
		s.mu.Unlock()

		s.logger.Warn("directory load failed",
			zap.String("path", p),
			zap.String("kind", string(fe.Kind)),
			zap.String("reason", fe.Reason))
		s.emit(change)
		return nil
	}

	radicle.SortEntries(entries)
	n.children = make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		e.Path = NormalizePath(e.Path)
		if e.Path == p || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		s.nodes[e.Path] = &node{entry: e}
		n.children = append(n.children, e.Path)
	}
	n.state = Loaded
	change = s.changeLocked(p, n)
	s.mu.Unlock()

	s.logger.Debug("directory loaded", zap.String("path", p), zap.Int("children", len(entries)))
	s.emit(change)
	return nil
}

func (s *Store) lookupLocked(p string) (*node, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	n, ok := s.nodes[p]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

func (s *Store) changeLocked(p string, n *node) Change {
	return Change{
		RepoID:   s.repoID,
		Revision: s.revision,
		Path:     p,
		State:    n.state,
		Expanded: n.expanded,
		Reason:   n.reason,
	}
}

func (s *Store) emit(c Change) {
	if s.notify != nil {
		s.notify(c)
	}
}
