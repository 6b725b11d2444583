// Package service owns the live directory trees and commit diffs opened by
// browser sessions and publishes their changes on the event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/diff"
	"github.com/bordumb/RadicleApp/internal/events"
	"github.com/bordumb/RadicleApp/internal/events/bus"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tree"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// TreeSession is a tree store opened for one view.
type TreeSession struct {
	ID    string
	View  string
	Store *tree.Store
}

// DiffSession is a diff accumulator opened for one view.
type DiffSession struct {
	ID     string
	View   string
	Merger *diff.Merger
}

type OpenTreeRequest struct {
	RepoID   string
	Revision string
	RootPath string
	// View names the pane showing the tree. Opening another tree for the
	// same view discards the previous one.
	View        string
	ExpandPaths []string
}

type OpenDiffRequest struct {
	RepoID   string
	CommitID string
	View     string
}

type OpenRepositoryRequest struct {
	RepoID string
	// Revision defaults to the repository head.
	Revision string
	View     string
}

// RepositoryOverview is what a repository page shows on first load.
type RepositoryOverview struct {
	Repository *radicle.Repository
	Remotes    []radicle.Remote
	Tree       *TreeSession
}

// Service tracks sessions by id. Tree and diff operations run outside the
// service lock and may proceed concurrently across sessions.
type Service struct {
	client  radicle.Client
	fetcher radicle.ContentFetcher
	bus     bus.EventBus
	logger  *logger.Logger

	mu        sync.Mutex
	trees     map[string]*TreeSession
	diffs     map[string]*DiffSession
	treeViews map[string]string
	diffViews map[string]string
}

// NewService creates a service. fetcher serves trees and diffs; when nil the
// client does.
func NewService(client radicle.Client, fetcher radicle.ContentFetcher, eventBus bus.EventBus, log *logger.Logger) *Service {
	if fetcher == nil {
		fetcher = client
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		client:    client,
		fetcher:   fetcher,
		bus:       eventBus,
		logger:    log.WithFields(zap.String("component", "browser-service")),
		trees:     make(map[string]*TreeSession),
		diffs:     make(map[string]*DiffSession),
		treeViews: make(map[string]string),
		diffViews: make(map[string]string),
	}
}

// OpenTree creates a tree store, loads its root and re-expands
// req.ExpandPaths.
func (s *Service) OpenTree(ctx context.Context, req OpenTreeRequest) (*TreeSession, error) {
	if req.RepoID == "" || req.Revision == "" {
		return nil, fmt.Errorf("%w: repo_id and revision are required", ErrInvalidRequest)
	}
	id := uuid.New().String()
	store, err := tree.New(ctx, s.fetcher, req.RepoID, req.Revision, tree.Options{
		RootPath: req.RootPath,
		Notifier: s.treeNotifier(id),
		Logger:   s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(req.ExpandPaths) > 0 {
		if err := store.ExpandPaths(ctx, req.ExpandPaths); err != nil {
			store.Close()
			return nil, err
		}
	}

	sess := &TreeSession{ID: id, View: req.View, Store: store}
	s.mu.Lock()
	s.trees[id] = sess
	var replaced string
	if req.View != "" {
		replaced = s.treeViews[req.View]
		s.treeViews[req.View] = id
	}
	s.mu.Unlock()

	if replaced != "" {
		_ = s.CloseTree(replaced)
	}
	s.publish(events.TreeOpened, id, map[string]interface{}{
		"repo_id":  req.RepoID,
		"revision": req.Revision,
		"view":     req.View,
	})
	s.logger.Info("tree opened",
		zap.String("session_id", id),
		zap.String("repo_id", req.RepoID),
		zap.String("revision", req.Revision))
	return sess, nil
}

// Tree returns an open tree session.
func (s *Service) Tree(id string) (*TreeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.trees[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ToggleTree expands or collapses path in tree id.
func (s *Service) ToggleTree(ctx context.Context, id, path string) (*TreeSession, error) {
	sess, err := s.Tree(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Store.ToggleExpand(ctx, path); err != nil {
		return nil, err
	}
	return sess, nil
}

// RetryTree reloads a failed directory of tree id.
func (s *Service) RetryTree(ctx context.Context, id, path string) (*TreeSession, error) {
	sess, err := s.Tree(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Store.Retry(ctx, path); err != nil {
		return nil, err
	}
	return sess, nil
}

// CloseTree discards tree id, cancelling its in-flight loads.
func (s *Service) CloseTree(id string) error {
	s.mu.Lock()
	sess, ok := s.trees[id]
	if ok {
		delete(s.trees, id)
		if sess.View != "" && s.treeViews[sess.View] == id {
			delete(s.treeViews, sess.View)
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Store.Close()
	s.publish(events.TreeClosed, id, nil)
	return nil
}

// OpenDiff fetches the first page of a commit diff.
func (s *Service) OpenDiff(ctx context.Context, req OpenDiffRequest) (*DiffSession, error) {
	if req.RepoID == "" || req.CommitID == "" {
		return nil, fmt.Errorf("%w: repo_id and commit_id are required", ErrInvalidRequest)
	}
	id := uuid.New().String()
	merger, err := diff.Start(ctx, s.fetcher, req.RepoID, req.CommitID, diff.Options{
		Notifier: s.diffNotifier(id),
		Logger:   s.logger,
	})
	if err != nil {
		s.publish(events.DiffLoadFailed, id, map[string]interface{}{
			"repo_id":   req.RepoID,
			"commit_id": req.CommitID,
			"error":     err.Error(),
		})
		return nil, err
	}

	sess := &DiffSession{ID: id, View: req.View, Merger: merger}
	s.mu.Lock()
	s.diffs[id] = sess
	var replaced string
	if req.View != "" {
		replaced = s.diffViews[req.View]
		s.diffViews[req.View] = id
	}
	s.mu.Unlock()

	if replaced != "" {
		_ = s.CloseDiff(replaced)
	}
	s.logger.Info("diff opened",
		zap.String("session_id", id),
		zap.String("repo_id", req.RepoID),
		zap.String("commit_id", req.CommitID))
	return sess, nil
}

// Diff returns an open diff session.
func (s *Service) Diff(id string) (*DiffSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.diffs[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// LoadMore merges the next page of diff id. Page fetch failures are reported
// through the returned accumulator's LastError rather than as an error.
func (s *Service) LoadMore(ctx context.Context, id string) (diff.Accumulator, error) {
	sess, err := s.Diff(id)
	if err != nil {
		return diff.Accumulator{}, err
	}
	acc, err := sess.Merger.LoadMore(ctx)
	var fe *radicle.FetchError
	if errors.As(err, &fe) {
		return acc, nil
	}
	return acc, err
}

// CloseDiff discards diff id, cancelling its in-flight fetch.
func (s *Service) CloseDiff(id string) error {
	s.mu.Lock()
	sess, ok := s.diffs[id]
	if ok {
		delete(s.diffs, id)
		if sess.View != "" && s.diffViews[sess.View] == id {
			delete(s.diffViews, sess.View)
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Merger.Discard()
	s.publish(events.DiffClosed, id, nil)
	return nil
}

// OpenRepository loads repository details, its remotes and the root tree
// concurrently. Without a revision the tree waits for the repository head.
func (s *Service) OpenRepository(ctx context.Context, req OpenRepositoryRequest) (*RepositoryOverview, error) {
	if req.RepoID == "" {
		return nil, fmt.Errorf("%w: repo_id is required", ErrInvalidRequest)
	}
	var (
		overview RepositoryOverview
		headReady = make(chan struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(headReady)
		repo, err := s.client.GetRepository(gctx, req.RepoID)
		if err != nil {
			return err
		}
		overview.Repository = repo
		return nil
	})
	g.Go(func() error {
		remotes, err := s.client.ListRemotes(gctx, req.RepoID)
		if err != nil {
			return err
		}
		overview.Remotes = remotes
		return nil
	})
	g.Go(func() error {
		revision := req.Revision
		if revision == "" {
			select {
			case <-headReady:
			case <-gctx.Done():
				return gctx.Err()
			}
			if overview.Repository == nil {
				return nil
			}
			revision = overview.Repository.Head
		}
		sess, err := s.OpenTree(gctx, OpenTreeRequest{RepoID: req.RepoID, Revision: revision, View: req.View})
		if err != nil {
			return err
		}
		overview.Tree = sess
		return nil
	})
	if err := g.Wait(); err != nil {
		if overview.Tree != nil {
			_ = s.CloseTree(overview.Tree.ID)
		}
		return nil, err
	}
	return &overview, nil
}

// Catalog reads pass through to the client.

func (s *Service) ListRepositories(ctx context.Context) ([]radicle.Repository, error) {
	return s.client.ListRepositories(ctx)
}

func (s *Service) GetRepository(ctx context.Context, repoID string) (*radicle.Repository, error) {
	return s.client.GetRepository(ctx, repoID)
}

func (s *Service) ListCommits(ctx context.Context, repoID string) ([]radicle.Commit, error) {
	return s.client.ListCommits(ctx, repoID)
}

func (s *Service) GetCommit(ctx context.Context, repoID, commitID string) (*radicle.Commit, error) {
	return s.client.GetCommit(ctx, repoID, commitID)
}

func (s *Service) GetReadme(ctx context.Context, repoID, revision string) (*radicle.Blob, error) {
	return s.client.GetReadme(ctx, repoID, revision)
}

func (s *Service) ListIssues(ctx context.Context, repoID, state string) ([]radicle.Issue, error) {
	return s.client.ListIssues(ctx, repoID, state)
}

func (s *Service) GetIssue(ctx context.Context, repoID, issueID string) (*radicle.Issue, error) {
	return s.client.GetIssue(ctx, repoID, issueID)
}

func (s *Service) ListPatches(ctx context.Context, repoID, state string) ([]radicle.Patch, error) {
	return s.client.ListPatches(ctx, repoID, state)
}

func (s *Service) GetPatch(ctx context.Context, repoID, patchID string) (*radicle.Patch, error) {
	return s.client.GetPatch(ctx, repoID, patchID)
}

func (s *Service) GetBlob(ctx context.Context, repoID, revision, path string) (*radicle.Blob, error) {
	return s.client.GetBlob(ctx, repoID, revision, path)
}

func (s *Service) GetNodeInfo(ctx context.Context) (*radicle.NodeInfo, error) {
	return s.client.GetNodeInfo(ctx)
}

// Close discards every open tree and diff.
func (s *Service) Close() {
	s.mu.Lock()
	treeIDs := make([]string, 0, len(s.trees))
	for id := range s.trees {
		treeIDs = append(treeIDs, id)
	}
	diffIDs := make([]string, 0, len(s.diffs))
	for id := range s.diffs {
		diffIDs = append(diffIDs, id)
	}
	s.mu.Unlock()

	for _, id := range treeIDs {
		_ = s.CloseTree(id)
	}
	for _, id := range diffIDs {
		_ = s.CloseDiff(id)
	}
}

func (s *Service) treeNotifier(sessionID string) tree.Notifier {
	return func(c tree.Change) {
		s.publish(events.TreeNodeChanged, sessionID, map[string]interface{}{
			"repo_id":  c.RepoID,
			"revision": c.Revision,
			"path":     c.Path,
			"state":    c.State.String(),
			"expanded": c.Expanded,
			"reason":   c.Reason,
		})
	}
}

func (s *Service) diffNotifier(sessionID string) diff.Notifier {
	return func(u diff.Update) {
		eventType := events.DiffPageMerged
		if u.Err != "" {
			eventType = events.DiffLoadFailed
		}
		s.publish(eventType, sessionID, map[string]interface{}{
			"repo_id":   u.RepoID,
			"commit_id": u.CommitID,
			"files":     u.Files,
			"pages":     u.Pages,
			"complete":  u.Complete,
			"error":     u.Err,
		})
	}
}

func (s *Service) publish(eventType, sessionID string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	event := bus.NewEvent(eventType, events.Source, sessionID, data)
	if err := s.bus.Publish(context.Background(), events.BuildSubject(eventType, sessionID), event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
