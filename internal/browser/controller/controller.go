package controller

import (
	"context"

	"github.com/bordumb/RadicleApp/internal/browser/dto"
	"github.com/bordumb/RadicleApp/internal/browser/service"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

type Controller struct {
	svc *service.Service
}

func NewController(svc *service.Service) *Controller {
	return &Controller{svc: svc}
}

func (c *Controller) OpenTree(ctx context.Context, req dto.OpenTreeRequest) (dto.TreeResponse, error) {
	sess, err := c.svc.OpenTree(ctx, service.OpenTreeRequest{
		RepoID:      req.RepoID,
		Revision:    req.Revision,
		RootPath:    req.RootPath,
		View:        req.View,
		ExpandPaths: req.ExpandPaths,
	})
	if err != nil {
		return dto.TreeResponse{}, err
	}
	return treeResponse(sess)
}

func (c *Controller) GetTree(id string) (dto.TreeResponse, error) {
	sess, err := c.svc.Tree(id)
	if err != nil {
		return dto.TreeResponse{}, err
	}
	return treeResponse(sess)
}

func (c *Controller) ToggleTree(ctx context.Context, id string, req dto.PathRequest) (dto.TreeResponse, error) {
	sess, err := c.svc.ToggleTree(ctx, id, req.Path)
	if err != nil {
		return dto.TreeResponse{}, err
	}
	return treeResponse(sess)
}

func (c *Controller) RetryTree(ctx context.Context, id string, req dto.PathRequest) (dto.TreeResponse, error) {
	sess, err := c.svc.RetryTree(ctx, id, req.Path)
	if err != nil {
		return dto.TreeResponse{}, err
	}
	return treeResponse(sess)
}

func (c *Controller) CloseTree(id string) error {
	return c.svc.CloseTree(id)
}

func (c *Controller) OpenDiff(ctx context.Context, req dto.OpenDiffRequest) (dto.DiffResponse, error) {
	sess, err := c.svc.OpenDiff(ctx, service.OpenDiffRequest{
		RepoID:   req.RepoID,
		CommitID: req.CommitID,
		View:     req.View,
	})
	if err != nil {
		return dto.DiffResponse{}, err
	}
	return dto.FromAccumulator(sess.ID, sess.Merger.Snapshot()), nil
}

func (c *Controller) GetDiff(id string) (dto.DiffResponse, error) {
	sess, err := c.svc.Diff(id)
	if err != nil {
		return dto.DiffResponse{}, err
	}
	return dto.FromAccumulator(sess.ID, sess.Merger.Snapshot()), nil
}

func (c *Controller) LoadMoreDiff(ctx context.Context, id string) (dto.DiffResponse, error) {
	acc, err := c.svc.LoadMore(ctx, id)
	if err != nil {
		return dto.DiffResponse{}, err
	}
	return dto.FromAccumulator(id, acc), nil
}

func (c *Controller) CloseDiff(id string) error {
	return c.svc.CloseDiff(id)
}

func (c *Controller) OpenRepository(ctx context.Context, repoID, revision, view string) (dto.RepositoryOverviewResponse, error) {
	overview, err := c.svc.OpenRepository(ctx, service.OpenRepositoryRequest{
		RepoID:   repoID,
		Revision: revision,
		View:     view,
	})
	if err != nil {
		return dto.RepositoryOverviewResponse{}, err
	}
	resp := dto.RepositoryOverviewResponse{
		Repository: overview.Repository,
		Remotes:    overview.Remotes,
	}
	if overview.Tree != nil {
		tr, err := treeResponse(overview.Tree)
		if err != nil {
			return dto.RepositoryOverviewResponse{}, err
		}
		resp.Tree = &tr
	}
	return resp, nil
}

func (c *Controller) ListRepositories(ctx context.Context) ([]radicle.Repository, error) {
	return c.svc.ListRepositories(ctx)
}

func (c *Controller) ListCommits(ctx context.Context, repoID string) ([]radicle.Commit, error) {
	return c.svc.ListCommits(ctx, repoID)
}

func (c *Controller) GetCommit(ctx context.Context, repoID, commitID string) (*radicle.Commit, error) {
	return c.svc.GetCommit(ctx, repoID, commitID)
}

func (c *Controller) GetReadme(ctx context.Context, repoID, revision string) (*radicle.Blob, error) {
	return c.svc.GetReadme(ctx, repoID, revision)
}

func (c *Controller) ListIssues(ctx context.Context, repoID, state string) ([]radicle.Issue, error) {
	return c.svc.ListIssues(ctx, repoID, state)
}

func (c *Controller) GetIssue(ctx context.Context, repoID, issueID string) (*radicle.Issue, error) {
	return c.svc.GetIssue(ctx, repoID, issueID)
}

func (c *Controller) ListPatches(ctx context.Context, repoID, state string) ([]radicle.Patch, error) {
	return c.svc.ListPatches(ctx, repoID, state)
}

func (c *Controller) GetPatch(ctx context.Context, repoID, patchID string) (*radicle.Patch, error) {
	return c.svc.GetPatch(ctx, repoID, patchID)
}

func (c *Controller) GetBlob(ctx context.Context, repoID, revision, path string) (*radicle.Blob, error) {
	return c.svc.GetBlob(ctx, repoID, revision, path)
}

func (c *Controller) GetNodeInfo(ctx context.Context) (*radicle.NodeInfo, error) {
	return c.svc.GetNodeInfo(ctx)
}

func treeResponse(sess *service.TreeSession) (dto.TreeResponse, error) {
	root, err := sess.Store.Root()
	if err != nil {
		return dto.TreeResponse{}, err
	}
	rows, err := sess.Store.Visible()
	if err != nil {
		return dto.TreeResponse{}, err
	}
	return dto.TreeResponse{
		ID:       sess.ID,
		RepoID:   sess.Store.RepoID(),
		Revision: sess.Store.Revision(),
		Root:     dto.FromNode(root, 0),
		Rows:     dto.FromRows(rows),
	}, nil
}
