package dto

import (
	"github.com/bordumb/RadicleApp/internal/diff"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tree"
)

type OpenTreeRequest struct {
	RepoID      string   `json:"repo_id" binding:"required"`
	Revision    string   `json:"revision" binding:"required"`
	RootPath    string   `json:"root_path,omitempty"`
	View        string   `json:"view,omitempty"`
	ExpandPaths []string `json:"expand_paths,omitempty"`
}

type PathRequest struct {
	Path string `json:"path"`
}

type OpenDiffRequest struct {
	RepoID   string `json:"repo_id" binding:"required"`
	CommitID string `json:"commit_id" binding:"required"`
	View     string `json:"view,omitempty"`
}

type TreeNodeDTO struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	ContentID string `json:"content_id,omitempty"`
	Expanded  bool   `json:"expanded"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	Depth     int    `json:"depth"`
}

type TreeResponse struct {
	ID       string        `json:"id"`
	RepoID   string        `json:"repo_id"`
	Revision string        `json:"revision"`
	Root     TreeNodeDTO   `json:"root"`
	Rows     []TreeNodeDTO `json:"rows"`
}

type DiffResponse struct {
	ID        string             `json:"id"`
	RepoID    string             `json:"repo_id"`
	CommitID  string             `json:"commit_id"`
	Files     []radicle.FileDiff `json:"files"`
	Stats     radicle.DiffStats  `json:"stats"`
	Complete  bool               `json:"complete"`
	Loading   bool               `json:"loading"`
	Pages     int                `json:"pages"`
	LastError string             `json:"last_error,omitempty"`
}

type RepositoryOverviewResponse struct {
	Repository *radicle.Repository `json:"repository"`
	Remotes    []radicle.Remote    `json:"remotes"`
	Tree       *TreeResponse       `json:"tree,omitempty"`
}

func FromNode(n tree.Node, depth int) TreeNodeDTO {
	return TreeNodeDTO{
		Path:      n.Entry.Path,
		Name:      n.Entry.Name,
		Kind:      string(n.Entry.Kind),
		ContentID: n.Entry.ContentID,
		Expanded:  n.Expanded,
		State:     n.State.String(),
		Reason:    n.FailureReason,
		Depth:     depth,
	}
}

func FromRows(rows []tree.Row) []TreeNodeDTO {
	out := make([]TreeNodeDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromNode(r.Node, r.Depth))
	}
	return out
}

func FromAccumulator(id string, acc diff.Accumulator) DiffResponse {
	files := acc.Files
	if files == nil {
		files = []radicle.FileDiff{}
	}
	return DiffResponse{
		ID:        id,
		RepoID:    acc.RepoID,
		CommitID:  acc.CommitID,
		Files:     files,
		Stats:     acc.Stats,
		Complete:  acc.Complete,
		Loading:   acc.Loading,
		Pages:     acc.Pages,
		LastError: acc.LastError,
	}
}
