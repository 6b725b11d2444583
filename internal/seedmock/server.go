// Package seedmock serves a radicle.Client through the radicle-httpd routes
// the HTTP client reads from. It backs local development and end-to-end tests
// with a YAML fixture instead of a live seed node.
package seedmock

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

type server struct {
	client radicle.Client
	logger *logger.Logger
}

// RegisterRoutes mounts the seed node API under /api/v1.
func RegisterRoutes(router *gin.Engine, client radicle.Client, log *logger.Logger) {
	s := &server{client: client, logger: log.WithFields(zap.String("component", "seed-mock"))}
	api := router.Group("/api/v1")

	api.GET("/node", s.httpNodeInfo)
	api.GET("/repos", s.httpListRepositories)
	api.GET("/repos/:rid", s.httpGetRepository)
	api.GET("/repos/:rid/remotes", s.httpListRemotes)
	api.GET("/repos/:rid/commits", s.httpListCommits)
	api.GET("/repos/:rid/commits/:commit", s.httpGetCommit)
	api.GET("/repos/:rid/tree/:rev/*path", s.httpTree)
	api.GET("/repos/:rid/blob/:rev/*path", s.httpBlob)
	api.GET("/repos/:rid/readme/:rev", s.httpReadme)
	api.GET("/repos/:rid/issues", s.httpListIssues)
	api.GET("/repos/:rid/issues/:id", s.httpGetIssue)
	api.GET("/repos/:rid/patches", s.httpListPatches)
	api.GET("/repos/:rid/patches/:id", s.httpGetPatch)
}

// writeError answers with the status a seed node would use for err.
func (s *server) writeError(c *gin.Context, err error) {
	var fe *radicle.FetchError
	if !errors.As(err, &fe) {
		s.logger.Error("unexpected error", zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	switch {
	case fe.Kind == radicle.ErrKindNotFound:
		c.String(http.StatusNotFound, fe.Reason)
	case fe.Status >= 400:
		c.String(fe.Status, fe.Reason)
	default:
		c.String(http.StatusBadGateway, fe.Reason)
	}
}

func trimPath(c *gin.Context) string {
	return strings.Trim(c.Param("path"), "/")
}

func (s *server) httpNodeInfo(c *gin.Context) {
	info, err := s.client.GetNodeInfo(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *server) httpListRepositories(c *gin.Context) {
	repos, err := s.client.ListRepositories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]radicle.WireRepository, len(repos))
	for i, r := range repos {
		out[i] = radicle.NewWireRepository(r)
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) httpGetRepository(c *gin.Context) {
	repo, err := s.client.GetRepository(c.Request.Context(), c.Param("rid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewWireRepository(*repo))
}

func (s *server) httpListRemotes(c *gin.Context) {
	remotes, err := s.client.ListRemotes(c.Request.Context(), c.Param("rid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if remotes == nil {
		remotes = []radicle.Remote{}
	}
	c.JSON(http.StatusOK, remotes)
}

func (s *server) httpListCommits(c *gin.Context) {
	commits, err := s.client.ListCommits(c.Request.Context(), c.Param("rid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]radicle.WireCommit, len(commits))
	for i, commit := range commits {
		out[i] = radicle.NewWireCommit(commit)
	}
	c.JSON(http.StatusOK, out)
}

// httpGetCommit returns the commit with one page of its diff. The page query
// parameter carries the continuation token; perPage is fixed by the fixture.
func (s *server) httpGetCommit(c *gin.Context) {
	ctx := c.Request.Context()
	rid, commitID := c.Param("rid"), c.Param("commit")

	page, err := s.client.GetDiffPage(ctx, rid, commitID, c.Query("page"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	commit, err := s.client.GetCommit(ctx, rid, commitID)
	if err != nil {
		if !radicle.IsNotFound(err) {
			s.writeError(c, err)
			return
		}
		commit = &radicle.Commit{ID: commitID}
	}
	c.JSON(http.StatusOK, radicle.NewCommitResponse(*commit, page))
}

func (s *server) httpTree(c *gin.Context) {
	dir := trimPath(c)
	entries, err := s.client.ListDirectory(c.Request.Context(), c.Param("rid"), c.Param("rev"), dir)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewTreeResponse(dir, entries))
}

func (s *server) httpBlob(c *gin.Context) {
	blob, err := s.client.GetBlob(c.Request.Context(), c.Param("rid"), c.Param("rev"), trimPath(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewWireBlob(*blob))
}

func (s *server) httpReadme(c *gin.Context) {
	blob, err := s.client.GetReadme(c.Request.Context(), c.Param("rid"), c.Param("rev"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewWireBlob(*blob))
}

func (s *server) httpListIssues(c *gin.Context) {
	issues, err := s.client.ListIssues(c.Request.Context(), c.Param("rid"), c.Query("state"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]radicle.WireIssue, len(issues))
	for i, issue := range issues {
		out[i] = radicle.NewWireIssue(issue)
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) httpGetIssue(c *gin.Context) {
	issue, err := s.client.GetIssue(c.Request.Context(), c.Param("rid"), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewWireIssue(*issue))
}

func (s *server) httpListPatches(c *gin.Context) {
	patches, err := s.client.ListPatches(c.Request.Context(), c.Param("rid"), c.Query("state"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]radicle.WirePatch, len(patches))
	for i, patch := range patches {
		out[i] = radicle.NewWirePatch(patch)
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) httpGetPatch(c *gin.Context) {
	patch, err := s.client.GetPatch(c.Request.Context(), c.Param("rid"), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, radicle.NewWirePatch(*patch))
}
