package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/browser/controller"
	"github.com/bordumb/RadicleApp/internal/browser/dto"
	"github.com/bordumb/RadicleApp/internal/browser/service"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/diff"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/tree"
)

type Handlers struct {
	controller *controller.Controller
	logger     *logger.Logger
}

func NewHandlers(ctrl *controller.Controller, log *logger.Logger) *Handlers {
	return &Handlers{
		controller: ctrl,
		logger:     log.WithFields(zap.String("component", "browser-handlers")),
	}
}

func RegisterRoutes(router *gin.Engine, ctrl *controller.Controller, log *logger.Logger) {
	h := NewHandlers(ctrl, log)
	api := router.Group("/api/v1")

	api.POST("/trees", h.httpOpenTree)
	api.GET("/trees/:id", h.httpGetTree)
	api.POST("/trees/:id/toggle", h.httpToggleTree)
	api.POST("/trees/:id/retry", h.httpRetryTree)
	api.DELETE("/trees/:id", h.httpCloseTree)

	api.POST("/diffs", h.httpOpenDiff)
	api.GET("/diffs/:id", h.httpGetDiff)
	api.POST("/diffs/:id/more", h.httpLoadMoreDiff)
	api.DELETE("/diffs/:id", h.httpCloseDiff)

	api.GET("/repos", h.httpListRepositories)
	api.GET("/repos/:rid", h.httpOpenRepository)
	api.GET("/repos/:rid/commits", h.httpListCommits)
	api.GET("/repos/:rid/commits/:oid", h.httpGetCommit)
	api.GET("/repos/:rid/readme/:rev", h.httpGetReadme)
	api.GET("/repos/:rid/issues", h.httpListIssues)
	api.GET("/repos/:rid/issues/:id", h.httpGetIssue)
	api.GET("/repos/:rid/patches", h.httpListPatches)
	api.GET("/repos/:rid/patches/:id", h.httpGetPatch)
	api.GET("/repos/:rid/blob/:rev/*path", h.httpGetBlob)
	api.GET("/node", h.httpGetNodeInfo)
}

// writeError maps service, store and fetch errors onto HTTP statuses.
func (h *Handlers) writeError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	var fe *radicle.FetchError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, tree.ErrNodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tree.ErrStoreClosed), errors.Is(err, diff.ErrDiscarded):
		status = http.StatusGone
	case errors.As(err, &fe):
		switch fe.Kind {
		case radicle.ErrKindNotFound:
			status = http.StatusNotFound
		case radicle.ErrKindCanceled:
			status = http.StatusRequestTimeout
		default:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": msg, "kind": fe.Kind, "reason": fe.Reason})
		return
	}
	if status == http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg, "reason": err.Error()})
}

func (h *Handlers) httpOpenTree(c *gin.Context) {
	var body dto.OpenTreeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.OpenTree(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, "failed to open tree", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) httpGetTree(c *gin.Context) {
	resp, err := h.controller.GetTree(c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get tree", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpToggleTree(c *gin.Context) {
	var body dto.PathRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.ToggleTree(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		h.writeError(c, "failed to toggle tree node", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpRetryTree(c *gin.Context) {
	var body dto.PathRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.RetryTree(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		h.writeError(c, "failed to retry tree node", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpCloseTree(c *gin.Context) {
	if err := h.controller.CloseTree(c.Param("id")); err != nil {
		h.writeError(c, "failed to close tree", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) httpOpenDiff(c *gin.Context) {
	var body dto.OpenDiffRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.OpenDiff(c.Request.Context(), body)
	if err != nil {
		h.writeError(c, "failed to open diff", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) httpGetDiff(c *gin.Context) {
	resp, err := h.controller.GetDiff(c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get diff", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpLoadMoreDiff(c *gin.Context) {
	resp, err := h.controller.LoadMoreDiff(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to load more diff", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpCloseDiff(c *gin.Context) {
	if err := h.controller.CloseDiff(c.Param("id")); err != nil {
		h.writeError(c, "failed to close diff", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) httpListRepositories(c *gin.Context) {
	repos, err := h.controller.ListRepositories(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed to list repositories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

func (h *Handlers) httpOpenRepository(c *gin.Context) {
	resp, err := h.controller.OpenRepository(c.Request.Context(), c.Param("rid"), c.Query("revision"), c.Query("view"))
	if err != nil {
		h.writeError(c, "failed to open repository", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpListCommits(c *gin.Context) {
	commits, err := h.controller.ListCommits(c.Request.Context(), c.Param("rid"))
	if err != nil {
		h.writeError(c, "failed to list commits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commits": commits})
}

func (h *Handlers) httpGetCommit(c *gin.Context) {
	commit, err := h.controller.GetCommit(c.Request.Context(), c.Param("rid"), c.Param("oid"))
	if err != nil {
		h.writeError(c, "failed to get commit", err)
		return
	}
	c.JSON(http.StatusOK, commit)
}

func (h *Handlers) httpGetReadme(c *gin.Context) {
	readme, err := h.controller.GetReadme(c.Request.Context(), c.Param("rid"), c.Param("rev"))
	if err != nil {
		h.writeError(c, "failed to get readme", err)
		return
	}
	c.JSON(http.StatusOK, readme)
}

func (h *Handlers) httpListIssues(c *gin.Context) {
	issues, err := h.controller.ListIssues(c.Request.Context(), c.Param("rid"), c.Query("state"))
	if err != nil {
		h.writeError(c, "failed to list issues", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func (h *Handlers) httpGetIssue(c *gin.Context) {
	issue, err := h.controller.GetIssue(c.Request.Context(), c.Param("rid"), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get issue", err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *Handlers) httpListPatches(c *gin.Context) {
	patches, err := h.controller.ListPatches(c.Request.Context(), c.Param("rid"), c.Query("state"))
	if err != nil {
		h.writeError(c, "failed to list patches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patches": patches})
}

func (h *Handlers) httpGetPatch(c *gin.Context) {
	patch, err := h.controller.GetPatch(c.Request.Context(), c.Param("rid"), c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get patch", err)
		return
	}
	c.JSON(http.StatusOK, patch)
}

func (h *Handlers) httpGetBlob(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	blob, err := h.controller.GetBlob(c.Request.Context(), c.Param("rid"), c.Param("rev"), path)
	if err != nil {
		h.writeError(c, "failed to get blob", err)
		return
	}
	c.JSON(http.StatusOK, blob)
}

func (h *Handlers) httpGetNodeInfo(c *gin.Context) {
	info, err := h.controller.GetNodeInfo(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed to get node info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}
