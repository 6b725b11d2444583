package radicle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/tracing"
)

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 4096
)

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL      string // e.g. https://seed.radicle.garden/api/v1
	Timeout      time.Duration
	DiffPageSize int
	UserAgent    string
}

// HTTPClient implements Client against a radicle-httpd seed node.
type HTTPClient struct {
	baseURL    string
	pageSize   int
	userAgent  string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPClient creates a new seed node client.
func NewHTTPClient(cfg HTTPClientConfig, log *logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:  cfg.DiffPageSize,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithFields(zap.String("component", "radicle-http")),
	}
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (c *HTTPClient) ListDirectory(ctx context.Context, repoID, revision, path string) ([]Entry, error) {
	const op = "list directory"
	endpoint := fmt.Sprintf("/repos/%s/tree/%s/", url.PathEscape(repoID), url.PathEscape(revision))
	if path != "" {
		endpoint += escapePath(path)
	}
	var resp TreeResponse
	if err := c.get(ctx, op, repoID, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ToEntries(), nil
}

func (c *HTTPClient) GetDiffPage(ctx context.Context, repoID, commitID, pageToken string) (*DiffPage, error) {
	const op = "get diff page"
	query := url.Values{}
	if pageToken != "" {
		query.Set("page", pageToken)
	}
	if c.pageSize > 0 {
		query.Set("perPage", strconv.Itoa(c.pageSize))
	}
	endpoint := fmt.Sprintf("/repos/%s/commits/%s", url.PathEscape(repoID), url.PathEscape(commitID))
	var resp CommitResponse
	if err := c.get(ctx, op, repoID, endpoint, query, &resp); err != nil {
		return nil, err
	}
	if pageToken != "" && resp.NextPageToken == pageToken {
		return nil, NewMalformedError(op, fmt.Errorf("server returned the requested page token %q as next", pageToken))
	}
	return resp.ToDiffPage(), nil
}

func (c *HTTPClient) ListRepositories(ctx context.Context) ([]Repository, error) {
	var raw []WireRepository
	query := url.Values{"show": []string{"all"}}
	if err := c.get(ctx, "list repositories", "", "/repos", query, &raw); err != nil {
		return nil, err
	}
	repos := make([]Repository, len(raw))
	for i, r := range raw {
		repos[i] = r.ToRepository()
	}
	return repos, nil
}

func (c *HTTPClient) GetRepository(ctx context.Context, repoID string) (*Repository, error) {
	var raw WireRepository
	if err := c.get(ctx, "get repository", repoID, "/repos/"+url.PathEscape(repoID), nil, &raw); err != nil {
		return nil, err
	}
	repo := raw.ToRepository()
	return &repo, nil
}

func (c *HTTPClient) ListRemotes(ctx context.Context, repoID string) ([]Remote, error) {
	var remotes []Remote
	endpoint := fmt.Sprintf("/repos/%s/remotes", url.PathEscape(repoID))
	if err := c.get(ctx, "list remotes", repoID, endpoint, nil, &remotes); err != nil {
		return nil, err
	}
	return remotes, nil
}

func (c *HTTPClient) ListCommits(ctx context.Context, repoID string) ([]Commit, error) {
	var raw []WireCommit
	endpoint := fmt.Sprintf("/repos/%s/commits", url.PathEscape(repoID))
	if err := c.get(ctx, "list commits", repoID, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	commits := make([]Commit, len(raw))
	for i, wc := range raw {
		commits[i] = wc.ToCommit()
	}
	return commits, nil
}

func (c *HTTPClient) GetCommit(ctx context.Context, repoID, commitID string) (*Commit, error) {
	var resp CommitResponse
	endpoint := fmt.Sprintf("/repos/%s/commits/%s", url.PathEscape(repoID), url.PathEscape(commitID))
	if err := c.get(ctx, "get commit", repoID, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	commit := resp.Commit.ToCommit()
	return &commit, nil
}

func (c *HTTPClient) GetBlob(ctx context.Context, repoID, revision, path string) (*Blob, error) {
	var raw WireBlob
	endpoint := fmt.Sprintf("/repos/%s/blob/%s/%s", url.PathEscape(repoID), url.PathEscape(revision), escapePath(path))
	if err := c.get(ctx, "get blob", repoID, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	blob := raw.ToBlob()
	return &blob, nil
}

func (c *HTTPClient) GetReadme(ctx context.Context, repoID, revision string) (*Blob, error) {
	var raw WireBlob
	endpoint := fmt.Sprintf("/repos/%s/readme/%s", url.PathEscape(repoID), url.PathEscape(revision))
	if err := c.get(ctx, "get readme", repoID, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	blob := raw.ToBlob()
	return &blob, nil
}

func (c *HTTPClient) ListIssues(ctx context.Context, repoID, state string) ([]Issue, error) {
	var raw []WireIssue
	endpoint := fmt.Sprintf("/repos/%s/issues", url.PathEscape(repoID))
	if err := c.get(ctx, "list issues", repoID, endpoint, stateQuery(state), &raw); err != nil {
		return nil, err
	}
	issues := make([]Issue, len(raw))
	for i, wi := range raw {
		issues[i] = wi.ToIssue()
	}
	return issues, nil
}

func (c *HTTPClient) GetIssue(ctx context.Context, repoID, issueID string) (*Issue, error) {
	var raw WireIssue
	endpoint := fmt.Sprintf("/repos/%s/issues/%s", url.PathEscape(repoID), url.PathEscape(issueID))
	if err := c.get(ctx, "get issue", repoID, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	issue := raw.ToIssue()
	return &issue, nil
}

func (c *HTTPClient) ListPatches(ctx context.Context, repoID, state string) ([]Patch, error) {
	var raw []WirePatch
	endpoint := fmt.Sprintf("/repos/%s/patches", url.PathEscape(repoID))
	if err := c.get(ctx, "list patches", repoID, endpoint, stateQuery(state), &raw); err != nil {
		return nil, err
	}
	patches := make([]Patch, len(raw))
	for i, wp := range raw {
		patches[i] = wp.ToPatch()
	}
	return patches, nil
}

func (c *HTTPClient) GetPatch(ctx context.Context, repoID, patchID string) (*Patch, error) {
	var raw WirePatch
	endpoint := fmt.Sprintf("/repos/%s/patches/%s", url.PathEscape(repoID), url.PathEscape(patchID))
	if err := c.get(ctx, "get patch", repoID, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	patch := raw.ToPatch()
	return &patch, nil
}

func (c *HTTPClient) GetNodeInfo(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := c.get(ctx, "get node info", "", "/node", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func stateQuery(state string) url.Values {
	if state == "" {
		return nil
	}
	return url.Values{"state": []string{state}}
}

// get performs a GET against the seed node and decodes the JSON body into
// result. Every failure is returned as a *FetchError.
func (c *HTTPClient) get(ctx context.Context, op, repoID, endpoint string, query url.Values, result interface{}) (err error) {
	ctx, span := tracing.TraceHTTPRequest(ctx, http.MethodGet, endpoint, repoID)
	status := 0
	defer func() {
		tracing.TraceHTTPResponse(span, status, err)
		span.End()
	}()

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if reqErr != nil {
		return NewNetworkError(op, reqErr)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return AsFetchError(op, fmt.Errorf("request %s: %w", endpoint, doErr))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", zap.Error(closeErr))
		}
	}()
	status = resp.StatusCode

	if resp.StatusCode == http.StatusNotFound {
		return NewNotFoundError(op, endpoint)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.WithContext(ctx).Warn("seed node returned error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return NewServerError(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(result); decodeErr != nil {
		return NewMalformedError(op, fmt.Errorf("decode %s: %w", endpoint, decodeErr))
	}
	return nil
}
