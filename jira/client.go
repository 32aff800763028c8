package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// PageSize is maxResults for every search request.
	PageSize = 100

	// DefaultTimeout bounds a single request to Jira.
	DefaultTimeout = 30 * time.Second

	searchFields = "summary,description,issuetype,status,priority,created,updated,duedate,customfield_10016"
)

// Client calls the Jira REST API. Credentials are passed per call so one
// client can serve several Jira sites.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	Timeout time.Duration
	Log     *zap.Logger
}

// NewClient returns a client limited to rps requests per second.
func NewClient(log *zap.Logger, rps float64) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		HTTP:    &http.Client{},
		Limiter: rate.NewLimiter(rate.Limit(rps), 5),
		Timeout: DefaultTimeout,
		Log:     log,
	}
}

// ListProjects returns every project visible to the credentials.
func (c *Client) ListProjects(ctx context.Context, creds Credentials) ([]Project, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	var projects []Project
	if err := c.get(ctx, creds, creds.baseURL()+"/rest/api/3/project", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// SearchIssues runs jql and follows pagination until a page comes back
// empty or startAt+maxResults reaches the reported total.
func (c *Client) SearchIssues(ctx context.Context, creds Credentials, jql string) ([]Issue, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var all []Issue
	for startAt := 0; ; startAt += PageSize {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(PageSize))
		q.Set("fields", searchFields)

		var page searchPage
		if err := c.get(ctx, creds, creds.baseURL()+"/rest/api/3/search/jql?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		c.Log.Debug("jira search page",
			zap.Int("start_at", startAt),
			zap.Int("received", len(page.Issues)),
			zap.Int("total", page.Total))

		if len(page.Issues) == 0 {
			break
		}
		all = append(all, page.Issues...)
		if page.StartAt+page.MaxResults >= page.Total {
			break
		}
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, creds Credentials, rawURL string, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("jira rate limit: %w", err)
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build jira request: %w", err)
	}
	req.SetBasicAuth(creds.Email, creds.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timeout connecting to Jira after %s: %w", timeout, err)
		}
		return fmt.Errorf("jira request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.Log.Warn("jira request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}
