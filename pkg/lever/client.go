// Package lever provides a client for the Lever recruiting API (v1).
package lever

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

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/talent-sync/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.lever.co/v1"
	defaultPageSize = 100
	// maxPostingPages bounds the /postings scan in case the upstream keeps
	// handing out a cursor.
	maxPostingPages = 1000
)

// ErrPostingNotFound is returned by FindPosting when no posting title matches.
var ErrPostingNotFound = eris.New("lever: posting not found")

// Client defines the Lever operations used by the sync. Each method issues
// exactly one logical request; retrying is left to the caller's policy.
type Client interface {
	// ListOpportunities returns one page of opportunities for postingID,
	// starting at cursor ("" for the first page).
	ListOpportunities(ctx context.Context, postingID, cursor string) (*ListResponse, error)
	// GetOpportunity returns the detail record for one opportunity.
	GetOpportunity(ctx context.Context, id string) (*Opportunity, error)
	// FindPosting returns the first posting whose title contains title,
	// compared case-insensitively.
	FindPosting(ctx context.Context, title string) (*Posting, error)
}

// Option configures the Lever client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPageSize sets the list page size (Lever allows 1-100).
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 && n <= defaultPageSize {
			c.pageSize = n
		}
	}
}

// WithRateLimit throttles requests to rps. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithCircuitBreaker routes every request through cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
}

// NewClient creates a new Lever client authenticating with apiKey. Requests
// are throttled to Lever's documented 10 req/s steady-state limit by default.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ListOpportunities(ctx context.Context, postingID, cursor string) (*ListResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if postingID != "" {
		q.Set("posting_id", postingID)
	}
	if cursor != "" {
		q.Set("offset", cursor)
	}

	var out ListResponse
	if err := c.get(ctx, "/opportunities", q, &out); err != nil {
		return nil, eris.Wrap(err, "lever: list opportunities")
	}
	return &out, nil
}

func (c *httpClient) GetOpportunity(ctx context.Context, id string) (*Opportunity, error) {
	var out struct {
		Data Opportunity `json:"data"`
	}
	if err := c.get(ctx, "/opportunities/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, eris.Wrapf(err, "lever: get opportunity %s", id)
	}
	return &out.Data, nil
}

func (c *httpClient) FindPosting(ctx context.Context, title string) (*Posting, error) {
	want := strings.ToLower(strings.TrimSpace(title))
	cursor := ""
	for pages := 0; pages < maxPostingPages; pages++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("offset", cursor)
		}

		var page struct {
			Data    []Posting `json:"data"`
			HasNext bool      `json:"hasNext"`
			Next    string    `json:"next"`
		}
		if err := c.get(ctx, "/postings", q, &page); err != nil {
			return nil, eris.Wrap(err, "lever: list postings")
		}

		for i := range page.Data {
			if strings.Contains(strings.ToLower(page.Data[i].Text), want) {
				return &page.Data[i], nil
			}
		}

		if !page.HasNext || page.Next == "" || page.Next == cursor {
			break
		}
		cursor = page.Next
	}
	return nil, eris.Wrapf(ErrPostingNotFound, "title %q", title)
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	do := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limit")
			}
		}
		return c.doGet(ctx, path, q, out)
	}
	if c.breaker != nil {
		return c.breaker.Execute(ctx, do)
	}
	return do(ctx)
}

func (c *httpClient) doGet(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(err, "http request")
		}
		// Network failures and client timeouts heal on retry.
		return resilience.NewTransientError(eris.Wrap(err, "http request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.ClassifyHTTPStatus("lever", resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
