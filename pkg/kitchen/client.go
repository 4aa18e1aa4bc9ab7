// Package kitchen provides a client for a remote recipe backend speaking the
// costing HTTP API (the same routes the serve command exposes).
package kitchen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/resilience"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = eris.New("kitchen: not found")

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker guarding every request.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// Client talks to a remote recipe backend. It implements the editor's
// backend and the autosave saver and existence checker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("kitchen")
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	return c
}

type linesBody struct {
	Lines []model.LineItem `json:"lines"`
}

type portionsBody struct {
	Portions float64 `json:"portions"`
}

// ListIngredients returns the backend's ingredient catalog.
func (c *Client) ListIngredients(ctx context.Context) ([]model.Ingredient, error) {
	var ings []model.Ingredient
	if err := c.do(ctx, http.MethodGet, "/v1/ingredients", nil, &ings); err != nil {
		return nil, eris.Wrap(err, "kitchen: list ingredients")
	}
	return ings, nil
}

// GetRecipe fetches a recipe.
func (c *Client) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var r model.Recipe
	if err := c.do(ctx, http.MethodGet, recipePath(id, ""), nil, &r); err != nil {
		return nil, eris.Wrapf(err, "kitchen: get recipe %s", id)
	}
	return &r, nil
}

// RecipeExists reports whether the backend knows the recipe.
func (c *Client) RecipeExists(ctx context.Context, id string) (bool, error) {
	err := c.do(ctx, http.MethodGet, recipePath(id, ""), nil, nil)
	if eris.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "kitchen: recipe exists %s", id)
	}
	return true, nil
}

// GetRecipeLines fetches the stored line items of a recipe.
func (c *Client) GetRecipeLines(ctx context.Context, id string) ([]model.LineItem, error) {
	var body linesBody
	if err := c.do(ctx, http.MethodGet, recipePath(id, "/lines"), nil, &body); err != nil {
		return nil, eris.Wrapf(err, "kitchen: get lines %s", id)
	}
	if body.Lines == nil {
		body.Lines = []model.LineItem{}
	}
	return body.Lines, nil
}

// SaveLines replaces the stored line items of a recipe.
func (c *Client) SaveLines(ctx context.Context, id string, items []model.LineItem) error {
	if items == nil {
		items = []model.LineItem{}
	}
	if err := c.do(ctx, http.MethodPut, recipePath(id, "/lines"), linesBody{Lines: items}, nil); err != nil {
		return eris.Wrapf(err, "kitchen: save lines %s", id)
	}
	return nil
}

// UpdatePortions stores a recipe's portion count.
func (c *Client) UpdatePortions(ctx context.Context, id string, portions float64) error {
	if err := c.do(ctx, http.MethodPut, recipePath(id, "/portions"), portionsBody{Portions: portions}, nil); err != nil {
		return eris.Wrapf(err, "kitchen: update portions %s", id)
	}
	return nil
}

// BreakerState exposes the circuit state for status output.
func (c *Client) BreakerState() resilience.CircuitState {
	return c.breaker.State()
}

func recipePath(id, suffix string) string {
	return "/v1/recipes/" + url.PathEscape(id) + suffix
}

// do sends one logical request through the breaker, the retry loop and the
// rate limiter, and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return eris.Wrap(err, "kitchen: marshal request")
		}
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "kitchen: rate limit wait")
			}
			resp, err := c.send(ctx, method, path, payload)
			if err != nil {
				return err
			}
			return resp.decode(out)
		})
	})
}

// reply is a fully read backend response.
type reply struct {
	status     int
	body       []byte
	retryAfter string
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*reply, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrap(err, "kitchen: create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "kitchen: read response body"), resp.StatusCode)
	}
	return &reply{status: resp.StatusCode, body: body, retryAfter: resp.Header.Get("Retry-After")}, nil
}

func (r *reply) decode(out any) error {
	switch {
	case r.status == http.StatusNotFound:
		return ErrNotFound
	case resilience.IsTransientHTTPStatus(r.status):
		return resilience.NewTransientError(eris.Errorf("kitchen: status %d: %s", r.status, truncate(r.body)), r.status).
			WithRetryAfter(r.retryAfter, time.Now())
	case r.status < 200 || r.status > 299:
		return eris.Errorf("kitchen: status %d: %s", r.status, truncate(r.body))
	}
	if out == nil || len(r.body) == 0 {
		return nil
	}
	return eris.Wrap(json.Unmarshal(r.body, out), "kitchen: decode response")
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
