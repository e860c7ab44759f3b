// Package client implements service.Gateway over the flashcard REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/service"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

const (
	defaultRetries    = 1
	defaultRetryDelay = 200 * time.Millisecond
	defaultTimeout    = 15 * time.Second
)

// Client talks to one API base URL, e.g. "http://localhost:8080".
type Client struct {
	baseURL    string
	token      string
	retries    int
	retryDelay time.Duration
	base       http.RoundTripper
	http       *http.Client
	log        *zap.Logger
}

var _ service.Gateway = (*Client)(nil)

type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetries sets how many times an idempotent request is retried on transient
// failures. 0 disables retries.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = max(n, 0)
		c.retryDelay = delay
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		base:       http.DefaultTransport,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.base
	if c.retries > 0 {
		transport = rehttp.NewTransport(
			c.base,
			rehttp.RetryAll(
				rehttp.RetryMaxRetries(c.retries),
				rehttp.RetryHTTPMethods(http.MethodGet, http.MethodPut, http.MethodDelete),
				rehttp.RetryAny(
					rehttp.RetryTemporaryErr(),
					rehttp.RetryStatuses(http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout),
				),
			),
			rehttp.ConstDelay(c.retryDelay),
		)
	}
	c.http = &http.Client{Transport: transport, Timeout: defaultTimeout}
	return c
}

func (c *Client) List(ctx context.Context, filter models.ListFilter) ([]models.Flashcard, error) {
	path := "/api/flashcards"
	if filter.Category != "" {
		path += "?category=" + url.QueryEscape(filter.Category)
	}
	var out []models.Flashcard
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Flashcard{}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (models.Flashcard, error) {
	var out models.Flashcard
	err := c.do(ctx, http.MethodGet, cardPath(id), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, in models.NewFlashcard) (models.Flashcard, error) {
	var out models.Flashcard
	err := c.do(ctx, http.MethodPost, "/api/flashcards", in, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, patch models.FlashcardPatch) (models.Flashcard, error) {
	var out models.Flashcard
	err := c.do(ctx, http.MethodPut, cardPath(id), patch, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, cardPath(id), nil, nil)
}

func (c *Client) IncrementMastery(ctx context.Context, id string) (models.Flashcard, error) {
	var out models.Flashcard
	err := c.do(ctx, http.MethodPost, cardPath(id)+"/increment", nil, &out)
	return out, err
}

func (c *Client) ResetMastery(ctx context.Context, id string) (models.Flashcard, error) {
	var out models.Flashcard
	err := c.do(ctx, http.MethodPost, cardPath(id)+"/reset", nil, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	var out []models.CategoryCount
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out)
	return out, err
}

func (c *Client) Statistics(ctx context.Context) (models.StudyStatistics, error) {
	var out models.StudyStatistics
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out)
	return out, err
}

func cardPath(id string) string {
	return "/api/flashcards/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", errs.ErrStorage, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", errs.ErrStorage, err)
	}
	return nil
}

// statusError maps a failed response back onto the error taxonomy.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if body.Error == "" {
		body.Error = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", errs.ErrValidation, body.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errs.ErrNotFound, body.Error)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body.Error)
	default:
		return fmt.Errorf("%w: %s", errs.ErrStorage, body.Error)
	}
}
