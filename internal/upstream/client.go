package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/model"
)

const (
	readingsPath   = "/new-reading"
	summaryPath    = "/summary"
	predictionPath = "/predict"

	maxBodySize     = 4 << 20
	maxErrorBodyLen = 256
)

// ErrNoData is returned when the upstream answered successfully with
// nothing to apply.
var ErrNoData = model.ErrNoData

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the sensor automation service.
type Client struct {
	log          *slog.Logger
	baseURL      string
	summaryLimit int
	client       *http.Client
}

func New(log *slog.Logger, baseURL string, timeout time.Duration, summaryLimit int) *Client {
	return &Client{
		log:          log,
		baseURL:      strings.TrimRight(baseURL, "/"),
		summaryLimit: summaryLimit,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string {
	return "sensor_api"
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) FetchReadings(ctx context.Context) ([]model.Reading, error) {
	body, err := c.do(ctx, http.MethodGet, readingsPath, nil)
	if err != nil {
		return nil, err
	}
	return model.ParseReadings(body)
}

func (c *Client) FetchSummary(ctx context.Context) ([]model.SummaryEntry, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.summaryLimit))

	body, err := c.do(ctx, http.MethodGet, summaryPath, query)
	if err != nil {
		return nil, err
	}
	return model.ParseSummary(body)
}

// FetchPrediction returns nil when the service answers null.
func (c *Client) FetchPrediction(ctx context.Context) (*model.Prediction, error) {
	body, err := c.do(ctx, http.MethodPost, predictionPath, nil)
	if err != nil {
		return nil, err
	}
	return model.ParsePrediction(body)
}

// Health treats anything below 500 as reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug("upstream response",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBodyLen {
			snippet = snippet[:maxErrorBodyLen]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet}
	}

	return body, nil
}
