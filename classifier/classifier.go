package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	defaultModel   = "facebook/bart-large-mnli"
	defaultBaseURL = "https://api-inference.huggingface.co"
)

// ErrMalformedResponse is returned when the response body is not a
// classification result. Label and score arrays are returned as received.
var ErrMalformedResponse = errors.New("malformed classifier response")

// Result holds the zero-shot scores, parallel by index. Callers check that
// the arrays line up.
type Result struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// Client calls a hosted zero-shot classification model.
type Client struct {
	apiToken   string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    uint64
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model to use.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit caps requests per second. Zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetries sets how many times a loading or throttled model is retried,
// and the initial backoff between attempts.
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(c *Client) {
		if backoff <= 0 {
			backoff = time.Millisecond
		}
		c.retries = n
		c.backoff = backoff
	}
}

// NewClient creates a new classifier client.
func NewClient(apiToken string, opts ...Option) *Client {
	c := &Client{
		apiToken:   apiToken,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		retries:    3,
		backoff:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Classify scores content against the candidate labels.
func (c *Client) Classify(ctx context.Context, content string, labels []string) (*Result, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no candidate labels")
	}

	bodyBytes, err := json.Marshal(request{
		Inputs:     content,
		Parameters: parameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var result *Result
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		r, err := c.post(ctx, bodyBytes)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*Result, error) {
	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.RetryableError(statusError(resp.StatusCode, data))
	case resp.StatusCode != http.StatusOK:
		return nil, statusError(resp.StatusCode, data)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

func statusError(code int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("unexpected status: %d: %s", code, e.Error)
	}
	return fmt.Errorf("unexpected status: %d", code)
}
