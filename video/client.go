package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com"

// ErrUnknownDuration is returned when a video's length cannot be determined.
var ErrUnknownDuration = errors.New("video duration unknown")

// Client looks up video metadata through the YouTube Data API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures a Client.
type Option func(*Client)

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

// NewClient creates a new YouTube Data API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type videosResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Duration returns a video's length in whole seconds.
func (c *Client) Duration(ctx context.Context, videoID string) (int64, error) {
	if videoID == "" {
		return 0, fmt.Errorf("%w: empty video id", ErrUnknownDuration)
	}
	if c.apiKey == "" {
		return 0, fmt.Errorf("%w: no api key", ErrUnknownDuration)
	}

	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/youtube/v3/videos?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch video %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrUnknownDuration, resp.StatusCode)
	}

	var body videosResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Items) == 0 {
		return 0, fmt.Errorf("%w: video %s not found", ErrUnknownDuration, videoID)
	}

	return ParseISODuration(body.Items[0].ContentDetails.Duration)
}

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO 8601 duration such as "PT1H2M3S" into
// seconds.
func ParseISODuration(s string) (int64, error) {
	m := isoDurationRegex.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrUnknownDuration, s)
	}

	units := []int64{86400, 3600, 60, 1}
	var total int64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid duration %q", ErrUnknownDuration, s)
		}
		total += n * unit
	}
	return total, nil
}
