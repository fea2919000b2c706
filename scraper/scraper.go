package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	defaultMaxContentLen = 8000
	maxBodyBytes         = 5 << 20
)

// Scraper extracts classifiable text from web pages and video pages.
type Scraper struct {
	httpClient    *http.Client
	maxContentLen int
	userAgent     string
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithMaxContentLength sets the maximum content length to return, in
// characters.
func WithMaxContentLength(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxContentLen = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		s.httpClient = c
	}
}

// NewScraper creates a new content scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxContentLen: defaultMaxContentLen,
		userAgent:     "Mozilla/5.0 (compatible; interest-profiler/1.0)",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape extracts the readable text of a web page. When readability cannot
// find an article, the visible body text is used instead.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	parsedURL, body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	var content string
	if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil {
		content = collapseSpace(article.TextContent)
	}
	if content == "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("parse content: %w", err)
		}
		doc.Find("script, style, meta, link, noscript").Remove()
		content = collapseSpace(doc.Find("body").Text())
	}

	return s.truncate(content), nil
}

// ScrapeVideo extracts a video page's title and description.
func (s *Scraper) ScrapeVideo(ctx context.Context, rawURL string) (string, error) {
	_, body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse video page: %w", err)
	}

	title, _ := doc.Find(`meta[name="title"]`).Attr("content")
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	description, _ := doc.Find(`meta[name="description"]`).Attr("content")

	title = collapseSpace(title)
	description = collapseSpace(description)
	if title == "" && description == "" {
		return "", nil
	}
	return s.truncate(strings.TrimSpace(title + ". " + description)), nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*url.URL, []byte, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return parsedURL, body, nil
}

func (s *Scraper) truncate(content string) string {
	runes := []rune(content)
	if len(runes) > s.maxContentLen {
		return string(runes[:s.maxContentLen])
	}
	return content
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
