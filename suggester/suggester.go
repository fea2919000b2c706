package suggester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"interest-profiler/profile"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com"
	defaultCount   = 5
)

// Suggester asks a chat model for products matching an interest profile.
type Suggester struct {
	apiKey     string
	model      string
	baseURL    string
	count      int
	httpClient *http.Client
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithModel sets the chat model to use.
func WithModel(model string) Option {
	return func(s *Suggester) {
		s.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(s *Suggester) {
		s.baseURL = url
	}
}

// WithCount sets how many products to ask for.
func WithCount(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.count = n
		}
	}
}

// NewSuggester creates a new chat-completions based suggester.
func NewSuggester(apiKey string, opts ...Option) *Suggester {
	s := &Suggester{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		count:      defaultCount,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns product names focused on the profile's leading interests.
func (s *Suggester) Suggest(ctx context.Context, prof profile.Profile) ([]string, error) {
	if len(prof) == 0 {
		return nil, fmt.Errorf("empty profile")
	}

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(prof, s.count)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	suggestions := parseSuggestions(chatResp.Choices[0].Message.Content)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions in response")
	}
	return suggestions, nil
}

func buildPrompt(prof profile.Profile, count int) string {
	interests := make([]string, len(prof))
	for i, e := range prof {
		interests[i] = fmt.Sprintf("%s: %.2f%%", e.Label, e.Percentage)
	}

	top := prof.Top(profile.TopLabels)
	focus := make([]string, len(top))
	for i, e := range top {
		focus[i] = e.Label
	}

	return fmt.Sprintf(`Suggest %d products focused on the top %d interests (%s) of this interest profile: %s.
Just name them, one per line, no explanation.`,
		count, len(top), strings.Join(focus, ", "), strings.Join(interests, ", "))
}

var listMarkerRegex = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = listMarkerRegex.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), "*")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Chat completions API types

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
