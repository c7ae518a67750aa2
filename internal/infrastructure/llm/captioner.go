package llm

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/infrastructure/httpclient"
	"MemeFarm/internal/ports"
)

const (
	maxCaptionRunes = 220
	maxTags         = 15
)

var fallbackHashtags = []string{"desimemes", "indiandank", "relatable", "hindimemes", "meme", "trending"}

// Config defines how to contact an OpenAI-compatible chat completions API.
type Config struct {
	Endpoint     string
	Model        string
	APIKey       string
	SystemPrompt string
}

// Captioner implements ports.Enricher backed by a chat completions endpoint.
type Captioner struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	sanitizer    *bluemonday.Policy
	retries      int
}

var _ ports.Enricher = (*Captioner)(nil)

// NewCaptioner builds a client from configuration; client may be nil.
func NewCaptioner(cfg Config, client *http.Client) *Captioner {
	if client == nil {
		client = httpclient.New(20 * time.Second)
	}
	return &Captioner{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   client,
		sanitizer:    bluemonday.StrictPolicy(),
		retries:      3,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for a caption and hashtags for the item's title.
func (c *Captioner) Generate(ctx context.Context, item domain.Item) (domain.Enrichment, error) {
	if c == nil {
		return domain.Enrichment{}, fmt.Errorf("captioner is nil: %w", domain.ErrUnavailable)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Enrichment{}, fmt.Errorf("captioner misconfigured: %w", domain.ErrUnavailable)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: buildPrompt(item)},
		},
		Temperature: 0.9,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp chatResponse
	err := httpclient.Retry(ctx, c.retries, 500*time.Millisecond, httpclient.IsRetriable, func() error {
		return httpclient.PostJSON(ctx, c.httpClient, c.endpoint, headers, payload, &resp)
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Unauthorized() {
			return domain.Enrichment{}, fmt.Errorf("llm %s: %w", statusErr.Status, domain.ErrUnavailable)
		}
		return domain.Enrichment{}, fmt.Errorf("llm request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Enrichment{}, errors.New("llm returned no choices")
	}

	caption, tags := ParseOutput(resp.Choices[0].Message.Content)
	caption = c.clean(caption)
	if caption == "" {
		return domain.Enrichment{}, domain.ErrEmptyCaption
	}
	if len(tags) == 0 {
		tags = fallbackHashtags
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}

	return domain.Enrichment{CaptionText: caption, Hashtags: tags}, nil
}

// ParseOutput extracts the CAPTION: and HASHTAGS: lines of a model reply.
func ParseOutput(text string) (string, []string) {
	var (
		caption string
		tags    []string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "CAPTION":
			if caption == "" {
				caption = strings.Trim(value, ` *"`)
			}
		case "HASHTAGS":
			if tags == nil {
				tags = domain.NormalizeHashtags([]string{strings.Trim(value, " *")})
			}
		}
	}
	return caption, tags
}

func (c *Captioner) clean(caption string) string {
	caption = html.UnescapeString(c.sanitizer.Sanitize(caption))
	caption = strings.Join(strings.Fields(caption), " ")
	if runes := []rune(caption); len(runes) > maxCaptionRunes {
		caption = strings.TrimSpace(string(runes[:maxCaptionRunes]))
	}
	return caption
}

func buildPrompt(item domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Input meme context/title: %q\n", item.Title)
	if item.SourceName != "" {
		fmt.Fprintf(&b, "Source: %s\n", item.SourceName)
	}
	b.WriteString(`
Tasks:
1) Write a short, witty, relatable caption in Hinglish (avoid offensive slurs). Keep within 120 chars.
2) Provide 10-15 Indian trending hashtags that fit Instagram (no spaces, use #).
3) Avoid quotes and emojis overuse; 1-2 emojis max.

Output format (strict):
CAPTION: <caption text>
HASHTAGS: #tag1 #tag2 #tag3 ...`)
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are an expert Indian meme copywriter for Instagram."
	}
	return prompt
}
