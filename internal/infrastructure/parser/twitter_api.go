package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
)

const (
	twitterAPIBaseURL  = "https://api.twitter.com"
	twitterSourceName  = "twitter"
	minSearchResults   = 10
	maxSearchResults   = 100
	maxTweetTitleRunes = 250
)

// TwitterSource discovers image tweets through the v2 recent search endpoint.
// Each source passed to Fetch is a search query.
type TwitterSource struct {
	client  *http.Client
	baseURL string
}

var _ ports.ContentSource = (*TwitterSource)(nil)

// NewTwitterSource builds a source authenticated with an app bearer token.
func NewTwitterSource(bearerToken, baseURL string, base *http.Client) (*TwitterSource, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, errors.New("twitter api: bearer token is required")
	}
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if baseURL == "" {
		baseURL = twitterAPIBaseURL
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: bearerToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = base.Timeout

	return &TwitterSource{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Fetch runs every query and returns one candidate per attached photo.
func (t *TwitterSource) Fetch(ctx context.Context, queries []string, limit int) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		batch, err := t.search(ctx, q, limit)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (t *TwitterSource) search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	searchURL, err := buildSearchURL(t.baseURL, query, limit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("twitter returned %s: %w", resp.Status, domain.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("twitter returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result tweetSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return result.candidates(), nil
}

type tweetSearch struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Media []tweetMedia `json:"media"`
	} `json:"includes"`
}

type tweet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type tweetMedia struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

func (s tweetSearch) candidates() []domain.Candidate {
	photos := make(map[string]string, len(s.Includes.Media))
	for _, m := range s.Includes.Media {
		if m.Type == "photo" && m.URL != "" {
			photos[m.MediaKey] = m.URL
		}
	}

	var out []domain.Candidate
	for _, tw := range s.Data {
		title := domain.TruncateRunes(strings.TrimSpace(tw.Text), maxTweetTitleRunes)
		for _, key := range tw.Attachments.MediaKeys {
			photoURL, ok := photos[key]
			if !ok {
				continue
			}
			out = append(out, domain.Candidate{
				ID:         "twitter:" + key,
				SourceRef:  photoURL,
				SourceName: twitterSourceName,
				Title:      title,
				MediaType:  domain.MediaImage,
			})
		}
	}
	return out
}

func buildSearchURL(base, query string, limit int) (string, error) {
	parsed, err := url.Parse(base + "/2/tweets/search/recent")
	if err != nil {
		return "", fmt.Errorf("invalid search url: %w", err)
	}

	switch {
	case limit <= 0 || limit > maxSearchResults:
		limit = maxSearchResults
	case limit < minSearchResults:
		limit = minSearchResults
	}
	q := parsed.Query()
	q.Set("query", query)
	q.Set("max_results", strconv.Itoa(limit))
	q.Set("expansions", "attachments.media_keys")
	q.Set("media.fields", "url,type")
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
