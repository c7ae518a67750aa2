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
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/scanner"
)

const (
	redditAPIBaseURL   = "https://oauth.reddit.com"
	redditTokenURL     = "https://www.reddit.com/api/v1/access_token"
	defaultListing     = "hot"
	maxListingLimit    = 100
	defaultHTTPTimeout = 20 * time.Second
)

// RedditAPIConfig configures the app-only OAuth2 listing client.
type RedditAPIConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string
	TokenURL     string
}

// RedditAPIScanner reads subreddit listings from the JSON API.
type RedditAPIScanner struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewRedditAPIScanner builds a scanner authenticated with client credentials.
// base is used for the token exchange and, without credentials, for requests.
func NewRedditAPIScanner(cfg RedditAPIConfig, base *http.Client) (*RedditAPIScanner, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("reddit api: client id and secret are required")
	}
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = redditAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = redditTokenURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "memefarm/1.0"
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(tokenCtx)
	client.Timeout = base.Timeout

	return &RedditAPIScanner{
		client:    client,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
	}, nil
}

// Name identifies the strategy inside the registry.
func (r *RedditAPIScanner) Name() string {
	return "reddit-api"
}

// Scan fetches one listing page and returns non-stickied posts.
func (r *RedditAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(req.Subreddit), "r/")
	if sub == "" {
		return nil, errors.New("reddit api: empty subreddit")
	}

	pageURL, err := buildListingURL(r.baseURL, sub, req.Listing, req.Limit, "")
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", r.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("reddit token exchange: %w: %v", domain.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("reddit returned %s: %w", resp.Status, domain.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reddit returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	return listing.candidates(sub), nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	URL                   string `json:"url"`
	Stickied              bool   `json:"stickied"`
	IsVideo               bool   `json:"is_video"`
	IsGallery             bool   `json:"is_gallery"`
	PostHint              string `json:"post_hint"`
	SubredditNamePrefixed string `json:"subreddit_name_prefixed"`
}

func (l redditListing) candidates(sub string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		post := child.Data
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		if post.Stickied || post.ID == "" || post.URL == "" {
			continue
		}
		source := post.SubredditNamePrefixed
		if source == "" {
			source = subredditName(sub)
		}
		out = append(out, domain.Candidate{
			ID:         candidateID(post.ID),
			SourceRef:  post.URL,
			SourceName: source,
			Title:      strings.TrimSpace(post.Title),
			MediaType:  classifyMedia(post.URL, post.PostHint, post.IsVideo, post.IsGallery),
		})
	}
	return out
}

func buildListingURL(base, sub, listing string, limit int, suffix string) (string, error) {
	if listing == "" {
		listing = defaultListing
	}
	parsed, err := url.Parse(fmt.Sprintf("%s/r/%s/%s%s", strings.TrimSuffix(base, "/"), url.PathEscape(sub), url.PathEscape(listing), suffix))
	if err != nil {
		return "", fmt.Errorf("invalid listing url for r/%s: %w", sub, err)
	}

	if limit <= 0 || limit > maxListingLimit {
		limit = maxListingLimit
	}
	query := parsed.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
