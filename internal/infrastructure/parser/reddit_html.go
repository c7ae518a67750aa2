package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/scanner"
)

const oldRedditBaseURL = "https://old.reddit.com"

// RedditHTMLScanner parses old.reddit.com listing pages; it needs no credentials.
type RedditHTMLScanner struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewRedditHTMLScanner wires an HTTP client; baseURL defaults to old.reddit.com.
func NewRedditHTMLScanner(client *http.Client, baseURL, userAgent string) *RedditHTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if baseURL == "" {
		baseURL = oldRedditBaseURL
	}
	if userAgent == "" {
		userAgent = "memefarm/1.0"
	}
	return &RedditHTMLScanner{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), userAgent: userAgent}
}

// Name identifies the strategy inside the registry.
func (r *RedditHTMLScanner) Name() string {
	return "reddit-html"
}

// Scan fetches one listing page and extracts non-stickied, non-promoted posts.
func (r *RedditHTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(req.Subreddit), "r/")
	if sub == "" {
		return nil, errors.New("reddit html: empty subreddit")
	}

	pageURL, err := buildListingURL(r.baseURL, sub, req.Listing, req.Limit, "/")
	if err != nil {
		return nil, err
	}

	doc, err := r.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("r/%s: %w", sub, err)
	}

	candidates := extractPosts(doc, sub)
	if req.Limit > 0 && len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	return candidates, nil
}

func (r *RedditHTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("reddit returned %s: %w", resp.Status, domain.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractPosts(doc *goquery.Document, sub string) []domain.Candidate {
	var collected []domain.Candidate
	seen := map[string]struct{}{}

	doc.Find("div.thing[data-fullname]").Each(func(_ int, thing *goquery.Selection) {
		candidate, ok := parseThing(thing, sub)
		if !ok {
			return
		}
		if _, dup := seen[candidate.ID]; dup {
			return
		}
		seen[candidate.ID] = struct{}{}
		collected = append(collected, candidate)
	})

	return collected
}

func parseThing(thing *goquery.Selection, sub string) (domain.Candidate, bool) {
	fullname, _ := thing.Attr("data-fullname")
	if !strings.HasPrefix(fullname, "t3_") {
		return domain.Candidate{}, false
	}
	if thing.HasClass("stickied") || thing.HasClass("promoted") {
		return domain.Candidate{}, false
	}
	if promoted, _ := thing.Attr("data-promoted"); promoted == "true" {
		return domain.Candidate{}, false
	}

	link, _ := thing.Attr("data-url")
	link = strings.TrimSpace(link)
	if link == "" {
		return domain.Candidate{}, false
	}
	if strings.HasPrefix(link, "/") {
		link = "https://www.reddit.com" + link
	}

	title := strings.TrimSpace(thing.Find("a.title").First().Text())

	source, _ := thing.Attr("data-subreddit-prefixed")
	if source == "" {
		source = subredditName(sub)
	}

	isVideo := thing.AttrOr("data-kind", "") == "video"
	isGallery := thing.AttrOr("data-kind", "") == "gallery" || thing.AttrOr("data-is-gallery", "") == "true"

	return domain.Candidate{
		ID:         candidateID(fullname),
		SourceRef:  link,
		SourceName: source,
		Title:      title,
		MediaType:  classifyMedia(link, thing.AttrOr("data-kind", ""), isVideo, isGallery),
	}, true
}
