package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/infrastructure/httpclient"
	"MemeFarm/internal/ports"
)

const (
	defaultGraphURL = "https://graph.facebook.com/v19.0"
	maxCaptionLen   = 2200
)

// Graph error codes that mean the token or app can no longer publish.
var unavailableCodes = map[int]bool{10: true, 190: true, 200: true}

// Publisher posts photos through the Instagram Graph API content publishing flow.
type Publisher struct {
	graphURL    string
	accessToken string
	client      *http.Client
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers the Graph endpoint and page access token; client may be nil.
func NewPublisher(graphURL, accessToken string, client *http.Client) *Publisher {
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	if client == nil {
		client = httpclient.New(30 * time.Second)
	}
	return &Publisher{
		graphURL:    strings.TrimSuffix(graphURL, "/"),
		accessToken: accessToken,
		client:      client,
	}
}

// GraphError is the error object returned by the Graph API.
type GraphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error %d (%s): %s", e.Code, e.Type, e.Message)
}

type graphReply struct {
	ID    string      `json:"id"`
	Error *GraphError `json:"error"`
}

// Publish creates a media container for sourceRef and publishes it to
// accountRef, returning the published media id.
func (p *Publisher) Publish(ctx context.Context, sourceRef, caption, accountRef string) (string, error) {
	if p.accessToken == "" || accountRef == "" {
		return "", fmt.Errorf("instagram publisher misconfigured: %w", domain.ErrUnavailable)
	}
	if sourceRef == "" {
		return "", errors.New("instagram: empty image url")
	}
	caption = domain.TruncateRunes(caption, maxCaptionLen)

	containerID, err := p.call(ctx, accountRef+"/media", url.Values{
		"image_url": {sourceRef},
		"caption":   {caption},
	})
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	mediaID, err := p.call(ctx, accountRef+"/media_publish", url.Values{
		"creation_id": {containerID},
	})
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	return mediaID, nil
}

func (p *Publisher) call(ctx context.Context, path string, form url.Values) (string, error) {
	form.Set("access_token", p.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.graphURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var reply graphReply
	err = httpclient.Do(p.client, req, &reply)
	if err != nil {
		return "", classify(err)
	}
	if reply.Error != nil {
		return "", classifyGraph(reply.Error)
	}
	if reply.ID == "" {
		return "", errors.New("graph reply without id")
	}
	return reply.ID, nil
}

func classify(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var reply graphReply
	if json.Unmarshal([]byte(statusErr.Body), &reply) == nil && reply.Error != nil {
		return classifyGraph(reply.Error)
	}
	if statusErr.Unauthorized() {
		return fmt.Errorf("%v: %w", err, domain.ErrUnavailable)
	}
	return err
}

func classifyGraph(gerr *GraphError) error {
	if unavailableCodes[gerr.Code] {
		return fmt.Errorf("%w: %w", gerr, domain.ErrUnavailable)
	}
	return gerr
}
