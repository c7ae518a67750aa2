package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
)

// ErrAllSourcesFailed is returned when no source could be fetched.
var ErrAllSourcesFailed = errors.New("every content source failed")

// Scrape fetches up to limit candidates per subreddit and stores unseen ones at DISCOVERED.
func (p *Pipeline) Scrape(ctx context.Context, sources []string, limit int) (Report, error) {
	return p.ingest(ctx, "scrape", p.source, cleanSources(sources), limit)
}

// ScrapeTwitter runs each search query against the Twitter source and stores
// unseen photos at DISCOVERED.
func (p *Pipeline) ScrapeTwitter(ctx context.Context, queries []string, limit int) (Report, error) {
	return p.ingest(ctx, "scrape-twitter", p.twitter, cleanQueries(queries), limit)
}

func (p *Pipeline) ingest(ctx context.Context, stage string, source ports.ContentSource, sources []string, limit int) (report Report, err error) {
	report, logger, done, ok, err := p.begin(ctx, stage)
	if err != nil || !ok {
		return report, err
	}
	defer done()
	defer func() { p.finish(ctx, logger, &report, err) }()

	if source == nil {
		return report, fmt.Errorf("%s: content source is not configured", stage)
	}
	if len(sources) == 0 {
		return report, fmt.Errorf("%s: no sources given", stage)
	}

	var (
		candidates []domain.Candidate
		fetchErrs  []error
	)
	for _, src := range sources {
		fetchCtx, cancel := p.collaboratorContext(ctx)
		batch, err := source.Fetch(fetchCtx, []string{src}, limit)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, fmt.Errorf("%s: %w", stage, ctxErr)
			}
			logger.Warn("fetch source failed", "source", src, "error", err)
			report.note("%s: %v", src, err)
			fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		logger.Debug("fetched source", "source", src, "candidates", len(batch))
		candidates = append(candidates, batch...)
	}
	if len(fetchErrs) == len(sources) {
		return report, fmt.Errorf("%s: %w: %w", stage, ErrAllSourcesFailed, errors.Join(fetchErrs...))
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	known, err := p.store.KnownIDs(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("%s: load known ids: %w", stage, err)
	}

	for _, c := range candidates {
		report.Processed++
		switch {
		case c.ID == "" || strings.TrimSpace(c.SourceRef) == "":
			report.Skipped++
			continue
		case known[c.ID]:
			report.Skipped++
			continue
		case !p.supportsMedia(c.MediaType):
			logger.Debug("unsupported media type", "id", c.ID, "media_type", c.MediaType)
			report.Skipped++
			continue
		}

		inserted, err := p.store.Insert(ctx, domain.NewItem(c, p.clock()))
		if err != nil {
			return report, fmt.Errorf("%s: %w", stage, err)
		}
		known[c.ID] = true
		if !inserted {
			report.Skipped++
			continue
		}
		report.Succeeded++
	}

	return report, nil
}

func (p *Pipeline) supportsMedia(mt domain.MediaType) bool {
	for _, allowed := range p.opts.MediaTypes {
		if allowed == mt {
			return true
		}
	}
	return false
}

func cleanSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, raw := range sources {
		for _, part := range strings.Split(raw, ",") {
			src := strings.TrimPrefix(strings.TrimSpace(part), "r/")
			if src == "" {
				continue
			}
			key := strings.ToLower(src)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

func cleanQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
