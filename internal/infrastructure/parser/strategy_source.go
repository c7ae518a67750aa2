package parser

import (
	"context"
	"fmt"
	"log/slog"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
	"MemeFarm/internal/scanner"
)

// StrategySource implements ContentSource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	listing  string
	logger   *slog.Logger
}

var _ ports.ContentSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured strategy name.
func NewStrategySource(reg *scanner.Registry, strategy, listing string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		listing:  listing,
		logger:   log,
	}
}

// Fetch scans every subreddit with the configured strategy. The first failing
// subreddit aborts the call; callers wanting isolation pass one source at a time.
func (s *StrategySource) Fetch(ctx context.Context, sources []string, limit int) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, err
	}

	s.debug("fetch", "strategy", s.strategy, "sources", len(sources), "limit", limit)

	var aggregated []domain.Candidate
	for _, sub := range sources {
		results, err := strategy.Scan(ctx, scanner.Request{
			Subreddit: sub,
			Listing:   s.listing,
			Limit:     limit,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", subredditName(sub), err)
		}

		for i := range results {
			if results[i].SourceName == "" {
				results[i].SourceName = subredditName(sub)
			}
		}
		s.debug("subreddit produced candidates", "subreddit", sub, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
