package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/internal/log"
)

// Scorer materializes interaction scores and keeps them fresh.
type Scorer struct {
	store    scoring.Store
	cache    scoring.Cache
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewScorer creates a Scorer. interval is the background refresh period;
// Refresh recomputes services active within the last two periods.
func NewScorer(store scoring.Store, cache scoring.Cache, interval time.Duration, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:    store,
		cache:    cache,
		interval: interval,
		logger:   log.OrDefault(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Score returns the cached score of a service, computing it on a miss.
func (s *Scorer) Score(ctx context.Context, serviceID int64) (scoring.Score, error) {
	if score, ok := s.cache.Get(ctx, serviceID); ok {
		return score, nil
	}
	return s.Recompute(ctx, serviceID)
}

// Scores returns the score value of each id. Failures count as zero.
func (s *Scorer) Scores(ctx context.Context, ids []int64) map[int64]float64 {
	values := make(map[int64]float64, len(ids))
	for _, id := range ids {
		score, err := s.Score(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "interaction score unavailable",
				slog.Int64("service_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		values[id] = score.Value
	}
	return values
}

// Recompute reads the inputs of a score and refreshes the cache.
func (s *Scorer) Recompute(ctx context.Context, serviceID int64) (scoring.Score, error) {
	reviews, err := s.store.Reviews(ctx, serviceID)
	if err != nil {
		return scoring.Score{}, fmt.Errorf("load reviews of service %d: %w", serviceID, err)
	}
	interactions, err := s.store.Interactions(ctx, serviceID)
	if err != nil {
		return scoring.Score{}, fmt.Errorf("load interactions of service %d: %w", serviceID, err)
	}
	score := scoring.Compute(serviceID, reviews, interactions, s.now())
	s.cache.Set(ctx, score)
	return score, nil
}

// RecordReview stores a review and returns the updated score.
func (s *Scorer) RecordReview(ctx context.Context, serviceID, userID int64, rating int, comment string) (scoring.Score, error) {
	review, err := scoring.NewReview(serviceID, userID, rating, comment)
	if err != nil {
		return scoring.Score{}, err
	}
	if _, err := s.store.AddReview(ctx, review); err != nil {
		return scoring.Score{}, fmt.Errorf("add review: %w", err)
	}
	s.cache.Delete(ctx, serviceID)
	return s.Recompute(ctx, serviceID)
}

// RecordInteraction stores a contact event and returns the updated score.
func (s *Scorer) RecordInteraction(ctx context.Context, interaction scoring.Interaction) (scoring.Score, error) {
	if !interaction.Kind.Valid() {
		return scoring.Score{}, fmt.Errorf("%w: interaction kind %q", domain.ErrInvalidInput, interaction.Kind)
	}
	if interaction.OccurredAt.IsZero() {
		interaction.OccurredAt = s.now()
	}
	if _, err := s.store.AddInteraction(ctx, interaction); err != nil {
		return scoring.Score{}, fmt.Errorf("add interaction: %w", err)
	}
	s.cache.Delete(ctx, interaction.ServiceID)
	return s.Recompute(ctx, interaction.ServiceID)
}

// Refresh recomputes the scores of recently active services and returns
// how many were refreshed.
func (s *Scorer) Refresh(ctx context.Context) (int, error) {
	since := s.now().Add(-2 * s.interval)
	ids, err := s.store.RecentlyActive(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list recently active services: %w", err)
	}
	refreshed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.Recompute(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "score refresh failed", slog.Int64("service_id", id), slog.String("error", err.Error()))
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		s.logger.InfoContext(ctx, "scores refreshed", slog.Int("services", refreshed))
	}
	return refreshed, nil
}
