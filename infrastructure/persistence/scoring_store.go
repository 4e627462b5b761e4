package persistence

import (
	"context"
	"time"

	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/internal/database"
)

// ScoringStore implements scoring.Store using GORM.
type ScoringStore struct {
	db database.Database
}

// NewScoringStore creates a new ScoringStore.
func NewScoringStore(db database.Database) ScoringStore {
	return ScoringStore{db: db}
}

// AddReview stores a review and returns it with its ID.
func (s ScoringStore) AddReview(ctx context.Context, review scoring.Review) (scoring.Review, error) {
	model := reviewToModel(review)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = stamp(time.Now())
	}
	if err := s.db.Session(ctx).Create(&model).Error; err != nil {
		return scoring.Review{}, database.Wrap("add review", err)
	}
	return reviewToDomain(model), nil
}

// AddInteraction stores an interaction and returns it with its ID.
func (s ScoringStore) AddInteraction(ctx context.Context, interaction scoring.Interaction) (scoring.Interaction, error) {
	model := interactionToModel(interaction)
	if model.OccurredAt.IsZero() {
		model.OccurredAt = stamp(time.Now())
	}
	if err := s.db.Session(ctx).Create(&model).Error; err != nil {
		return scoring.Interaction{}, database.Wrap("add interaction", err)
	}
	return interactionToDomain(model), nil
}

// Reviews returns the reviews of a service.
func (s ScoringStore) Reviews(ctx context.Context, serviceID int64) ([]scoring.Review, error) {
	var models []ReviewModel
	if err := s.db.Session(ctx).Where("service_id = ?", serviceID).Order("id").Find(&models).Error; err != nil {
		return nil, database.Wrap("read reviews", err)
	}
	out := make([]scoring.Review, len(models))
	for i, m := range models {
		out[i] = reviewToDomain(m)
	}
	return out, nil
}

// Interactions returns the interactions of a service.
func (s ScoringStore) Interactions(ctx context.Context, serviceID int64) ([]scoring.Interaction, error) {
	var models []InteractionModel
	if err := s.db.Session(ctx).Where("service_id = ?", serviceID).Order("id").Find(&models).Error; err != nil {
		return nil, database.Wrap("read interactions", err)
	}
	out := make([]scoring.Interaction, len(models))
	for i, m := range models {
		out[i] = interactionToDomain(m)
	}
	return out, nil
}

// RecentlyActive returns the distinct services reviewed or contacted since t.
func (s ScoringStore) RecentlyActive(ctx context.Context, since time.Time) ([]int64, error) {
	since = stamp(since)
	var reviewed, contacted []int64
	db := s.db.Session(ctx)
	if err := db.Model(&ReviewModel{}).Where("created_at >= ?", since).Distinct().Pluck("service_id", &reviewed).Error; err != nil {
		return nil, database.Wrap("recent reviews", err)
	}
	if err := db.Model(&InteractionModel{}).Where("occurred_at >= ?", since).Distinct().Pluck("service_id", &contacted).Error; err != nil {
		return nil, database.Wrap("recent interactions", err)
	}

	seen := make(map[int64]struct{}, len(reviewed)+len(contacted))
	var out []int64
	for _, id := range append(reviewed, contacted...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
