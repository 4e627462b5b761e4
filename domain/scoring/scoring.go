// Package scoring computes the per-service reputation signal consumed by search.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yukpo/yukpo/domain"
)

// Weights of the two components of a score.
const (
	RatingWeight     = 0.7
	PromptnessWeight = 0.3
)

// Review is a 1 to 5 rating left on a service.
type Review struct {
	ID        int64
	ServiceID int64
	UserID    int64
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// NewReview validates and creates a review.
func NewReview(serviceID, userID int64, rating int, comment string) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidInput)
	}
	return Review{
		ServiceID: serviceID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// InteractionKind names a contact between a client and a provider.
type InteractionKind string

// InteractionKind values.
const (
	InteractionMessage InteractionKind = "message"
	InteractionCall    InteractionKind = "call"
	InteractionView    InteractionKind = "view"
)

// Valid reports whether k is known.
func (k InteractionKind) Valid() bool {
	return k == InteractionMessage || k == InteractionCall || k == InteractionView
}

// Interaction is a contact event. RespondedAt is set once the provider answered.
type Interaction struct {
	ID          int64
	ServiceID   int64
	UserID      int64
	Kind        InteractionKind
	OccurredAt  time.Time
	RespondedAt *time.Time
}

// Latency returns the response delay, or false when there was no response.
func (i Interaction) Latency() (time.Duration, bool) {
	if i.RespondedAt == nil || i.RespondedAt.Before(i.OccurredAt) {
		return 0, false
	}
	return i.RespondedAt.Sub(i.OccurredAt), true
}

// Score is the materialized reputation of a service.
type Score struct {
	ServiceID  int64
	Rating     float64
	Promptness float64
	Value      float64
	ComputedAt time.Time
}

// NormalizeRating maps a 1 to 5 mean onto [0,1].
func NormalizeRating(mean float64) float64 {
	return clamp((mean - 1) / 4)
}

// Promptness maps a mean response latency onto [0,1] as 1/hours, capped at 1.
func Promptness(meanLatency time.Duration) float64 {
	hours := meanLatency.Hours()
	if hours <= 0 {
		return 1
	}
	return clamp(1 / hours)
}

// Compute aggregates reviews and interactions into a Score. Missing ratings
// or latency samples contribute zero.
func Compute(serviceID int64, reviews []Review, interactions []Interaction, now time.Time) Score {
	s := Score{ServiceID: serviceID, ComputedAt: now}

	if len(reviews) > 0 {
		var sum float64
		for _, r := range reviews {
			sum += float64(r.Rating)
		}
		s.Rating = NormalizeRating(sum / float64(len(reviews)))
	}

	var total time.Duration
	var samples int
	for _, i := range interactions {
		if d, ok := i.Latency(); ok {
			total += d
			samples++
		}
	}
	if samples > 0 {
		s.Promptness = Promptness(total / time.Duration(samples))
	}

	s.Value = clamp(RatingWeight*s.Rating + PromptnessWeight*s.Promptness)
	return s
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Store persists the inputs of a score.
type Store interface {
	AddReview(ctx context.Context, review Review) (Review, error)
	AddInteraction(ctx context.Context, interaction Interaction) (Interaction, error)
	Reviews(ctx context.Context, serviceID int64) ([]Review, error)
	Interactions(ctx context.Context, serviceID int64) ([]Interaction, error)
	// RecentlyActive returns services with reviews or interactions since t.
	RecentlyActive(ctx context.Context, since time.Time) ([]int64, error)
}

// Cache holds materialized scores.
type Cache interface {
	Get(ctx context.Context, serviceID int64) (Score, bool)
	Set(ctx context.Context, score Score)
	Delete(ctx context.Context, serviceID int64)
}
