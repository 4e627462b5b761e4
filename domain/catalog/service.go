// Package catalog holds the service aggregate: its typed payload, lifecycle
// rules and embedding status.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukpo/yukpo/domain"
)

// EmbeddingStatus tracks the vector index mirror of a service.
type EmbeddingStatus string

// EmbeddingStatus values.
const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingSuccess    EmbeddingStatus = "success"
	EmbeddingFailed     EmbeddingStatus = "failed"
	EmbeddingRetry      EmbeddingStatus = "retry"
)

// NeedsReindex reports whether the sweep should re-drive indexing.
func (s EmbeddingStatus) NeedsReindex() bool {
	return s == EmbeddingPending || s == EmbeddingFailed || s == EmbeddingRetry
}

// ParseEmbeddingStatus converts a stored string to an EmbeddingStatus.
func ParseEmbeddingStatus(s string) (EmbeddingStatus, error) {
	switch EmbeddingStatus(s) {
	case EmbeddingPending, EmbeddingProcessing, EmbeddingSuccess, EmbeddingFailed, EmbeddingRetry:
		return EmbeddingStatus(s), nil
	case "":
		return EmbeddingPending, nil
	default:
		return "", fmt.Errorf("%w: embedding status %q", domain.ErrInvalidInput, s)
	}
}

// ErrInvalidTransition indicates an embedding status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid embedding status transition")

// Service is a catalog entry offered by a user.
type Service struct {
	id                int64
	userID            int64
	payload           Payload
	category          string
	gps               string
	active            bool
	tarissable        bool
	vitesse           Vitesse
	activeDays        int
	autoDeactivateAt  *time.Time
	lastReactivatedAt *time.Time
	lastAlertAt       *time.Time
	embeddingStatus   EmbeddingStatus
	embeddingError    string
	embeddingLastTry  *time.Time
	embeddingAttempts int
	createdAt         time.Time
	updatedAt         time.Time
}

// NewService creates an active, not yet indexed service.
func NewService(userID int64, payload Payload) Service {
	now := time.Now().UTC()
	return Service{
		userID:          userID,
		payload:         payload,
		category:        strings.TrimSpace(payload.Category()),
		active:          true,
		embeddingStatus: EmbeddingPending,
		createdAt:       now,
		updatedAt:       now,
	}
}

// ReconstructService rebuilds a Service from persistence.
func ReconstructService(
	id, userID int64,
	payload Payload,
	category, gps string,
	active, tarissable bool,
	vitesse Vitesse,
	activeDays int,
	autoDeactivateAt, lastReactivatedAt, lastAlertAt *time.Time,
	embeddingStatus EmbeddingStatus,
	embeddingError string,
	embeddingLastTry *time.Time,
	embeddingAttempts int,
	createdAt, updatedAt time.Time,
) Service {
	return Service{
		id:                id,
		userID:            userID,
		payload:           payload,
		category:          category,
		gps:               gps,
		active:            active,
		tarissable:        tarissable,
		vitesse:           vitesse,
		activeDays:        activeDays,
		autoDeactivateAt:  autoDeactivateAt,
		lastReactivatedAt: lastReactivatedAt,
		lastAlertAt:       lastAlertAt,
		embeddingStatus:   embeddingStatus,
		embeddingError:    embeddingError,
		embeddingLastTry:  embeddingLastTry,
		embeddingAttempts: embeddingAttempts,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the service ID.
func (s Service) ID() int64 { return s.id }

// UserID returns the owner user ID.
func (s Service) UserID() int64 { return s.userID }

// Payload returns the typed field record.
func (s Service) Payload() Payload { return s.payload }

// Category returns the category.
func (s Service) Category() string { return s.category }

// GPS returns the raw location ("lon,lat" or a polygon).
func (s Service) GPS() string { return s.gps }

// IsActive reports whether the service is visible to searches.
func (s Service) IsActive() bool { return s.active }

// IsTarissable reports whether the service decays automatically.
func (s Service) IsTarissable() bool { return s.tarissable }

// Vitesse returns the decay speed.
func (s Service) Vitesse() Vitesse { return s.vitesse }

// ActiveDays returns the last reactivation length in days.
func (s Service) ActiveDays() int { return s.activeDays }

// AutoDeactivateAt returns the explicit deactivation deadline, if any.
func (s Service) AutoDeactivateAt() *time.Time { return s.autoDeactivateAt }

// LastReactivatedAt returns the last reactivation time, if any.
func (s Service) LastReactivatedAt() *time.Time { return s.lastReactivatedAt }

// LastAlertAt returns when the owner was last alerted, if ever.
func (s Service) LastAlertAt() *time.Time { return s.lastAlertAt }

// EmbeddingStatus returns the index mirror status.
func (s Service) EmbeddingStatus() EmbeddingStatus { return s.embeddingStatus }

// EmbeddingError returns the last indexing error message.
func (s Service) EmbeddingError() string { return s.embeddingError }

// EmbeddingLastAttempt returns the last indexing attempt time.
func (s Service) EmbeddingLastAttempt() *time.Time { return s.embeddingLastTry }

// EmbeddingAttempts returns how many times indexing was tried.
func (s Service) EmbeddingAttempts() int { return s.embeddingAttempts }

// CreatedAt returns the creation time.
func (s Service) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last content update time. Stores use it as the
// revision for optimistic updates and stamp it on every Save.
func (s Service) UpdatedAt() time.Time { return s.updatedAt }

// Mode returns the exchange mode, empty for a regular service.
func (s Service) Mode() string {
	f, ok := s.payload.Get(FieldMode)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(f.Text()))
}

// IsExchange reports whether the service is a swap or donation listing.
func (s Service) IsExchange() bool { return s.Mode() != "" }

// OwnedBy reports whether userID owns the service.
func (s Service) OwnedBy(userID int64) bool { return userID != 0 && s.userID == userID }

// WithID returns a copy with the ID set.
func (s Service) WithID(id int64) Service {
	s.id = id
	return s
}

// WithPayload returns a copy with a new payload and category.
func (s Service) WithPayload(p Payload) Service {
	s.payload = p
	if c := strings.TrimSpace(p.Category()); c != "" {
		s.category = c
	}
	s.embeddingStatus = EmbeddingPending
	return s
}

// WithGPS returns a copy with the location set.
func (s Service) WithGPS(gps string) Service {
	s.gps = strings.TrimSpace(gps)
	return s
}

// WithTarissement returns a copy with the decay policy set.
func (s Service) WithTarissement(tarissable bool, v Vitesse) Service {
	s.tarissable = tarissable
	s.vitesse = v
	return s
}

// WithAutoDeactivateAt returns a copy with the explicit deadline set.
func (s Service) WithAutoDeactivateAt(t *time.Time) Service {
	s.autoDeactivateAt = t
	return s
}

// WithUpdatedAt returns a copy with the revision timestamp set.
func (s Service) WithUpdatedAt(t time.Time) Service {
	s.updatedAt = t
	return s
}

// Deactivate returns an inactive copy.
func (s Service) Deactivate() Service {
	s.active = false
	return s
}

// Alerted returns a copy recording an owner alert at now.
func (s Service) Alerted(now time.Time) Service {
	s.lastAlertAt = &now
	return s
}

// StartIndexing moves the status to processing and counts the attempt.
func (s Service) StartIndexing(now time.Time) Service {
	s.embeddingStatus = EmbeddingProcessing
	s.embeddingLastTry = &now
	s.embeddingAttempts++
	return s
}

// FinishIndexing records the outcome of an indexing attempt.
func (s Service) FinishIndexing(err error) Service {
	if err == nil {
		s.embeddingStatus = EmbeddingSuccess
		s.embeddingError = ""
		return s
	}
	s.embeddingStatus = EmbeddingFailed
	s.embeddingError = err.Error()
	return s
}

// MarkRetry flags a failed service for another attempt.
func (s Service) MarkRetry() (Service, error) {
	if s.embeddingStatus != EmbeddingFailed {
		return s, fmt.Errorf("%w: %s to retry", ErrInvalidTransition, s.embeddingStatus)
	}
	s.embeddingStatus = EmbeddingRetry
	return s, nil
}

// Validate checks the fields a service needs before it can be stored.
func (s Service) Validate() error {
	if strings.TrimSpace(s.payload.Title()) == "" {
		return fmt.Errorf("%w: service title is required", domain.ErrInvalidInput)
	}
	if s.tarissable && !s.vitesse.Valid() {
		return fmt.Errorf("%w: tarissable service needs vitesse_tarissement", domain.ErrInvalidInput)
	}
	return nil
}
