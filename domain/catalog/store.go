package catalog

import (
	"context"
	"time"

	"github.com/yukpo/yukpo/domain/repository"
)

// ServiceStore persists services and their embedding status.
type ServiceStore interface {
	repository.Store[Service]

	// Get returns a service by ID regardless of its active flag.
	Get(ctx context.Context, id int64) (Service, error)

	// Save creates a service when its ID is zero, otherwise updates it if the
	// stored revision still matches. A stale revision yields domain.ErrConflict.
	Save(ctx context.Context, service Service) (Service, error)

	// ByIDs returns the active services among ids in a single read.
	ByIDs(ctx context.Context, ids []int64) ([]Service, error)

	// Delete removes a service.
	Delete(ctx context.Context, id int64) error

	// SetActive flips the active flag without touching the revision check.
	SetActive(ctx context.Context, id int64, active bool) error

	// UpdateEmbeddingStatus writes only the embedding status columns.
	UpdateEmbeddingStatus(ctx context.Context, service Service) error

	// DueForDeactivation returns active services whose deadline is at or before now.
	DueForDeactivation(ctx context.Context, now time.Time) ([]Service, error)

	// NeedingReindex returns services whose index mirror must be rebuilt,
	// including those stuck in processing since before staleBefore.
	NeedingReindex(ctx context.Context, staleBefore time.Time, limit int) ([]Service, error)

	// MarkAlerted records an owner alert.
	MarkAlerted(ctx context.Context, id int64, at time.Time) error
}

// LogEvent names a lifecycle event recorded in the service log.
type LogEvent string

// LogEvent values.
const (
	LogCreated       LogEvent = "created"
	LogUpdated       LogEvent = "updated"
	LogDeactivated   LogEvent = "deactivated"
	LogAutoExpired   LogEvent = "auto_deactivated"
	LogReactivated   LogEvent = "reactivated"
	LogDeleted       LogEvent = "deleted"
	LogAlertSent     LogEvent = "alert_sent"
	LogIndexFailed   LogEvent = "index_failed"
	LogIndexComplete LogEvent = "index_success"
)

// LogEntry is an append-only service log row.
type LogEntry struct {
	ID           int64
	ServiceID    int64
	UserID       int64
	Modification LogEvent
	Detail       string
	CreatedAt    time.Time
}

// NewLogEntry creates a log entry stamped now.
func NewLogEntry(serviceID, userID int64, event LogEvent, detail string) LogEntry {
	return LogEntry{
		ServiceID:    serviceID,
		UserID:       userID,
		Modification: event,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	}
}

// LogStore appends lifecycle events.
type LogStore interface {
	Append(ctx context.Context, entry LogEntry) error
	ForService(ctx context.Context, serviceID int64) ([]LogEntry, error)
}
