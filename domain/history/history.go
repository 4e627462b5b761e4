// Package history records IA interactions, feedback and user actions.
package history

import (
	"context"
	"time"

	"github.com/yukpo/yukpo/domain/repository"
)

// EventType classifies a history entry.
type EventType string

// EventType values.
const (
	EventRequest  EventType = "ia_request"
	EventMatch    EventType = "match"
	EventFeedback EventType = "feedback"
	EventAction   EventType = "user_action"
)

// Entry is one append-only history record.
type Entry struct {
	id        string
	userID    int64
	serviceID int64
	eventType EventType
	intent    string
	input     string
	response  string
	model     string
	tokens    int
	createdAt time.Time
}

// NewEntry creates an entry with the given id.
func NewEntry(id string, userID int64, eventType EventType) Entry {
	return Entry{id: id, userID: userID, eventType: eventType, createdAt: time.Now().UTC()}
}

// ReconstructEntry rebuilds an Entry from persistence.
func ReconstructEntry(
	id string,
	userID, serviceID int64,
	eventType EventType,
	intent, input, response, model string,
	tokens int,
	createdAt time.Time,
) Entry {
	return Entry{
		id:        id,
		userID:    userID,
		serviceID: serviceID,
		eventType: eventType,
		intent:    intent,
		input:     input,
		response:  response,
		model:     model,
		tokens:    tokens,
		createdAt: createdAt,
	}
}

// ID returns the entry id.
func (e Entry) ID() string { return e.id }

// UserID returns the acting user, 0 when anonymous.
func (e Entry) UserID() int64 { return e.userID }

// ServiceID returns the related service, 0 when none.
func (e Entry) ServiceID() int64 { return e.serviceID }

// EventType returns the event classification.
func (e Entry) EventType() EventType { return e.eventType }

// Intent returns the classified intent.
func (e Entry) Intent() string { return e.intent }

// Input returns the user input.
func (e Entry) Input() string { return e.input }

// Response returns the produced response.
func (e Entry) Response() string { return e.response }

// Model returns the model that produced the response.
func (e Entry) Model() string { return e.model }

// Tokens returns the tokens consumed.
func (e Entry) Tokens() int { return e.tokens }

// CreatedAt returns the creation time.
func (e Entry) CreatedAt() time.Time { return e.createdAt }

// WithService returns a copy related to a service.
func (e Entry) WithService(id int64) Entry {
	e.serviceID = id
	return e
}

// WithExchange returns a copy carrying the request and its outcome.
func (e Entry) WithExchange(intent, input, response, model string, tokens int) Entry {
	e.intent = intent
	e.input = input
	e.response = response
	e.model = model
	e.tokens = tokens
	return e
}

// WithEventType filters by the "event_type" column.
func WithEventType(t EventType) repository.Option {
	return repository.WithCondition("event_type", string(t))
}

// WithServiceID filters by the "service_id" column.
func WithServiceID(id int64) repository.Option {
	return repository.WithCondition("service_id", id)
}

// Store appends and reads history entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Find(ctx context.Context, options ...repository.Option) ([]Entry, error)
}
