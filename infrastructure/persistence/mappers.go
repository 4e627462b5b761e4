package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/history"
	"github.com/yukpo/yukpo/domain/scoring"
)

// stamp normalizes a time to what both SQLite and PostgreSQL round-trip
// exactly, so revisions compare equal after a read.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func stampPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := stamp(*t)
	return &v
}

// ServiceMapper maps between catalog.Service and ServiceModel.
type ServiceMapper struct{}

// ToDomain converts a ServiceModel to a catalog.Service.
func (ServiceMapper) ToDomain(m ServiceModel) (catalog.Service, error) {
	var payload catalog.Payload
	if m.Data != "" {
		if err := json.Unmarshal([]byte(m.Data), &payload); err != nil {
			return catalog.Service{}, fmt.Errorf("service %d data: %w", m.ID, err)
		}
	}
	vitesse, err := catalog.ParseVitesse(m.VitesseTarissement)
	if err != nil {
		return catalog.Service{}, fmt.Errorf("service %d: %w", m.ID, err)
	}
	status, err := catalog.ParseEmbeddingStatus(m.EmbeddingStatus)
	if err != nil {
		return catalog.Service{}, fmt.Errorf("service %d: %w", m.ID, err)
	}
	return catalog.ReconstructService(
		m.ID, m.UserID,
		payload,
		m.Category, m.GPS,
		m.IsActive, m.IsTarissable,
		vitesse,
		m.ActiveDays,
		m.AutoDeactivateAt, m.LastReactivatedAt, m.LastAlertAt,
		status,
		m.EmbeddingError,
		m.EmbeddingLastAttempt,
		m.EmbeddingAttempts,
		m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	), nil
}

// ToModel converts a catalog.Service to a ServiceModel. The payload is
// encoded with its JSON marshaller, which cannot fail for decoded values.
func (ServiceMapper) ToModel(s catalog.Service) ServiceModel {
	data, err := json.Marshal(s.Payload())
	if err != nil {
		data = []byte("{}")
	}
	return ServiceModel{
		ID:                   s.ID(),
		UserID:               s.UserID(),
		Data:                 string(data),
		Category:             s.Category(),
		GPS:                  s.GPS(),
		IsActive:             s.IsActive(),
		IsTarissable:         s.IsTarissable(),
		VitesseTarissement:   string(s.Vitesse()),
		ActiveDays:           s.ActiveDays(),
		AutoDeactivateAt:     stampPtr(s.AutoDeactivateAt()),
		LastReactivatedAt:    stampPtr(s.LastReactivatedAt()),
		LastAlertAt:          stampPtr(s.LastAlertAt()),
		EmbeddingStatus:      string(s.EmbeddingStatus()),
		EmbeddingError:       s.EmbeddingError(),
		EmbeddingLastAttempt: stampPtr(s.EmbeddingLastAttempt()),
		EmbeddingAttempts:    s.EmbeddingAttempts(),
		CreatedAt:            stamp(s.CreatedAt()),
		UpdatedAt:            stamp(s.UpdatedAt()),
	}
}

// HistoryMapper maps between history.Entry and HistoryModel.
type HistoryMapper struct{}

// ToDomain converts a HistoryModel to a history.Entry.
func (HistoryMapper) ToDomain(m HistoryModel) (history.Entry, error) {
	return history.ReconstructEntry(
		m.ID,
		m.UserID, m.ServiceID,
		history.EventType(m.EventType),
		m.Intent, m.Input, m.Response, m.Model,
		m.Tokens,
		m.CreatedAt.UTC(),
	), nil
}

// ToModel converts a history.Entry to a HistoryModel.
func (HistoryMapper) ToModel(e history.Entry) HistoryModel {
	return HistoryModel{
		ID:        e.ID(),
		UserID:    e.UserID(),
		ServiceID: e.ServiceID(),
		EventType: string(e.EventType()),
		Intent:    e.Intent(),
		Input:     e.Input(),
		Response:  e.Response(),
		Model:     e.Model(),
		Tokens:    e.Tokens(),
		CreatedAt: stamp(e.CreatedAt()),
	}
}

func logToModel(e catalog.LogEntry) ServiceLogModel {
	return ServiceLogModel{
		ID:           e.ID,
		ServiceID:    e.ServiceID,
		UserID:       e.UserID,
		Modification: string(e.Modification),
		Detail:       e.Detail,
		CreatedAt:    stamp(e.CreatedAt),
	}
}

func logToDomain(m ServiceLogModel) catalog.LogEntry {
	return catalog.LogEntry{
		ID:           m.ID,
		ServiceID:    m.ServiceID,
		UserID:       m.UserID,
		Modification: catalog.LogEvent(m.Modification),
		Detail:       m.Detail,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func reviewToModel(r scoring.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		ServiceID: r.ServiceID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: stamp(r.CreatedAt),
	}
}

func reviewToDomain(m ReviewModel) scoring.Review {
	return scoring.Review{
		ID:        m.ID,
		ServiceID: m.ServiceID,
		UserID:    m.UserID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func interactionToModel(i scoring.Interaction) InteractionModel {
	return InteractionModel{
		ID:          i.ID,
		ServiceID:   i.ServiceID,
		UserID:      i.UserID,
		Kind:        string(i.Kind),
		OccurredAt:  stamp(i.OccurredAt),
		RespondedAt: stampPtr(i.RespondedAt),
	}
}

func interactionToDomain(m InteractionModel) scoring.Interaction {
	return scoring.Interaction{
		ID:          m.ID,
		ServiceID:   m.ServiceID,
		UserID:      m.UserID,
		Kind:        scoring.InteractionKind(m.Kind),
		OccurredAt:  m.OccurredAt.UTC(),
		RespondedAt: m.RespondedAt,
	}
}
