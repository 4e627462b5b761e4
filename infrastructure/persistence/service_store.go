package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/repository"
	"github.com/yukpo/yukpo/internal/database"
)

// shortestLifetime bounds the tarissement pre-filter of DueForDeactivation.
const shortestLifetime = 7 * 24 * time.Hour

// ServiceStore implements catalog.ServiceStore using GORM.
type ServiceStore struct {
	database.Repository[catalog.Service, ServiceModel]
}

// NewServiceStore creates a new ServiceStore.
func NewServiceStore(db database.Database) ServiceStore {
	return ServiceStore{
		Repository: database.NewRepository[catalog.Service, ServiceModel](db, ServiceMapper{}, "service"),
	}
}

// Get returns a service by ID.
func (s ServiceStore) Get(ctx context.Context, id int64) (catalog.Service, error) {
	return s.FindOne(ctx, repository.WithID(id))
}

// Save creates the service when it has no ID, otherwise updates it if the
// stored updated_at still equals the one the caller read.
func (s ServiceStore) Save(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	model := s.Mapper().ToModel(svc)

	if svc.ID() == 0 {
		now := stamp(time.Now())
		if model.CreatedAt.IsZero() {
			model.CreatedAt = now
		}
		if model.UpdatedAt.IsZero() {
			model.UpdatedAt = now
		}
		if err := s.DB(ctx).Create(&model).Error; err != nil {
			return catalog.Service{}, database.Wrap("create service", err)
		}
		return s.Mapper().ToDomain(model)
	}

	expected := model.UpdatedAt
	model.UpdatedAt = stamp(time.Now())
	if !model.UpdatedAt.After(expected) {
		model.UpdatedAt = expected.Add(time.Microsecond)
	}

	saved, err := database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (ServiceModel, error) {
		res := tx.Model(&ServiceModel{}).
			Where("id = ? AND updated_at = ?", model.ID, expected).
			Select("*").Omit(append([]string{"id", "created_at"}, embeddingColumns...)...).
			Updates(&model)
		if res.Error != nil {
			return ServiceModel{}, database.Wrap("update service", res.Error)
		}
		if res.RowsAffected > 0 {
			var fresh ServiceModel
			if err := tx.First(&fresh, model.ID).Error; err != nil {
				return ServiceModel{}, database.Wrap("update service", err)
			}
			return fresh, nil
		}
		var n int64
		if err := tx.Model(&ServiceModel{}).Where("id = ?", model.ID).Count(&n).Error; err != nil {
			return ServiceModel{}, database.Wrap("update service", err)
		}
		if n == 0 {
			return ServiceModel{}, fmt.Errorf("update service %d: %w", model.ID, domain.ErrNotFound)
		}
		return ServiceModel{}, fmt.Errorf("update service %d: %w", model.ID, domain.ErrConflict)
	})
	if err != nil {
		return catalog.Service{}, err
	}
	return s.Mapper().ToDomain(saved)
}

// ByIDs returns the active services among ids.
func (s ServiceStore) ByIDs(ctx context.Context, ids []int64) ([]catalog.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, repository.WithIDIn(ids), catalog.WithActive(true))
}

// Delete removes a service.
func (s ServiceStore) Delete(ctx context.Context, id int64) error {
	res := s.DB(ctx).Delete(&ServiceModel{}, id)
	if res.Error != nil {
		return database.Wrap("delete service", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete service %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetActive flips the active flag.
func (s ServiceStore) SetActive(ctx context.Context, id int64, active bool) error {
	return s.updateColumns(ctx, id, "set active", map[string]any{"is_active": active})
}

// embeddingColumns are written by UpdateEmbeddingStatus only, so an owner
// update built from an older read never rewinds an indexing outcome.
var embeddingColumns = []string{
	"embedding_status",
	"embedding_error",
	"embedding_last_attempt",
	"embedding_attempts",
}

// UpdateEmbeddingStatus writes the embedding status columns only.
func (s ServiceStore) UpdateEmbeddingStatus(ctx context.Context, svc catalog.Service) error {
	return s.updateColumns(ctx, svc.ID(), "update embedding status", map[string]any{
		"embedding_status":       string(svc.EmbeddingStatus()),
		"embedding_error":        svc.EmbeddingError(),
		"embedding_last_attempt": stampPtr(svc.EmbeddingLastAttempt()),
		"embedding_attempts":     svc.EmbeddingAttempts(),
	})
}

// MarkAlerted records an owner alert.
func (s ServiceStore) MarkAlerted(ctx context.Context, id int64, at time.Time) error {
	return s.updateColumns(ctx, id, "mark alerted", map[string]any{"last_alert_at": stamp(at)})
}

func (s ServiceStore) updateColumns(ctx context.Context, id int64, op string, cols map[string]any) error {
	res := s.DB(ctx).Model(&ServiceModel{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return database.Wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", op, id, domain.ErrNotFound)
	}
	return nil
}

// DueForDeactivation returns active services past their deadline at now.
// SQL narrows the candidates; the domain rule decides.
func (s ServiceStore) DueForDeactivation(ctx context.Context, now time.Time) ([]catalog.Service, error) {
	now = stamp(now)
	candidates, err := s.Find(ctx,
		catalog.WithActive(true),
		repository.WithWhere(
			"(auto_deactivate_at <= ? OR (auto_deactivate_at IS NULL AND is_tarissable = ? AND (updated_at <= ? OR last_reactivated_at <= ?)))",
			now, true, now.Add(-shortestLifetime), now.Add(-shortestLifetime),
		),
		repository.WithOrderAsc("id"),
	)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, svc := range candidates {
		if svc.Expired(now) {
			due = append(due, svc)
		}
	}
	return due, nil
}

// NeedingReindex returns failed and retry services, pending services not
// touched since staleBefore, and services stuck in processing since before
// staleBefore.
func (s ServiceStore) NeedingReindex(ctx context.Context, staleBefore time.Time, limit int) ([]catalog.Service, error) {
	staleBefore = stamp(staleBefore)
	opts := []repository.Option{
		repository.WithWhere(
			"(embedding_status IN ? OR (embedding_status = ? AND updated_at < ?) OR (embedding_status = ? AND (embedding_last_attempt IS NULL OR embedding_last_attempt < ?)))",
			[]string{string(catalog.EmbeddingFailed), string(catalog.EmbeddingRetry)},
			string(catalog.EmbeddingPending), staleBefore,
			string(catalog.EmbeddingProcessing), staleBefore,
		),
		repository.WithOrderAsc("id"),
	}
	if limit > 0 {
		opts = append(opts, repository.WithLimit(limit))
	}
	return s.Find(ctx, opts...)
}

// LogStore implements catalog.LogStore using GORM.
type LogStore struct {
	db database.Database
}

// NewLogStore creates a new LogStore.
func NewLogStore(db database.Database) LogStore {
	return LogStore{db: db}
}

// Append writes one log row.
func (s LogStore) Append(ctx context.Context, entry catalog.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	model := logToModel(entry)
	if err := s.db.Session(ctx).Create(&model).Error; err != nil {
		return database.Wrap("append service log", err)
	}
	return nil
}

// ForService returns the log of a service, oldest first.
func (s LogStore) ForService(ctx context.Context, serviceID int64) ([]catalog.LogEntry, error) {
	var models []ServiceLogModel
	err := s.db.Session(ctx).
		Where("service_id = ?", serviceID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, database.Wrap("read service log", err)
	}
	out := make([]catalog.LogEntry, len(models))
	for i, m := range models {
		out[i] = logToDomain(m)
	}
	return out, nil
}
