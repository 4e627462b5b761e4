package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/yukpo/yukpo/domain/history"
	"github.com/yukpo/yukpo/domain/repository"
	"github.com/yukpo/yukpo/internal/database"
)

// HistoryStore implements history.Store using GORM.
type HistoryStore struct {
	database.Repository[history.Entry, HistoryModel]
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db database.Database) HistoryStore {
	return HistoryStore{
		Repository: database.NewRepository[history.Entry, HistoryModel](db, HistoryMapper{}, "history entry"),
	}
}

// Append writes an entry, assigning a UUID when it has no ID.
func (s HistoryStore) Append(ctx context.Context, entry history.Entry) error {
	model := s.Mapper().ToModel(entry)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if err := s.DB(ctx).Create(&model).Error; err != nil {
		return database.Wrap("append history", err)
	}
	return nil
}

// Find returns entries matching options, newest first unless an order is given.
func (s HistoryStore) Find(ctx context.Context, options ...repository.Option) ([]history.Entry, error) {
	if len(repository.Build(options...).Orders()) == 0 {
		options = append(options, repository.WithOrderDesc("created_at"))
	}
	return s.Repository.Find(ctx, options...)
}
