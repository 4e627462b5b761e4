package catalog

import (
	"time"

	"github.com/yukpo/yukpo/domain/repository"
)

// WithActive filters by the "is_active" column.
func WithActive(active bool) repository.Option {
	return repository.WithCondition("is_active", active)
}

// WithCategory filters by the "category" column.
func WithCategory(category string) repository.Option {
	return repository.WithCondition("category", category)
}

// WithEmbeddingStatusIn filters by the "embedding_status" column using IN.
func WithEmbeddingStatusIn(statuses ...EmbeddingStatus) repository.Option {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return repository.WithConditionIn("embedding_status", values)
}

// WithServiceID filters by the "service_id" column.
func WithServiceID(id int64) repository.Option {
	return repository.WithCondition("service_id", id)
}

// WithTarissable filters by the "is_tarissable" column.
func WithTarissable(tarissable bool) repository.Option {
	return repository.WithCondition("is_tarissable", tarissable)
}

// WithCreatedBefore filters rows created at or before t.
func WithCreatedBefore(t time.Time) repository.Option {
	return repository.WithConditionOp("created_at", repository.OpLessThanOrEqual, t)
}
