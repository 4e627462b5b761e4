package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/repository"
)

// EntityMapper maps between a domain type and its GORM model.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) (D, error)
	ToModel(domain D) E
}

// Repository provides option-driven reads shared by every store. Stores
// embed it and add their own writes.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{
		db:     db,
		mapper: mapper,
		label:  label,
	}
}

// DB returns a GORM session bound to ctx.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx)
}

// Database returns the shared connection.
func (r Repository[D, E]) Database() Database {
	return r.db
}

// Mapper returns the entity mapper.
func (r Repository[D, E]) Mapper() EntityMapper[D, E] {
	return r.mapper
}

// Find retrieves entities matching the given options.
func (r Repository[D, E]) Find(ctx context.Context, options ...repository.Option) ([]D, error) {
	var entities []E
	db := ApplyOptions(r.db.Session(ctx).Model(new(E)), options...)
	if err := db.Find(&entities).Error; err != nil {
		return nil, r.wrap("find", err)
	}
	return r.toDomain(entities)
}

// FindOne retrieves the first entity matching the given options.
func (r Repository[D, E]) FindOne(ctx context.Context, options ...repository.Option) (D, error) {
	var zero D
	var entity E
	db := ApplyOptions(r.db.Session(ctx), options...)
	if err := db.First(&entity).Error; err != nil {
		return zero, r.wrap("find one", err)
	}
	d, err := r.mapper.ToDomain(entity)
	if err != nil {
		return zero, fmt.Errorf("%w: decode %s: %v", domain.ErrCatalog, r.label, err)
	}
	return d, nil
}

// Count returns the number of entities matching the given options.
func (r Repository[D, E]) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	var count int64
	db := ApplyConditions(r.db.Session(ctx).Model(new(E)), options...)
	if err := db.Count(&count).Error; err != nil {
		return 0, r.wrap("count", err)
	}
	return count, nil
}

// Exists checks if any entity matches the given options.
func (r Repository[D, E]) Exists(ctx context.Context, options ...repository.Option) (bool, error) {
	n, err := r.Count(ctx, options...)
	return n > 0, err
}

// DeleteBy removes entities matching the given options.
func (r Repository[D, E]) DeleteBy(ctx context.Context, options ...repository.Option) error {
	db := ApplyConditions(r.db.Session(ctx), options...)
	if err := db.Delete(new(E)).Error; err != nil {
		return r.wrap("delete", err)
	}
	return nil
}

func (r Repository[D, E]) toDomain(entities []E) ([]D, error) {
	out := make([]D, 0, len(entities))
	for _, e := range entities {
		d, err := r.mapper.ToDomain(e)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrCatalog, r.label, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// wrap maps a GORM error onto the domain error kinds.
func (r Repository[D, E]) wrap(op string, err error) error {
	return Wrap(fmt.Sprintf("%s %s", op, r.label), err)
}

// Wrap maps a GORM error onto the domain error kinds: missing rows become
// ErrNotFound and everything else ErrCatalog.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrCatalog, err)
}
