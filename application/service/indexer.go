package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/matching"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/media"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/internal/log"
)

// fieldConcurrency bounds the field sub-jobs of one indexing job.
const fieldConcurrency = 4

// Indexer mirrors catalog services into the vector index. Jobs for one
// service are serialized; jobs for different services run on a bounded
// worker pool.
type Indexer struct {
	services   catalog.ServiceStore
	logs       catalog.LogStore
	index      vector.Index
	translator Translator
	ocr        ImageReader
	pool       *ants.Pool
	locks      *keyedMutex
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	jobs sync.WaitGroup
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexerTranslator translates text fields to English before indexing.
func WithIndexerTranslator(t Translator) IndexerOption {
	return func(x *Indexer) { x.translator = t }
}

// WithIndexerOCR indexes recognized text of image fields as texte_ocr siblings.
func WithIndexerOCR(r ImageReader) IndexerOption {
	return func(x *Indexer) { x.ocr = r }
}

// WithIndexerMetrics records job outcomes.
func WithIndexerMetrics(m *metrics.Metrics) IndexerOption {
	return func(x *Indexer) { x.metrics = m }
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(l *slog.Logger) IndexerOption {
	return func(x *Indexer) { x.logger = log.OrDefault(l) }
}

// NewIndexer creates an Indexer running at most poolSize jobs at once.
func NewIndexer(
	services catalog.ServiceStore,
	logs catalog.LogStore,
	index vector.Index,
	poolSize int,
	opts ...IndexerOption,
) (*Indexer, error) {
	x := &Indexer{
		services: services,
		logs:     logs,
		index:    index,
		locks:    newKeyedMutex(),
		logger:   log.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(x)
	}

	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(p any) {
		x.logger.Error("indexing job panicked", slog.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create indexer pool: %w", err)
	}
	x.pool = pool
	return x, nil
}

// Enqueue schedules an indexing job and returns immediately. The job keeps
// the values of ctx but not its cancellation.
func (x *Indexer) Enqueue(ctx context.Context, serviceID int64) error {
	jobCtx := context.WithoutCancel(ctx)
	x.jobs.Add(1)
	err := x.pool.Submit(func() {
		defer x.jobs.Done()
		if err := x.IndexSync(jobCtx, serviceID); err != nil {
			x.logger.WarnContext(jobCtx, "indexing job failed",
				slog.Int64("service_id", serviceID),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		x.jobs.Done()
		return fmt.Errorf("enqueue indexing of service %d: %w", serviceID, err)
	}
	return nil
}

// Wait blocks until every enqueued job has finished.
func (x *Indexer) Wait() {
	x.jobs.Wait()
}

// Close waits for running jobs and releases the pool.
func (x *Indexer) Close() {
	x.jobs.Wait()
	x.pool.Release()
}

// IndexSync indexes a service and waits for the outcome. The service is read
// under its lock so the latest payload and active flag are mirrored.
func (x *Indexer) IndexSync(ctx context.Context, serviceID int64) error {
	unlock := x.locks.Lock(serviceID)
	defer unlock()

	svc, err := x.services.Get(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("load service %d: %w", serviceID, err)
	}
	return x.indexService(ctx, svc)
}

// Activate flips every vector of a service to active.
func (x *Indexer) Activate(ctx context.Context, serviceID int64) error {
	return x.setActive(ctx, serviceID, true)
}

// Deactivate flips every vector of a service to inactive.
func (x *Indexer) Deactivate(ctx context.Context, serviceID int64) error {
	return x.setActive(ctx, serviceID, false)
}

// Remove deletes every vector of a service.
func (x *Indexer) Remove(ctx context.Context, serviceID int64) error {
	unlock := x.locks.Lock(serviceID)
	defer unlock()
	if err := x.index.Delete(ctx, serviceID); err != nil {
		return fmt.Errorf("remove vectors of service %d: %w", serviceID, err)
	}
	return nil
}

func (x *Indexer) setActive(ctx context.Context, serviceID int64, active bool) error {
	unlock := x.locks.Lock(serviceID)
	defer unlock()
	if err := x.index.SetActive(ctx, serviceID, "", active); err != nil {
		return fmt.Errorf("set service %d active=%t: %w", serviceID, active, err)
	}
	return nil
}

func (x *Indexer) indexService(ctx context.Context, svc catalog.Service) error {
	reindex := svc.EmbeddingAttempts() > 0
	svc = svc.StartIndexing(x.now())
	if err := x.services.UpdateEmbeddingStatus(ctx, svc); err != nil {
		return fmt.Errorf("mark service %d processing: %w", svc.ID(), err)
	}

	err := x.mirror(ctx, svc, reindex)
	x.metrics.ObserveIndexJob(err)

	svc = svc.FinishIndexing(err)
	if statusErr := x.services.UpdateEmbeddingStatus(ctx, svc); statusErr != nil {
		err = errors.Join(err, fmt.Errorf("record indexing outcome: %w", statusErr))
	}

	event, detail := catalog.LogIndexComplete, ""
	if err != nil {
		event, detail = catalog.LogIndexFailed, svc.EmbeddingError()
	}
	if logErr := x.logs.Append(ctx, catalog.NewLogEntry(svc.ID(), svc.UserID(), event, detail)); logErr != nil {
		x.logger.WarnContext(ctx, "append service log failed", slog.String("error", logErr.Error()))
	}

	if err != nil {
		return fmt.Errorf("index service %d: %w", svc.ID(), err)
	}
	x.logger.DebugContext(ctx, "service indexed",
		slog.Int64("service_id", svc.ID()),
		slog.Int("attempts", svc.EmbeddingAttempts()),
	)
	return nil
}

// mirror writes one vector per indexable field. A re-index first clears
// the previous vectors so removed fields do not linger.
func (x *Indexer) mirror(ctx context.Context, svc catalog.Service, reindex bool) error {
	if reindex {
		if err := x.index.Delete(ctx, svc.ID()); err != nil {
			return err
		}
	}

	var lat, lon *float64
	if svc.GPS() != "" {
		p, err := matching.ParseServiceGPS(svc.GPS())
		if err != nil {
			x.logger.WarnContext(ctx, "indexing without location",
				slog.Int64("service_id", svc.ID()),
				slog.String("error", err.Error()),
			)
		} else if p != nil {
			lat, lon = &p.Lat, &p.Lon
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fieldConcurrency)
	for _, f := range svc.Payload().IndexableFields() {
		g.Go(func() error {
			for _, rec := range x.records(gctx, svc, f, lat, lon) {
				if err := x.index.Upsert(gctx, rec); err != nil {
					return fmt.Errorf("field %s: %w", f.Name(), err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// records builds the vectors of one field: the field itself and, for
// images with recognizable text, a texte_ocr sibling.
func (x *Indexer) records(ctx context.Context, svc catalog.Service, f catalog.Field, lat, lon *float64) []vector.Record {
	metier := vector.MetierService
	if svc.IsExchange() {
		metier = vector.MetierEchange
	}
	base := vector.Record{
		ServiceID:  svc.ID(),
		Field:      f.Name(),
		Active:     svc.IsActive(),
		TypeMetier: metier,
		Langue:     f.Language(),
		GPSLat:     lat,
		GPSLon:     lon,
		Unite:      f.Unit(),
		Devise:     f.Currency(),
		Mode:       svc.Mode(),
	}

	value := f.Text()
	if f.TypeDonnee() == catalog.TypeTexte {
		rec := base
		translated, source := translateOrKeep(ctx, x.translator, value)
		rec.ID = vector.RecordID(svc.ID(), f.Name(), string(catalog.TypeTexte))
		rec.TypeDonnee = string(catalog.TypeTexte)
		rec.Value = translated
		rec.OriginalText = value
		rec.TranslatedText = translated
		if source != "" {
			rec.Langue = source
		}
		return []vector.Record{rec}
	}

	img := base
	img.ID = vector.RecordID(svc.ID(), f.Name(), string(catalog.TypeImage))
	img.TypeDonnee = string(catalog.TypeImage)
	img.Value = value
	out := []vector.Record{img}

	if x.ocr == nil {
		return out
	}
	data, err := media.DecodeBase64(value)
	if err != nil {
		return out
	}
	text, err := x.ocr.Recognize(ctx, data)
	if err != nil || text == "" {
		if err != nil {
			x.logger.DebugContext(ctx, "ocr skipped", slog.String("field", f.Name()), slog.String("error", err.Error()))
		}
		return out
	}
	translated, source := translateOrKeep(ctx, x.translator, text)
	ocr := base
	ocr.ID = vector.RecordID(svc.ID(), f.Name(), string(catalog.TypeTexteOCR))
	ocr.TypeDonnee = string(catalog.TypeTexteOCR)
	ocr.Value = translated
	ocr.OriginalText = text
	ocr.TranslatedText = translated
	ocr.Langue = source
	return append(out, ocr)
}

// RetryFailed flags a failed service for retry and enqueues it. Pending and
// stale processing services are enqueued as they are.
func (x *Indexer) RetryFailed(ctx context.Context, svc catalog.Service) error {
	if svc.EmbeddingStatus() == catalog.EmbeddingFailed {
		retry, err := svc.MarkRetry()
		if err != nil {
			return err
		}
		if err := x.services.UpdateEmbeddingStatus(ctx, retry); err != nil {
			return fmt.Errorf("mark service %d retry: %w", svc.ID(), err)
		}
	}
	return x.Enqueue(ctx, svc.ID())
}

// keyedMutex serializes work per service id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyedLock)}
}

// Lock acquires the lock of key and returns its release function.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
