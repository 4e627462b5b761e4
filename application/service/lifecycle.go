package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/infrastructure/notify"
	"github.com/yukpo/yukpo/internal/log"
)

// Reindex sweep bounds.
const (
	MaxIndexAttempts  = 5
	reindexBatch      = 100
	reindexStaleAfter = 15 * time.Minute
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Deactivated int
	Alerted     int
	Reindexed   int
	Errors      int
}

// Lifecycle runs the auto-deactivation sweep and owner actions on services.
type Lifecycle struct {
	services catalog.ServiceStore
	logs     catalog.LogStore
	indexer  *Indexer
	notifier notify.Sender
	cooldown time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(
	services catalog.ServiceStore,
	logs catalog.LogStore,
	indexer *Indexer,
	notifier notify.Sender,
	cooldown time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Lifecycle {
	return &Lifecycle{
		services: services,
		logs:     logs,
		indexer:  indexer,
		notifier: notifier,
		cooldown: cooldown,
		metrics:  m,
		logger:   log.OrDefault(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep deactivates expired services, alerts their owners and re-drives
// indexing of services whose mirror is missing or stale. Failures on one
// service do not stop the sweep.
func (l *Lifecycle) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := l.now()

	due, err := l.services.DueForDeactivation(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list expired services: %w", err)
	}
	for _, svc := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		alerted, err := l.expire(ctx, svc, now)
		if err != nil {
			report.Errors++
			l.logger.WarnContext(ctx, "auto deactivation failed",
				slog.Int64("service_id", svc.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Deactivated++
		if alerted {
			report.Alerted++
		}
	}

	stale, err := l.services.NeedingReindex(ctx, now.Add(-reindexStaleAfter), reindexBatch)
	if err != nil {
		return report, fmt.Errorf("list services to reindex: %w", err)
	}
	for _, svc := range stale {
		if svc.EmbeddingAttempts() >= MaxIndexAttempts {
			continue
		}
		if err := l.indexer.RetryFailed(ctx, svc); err != nil {
			report.Errors++
			l.logger.WarnContext(ctx, "reindex scheduling failed",
				slog.Int64("service_id", svc.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Reindexed++
	}

	l.logger.InfoContext(ctx, "lifecycle sweep complete",
		slog.Int("deactivated", report.Deactivated),
		slog.Int("alerted", report.Alerted),
		slog.Int("reindexed", report.Reindexed),
		slog.Int("errors", report.Errors),
	)
	return report, nil
}

// expire deactivates one service in the catalog and the index, then alerts
// the owner unless an alert went out within the cooldown.
func (l *Lifecycle) expire(ctx context.Context, svc catalog.Service, now time.Time) (bool, error) {
	if err := l.services.SetActive(ctx, svc.ID(), false); err != nil {
		return false, err
	}
	if err := l.indexer.Deactivate(ctx, svc.ID()); err != nil {
		l.logger.WarnContext(ctx, "index deactivation failed", slog.Int64("service_id", svc.ID()), slog.String("error", err.Error()))
	}
	l.metrics.ObserveDeactivation()
	l.appendLog(ctx, catalog.NewLogEntry(svc.ID(), svc.UserID(), catalog.LogAutoExpired, deadlineDetail(svc)))

	if !svc.AlertDue(now, l.cooldown) {
		return false, nil
	}
	alert := notify.Alert{
		ServiceID: svc.ID(),
		UserID:    svc.UserID(),
		Title:     svc.Payload().Title(),
		Reason:    string(catalog.LogAutoExpired),
		At:        now,
	}
	if err := l.notifier.Notify(ctx, alert); err != nil {
		l.logger.WarnContext(ctx, "owner alert failed", slog.Int64("service_id", svc.ID()), slog.String("error", err.Error()))
		return false, nil
	}
	if err := l.services.MarkAlerted(ctx, svc.ID(), now); err != nil {
		return true, err
	}
	l.metrics.ObserveAlert()
	l.appendLog(ctx, catalog.NewLogEntry(svc.ID(), svc.UserID(), catalog.LogAlertSent, ""))
	return true, nil
}

// Reactivate makes a service visible again for the requested number of
// days, capped at catalog.MaxReactivationDays.
func (l *Lifecycle) Reactivate(ctx context.Context, serviceID, userID int64, days int) (catalog.Service, error) {
	svc, err := l.owned(ctx, serviceID, userID)
	if err != nil {
		return catalog.Service{}, err
	}
	svc, err = l.services.Save(ctx, svc.Reactivate(l.now(), days))
	if err != nil {
		return catalog.Service{}, fmt.Errorf("reactivate service %d: %w", serviceID, err)
	}

	if svc.EmbeddingStatus() == catalog.EmbeddingSuccess {
		err = l.indexer.Activate(ctx, serviceID)
	} else {
		err = l.indexer.Enqueue(ctx, serviceID)
	}
	if err != nil {
		l.logger.WarnContext(ctx, "index reactivation failed", slog.Int64("service_id", serviceID), slog.String("error", err.Error()))
	}
	l.appendLog(ctx, catalog.NewLogEntry(serviceID, userID, catalog.LogReactivated, fmt.Sprintf("%d days", svc.ActiveDays())))
	return svc, nil
}

// Deactivate hides a service at its owner's request.
func (l *Lifecycle) Deactivate(ctx context.Context, serviceID, userID int64) (catalog.Service, error) {
	svc, err := l.owned(ctx, serviceID, userID)
	if err != nil {
		return catalog.Service{}, err
	}
	svc, err = l.services.Save(ctx, svc.Deactivate())
	if err != nil {
		return catalog.Service{}, fmt.Errorf("deactivate service %d: %w", serviceID, err)
	}
	if err := l.indexer.Deactivate(ctx, serviceID); err != nil {
		l.logger.WarnContext(ctx, "index deactivation failed", slog.Int64("service_id", serviceID), slog.String("error", err.Error()))
	}
	l.appendLog(ctx, catalog.NewLogEntry(serviceID, userID, catalog.LogDeactivated, ""))
	return svc, nil
}

// Delete removes a service from the catalog and the index.
func (l *Lifecycle) Delete(ctx context.Context, serviceID, userID int64) error {
	if _, err := l.owned(ctx, serviceID, userID); err != nil {
		return err
	}
	if err := l.services.Delete(ctx, serviceID); err != nil {
		return fmt.Errorf("delete service %d: %w", serviceID, err)
	}
	if err := l.indexer.Remove(ctx, serviceID); err != nil {
		l.logger.WarnContext(ctx, "index removal failed", slog.Int64("service_id", serviceID), slog.String("error", err.Error()))
	}
	l.appendLog(ctx, catalog.NewLogEntry(serviceID, userID, catalog.LogDeleted, ""))
	return nil
}

// owned loads a service and checks that userID owns it.
func (l *Lifecycle) owned(ctx context.Context, serviceID, userID int64) (catalog.Service, error) {
	if userID == 0 {
		return catalog.Service{}, domain.ErrUnauthorized
	}
	svc, err := l.services.Get(ctx, serviceID)
	if err != nil {
		return catalog.Service{}, err
	}
	if !svc.OwnedBy(userID) {
		return catalog.Service{}, fmt.Errorf("%w: service %d", domain.ErrForbidden, serviceID)
	}
	return svc, nil
}

func (l *Lifecycle) appendLog(ctx context.Context, entry catalog.LogEntry) {
	if err := l.logs.Append(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.WarnContext(ctx, "append service log failed", slog.String("error", err.Error()))
	}
}

func deadlineDetail(svc catalog.Service) string {
	if d := svc.Deadline(); d != nil {
		return "deadline " + d.Format(time.RFC3339)
	}
	return ""
}
