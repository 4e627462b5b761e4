package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
)

// addExpiring stores and indexes a service whose deadline has passed.
func (f *fixture) addExpiring(t *testing.T, userID int64, title string) catalog.Service {
	t.Helper()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	svc := catalog.NewService(userID, catalog.NewPayload(titre(title))).
		WithTarissement(true, catalog.VitesseRapide).
		WithAutoDeactivateAt(&past)
	saved, err := f.services.Save(ctx, svc)
	require.NoError(t, err)
	require.NoError(t, f.indexer.IndexSync(ctx, saved.ID()))
	return saved
}

func TestLifecycle_SweepDeactivatesAndAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	expired := f.addExpiring(t, 4, "Vente de mangues")
	kept := f.addService(t, 5, "", titre("Cours de maths"))

	report, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 1, report.Alerted)
	assert.Zero(t, report.Errors)

	got, err := f.services.Get(ctx, expired.ID())
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	require.NotNil(t, got.LastAlertAt())
	for _, r := range recordsOf(f.index.MemoryIndex, expired.ID()) {
		assert.False(t, r.Active)
	}
	for _, r := range recordsOf(f.index.MemoryIndex, kept.ID()) {
		assert.True(t, r.Active)
	}

	alerts := f.notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, expired.ID(), alerts[0].ServiceID)
	assert.Equal(t, int64(4), alerts[0].UserID)
	assert.Equal(t, "Vente de mangues", alerts[0].Title)

	logs, err := f.logs.ForService(ctx, expired.ID())
	require.NoError(t, err)
	var events []catalog.LogEvent
	for _, l := range logs {
		events = append(events, l.Modification)
	}
	assert.Contains(t, events, catalog.LogAutoExpired)
	assert.Contains(t, events, catalog.LogAlertSent)

	again, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Deactivated)
	assert.Len(t, f.notifier.Alerts(), 1)
}

func TestLifecycle_SweepRespectsAlertCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.addExpiring(t, 4, "Location de chaises")
	require.NoError(t, f.services.MarkAlerted(ctx, svc.ID(), time.Now().UTC().Add(-time.Hour)))

	report, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Zero(t, report.Alerted)
	assert.Empty(t, f.notifier.Alerts())
}

func TestLifecycle_SweepSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = assert.AnError
	svc := f.addExpiring(t, 4, "Location de tentes")

	report, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Zero(t, report.Alerted)

	got, err := f.services.Get(ctx, svc.ID())
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.Nil(t, got.LastAlertAt())
}

func TestLifecycle_SweepReindexesFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.index.upsertErr = errIndexDown
	saved, err := f.services.Save(ctx, catalog.NewService(1, catalog.NewPayload(titre("Serrurier"))))
	require.NoError(t, err)
	require.Error(t, f.indexer.IndexSync(ctx, saved.ID()))
	f.index.upsertErr = nil

	report, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reindexed)
	f.indexer.Wait()

	got, err := f.services.Get(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, catalog.EmbeddingSuccess, got.EmbeddingStatus())
	assert.Len(t, recordsOf(f.index.MemoryIndex, saved.ID()), 1)
}

func TestLifecycle_Reactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.addExpiring(t, 4, "Vente de mangues")
	_, err := f.lifecycle.Sweep(ctx)
	require.NoError(t, err)

	got, err := f.lifecycle.Reactivate(ctx, svc.ID(), 4, 90)
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.Equal(t, catalog.MaxReactivationDays, got.ActiveDays())
	require.NotNil(t, got.AutoDeactivateAt())
	assert.WithinDuration(t, time.Now().Add(time.Duration(catalog.MaxReactivationDays)*24*time.Hour), *got.AutoDeactivateAt(), time.Minute)
	assert.Nil(t, got.LastAlertAt())

	for _, r := range recordsOf(f.index.MemoryIndex, svc.ID()) {
		assert.True(t, r.Active)
	}
}

func TestLifecycle_OwnershipChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.addService(t, 4, "", titre("Coach sportif"))

	_, err := f.lifecycle.Reactivate(ctx, svc.ID(), 0, 7)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.lifecycle.Deactivate(ctx, svc.ID(), 5)
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = f.lifecycle.Delete(ctx, svc.ID(), 5)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.lifecycle.Deactivate(ctx, 9999, 4)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycle_DeactivateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.addService(t, 4, "", titre("Coach sportif"))

	got, err := f.lifecycle.Deactivate(ctx, svc.ID(), 4)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	for _, r := range recordsOf(f.index.MemoryIndex, svc.ID()) {
		assert.False(t, r.Active)
	}

	require.NoError(t, f.lifecycle.Delete(ctx, svc.ID(), 4))
	_, err = f.services.Get(ctx, svc.ID())
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, recordsOf(f.index.MemoryIndex, svc.ID()))
}
