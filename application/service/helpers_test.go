package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/cache"
	"github.com/yukpo/yukpo/infrastructure/embedding"
	"github.com/yukpo/yukpo/infrastructure/notify"
	"github.com/yukpo/yukpo/infrastructure/persistence"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/lexicon"
	"github.com/yukpo/yukpo/internal/log"
	"github.com/yukpo/yukpo/internal/testdb"
)

// fakeGenerator replies with reply, or err, and counts calls.
type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	requests []provider.ChatCompletionRequest
}

func (f *fakeGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return provider.ChatCompletionResponse{}, f.err
	}
	return provider.NewChatCompletionResponse(f.reply, "stop", "test-model", provider.NewUsage(10, 2, 12)), nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyIndex wraps a MemoryIndex and fails selected operations.
type flakyIndex struct {
	*embedding.MemoryIndex
	upsertErr error
	queryErr  error
	failField string
}

func (f *flakyIndex) Upsert(ctx context.Context, r vector.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.MemoryIndex.Upsert(ctx, r)
}

func (f *flakyIndex) Query(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	if f.queryErr != nil && (f.failField == "" || f.failField == q.Field) {
		return nil, f.queryErr
	}
	return f.MemoryIndex.Query(ctx, q)
}

// recordingNotifier keeps the alerts it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingNotifier) Alerts() []notify.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Alert(nil), r.alerts...)
}

// fakeOCR returns text for every image.
type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) Recognize(context.Context, []byte) (string, error) { return f.text, f.err }

// upperTranslator "translates" by tagging the text, reporting French input.
type upperTranslator struct{ calls atomic.Int32 }

func (u *upperTranslator) Translate(_ context.Context, text, _ string) (string, string, error) {
	u.calls.Add(1)
	return text, "fr", nil
}

var errIndexDown = errors.New("index down")

// fixture wires the services over an in-memory database and index.
type fixture struct {
	services  persistence.ServiceStore
	logs      persistence.LogStore
	history   persistence.HistoryStore
	scores    persistence.ScoringStore
	index     *flakyIndex
	indexer   *Indexer
	scorer    *Scorer
	search    *Search
	lifecycle *Lifecycle
	notifier  *recordingNotifier
	lexicon   lexicon.Lexicon
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	f := &fixture{
		services: persistence.NewServiceStore(db),
		logs:     persistence.NewLogStore(db),
		history:  persistence.NewHistoryStore(db),
		scores:   persistence.NewScoringStore(db),
		index:    &flakyIndex{MemoryIndex: embedding.NewMemoryIndex()},
		notifier: &recordingNotifier{},
		lexicon:  lexicon.Default(),
	}

	indexer, err := NewIndexer(f.services, f.logs, f.index, 4, WithIndexerLogger(log.Discard()))
	require.NoError(t, err)
	t.Cleanup(indexer.Close)
	f.indexer = indexer

	f.scorer = NewScorer(f.scores, cache.NewMemoryScoreCache(time.Hour), 30*time.Minute, log.Discard())
	f.search = NewSearch(f.index, f.services, f.scorer, f.lexicon.Preparer(), nil, config.NewMatchingConfig(), nil, nil, log.Discard())
	f.lifecycle = NewLifecycle(f.services, f.logs, f.indexer, f.notifier, 24*time.Hour, nil, log.Discard())
	return f
}

// addService stores and synchronously indexes a service.
func (f *fixture) addService(t *testing.T, userID int64, gps string, fields ...catalog.Field) catalog.Service {
	t.Helper()
	ctx := context.Background()
	saved, err := f.services.Save(ctx, catalog.NewService(userID, catalog.NewPayload(fields...)).WithGPS(gps))
	require.NoError(t, err)
	require.NoError(t, f.indexer.IndexSync(ctx, saved.ID()))
	got, err := f.services.Get(ctx, saved.ID())
	require.NoError(t, err)
	return got
}

func titre(v string) catalog.Field {
	return catalog.NewField(catalog.FieldTitre, catalog.TypeTexte, v)
}

func description(v string) catalog.Field {
	return catalog.NewField(catalog.FieldDescription, catalog.TypeTexte, v)
}

func category(v string) catalog.Field {
	return catalog.NewField(catalog.FieldCategory, catalog.TypeTexte, v)
}
