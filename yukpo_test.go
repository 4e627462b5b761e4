package yukpo_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/log"
)

// staticGenerator answers translation prompts with the unchanged French
// text and every other prompt with reply.
type staticGenerator struct{ reply string }

func (g staticGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	msgs := req.Messages()
	reply := g.reply
	if len(msgs) == 2 && strings.Contains(msgs[0].Content(), "translate it to") {
		text, _ := json.Marshal(msgs[1].Content())
		reply = `{"source": "fr", "text": ` + string(text) + `}`
	}
	return provider.NewChatCompletionResponse(reply, "stop", "test-model", provider.NewUsage(5, 5, 10)), nil
}

func newClient(t *testing.T, opts ...yukpo.Option) *yukpo.Client {
	t.Helper()
	dir := t.TempDir()
	base := []yukpo.Option{
		yukpo.WithDataDir(dir),
		yukpo.WithSQLite(filepath.Join(dir, "yukpo.db")),
		yukpo.WithLogger(log.Discard()),
		yukpo.WithoutSupervisor(),
	}
	client, err := yukpo.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew_NoDatabase(t *testing.T) {
	_, err := yukpo.New(yukpo.WithPostgres(""), yukpo.WithLogger(log.Discard()))
	assert.ErrorIs(t, err, yukpo.ErrNoDatabase)
}

func TestClient_CreateThenFind(t *testing.T) {
	client := newClient(t, yukpo.WithTextProvider(staticGenerator{reply: "assistance_generale"}))
	ctx := context.Background()

	created, err := client.Requests.Handle(ctx, service.Request{
		UserID: 7,
		Service: &service.ServiceDraft{
			Payload: catalog.NewPayload(
				catalog.NewField(catalog.FieldTitre, catalog.TypeTexte, "salon de coiffure"),
				catalog.NewField(catalog.FieldDescription, catalog.TypeTexte, "coiffure femme et homme"),
			),
			GPS: "9.7,4.05",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Service)
	assert.Equal(t, intent.CreationService, created.Intent)
	client.Indexer.Wait()

	stored, err := client.Service(ctx, created.Service.ID())
	require.NoError(t, err)
	assert.Equal(t, catalog.EmbeddingSuccess, stored.EmbeddingStatus())

	found, err := client.Requests.Handle(ctx, service.Request{
		UserID: 8,
		Input: service.Input{
			Texte:     "salon de coiffure",
			Intention: intent.RechercheBesoin.String(),
			GPSMobile: "4.05,9.7",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, found.Search)
	require.Equal(t, 1, found.Search.Count())
	assert.Equal(t, created.Service.ID(), found.Search.Matches()[0].Service().ID())
}

func TestClient_Assistance(t *testing.T) {
	client := newClient(t, yukpo.WithTextProvider(staticGenerator{reply: "Bonjour !"}))

	resp, err := client.Requests.Handle(context.Background(), service.Request{
		Input: service.Input{Texte: "bonjour", Intention: intent.AssistanceGenerale.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour !", resp.Answer)
}

func TestClient_Sweep(t *testing.T) {
	client := newClient(t)

	report, err := client.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Deactivated)
}

func TestClient_Close(t *testing.T) {
	dir := t.TempDir()
	client, err := yukpo.New(
		yukpo.WithDataDir(dir),
		yukpo.WithSQLite(filepath.Join(dir, "yukpo.db")),
		yukpo.WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()))

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), yukpo.ErrClientClosed)

	_, err = client.Search.Query(context.Background(), "coiffure")
	assert.ErrorIs(t, err, yukpo.ErrClientClosed)
	assert.ErrorIs(t, client.Ping(context.Background()), yukpo.ErrClientClosed)
}
