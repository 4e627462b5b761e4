package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/history"
	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/domain/matching"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

const (
	maxTitleRunes      = 80
	assistantMaxTokens = 1024
)

const assistancePrompt = `You are the assistant of Yukpo, a marketplace connecting people who offer and need services.
Answer helpfully and concisely. Reply in the language with ISO code %q; if it is empty, reply in the language of the user.`

const programmePrompt = `You are the school curriculum assistant of Yukpo.
Explain or update the requested school programme clearly, organized by level and subject.
Reply in the language with ISO code %q; if it is empty, reply in the language of the user.`

// Response is the outcome of an orchestrated request.
type Response struct {
	Intent       intent.Intent
	IntentSource string
	TokensUsed   int
	Model        string
	Service      *catalog.Service
	Search       *SearchResult
	Answer       string
	Cached       bool
	Dropped      []string
}

// Orchestrator admits a request, classifies it and dispatches it to the
// matching flow.
type Orchestrator struct {
	classifier    *IntentClassifier
	normalizer    *Normalizer
	search        *Search
	indexer       *Indexer
	services      catalog.ServiceStore
	logs          catalog.LogStore
	history       history.Store
	detector      catalog.ProductDetector
	generator     provider.TextGenerator
	cache         *SemanticCache
	translator    Translator
	admission     *semaphore.Weighted
	failFast      bool
	defaultRadius float64
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAssistant answers assistance intents with generator behind cache.
func WithAssistant(generator provider.TextGenerator, cache *SemanticCache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.generator = generator
		o.cache = cache
	}
}

// WithOrchestratorTranslator detects the language of assistance requests.
func WithOrchestratorTranslator(t Translator) OrchestratorOption {
	return func(o *Orchestrator) { o.translator = t }
}

// WithAdmission bounds concurrent requests. With failFast, requests beyond
// the limit fail with domain.ErrOverloaded instead of waiting.
func WithAdmission(limit int, failFast bool) OrchestratorOption {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.admission = semaphore.NewWeighted(int64(limit))
		}
		o.failFast = failFast
	}
}

// WithOrchestratorMetrics records request outcomes.
func WithOrchestratorMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = log.OrDefault(l) }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	classifier *IntentClassifier,
	normalizer *Normalizer,
	search *Search,
	indexer *Indexer,
	services catalog.ServiceStore,
	logs catalog.LogStore,
	hist history.Store,
	detector catalog.ProductDetector,
	matchingCfg config.MatchingConfig,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		classifier:    classifier,
		normalizer:    normalizer,
		search:        search,
		indexer:       indexer,
		services:      services,
		logs:          logs,
		history:       hist,
		detector:      detector,
		admission:     semaphore.NewWeighted(config.DefaultAdmissionLimit),
		failFast:      true,
		defaultRadius: matchingCfg.DefaultRadiusKM(),
		logger:        log.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one request end to end.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	release, err := o.admit(ctx)
	if err != nil {
		return Response{}, err
	}
	defer release()

	resp, err := o.handle(ctx, req)
	o.metrics.ObserveRequest(resp.Intent.String(), err)
	if err != nil {
		o.logger.WarnContext(ctx, "request failed",
			slog.String("intent", resp.Intent.String()),
			slog.String("error", err.Error()),
		)
	}
	return resp, err
}

func (o *Orchestrator) admit(ctx context.Context) (func(), error) {
	if o.failFast {
		if !o.admission.TryAcquire(1) {
			o.metrics.ObserveAdmissionDenied()
			return nil, fmt.Errorf("%w: too many concurrent requests", domain.ErrOverloaded)
		}
	} else if err := o.admission.Acquire(ctx, 1); err != nil {
		o.metrics.ObserveAdmissionDenied()
		return nil, fmt.Errorf("%w: waiting for admission: %w", domain.ErrTimeout, err)
	}
	o.metrics.Admitted(1)
	return func() {
		o.admission.Release(1)
		o.metrics.Admitted(-1)
	}, nil
}

func (o *Orchestrator) handle(ctx context.Context, req Request) (Response, error) {
	if isEmpty(req) {
		return Response{}, fmt.Errorf("%w: the request carries no input", domain.ErrInvalidInput)
	}

	normalized := o.normalizer.Normalize(ctx, req.Input)
	text := strings.TrimSpace(req.Input.Texte)
	if text == "" {
		text = normalized.Text()
	}

	explicit := req.Input.Intention
	switch {
	case explicit != "":
	case req.Service != nil:
		explicit = intent.CreationService.String()
	case req.Exchange != nil:
		explicit = intent.Echange.String()
	}

	cls, err := o.classifier.Classify(ctx, text, explicit)
	if err != nil {
		return Response{}, fmt.Errorf("classify request: %w", err)
	}

	resp := Response{
		Intent:       cls.Intent,
		IntentSource: cls.Source,
		TokensUsed:   cls.TokensUsed,
		Model:        cls.Model,
		Dropped:      normalized.Dropped,
	}

	switch cls.Intent {
	case intent.CreationService:
		err = o.create(ctx, req, normalized, &resp)
	case intent.RechercheBesoin:
		err = o.find(ctx, req, text, normalized, &resp)
	case intent.Echange:
		err = o.exchange(ctx, req, text, &resp)
	default:
		err = o.assist(ctx, req, text, cls.Intent, normalized, &resp)
	}
	if err != nil {
		return resp, err
	}

	o.audit(ctx, req.UserID, text, resp)
	return resp, nil
}

// create stores a new service and schedules its indexing.
func (o *Orchestrator) create(ctx context.Context, req Request, normalized Normalized, resp *Response) error {
	if req.UserID == 0 {
		return fmt.Errorf("%w: creating a service requires a user", domain.ErrUnauthorized)
	}

	var (
		payload    catalog.Payload
		gps        string
		tarissable bool
		vitesse    catalog.Vitesse
	)
	if d := req.Service; d != nil {
		v, err := catalog.ParseVitesse(d.VitesseTarissement)
		if err != nil {
			return err
		}
		payload, gps, tarissable, vitesse = d.Payload, d.GPS, d.IsTarissable, v
	} else {
		payload = payloadFromText(normalized.Text())
	}

	if gps == "" {
		point, err := req.Input.Point()
		if err != nil {
			return err
		}
		if point != nil {
			gps = formatLonLat(*point)
		}
	}
	if gps != "" {
		if _, err := matching.ParseServiceGPS(gps); err != nil {
			return err
		}
	}

	for i, img := range normalized.Images() {
		name := "image"
		if i > 0 {
			name = "image_" + strconv.Itoa(i+1)
		}
		if _, exists := payload.Get(name); !exists {
			payload = payload.With(catalog.NewField(name, catalog.TypeImage, img))
		}
	}

	productText := normalized.Text()
	if productText == "" {
		productText = payload.Description()
	}
	payload, _ = o.detector.WithProducts(payload, productText)

	svc := catalog.NewService(req.UserID, payload).
		WithGPS(gps).
		WithTarissement(tarissable, vitesse)
	if err := svc.Validate(); err != nil {
		return err
	}

	saved, err := o.services.Save(ctx, svc)
	if err != nil {
		return fmt.Errorf("store service: %w", err)
	}
	o.appendLog(ctx, catalog.NewLogEntry(saved.ID(), saved.UserID(), catalog.LogCreated, saved.Payload().Title()))
	if err := o.indexer.Enqueue(ctx, saved.ID()); err != nil {
		o.logger.WarnContext(ctx, "indexing not scheduled, the sweep will retry",
			slog.Int64("service_id", saved.ID()),
			slog.String("error", err.Error()),
		)
	}
	resp.Service = &saved
	return nil
}

// find runs a service search from the request location and zone.
func (o *Orchestrator) find(ctx context.Context, req Request, text string, normalized Normalized, resp *Response) error {
	point, err := req.Input.Point()
	if err != nil {
		return err
	}
	zone, err := req.Input.Zone(point, o.defaultRadius)
	if err != nil {
		return err
	}

	result, err := o.search.Query(ctx, text,
		WithPoint(point),
		WithZone(zone),
		WithImages(normalized.Images()...),
	)
	if err != nil {
		return err
	}
	resp.Search = &result
	return nil
}

// exchange stores a swap or donation listing and searches for counterparts.
func (o *Orchestrator) exchange(ctx context.Context, req Request, text string, resp *Response) error {
	if req.UserID == 0 {
		return fmt.Errorf("%w: an exchange requires a user", domain.ErrUnauthorized)
	}
	draft := ExchangeDraft{Mode: ModeEchange, ModeTroc: "libre", Offre: text}
	if req.Exchange != nil {
		draft = *req.Exchange
	}
	if draft.GPS == "" {
		if point, err := req.Input.Point(); err == nil && point != nil {
			draft.GPS = formatLonLat(*point)
		}
	}
	if err := draft.Validate(); err != nil {
		return err
	}
	mode := strings.ToLower(strings.TrimSpace(draft.Mode))

	title, description := draft.Offre, draft.Besoin
	if strings.TrimSpace(title) == "" {
		title, description = draft.Besoin, ""
	}
	payload := catalog.NewPayload(
		catalog.NewField(catalog.FieldTitre, catalog.TypeTexte, title),
		catalog.NewField(catalog.FieldMode, catalog.TypeChoix, mode),
		catalog.NewField(catalog.FieldModeTroc, catalog.TypeChoix, draft.ModeTroc),
	)
	if strings.TrimSpace(description) != "" {
		payload = payload.With(catalog.NewField(catalog.FieldDescription, catalog.TypeTexte, description))
	}

	saved, err := o.services.Save(ctx, catalog.NewService(req.UserID, payload).WithGPS(draft.GPS))
	if err != nil {
		return fmt.Errorf("store exchange: %w", err)
	}
	o.appendLog(ctx, catalog.NewLogEntry(saved.ID(), saved.UserID(), catalog.LogCreated, mode))
	if err := o.indexer.Enqueue(ctx, saved.ID()); err != nil {
		o.logger.WarnContext(ctx, "indexing not scheduled, the sweep will retry", slog.Int64("service_id", saved.ID()))
	}
	resp.Service = &saved

	query := draft.Besoin
	if strings.TrimSpace(query) == "" {
		query = draft.Offre
	}
	location, _ := matching.ParseServiceGPS(draft.GPS)
	opts := []SearchOption{WithExchange(mode), WithExcluded(saved.ID()), WithPoint(location)}
	if location != nil {
		zone, err := Input{}.Zone(location, o.defaultRadius)
		if err == nil {
			opts = append(opts, WithZone(zone))
		}
	}
	result, err := o.search.Query(ctx, query, opts...)
	if err != nil {
		return err
	}
	resp.Search = &result

	for _, m := range result.Matches() {
		entry := history.NewEntry(uuid.NewString(), req.UserID, history.EventMatch).
			WithService(m.Service().ID()).
			WithExchange(intent.Echange.String(), query, strconv.FormatInt(saved.ID(), 10), "", 0)
		if err := o.history.Append(ctx, entry); err != nil {
			o.logger.WarnContext(ctx, "record exchange match failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// assist answers from the semantic cache or the generative model.
func (o *Orchestrator) assist(ctx context.Context, req Request, text string, in intent.Intent, normalized Normalized, resp *Response) error {
	images := normalized.Images()
	if text == "" && len(images) == 0 {
		return fmt.Errorf("%w: nothing to answer", domain.ErrInvalidInput)
	}

	lang := strings.ToLower(strings.TrimSpace(req.Input.Langue))
	if lang == "" {
		_, lang = translateOrKeep(ctx, o.translator, text)
	}
	imageOrigin := len(images) > 0

	if o.cache != nil {
		if answer, ok := o.cache.Lookup(ctx, text, in, lang, imageOrigin); ok {
			resp.Answer = answer
			resp.Cached = true
			return nil
		}
	}
	if o.generator == nil {
		return fmt.Errorf("%w: no assistant model configured", domain.ErrSearchUnavailable)
	}

	prompt := assistancePrompt
	if in == intent.ProgrammeScolaire || in == intent.UpdateProgrammeScolaire {
		prompt = programmePrompt
	}
	user := provider.UserMessage(text)
	if imageOrigin {
		user = provider.UserImageMessage(text, images...)
	}
	completion, err := o.generator.ChatCompletion(ctx,
		provider.NewChatCompletionRequest(provider.SystemMessage(fmt.Sprintf(prompt, lang)), user).
			WithMaxTokens(assistantMaxTokens),
	)
	if err != nil {
		return providerFailure(err)
	}

	resp.Answer = strings.TrimSpace(completion.Content())
	resp.TokensUsed += completion.Usage().TotalTokens()
	resp.Model = completion.Model()

	if o.cache != nil && resp.Answer != "" && text != "" {
		if err := o.cache.Store(ctx, text, in, lang, resp.Answer, imageOrigin); err != nil {
			o.logger.WarnContext(ctx, "semantic cache write failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// audit appends the request to the history. Failures are logged only.
func (o *Orchestrator) audit(ctx context.Context, userID int64, text string, resp Response) {
	entry := history.NewEntry(uuid.NewString(), userID, history.EventRequest).
		WithExchange(resp.Intent.String(), text, summarize(resp), resp.Model, resp.TokensUsed)
	if resp.Service != nil {
		entry = entry.WithService(resp.Service.ID())
	}
	if err := o.history.Append(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "history append failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) appendLog(ctx context.Context, entry catalog.LogEntry) {
	if err := o.logs.Append(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "append service log failed", slog.String("error", err.Error()))
	}
}

// providerFailure maps a model error onto the closed error kinds.
func providerFailure(err error) error {
	var pe *provider.ProviderError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &pe) && pe.IsRateLimited():
		return fmt.Errorf("%w: assistant model rate limited", domain.ErrOverloaded)
	case errors.Is(err, context.DeadlineExceeded) || (pe != nil && pe.IsTimeout()):
		return fmt.Errorf("%w: assistant model", domain.ErrTimeout)
	default:
		return fmt.Errorf("%w: assistant model unavailable", domain.ErrSearchUnavailable)
	}
}

func summarize(resp Response) string {
	switch {
	case resp.Answer != "":
		return resp.Answer
	case resp.Search != nil:
		ids := make([]string, 0, resp.Search.Count())
		for _, m := range resp.Search.Matches() {
			ids = append(ids, strconv.FormatInt(m.Service().ID(), 10))
		}
		return fmt.Sprintf("%d matches [%s]", len(ids), strings.Join(ids, ","))
	case resp.Service != nil:
		return "service " + strconv.FormatInt(resp.Service.ID(), 10)
	default:
		return ""
	}
}

func isEmpty(req Request) bool {
	in := req.Input
	return req.Service == nil && req.Exchange == nil &&
		strings.TrimSpace(in.Texte) == "" && strings.TrimSpace(in.SiteWeb) == "" &&
		len(in.Base64Image) == 0 && len(in.DocBase64) == 0 &&
		len(in.ExcelBase64) == 0 && len(in.AudioBase64) == 0
}

// payloadFromText builds a minimal payload: the first sentence as title and
// the whole text as description.
func payloadFromText(text string) catalog.Payload {
	text = strings.TrimSpace(text)
	if text == "" {
		return catalog.NewPayload()
	}
	title := text
	if i := strings.IndexAny(title, ".!?\n"); i > 0 {
		title = title[:i]
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return catalog.NewPayload(
		catalog.NewField(catalog.FieldTitre, catalog.TypeTexte, strings.TrimSpace(title)),
		catalog.NewField(catalog.FieldDescription, catalog.TypeTexte, text),
	)
}

func formatLonLat(p matching.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
