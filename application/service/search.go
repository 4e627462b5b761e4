// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/matching"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/internal/config"
)

// probeImage labels image probes in warnings and metrics.
const probeImage = "image"

// SearchOption configures a search request.
type SearchOption func(*searchConfig)

// searchConfig holds search parameters.
type searchConfig struct {
	topK      int
	limit     int
	threshold float64
	point     *matching.Point
	zone      matching.Zone
	images    []string
	metier    vector.TypeMetier
	mode      string
	exclude   map[int64]struct{}
}

// newSearchConfig creates a searchConfig with the engine defaults.
func newSearchConfig(cfg config.MatchingConfig) *searchConfig {
	return &searchConfig{
		topK:      cfg.TopK(),
		limit:     cfg.ResultLimit(),
		threshold: cfg.FinalScoreThreshold(),
		metier:    vector.MetierService,
	}
}

// WithTopK lowers the per-field index query size. Zero yields no results;
// values above the configured size are ignored.
func WithTopK(n int) SearchOption {
	return func(c *searchConfig) {
		if n >= 0 && n < c.topK {
			c.topK = n
		}
	}
}

// WithLimit lowers the maximum number of results. The configured result
// limit is a ceiling.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 && n < c.limit {
			c.limit = n
		}
	}
}

// WithMinScore raises the final score cut. The configured threshold is a
// floor.
func WithMinScore(score float64) SearchOption {
	return func(c *searchConfig) {
		if score > c.threshold {
			c.threshold = score
		}
	}
}

// WithPoint sets the searcher location used to report distances.
func WithPoint(p *matching.Point) SearchOption {
	return func(c *searchConfig) { c.point = p }
}

// WithZone restricts results to a circle, a polygon or both.
func WithZone(z matching.Zone) SearchOption {
	return func(c *searchConfig) { c.zone = z }
}

// WithImages adds image probes (base64) to the text probes.
func WithImages(images ...string) SearchOption {
	return func(c *searchConfig) { c.images = images }
}

// WithExchange searches the exchange partition for the given mode.
func WithExchange(mode string) SearchOption {
	return func(c *searchConfig) {
		c.metier = vector.MetierEchange
		c.mode = mode
	}
}

// WithExcluded drops the given services from the results.
func WithExcluded(ids ...int64) SearchOption {
	return func(c *searchConfig) {
		if c.exclude == nil {
			c.exclude = make(map[int64]struct{}, len(ids))
		}
		for _, id := range ids {
			c.exclude[id] = struct{}{}
		}
	}
}

// Match is one ranked service.
type Match struct {
	service     catalog.Service
	semantic    float64
	interaction float64
	final       float64
	distanceKM  *float64
}

// NewMatch creates a Match. distanceKM may be nil.
func NewMatch(svc catalog.Service, semantic, interaction, final float64, distanceKM *float64) Match {
	return Match{service: svc, semantic: semantic, interaction: interaction, final: final, distanceKM: distanceKM}
}

// Service returns the matched service.
func (m Match) Service() catalog.Service { return m.service }

// Semantic returns the best field similarity.
func (m Match) Semantic() float64 { return m.semantic }

// Interaction returns the reputation score.
func (m Match) Interaction() float64 { return m.interaction }

// Final returns the fused ranking score.
func (m Match) Final() float64 { return m.final }

// DistanceKM returns the distance to the searcher, when both locations are known.
func (m Match) DistanceKM() *float64 { return m.distanceKM }

// SearchResult represents the outcome of a search.
type SearchResult struct {
	query    string
	matches  []Match
	warnings []string
}

// NewSearchResult creates a SearchResult.
func NewSearchResult(query string, matches []Match, warnings []string) SearchResult {
	return SearchResult{query: query, matches: matches, warnings: warnings}
}

// Query returns the prepared query text.
func (r SearchResult) Query() string { return r.query }

// Matches returns the ranked matches.
func (r SearchResult) Matches() []Match {
	result := make([]Match, len(r.matches))
	copy(result, r.matches)
	return result
}

// Warnings lists the probes that failed without failing the search.
func (r SearchResult) Warnings() []string {
	result := make([]string, len(r.warnings))
	copy(result, r.warnings)
	return result
}

// Count returns the number of matches.
func (r SearchResult) Count() int {
	return len(r.matches)
}

// Search ranks catalog services against a query: field-wise vector probes,
// max aggregation per service, catalog post-filter, reputation fusion and
// geographic refinement.
type Search struct {
	index      vector.Index
	services   catalog.ServiceStore
	scorer     *Scorer
	preparer   matching.Preparer
	translator Translator
	cfg        config.MatchingConfig
	closed     *atomic.Bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewSearch creates a new Search service. scorer and translator may be nil.
func NewSearch(
	index vector.Index,
	services catalog.ServiceStore,
	scorer *Scorer,
	preparer matching.Preparer,
	translator Translator,
	cfg config.MatchingConfig,
	closed *atomic.Bool,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		index:      index,
		services:   services,
		scorer:     scorer,
		preparer:   preparer,
		translator: translator,
		cfg:        cfg,
		closed:     closed,
		metrics:    m,
		logger:     logger,
	}
}

// Query runs a search. It fails with domain.ErrSearchUnavailable only when
// every probe failed.
func (s *Search) Query(ctx context.Context, query string, opts ...SearchOption) (SearchResult, error) {
	if s.closed != nil && s.closed.Load() {
		return SearchResult{}, ErrClientClosed
	}
	start := time.Now()

	sc := newSearchConfig(s.cfg)
	for _, opt := range opts {
		opt(sc)
	}

	prepared := s.preparer.Prepare(query)
	result := SearchResult{query: prepared}
	if sc.topK == 0 || (prepared == "" && len(sc.images) == 0) {
		return result, nil
	}

	probes := s.probes(ctx, prepared, sc)
	agg, warnings, err := s.probe(ctx, probes)
	result.warnings = warnings
	if err != nil {
		return result, err
	}

	candidates, services, err := s.candidates(ctx, agg, sc)
	if err != nil {
		return result, err
	}

	for _, c := range matching.Rank(candidates, sc.threshold, sc.limit) {
		m := Match{
			service:     services[c.ServiceID],
			semantic:    c.Semantic,
			interaction: c.Interaction,
			final:       c.Final,
		}
		if sc.point != nil && c.Location != nil {
			d := sc.point.Distance(*c.Location)
			m.distanceKM = &d
		}
		result.matches = append(result.matches, m)
	}

	s.metrics.ObserveSearch(time.Since(start), len(result.matches))
	s.logger.DebugContext(ctx, "search complete",
		slog.String("query", prepared),
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(result.matches)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// probes builds one query per whitelisted field plus one per image.
func (s *Search) probes(ctx context.Context, prepared string, sc *searchConfig) []vector.Query {
	circle := sc.zone.IndexFilter()
	base := vector.Query{
		TopK:       sc.topK,
		ActiveOnly: true,
		TypeMetier: sc.metier,
		Mode:       sc.mode,
		Circle:     circle,
	}

	var probes []vector.Query
	if prepared != "" {
		text, _ := translateOrKeep(ctx, s.translator, prepared)
		for _, field := range catalog.QueryFields() {
			q := base
			q.Text = text
			q.TypeDonnee = string(catalog.TypeTexte)
			q.Field = field
			probes = append(probes, q)
		}
	}
	for _, img := range sc.images {
		q := base
		q.Text = img
		q.TypeDonnee = string(catalog.TypeImage)
		probes = append(probes, q)
	}
	return probes
}

// probe runs every query concurrently and keeps the best score per service.
func (s *Search) probe(ctx context.Context, probes []vector.Query) (*matching.Aggregate, []string, error) {
	agg := matching.NewAggregate()
	var (
		mu       sync.Mutex
		warnings []string
		errs     []error
	)

	var g errgroup.Group
	for _, q := range probes {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, s.cfg.VectorLookupTimeout())
			defer cancel()

			label := q.Field
			if label == "" {
				label = probeImage
			}
			matches, err := s.index.Query(qctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.metrics.ObserveFieldFailure(label)
				s.logger.WarnContext(ctx, "search probe failed", slog.String("field", label), slog.String("error", err.Error()))
				warnings = append(warnings, fmt.Sprintf("%s: %v", label, err))
				errs = append(errs, err)
				return nil
			}
			for _, m := range matches {
				if m.Record.ServiceID == 0 || catalog.IsExcludedField(m.Record.Field) {
					continue
				}
				agg.Add(m.Record.ServiceID, m.Score)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(probes) > 0 && len(errs) == len(probes) {
		return nil, warnings, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, errors.Join(errs...))
	}
	return agg, warnings, nil
}

// candidates reads the aggregated services from the catalog in batches,
// best first. Reading stops early once enough strong matches are held and
// no unread candidate could outrank them.
func (s *Search) candidates(ctx context.Context, agg *matching.Aggregate, sc *searchConfig) ([]matching.Candidate, map[int64]catalog.Service, error) {
	ids := agg.IDs(s.cfg.MaxCandidates())
	batchSize := s.cfg.BatchSize()
	circle := sc.zone.IndexFilter()

	var candidates []matching.Candidate
	services := make(map[int64]catalog.Service, len(ids))
	strong := 0

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch := make([]int64, 0, end-start)
		for _, id := range ids[start:end] {
			if _, skip := sc.exclude[id]; !skip {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			continue
		}

		found, err := s.services.ByIDs(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("load candidate services: %w", err)
		}
		var scores map[int64]float64
		if s.scorer != nil {
			scores = s.scorer.Scores(ctx, batch)
		}

		for _, svc := range found {
			loc, err := matching.ParseServiceGPS(svc.GPS())
			if err != nil {
				loc = nil
			}
			if !sc.zone.Admits(loc) || !withinCircle(circle, sc.zone, loc) {
				continue
			}
			semantic, _ := agg.Score(svc.ID())
			candidates = append(candidates, matching.Candidate{
				ServiceID:   svc.ID(),
				Semantic:    semantic,
				Interaction: scores[svc.ID()],
				CreatedAt:   svc.CreatedAt(),
				Location:    loc,
			})
			services[svc.ID()] = svc
			if semantic >= s.cfg.EarlyStopThreshold() {
				strong++
			}
		}

		if strong >= sc.limit && end < len(ids) {
			next, _ := agg.Score(ids[end])
			if matching.FinalCeiling(next) < limitFinal(candidates, sc.limit) {
				break
			}
		}
	}
	return candidates, services, nil
}

// limitFinal returns the final score a newcomer must beat to enter the top
// limit of candidates, or 0 when fewer are held.
func limitFinal(candidates []matching.Candidate, limit int) float64 {
	if limit <= 0 || len(candidates) < limit {
		return 0
	}
	finals := make([]float64, len(candidates))
	for i, c := range candidates {
		finals[i] = matching.FinalScore(c.Semantic, c.Interaction)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(finals)))
	return finals[limit-1]
}

// withinCircle re-checks the index circle filter when no polygon refines it.
// A service without a location never lies inside a circle.
func withinCircle(circle *vector.Circle, zone matching.Zone, loc *matching.Point) bool {
	if circle == nil || zone.Refines() {
		return true
	}
	if loc == nil {
		return false
	}
	centre := matching.Point{Lat: circle.Lat, Lon: circle.Lon}
	return centre.Distance(*loc) <= circle.RadiusKM
}
