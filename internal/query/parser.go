// Package query implements the entity/intent parser: natural-language text
// in, StructuredQuery out. Entity extraction, intent classification, and
// scope determination delegate to the understanding provider with fixed
// schema prompts; each falls back to a deterministic extractor when the
// provider responds with malformed or missing data. Constraint extraction
// and complexity scoring are purely deterministic.
package query

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// Derived-boolean presence checks. These run on the raw query text on both
// the provider and fallback paths so the booleans stay deterministic.
var (
	analysisRe   = regexp.MustCompile(`(?i)analy[sz]e|trend|impact`)
	comparisonRe = regexp.MustCompile(`(?i)compare|vs`)
	historicalRe = regexp.MustCompile(`(?i)history|since`)

	analyticalVerbRe = regexp.MustCompile(`(?i)\b(analy[sz]e|assess|evaluate|examine|investigate|correlate)\b`)
)

// Parser converts free text into a StructuredQuery.
type Parser struct {
	provider llm.Provider
	opts     *llm.ChatOptions
	timeout  time.Duration
	log      zerolog.Logger
}

// ParserOption configures the Parser.
type ParserOption func(*Parser)

// WithChatOptions sets the chat options used for understanding calls.
func WithChatOptions(opts *llm.ChatOptions) ParserOption {
	return func(p *Parser) { p.opts = opts }
}

// WithTimeout bounds each understanding-provider call.
func WithTimeout(d time.Duration) ParserOption {
	return func(p *Parser) { p.timeout = d }
}

// WithLogger sets the parser's logger.
func WithLogger(log zerolog.Logger) ParserOption {
	return func(p *Parser) { p.log = log.With().Str("component", "parser").Logger() }
}

// NewParser creates a parser backed by the given understanding provider.
func NewParser(provider llm.Provider, opts ...ParserOption) *Parser {
	p := &Parser{
		provider: provider,
		timeout:  20 * time.Second,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts text into a StructuredQuery. It never fails on provider
// errors; every understanding call has a deterministic fallback. The only
// returned error is context cancellation.
func (p *Parser) Parse(ctx context.Context, text string) (models.StructuredQuery, error) {
	if err := ctx.Err(); err != nil {
		return models.StructuredQuery{}, err
	}

	entities := p.extractEntities(ctx, text)
	intent := p.classifyIntent(ctx, text)
	scope := p.determineScope(ctx, text, intent)
	constraints := ExtractConstraints(text)

	q := models.StructuredQuery{
		OriginalQuery: text,
		Entities:      entities,
		Intent:        intent,
		Scope:         scope,
		Constraints:   constraints,
	}
	q.Complexity = ScoreComplexity(q)
	q.Confidence = EntityConfidence(entities)
	return q, nil
}

// ── Entity extraction ──

const entitySystemPrompt = `You extract entities from questions about US public companies and their SEC filings.
Extract only entities literally present in the question. Confidence is your certainty in [0,1].`

const entitySchemaHint = `{
  "companies":    [{"name": "", "ticker": "", "cik": "", "confidence": 0.0}],
  "concepts":     [{"concept": "", "domain": "business|financial|risk", "confidence": 0.0}],
  "time_ranges":  [{"expression": "", "start": "", "end": "", "confidence": 0.0}],
  "metrics":      [{"metric": "", "confidence": 0.0}],
  "filing_types": [{"form": "", "confidence": 0.0}],
  "amounts":      [{"raw": "", "value": 0, "confidence": 0.0}],
  "people":       [{"name": "", "confidence": 0.0}],
  "locations":    [{"name": "", "confidence": 0.0}]
}`

func (p *Parser) extractEntities(ctx context.Context, text string) models.QueryEntities {
	content, err := llm.Complete(ctx, p.provider, entitySystemPrompt, text, entitySchemaHint, p.opts, p.timeout)
	if err != nil {
		p.log.Warn().Err(err).Msg("entity extraction call failed, using fallback")
		return FallbackEntities(text)
	}

	var entities models.QueryEntities
	if err := llm.Decode(content, &entities); err != nil {
		p.log.Warn().Err(err).Msg("entity extraction response malformed, using fallback")
		return FallbackEntities(text)
	}

	clampEntityConfidence(&entities)
	return entities
}

// clampEntityConfidence keeps every per-entity confidence inside [0,1]
// regardless of what the provider returned.
func clampEntityConfidence(e *models.QueryEntities) {
	for i := range e.Companies {
		e.Companies[i].Confidence = clamp01(e.Companies[i].Confidence)
	}
	for i := range e.Concepts {
		e.Concepts[i].Confidence = clamp01(e.Concepts[i].Confidence)
	}
	for i := range e.TimeRanges {
		e.TimeRanges[i].Confidence = clamp01(e.TimeRanges[i].Confidence)
	}
	for i := range e.Metrics {
		e.Metrics[i].Confidence = clamp01(e.Metrics[i].Confidence)
	}
	for i := range e.FilingTypes {
		e.FilingTypes[i].Confidence = clamp01(e.FilingTypes[i].Confidence)
	}
	for i := range e.Amounts {
		e.Amounts[i].Confidence = clamp01(e.Amounts[i].Confidence)
	}
	for i := range e.People {
		e.People[i].Confidence = clamp01(e.People[i].Confidence)
	}
	for i := range e.Locations {
		e.Locations[i].Confidence = clamp01(e.Locations[i].Confidence)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ── Intent classification ──

const intentSystemPrompt = `You classify the intent of questions about US public companies and SEC filings.
primary must be one of: business_overview, financial_metrics, comparative_analysis, trend_analysis,
content_search, filing_lookup, risk_analysis, regulatory_analysis, market_analysis,
relationship_analysis, pattern_analysis, predictive_analysis, meta_analysis.
secondary lists additional modifiers from the same vocabulary, excluding primary.`

const intentSchemaHint = `{"primary": "", "secondary": [""]}`

type intentPayload struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

func (p *Parser) classifyIntent(ctx context.Context, text string) models.QueryIntent {
	intent := models.QueryIntent{Secondary: []string{}}

	content, err := llm.Complete(ctx, p.provider, intentSystemPrompt, text, intentSchemaHint, p.opts, p.timeout)
	if err == nil {
		var payload intentPayload
		if derr := llm.Decode(content, &payload); derr == nil &&
			models.PrimaryIntent(payload.Primary).Valid() {
			intent.Primary = models.PrimaryIntent(payload.Primary)
			for _, s := range payload.Secondary {
				if models.PrimaryIntent(s).Valid() && models.PrimaryIntent(s) != intent.Primary {
					intent.Secondary = append(intent.Secondary, s)
				}
			}
		}
	} else {
		p.log.Warn().Err(err).Msg("intent classification call failed, using fallback")
	}

	if intent.Primary == "" {
		intent.Primary = FallbackIntent(text)
	}

	intent.RequiresAnalysis = analysisRe.MatchString(text)
	intent.RequiresComparison = comparisonRe.MatchString(text)
	intent.RequiresHistorical = historicalRe.MatchString(text)
	return intent
}

// ── Scope determination ──

const scopeSystemPrompt = `You determine what data is needed to answer a question about US public companies.
categories is a subset of: business_description, financial_data, risk_factors, filing_history, ownership, management.
granularity: summary|detailed|full. perspective: factual|analytical|critical.
breadth: single_company|multi_company|sector. depth: surface|moderate|deep.`

const scopeSchemaHint = `{"categories": [""], "granularity": "", "perspective": "", "breadth": "", "depth": ""}`

type scopePayload struct {
	Categories  []string `json:"categories"`
	Granularity string   `json:"granularity"`
	Perspective string   `json:"perspective"`
	Breadth     string   `json:"breadth"`
	Depth       string   `json:"depth"`
}

var validCategories = map[models.DataCategory]bool{
	models.CategoryBusinessDescription: true,
	models.CategoryFinancialData:       true,
	models.CategoryRiskFactors:         true,
	models.CategoryFilingHistory:       true,
	models.CategoryOwnership:           true,
	models.CategoryManagement:          true,
}

func (p *Parser) determineScope(ctx context.Context, text string, intent models.QueryIntent) models.QueryScope {
	content, err := llm.Complete(ctx, p.provider, scopeSystemPrompt, text, scopeSchemaHint, p.opts, p.timeout)
	if err != nil {
		p.log.Warn().Err(err).Msg("scope determination call failed, using fallback")
		return FallbackScope(intent)
	}

	var payload scopePayload
	if err := llm.Decode(content, &payload); err != nil {
		p.log.Warn().Err(err).Msg("scope response malformed, using fallback")
		return FallbackScope(intent)
	}

	scope := models.QueryScope{
		Granularity: models.Granularity(payload.Granularity),
		Perspective: models.Perspective(payload.Perspective),
		Breadth:     models.Breadth(payload.Breadth),
		Depth:       models.Depth(payload.Depth),
	}
	for _, c := range payload.Categories {
		if cat := models.DataCategory(c); validCategories[cat] {
			scope.Categories = append(scope.Categories, cat)
		}
	}
	if len(scope.Categories) == 0 {
		return FallbackScope(intent)
	}
	if scope.Granularity == "" {
		scope.Granularity = models.GranularitySummary
	}
	if scope.Perspective == "" {
		scope.Perspective = models.PerspectiveFactual
	}
	if scope.Breadth == "" {
		scope.Breadth = models.BreadthSingleCompany
	}
	if scope.Depth == "" {
		scope.Depth = models.DepthSurface
	}
	return scope
}

// ── Complexity scoring ──

// ScoreComplexity counts complexity indicators and maps the count onto the
// complexity ladder: 6+ research, 4-5 analytical, 2-3 compound, else simple.
func ScoreComplexity(q models.StructuredQuery) models.QueryComplexity {
	indicators := 0
	if len(q.Entities.Companies) > 1 {
		indicators++
	}
	if len(q.Entities.TimeRanges) > 1 {
		indicators++
	}
	if len(q.Entities.Concepts) > 2 {
		indicators++
	}
	if q.Intent.RequiresAnalysis {
		indicators++
	}
	if q.Intent.RequiresComparison {
		indicators++
	}
	if q.Intent.RequiresHistorical {
		indicators++
	}
	if len(q.Intent.Secondary) > 0 {
		indicators++
	}
	if analyticalVerbRe.MatchString(q.OriginalQuery) {
		indicators++
	}

	switch {
	case indicators >= 6:
		return models.ComplexityResearch
	case indicators >= 4:
		return models.ComplexityAnalytical
	case indicators >= 2:
		return models.ComplexityCompound
	default:
		return models.ComplexitySimple
	}
}

// ── Confidence ──

// EntityConfidence averages per-category mean entity confidence across
// companies, concepts, time ranges, and metrics. Empty categories are
// skipped, not counted as zero. All empty yields 0.5.
func EntityConfidence(e models.QueryEntities) float64 {
	var sums []float64

	if avg, ok := avgConfidence(companyConfs(e.Companies)); ok {
		sums = append(sums, avg)
	}
	if avg, ok := avgConfidence(conceptConfs(e.Concepts)); ok {
		sums = append(sums, avg)
	}
	if avg, ok := avgConfidence(timeRangeConfs(e.TimeRanges)); ok {
		sums = append(sums, avg)
	}
	if avg, ok := avgConfidence(metricConfs(e.Metrics)); ok {
		sums = append(sums, avg)
	}

	if len(sums) == 0 {
		return 0.5
	}
	total := 0.0
	for _, s := range sums {
		total += s
	}
	return total / float64(len(sums))
}

func avgConfidence(confs []float64) (float64, bool) {
	if len(confs) == 0 {
		return 0, false
	}
	total := 0.0
	for _, c := range confs {
		total += c
	}
	return total / float64(len(confs)), true
}

func companyConfs(refs []models.CompanyRef) []float64 {
	out := make([]float64, len(refs))
	for i, r := range refs {
		out[i] = r.Confidence
	}
	return out
}

func conceptConfs(refs []models.ConceptRef) []float64 {
	out := make([]float64, len(refs))
	for i, r := range refs {
		out[i] = r.Confidence
	}
	return out
}

func timeRangeConfs(refs []models.TimeRangeRef) []float64 {
	out := make([]float64, len(refs))
	for i, r := range refs {
		out[i] = r.Confidence
	}
	return out
}

func metricConfs(refs []models.MetricRef) []float64 {
	out := make([]float64, len(refs))
	for i, r := range refs {
		out[i] = r.Confidence
	}
	return out
}
