// Package pipeline sequences the three query-intelligence stages and owns
// every gating and fallback decision. Process never returns an error: any
// stage failure or gate violation degrades to a canned answer.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/pkg/models"
)

// State names a pipeline stage or terminal outcome.
type State string

const (
	StateParsing      State = "parsing"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"

	StateLowConfidenceParse State = "low_confidence_parse"
	StateInsufficientData   State = "insufficient_data"
	StateSystemError        State = "system_error"
)

// Confidence gates between stages.
const (
	parseGate   = 0.1
	extractGate = 0.2
	routerGate  = 0.3
)

// Parser is the first stage.
type Parser interface {
	Parse(ctx context.Context, text string) (models.StructuredQuery, error)
}

// Extractor is the second stage.
type Extractor interface {
	Extract(ctx context.Context, query models.StructuredQuery) (models.KnowledgeSet, error)
}

// Synthesizer is the third stage.
type Synthesizer interface {
	Synthesize(ctx context.Context, query models.StructuredQuery, knowledge models.KnowledgeSet) (models.UniversalAnswer, error)
}

// Orchestrator drives parse → extract → synthesize with confidence gates.
type Orchestrator struct {
	parser   Parser
	extract  Extractor
	synth    Synthesizer
	router   KnowledgeRouter // optional alternate knowledge provider
	deadline time.Duration
	onState  func(State)
	log      zerolog.Logger
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRouter enables the alternate tool-routing knowledge provider. It is
// tried before direct extraction and used when its confidence clears the
// gate.
func WithRouter(r KnowledgeRouter) OrchestratorOption {
	return func(o *Orchestrator) { o.router = r }
}

// WithDeadline bounds one Process call end to end.
func WithDeadline(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.deadline = d }
}

// WithStateFunc installs a stage-transition callback, e.g. for streaming
// progress to clients.
func WithStateFunc(fn func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.onState = fn }
}

// WithPipelineLogger sets the orchestrator's logger.
func WithPipelineLogger(log zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log.With().Str("component", "pipeline").Logger() }
}

// NewOrchestrator wires the three stages together.
func NewOrchestrator(p Parser, e Extractor, s Synthesizer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		parser:   p,
		extract:  e,
		synth:    s,
		deadline: 2 * time.Minute,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) notify(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}

// Process answers one natural-language query. It always returns a usable
// UniversalAnswer; stage failures and gate violations produce canned
// degraded answers instead of errors.
func (o *Orchestrator) Process(ctx context.Context, text string) models.UniversalAnswer {
	start := time.Now()
	if o.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	o.notify(StateParsing)
	query, err := o.parser.Parse(ctx, text)
	if err != nil {
		o.notify(StateSystemError)
		return o.systemErrorAnswer(text, err, start)
	}
	if query.Confidence < parseGate {
		o.log.Info().Float64("confidence", query.Confidence).Msg("parse confidence below gate")
		o.notify(StateLowConfidenceParse)
		return o.lowConfidenceAnswer(query, start)
	}

	o.notify(StateExtracting)
	knowledge, err := o.gatherKnowledge(ctx, query)
	if err != nil {
		o.notify(StateSystemError)
		return o.systemErrorAnswer(text, err, start)
	}
	if knowledge.Confidence < extractGate {
		o.log.Info().Float64("confidence", knowledge.Confidence).Msg("extraction confidence below gate")
		o.notify(StateInsufficientData)
		return o.insufficientDataAnswer(query, knowledge, start)
	}

	o.notify(StateSynthesizing)
	answer, err := o.synth.Synthesize(ctx, query, knowledge)
	if err != nil {
		o.notify(StateSystemError)
		return o.systemErrorAnswer(text, err, start)
	}

	o.notify(StateDone)
	answer.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	return answer
}

// gatherKnowledge tries the alternate tool-routing provider first when one
// is configured; a routing error or a confidence below the gate falls back
// to direct extraction.
func (o *Orchestrator) gatherKnowledge(ctx context.Context, query models.StructuredQuery) (models.KnowledgeSet, error) {
	if o.router != nil {
		res, err := o.router.Route(ctx, query)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return models.KnowledgeSet{}, err
			}
			o.log.Warn().Err(err).Msg("tool router failed, falling back to direct extraction")
		case res.Confidence >= routerGate:
			o.log.Debug().Float64("confidence", res.Confidence).Strs("tools", res.ToolsUsed).Msg("using tool-routed knowledge")
			return res.Knowledge, nil
		default:
			o.log.Debug().Float64("confidence", res.Confidence).Msg("tool-routed knowledge below gate, extracting directly")
		}
	}
	return o.extract.Extract(ctx, query)
}

// Canned degraded answers. Each carries a deterministic id prefix so
// callers can recognize the outcome without parsing the narrative.

func (o *Orchestrator) lowConfidenceAnswer(query models.StructuredQuery, start time.Time) models.UniversalAnswer {
	narrative := fmt.Sprintf(
		"I could not confidently interpret the question %q. Try naming a specific company, ticker, or filing type.",
		query.OriginalQuery)
	return degradedAnswer("low_confidence_", narrative, query.Complexity, clampFloor(query.Confidence), start,
		[]string{"The query could not be mapped to known companies or filing concepts."})
}

func (o *Orchestrator) insufficientDataAnswer(query models.StructuredQuery, knowledge models.KnowledgeSet, start time.Time) models.UniversalAnswer {
	narrative := "Not enough data could be retrieved to answer this question reliably. " +
		"The companies may be outside the known set, or their filings may be unavailable."
	return degradedAnswer("insufficient_data_", narrative, query.Complexity, clampFloor(knowledge.Confidence), start,
		[]string{"Extraction did not yield enough data to support an answer."})
}

func (o *Orchestrator) systemErrorAnswer(text string, err error, start time.Time) models.UniversalAnswer {
	o.log.Error().Err(err).Str("query", text).Msg("pipeline stage failed")
	narrative := fmt.Sprintf("An internal error prevented answering this question: %v", err)
	return degradedAnswer("error_", narrative, models.ComplexitySimple, 0.1, start,
		[]string{"Processing failed before an answer could be assembled."})
}

func degradedAnswer(idPrefix, narrative string, complexity models.QueryComplexity, confidence float64, start time.Time, limitations []string) models.UniversalAnswer {
	return models.UniversalAnswer{
		Narrative: narrative,
		Citations: []models.Citation{},
		Assessment: models.Assessment{
			Confidence:    confidence,
			Completeness:  0.1,
			Limitations:   limitations,
			Assumptions:   []string{},
			DataFreshness: []string{},
			BiasRisks:     []string{},
		},
		FollowUp: models.FollowUp{
			Queries: []string{
				"What are the most recent filings for a specific company?",
				"What does a specific company do?",
			},
			Topics: []string{},
		},
		Metadata: models.AnswerMetadata{
			QueryID:          idPrefix + uuid.NewString(),
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Complexity:       complexity,
			Confidence:       confidence,
		},
	}
}

func clampFloor(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	return v
}
