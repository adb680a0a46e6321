package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seenimoa/openedgarai/pkg/models"
)

type fakeParser struct {
	query models.StructuredQuery
	err   error
}

func (f fakeParser) Parse(ctx context.Context, text string) (models.StructuredQuery, error) {
	q := f.query
	q.OriginalQuery = text
	return q, f.err
}

type fakeExtractor struct {
	set   models.KnowledgeSet
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, q models.StructuredQuery) (models.KnowledgeSet, error) {
	f.calls++
	return f.set, f.err
}

type fakeSynth struct {
	answer models.UniversalAnswer
	err    error
}

func (f fakeSynth) Synthesize(ctx context.Context, q models.StructuredQuery, k models.KnowledgeSet) (models.UniversalAnswer, error) {
	return f.answer, f.err
}

type fakeRouter struct {
	result RouteResult
	err    error
	calls  int
}

func (f *fakeRouter) Route(ctx context.Context, q models.StructuredQuery) (RouteResult, error) {
	f.calls++
	return f.result, f.err
}

func goodParser() fakeParser {
	return fakeParser{query: models.StructuredQuery{Confidence: 0.85, Complexity: models.ComplexitySimple}}
}

func goodExtractor() *fakeExtractor {
	return &fakeExtractor{set: models.KnowledgeSet{
		Companies:  []models.CompanyKnowledge{{Identity: models.CompanyIdentity{CIK: "0000320193", Name: "Apple Inc."}}},
		Confidence: 0.8,
	}}
}

func goodSynth() fakeSynth {
	return fakeSynth{answer: models.UniversalAnswer{
		Narrative:  "Apple designs consumer electronics.",
		Citations:  []models.Citation{},
		Assessment: models.Assessment{Confidence: 0.8, Completeness: 0.7},
		Metadata:   models.AnswerMetadata{QueryID: "q-1"},
	}}
}

func TestProcessHappyPath(t *testing.T) {
	var states []State
	o := NewOrchestrator(goodParser(), goodExtractor(), goodSynth(),
		WithStateFunc(func(s State) { states = append(states, s) }))

	answer := o.Process(context.Background(), "What does Apple do?")
	if answer.Narrative != "Apple designs consumer electronics." {
		t.Errorf("narrative = %q", answer.Narrative)
	}
	if answer.Metadata.ProcessingTimeMs < 0 {
		t.Errorf("processing time = %d", answer.Metadata.ProcessingTimeMs)
	}

	want := []State{StateParsing, StateExtracting, StateSynthesizing, StateDone}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestProcessLowConfidenceParse(t *testing.T) {
	p := fakeParser{query: models.StructuredQuery{Confidence: 0.05}}
	e := goodExtractor()
	o := NewOrchestrator(p, e, goodSynth())

	answer := o.Process(context.Background(), "mumble")
	if !strings.HasPrefix(answer.Metadata.QueryID, "low_confidence_") {
		t.Errorf("query id = %q", answer.Metadata.QueryID)
	}
	if e.calls != 0 {
		t.Error("extraction should not run after a failed parse gate")
	}
	if answer.Assessment.Confidence != 0.1 {
		t.Errorf("confidence = %v", answer.Assessment.Confidence)
	}
}

func TestProcessInsufficientData(t *testing.T) {
	e := &fakeExtractor{set: models.KnowledgeSet{Confidence: 0.15}}
	o := NewOrchestrator(goodParser(), e, goodSynth())

	answer := o.Process(context.Background(), "question")
	if !strings.HasPrefix(answer.Metadata.QueryID, "insufficient_data_") {
		t.Errorf("query id = %q", answer.Metadata.QueryID)
	}
}

func TestProcessSystemError(t *testing.T) {
	cases := []struct {
		name string
		o    *Orchestrator
	}{
		{"parse error", NewOrchestrator(fakeParser{err: errors.New("boom")}, goodExtractor(), goodSynth())},
		{"extract error", NewOrchestrator(goodParser(), &fakeExtractor{err: errors.New("boom")}, goodSynth())},
		{"synthesis error", NewOrchestrator(goodParser(), goodExtractor(), fakeSynth{err: errors.New("boom")})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answer := tc.o.Process(context.Background(), "question")
			if !strings.HasPrefix(answer.Metadata.QueryID, "error_") {
				t.Errorf("query id = %q", answer.Metadata.QueryID)
			}
			if answer.Assessment.Confidence != 0.1 {
				t.Errorf("confidence = %v, want exactly 0.1", answer.Assessment.Confidence)
			}
			if !strings.Contains(answer.Narrative, "boom") {
				t.Errorf("narrative should embed the error: %q", answer.Narrative)
			}
		})
	}
}

func TestProcessUsesRouterAboveGate(t *testing.T) {
	routed := models.KnowledgeSet{
		Companies:  []models.CompanyKnowledge{{Identity: models.CompanyIdentity{CIK: "0000789019", Name: "Microsoft Corp"}}},
		Confidence: 0.5,
	}
	r := &fakeRouter{result: RouteResult{Success: true, Knowledge: routed, Confidence: 0.5}}
	e := goodExtractor()

	var got models.KnowledgeSet
	s := fakeSynthFunc(func(q models.StructuredQuery, k models.KnowledgeSet) (models.UniversalAnswer, error) {
		got = k
		return goodSynth().answer, nil
	})
	o := NewOrchestrator(goodParser(), e, s, WithRouter(r))

	o.Process(context.Background(), "question")
	if r.calls != 1 {
		t.Errorf("router calls = %d", r.calls)
	}
	if e.calls != 0 {
		t.Error("direct extraction should be skipped when the router clears the gate")
	}
	if len(got.Companies) != 1 || got.Companies[0].Identity.CIK != "0000789019" {
		t.Errorf("synthesizer got %+v, want routed knowledge", got.Companies)
	}
}

func TestProcessRouterFallback(t *testing.T) {
	t.Run("below gate", func(t *testing.T) {
		r := &fakeRouter{result: RouteResult{Confidence: 0.2}}
		e := goodExtractor()
		o := NewOrchestrator(goodParser(), e, goodSynth(), WithRouter(r))
		o.Process(context.Background(), "question")
		if e.calls != 1 {
			t.Errorf("extract calls = %d, want fallback to direct extraction", e.calls)
		}
	})

	t.Run("router error", func(t *testing.T) {
		r := &fakeRouter{err: errors.New("route failed")}
		e := goodExtractor()
		o := NewOrchestrator(goodParser(), e, goodSynth(), WithRouter(r))
		answer := o.Process(context.Background(), "question")
		if e.calls != 1 {
			t.Errorf("extract calls = %d, want fallback after router error", e.calls)
		}
		if strings.HasPrefix(answer.Metadata.QueryID, "error_") {
			t.Error("router error must not surface as a system error")
		}
	})
}

// fakeSynthFunc adapts a function to the Synthesizer interface.
type fakeSynthFunc func(models.StructuredQuery, models.KnowledgeSet) (models.UniversalAnswer, error)

func (f fakeSynthFunc) Synthesize(ctx context.Context, q models.StructuredQuery, k models.KnowledgeSet) (models.UniversalAnswer, error) {
	return f(q, k)
}
