package query

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// scriptedProvider routes canned responses by system-prompt content, since
// the parser's three understanding calls share the same user text.
type scriptedProvider struct {
	fn func(system string) (string, error)
}

func (s scriptedProvider) Name() string                   { return "scripted" }
func (s scriptedProvider) Models() []string               { return []string{"scripted-1"} }
func (s scriptedProvider) Ping(ctx context.Context) error { return nil }

func (s scriptedProvider) Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts *llm.ChatOptions) (*llm.Response, error) {
	var system string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = m.Content
		}
	}
	content, err := s.fn(system)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content, Provider: "scripted", FinishReason: llm.FinishStop}, nil
}

func understandingProvider(t *testing.T) llm.Provider {
	t.Helper()
	return scriptedProvider{fn: func(system string) (string, error) {
		switch {
		case strings.Contains(system, "extract entities"):
			return `{
				"companies": [{"name": "Apple Inc.", "ticker": "AAPL", "cik": "0000320193", "confidence": 0.95}],
				"concepts": [{"concept": "revenue", "domain": "financial", "confidence": 0.9}],
				"time_ranges": [{"expression": "2023", "start": "2023-01-01", "end": "2023-12-31", "confidence": 0.85}],
				"metrics": [{"metric": "revenue", "confidence": 0.9}],
				"filing_types": [],
				"amounts": [],
				"people": [],
				"locations": []
			}`, nil
		case strings.Contains(system, "classify the intent"):
			return `{"primary": "financial_metrics", "secondary": ["trend_analysis"]}`, nil
		case strings.Contains(system, "determine what data"):
			return `{"categories": ["financial_data"], "granularity": "detailed", "perspective": "analytical", "breadth": "single_company", "depth": "moderate"}`, nil
		}
		return "", errors.New("unexpected system prompt")
	}}
}

func TestParseWithProvider(t *testing.T) {
	p := NewParser(understandingProvider(t))

	q, err := p.Parse(context.Background(), "Analyze Apple's revenue trend in 2023")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(q.Entities.Companies) != 1 || q.Entities.Companies[0].CIK != "0000320193" {
		t.Fatalf("companies = %+v", q.Entities.Companies)
	}
	if q.Intent.Primary != models.IntentFinancialMetrics {
		t.Errorf("primary intent = %q", q.Intent.Primary)
	}
	if len(q.Intent.Secondary) != 1 || q.Intent.Secondary[0] != "trend_analysis" {
		t.Errorf("secondary = %v", q.Intent.Secondary)
	}
	if !q.Intent.RequiresAnalysis {
		t.Error("RequiresAnalysis should be set for 'Analyze ... trend'")
	}
	if q.Intent.RequiresComparison {
		t.Error("RequiresComparison should not be set")
	}
	if !q.Scope.Requests(models.CategoryFinancialData) {
		t.Errorf("scope categories = %v", q.Scope.Categories)
	}
	if q.Scope.Granularity != models.GranularityDetailed {
		t.Errorf("granularity = %q", q.Scope.Granularity)
	}

	// companies 0.95, concepts 0.9, time ranges 0.85, metrics 0.9 averaged
	want := (0.95 + 0.9 + 0.85 + 0.9) / 4
	if math.Abs(q.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", q.Confidence, want)
	}
}

func TestParseFallbackWhenProviderFails(t *testing.T) {
	down := scriptedProvider{fn: func(string) (string, error) {
		return "", llm.ErrProviderDown
	}}
	p := NewParser(down)

	q, err := p.Parse(context.Background(), "Show me Apple's latest 10-K filings")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(q.Entities.Companies) != 1 || q.Entities.Companies[0].CIK != "0000320193" {
		t.Fatalf("fallback companies = %+v", q.Entities.Companies)
	}
	if q.Entities.Companies[0].Confidence != 0.7 {
		t.Errorf("fallback company confidence = %v", q.Entities.Companies[0].Confidence)
	}
	if len(q.Entities.FilingTypes) != 1 || q.Entities.FilingTypes[0].Form != "10-K" {
		t.Errorf("filing types = %+v", q.Entities.FilingTypes)
	}
	if q.Intent.Primary != models.IntentFilingLookup {
		t.Errorf("fallback intent = %q", q.Intent.Primary)
	}
	if !q.Scope.Requests(models.CategoryFilingHistory) {
		t.Errorf("fallback scope = %v", q.Scope.Categories)
	}
	if q.Constraints.MaxDataAgeDays != 30 {
		t.Errorf("MaxDataAgeDays = %d, want 30 for 'latest'", q.Constraints.MaxDataAgeDays)
	}
	if !q.Constraints.RequireOfficialFilings {
		t.Error("RequireOfficialFilings should default true")
	}
}

func TestParseFallbackOnMalformedResponse(t *testing.T) {
	// Unknown field fails strict decoding and must trigger the fallback.
	malformed := scriptedProvider{fn: func(string) (string, error) {
		return `{"bogus": true}`, nil
	}}
	p := NewParser(malformed)

	q, err := p.Parse(context.Background(), "What does Microsoft do?")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.Entities.Companies) != 1 || q.Entities.Companies[0].Ticker != "MSFT" {
		t.Fatalf("fallback companies = %+v", q.Entities.Companies)
	}
	if q.Intent.Primary != models.IntentBusinessOverview {
		t.Errorf("intent = %q", q.Intent.Primary)
	}
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser(llm.NewStubProvider("{}"))
	if _, err := p.Parse(ctx, "anything"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestScoreComplexityLadder(t *testing.T) {
	build := func(indicators int) models.StructuredQuery {
		var q models.StructuredQuery
		q.OriginalQuery = "plain question"
		if indicators >= 1 {
			q.Entities.Companies = []models.CompanyRef{{Name: "A"}, {Name: "B"}}
		}
		if indicators >= 2 {
			q.Entities.TimeRanges = []models.TimeRangeRef{{Expression: "2022"}, {Expression: "2023"}}
		}
		if indicators >= 3 {
			q.Entities.Concepts = []models.ConceptRef{{Concept: "a"}, {Concept: "b"}, {Concept: "c"}}
		}
		if indicators >= 4 {
			q.Intent.RequiresAnalysis = true
		}
		if indicators >= 5 {
			q.Intent.RequiresComparison = true
		}
		if indicators >= 6 {
			q.Intent.RequiresHistorical = true
		}
		if indicators >= 7 {
			q.Intent.Secondary = []string{"trend_analysis"}
		}
		if indicators >= 8 {
			q.OriginalQuery = "assess the correlation"
		}
		return q
	}

	cases := []struct {
		indicators int
		want       models.QueryComplexity
	}{
		{0, models.ComplexitySimple},
		{1, models.ComplexitySimple},
		{2, models.ComplexityCompound},
		{3, models.ComplexityCompound},
		{4, models.ComplexityAnalytical},
		{5, models.ComplexityAnalytical},
		{6, models.ComplexityResearch},
		{8, models.ComplexityResearch},
	}
	for _, tc := range cases {
		if got := ScoreComplexity(build(tc.indicators)); got != tc.want {
			t.Errorf("indicators=%d: complexity = %q, want %q", tc.indicators, got, tc.want)
		}
	}
}

func TestEntityConfidence(t *testing.T) {
	t.Run("skips empty categories", func(t *testing.T) {
		e := models.QueryEntities{
			Companies:  []models.CompanyRef{{Confidence: 0.9}},
			TimeRanges: []models.TimeRangeRef{{Confidence: 0.8}},
		}
		if got := EntityConfidence(e); math.Abs(got-0.85) > 1e-9 {
			t.Errorf("confidence = %v, want 0.85", got)
		}
	})

	t.Run("all empty yields 0.5", func(t *testing.T) {
		if got := EntityConfidence(models.QueryEntities{}); got != 0.5 {
			t.Errorf("confidence = %v, want 0.5", got)
		}
	})

	t.Run("averages within a category first", func(t *testing.T) {
		e := models.QueryEntities{
			Companies: []models.CompanyRef{{Confidence: 1.0}, {Confidence: 0.5}},
			Metrics:   []models.MetricRef{{Confidence: 0.25}},
		}
		// ((1.0+0.5)/2 + 0.25) / 2 = 0.5
		if got := EntityConfidence(e); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("confidence = %v, want 0.5", got)
		}
	})
}

func TestFallbackIntent(t *testing.T) {
	cases := []struct {
		text string
		want models.PrimaryIntent
	}{
		{"Show me Tesla's recent filings", models.IntentFilingLookup},
		{"Get the latest 10-Q", models.IntentFilingLookup},
		{"What does Apple do?", models.IntentBusinessOverview},
		{"Microsoft revenue for 2023", models.IntentFinancialMetrics},
		{"Apple vs Microsoft margins", models.IntentFinancialMetrics},
		{"Compare Tesla and Ford", models.IntentComparativeAnalysis},
		{"Key risks for NVIDIA", models.IntentRiskAnalysis},
		{"Gibberish input here", models.IntentBusinessOverview},
	}
	for _, tc := range cases {
		if got := FallbackIntent(tc.text); got != tc.want {
			t.Errorf("FallbackIntent(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExtractConstraints(t *testing.T) {
	c := ExtractConstraints("Apple's latest revenue")
	if c.MaxDataAgeDays != 30 {
		t.Errorf("MaxDataAgeDays = %d, want 30", c.MaxDataAgeDays)
	}
	if !c.TimeBound {
		t.Error("TimeBound should be set by a recency word")
	}
	if !c.RequireOfficialFilings || !c.ExcludeEstimates {
		t.Errorf("defaults wrong: %+v", c)
	}

	c = ExtractConstraints("Analyst estimates for Tesla")
	if c.RequireOfficialFilings {
		t.Error("RequireOfficialFilings should be cleared when estimates are requested")
	}
	if c.ExcludeEstimates {
		t.Error("ExcludeEstimates should be cleared when estimates are requested")
	}
	if c.MaxDataAgeDays != 365 {
		t.Errorf("MaxDataAgeDays = %d, want 365", c.MaxDataAgeDays)
	}

	c = ExtractConstraints("Revenue guidance for next year")
	if !c.IncludeForwardLooking {
		t.Error("IncludeForwardLooking should be set by 'guidance'")
	}
}

func TestFallbackScope(t *testing.T) {
	scope := FallbackScope(models.QueryIntent{Primary: models.IntentRiskAnalysis})
	if !scope.Requests(models.CategoryRiskFactors) {
		t.Errorf("categories = %v", scope.Categories)
	}
	if scope.Breadth != models.BreadthSingleCompany {
		t.Errorf("breadth = %q", scope.Breadth)
	}

	scope = FallbackScope(models.QueryIntent{
		Primary:            models.IntentComparativeAnalysis,
		RequiresComparison: true,
	})
	if scope.Breadth != models.BreadthMultiCompany {
		t.Errorf("comparison breadth = %q", scope.Breadth)
	}
	if !scope.Requests(models.CategoryFinancialData) {
		t.Errorf("comparison categories = %v", scope.Categories)
	}
}
