package synth

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/pkg/models"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func lookupKnowledge() models.KnowledgeSet {
	return models.KnowledgeSet{
		Companies: []models.CompanyKnowledge{{
			Identity: models.CompanyIdentity{CIK: "0000320193", Name: "Apple Inc.", Ticker: "AAPL", Sector: "Manufacturing"},
			RecentFilings: []models.FilingSummary{
				{AccessionNumber: "0000320193-23-000106", Form: "10-K", FilingDate: date(2023, 11, 3), PrimaryDocument: "aapl-20230930.htm"},
				{AccessionNumber: "0000320193-23-000077", Form: "10-Q", FilingDate: date(2023, 8, 4), PrimaryDocument: "aapl-20230701.htm"},
				{AccessionNumber: "0000320193-23-000064", Form: "10-Q", FilingDate: date(2023, 5, 3), PrimaryDocument: "aapl-20230401.htm"},
			},
		}},
		Confidence:   0.9,
		Completeness: 0.8,
	}
}

func TestFilingLookupNarrativeLastTwo(t *testing.T) {
	narrative := FilingLookupNarrative("Show me the last 2 filings for Apple", lookupKnowledge())

	if !strings.Contains(narrative, "1. 10-K filed 2023-11-03 (accession 0000320193-23-000106)") {
		t.Errorf("first item missing or malformed:\n%s", narrative)
	}
	if !strings.Contains(narrative, "2. 10-Q filed 2023-08-04 (accession 0000320193-23-000077)") {
		t.Errorf("second item missing or malformed:\n%s", narrative)
	}
	if strings.Contains(narrative, "\n3. ") || strings.Contains(narrative, "0000320193-23-000064") {
		t.Errorf("third filing should be omitted:\n%s", narrative)
	}
	if !strings.Contains(narrative, "https://www.sec.gov/Archives/edgar/data/0000320193/000032019323000106/aapl-20230930.htm") {
		t.Errorf("document link missing:\n%s", narrative)
	}
	if !strings.Contains(narrative, "Browse all filings:") {
		t.Errorf("browse link missing:\n%s", narrative)
	}
	if !strings.Contains(narrative, "10-K = annual report") {
		t.Errorf("form glossary missing:\n%s", narrative)
	}
}

func TestParseFilingCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"show the last 2 filings", 2},
		{"latest 10 filings for Apple", 10},
		{"3 filings please", 3},
		{"show me recent filings", defaultFilingCount},
		{"", defaultFilingCount},
	}
	for _, tc := range cases {
		if got := parseFilingCount(tc.text); got != tc.want {
			t.Errorf("parseFilingCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestSynthesizeFilingLookupSkipsProvider(t *testing.T) {
	stub := llm.NewStubProvider("should not be used")
	s := NewSynthesizer(stub)

	query := models.StructuredQuery{
		OriginalQuery: "last 2 filings for Apple",
		Intent:        models.QueryIntent{Primary: models.IntentFilingLookup},
	}
	answer, err := s.Synthesize(context.Background(), query, lookupKnowledge())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if stub.Calls() != 0 {
		t.Errorf("provider called %d times on the fast path", stub.Calls())
	}
	if !strings.Contains(answer.Narrative, "accession 0000320193-23-000106") {
		t.Errorf("narrative = %q", answer.Narrative)
	}
	if answer.Metadata.QueryID == "" {
		t.Error("metadata query id missing")
	}
}

func TestSynthesizeGeneralPathAndFallback(t *testing.T) {
	knowledge := lookupKnowledge()
	knowledge.Companies[0].Business = &models.BusinessProfile{
		Description: "Apple designs and sells consumer electronics. It also operates digital services.",
		Source:      "0000320193-23-000106",
	}
	query := models.StructuredQuery{
		OriginalQuery: "What does Apple do?",
		Intent:        models.QueryIntent{Primary: models.IntentBusinessOverview},
	}

	t.Run("provider narrative used", func(t *testing.T) {
		stub := llm.NewStubProvider("Apple designs consumer electronics and sells digital services, per its latest annual report.")
		s := NewSynthesizer(stub)
		answer, err := s.Synthesize(context.Background(), query, knowledge)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if !strings.Contains(answer.Narrative, "consumer electronics") {
			t.Errorf("narrative = %q", answer.Narrative)
		}
		if stub.Calls() != 1 {
			t.Errorf("provider calls = %d", stub.Calls())
		}
	})

	t.Run("fallback on provider error", func(t *testing.T) {
		stub := llm.NewStubProvider("").Fail(llm.ErrProviderDown)
		s := NewSynthesizer(stub)
		answer, err := s.Synthesize(context.Background(), query, knowledge)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if !strings.Contains(answer.Narrative, "Apple Inc. (CIK 0000320193)") {
			t.Errorf("fallback narrative = %q", answer.Narrative)
		}
		if !strings.Contains(answer.Narrative, "consumer electronics") {
			t.Errorf("fallback should include the business description: %q", answer.Narrative)
		}
	})
}

func TestBuildCitations(t *testing.T) {
	knowledge := lookupKnowledge()
	knowledge.Filings = []models.FilingKnowledge{{
		CIK:             "0000320193",
		AccessionNumber: "0000320193-23-000106",
		Form:            "10-K",
		PrimaryDocument: "aapl-20230930.htm",
	}}
	knowledge.Sources = []models.DataSource{
		{Type: models.SourceFilingsDirectory, Name: "EDGAR submissions 0000320193"},
		{Type: models.SourceFilingDocument, Name: "10-K 0000320193-23-000106"},
	}

	citations := BuildCitations(knowledge)
	if len(citations) != 2 {
		t.Fatalf("citations = %d, want 2 (filing + directory): %+v", len(citations), citations)
	}

	filing := citations[0]
	wantURL := "https://www.sec.gov/Archives/edgar/data/0000320193/000032019323000106/aapl-20230930.htm"
	if filing.URL != wantURL {
		t.Errorf("URL = %q, want %q", filing.URL, wantURL)
	}
	if filing.Confidence != 0.95 || filing.Relevance != 0.9 {
		t.Errorf("filing citation scores = %v/%v", filing.Confidence, filing.Relevance)
	}
	if filing.AccessionNumber != "0000320193-23-000106" {
		t.Errorf("accession = %q", filing.AccessionNumber)
	}

	source := citations[1]
	if source.Confidence != 0.9 || source.Relevance != 0.8 {
		t.Errorf("source citation scores = %v/%v", source.Confidence, source.Relevance)
	}
}

func TestBuildAssessmentScaling(t *testing.T) {
	longNarrative := strings.Repeat("A detailed and well supported answer. ", 5)

	base := models.StructuredQuery{Complexity: models.ComplexitySimple}
	knowledge := models.KnowledgeSet{
		Companies:    []models.CompanyKnowledge{{Identity: models.CompanyIdentity{Name: "Apple Inc."}}},
		Confidence:   0.8,
		Completeness: 0.7,
	}
	base.Entities.Companies = []models.CompanyRef{{Name: "Apple"}}

	t.Run("research complexity scales by 0.8", func(t *testing.T) {
		q := base
		q.Complexity = models.ComplexityResearch
		a := BuildAssessment(q, knowledge, longNarrative)
		if math.Abs(a.Confidence-0.64) > 1e-9 {
			t.Errorf("confidence = %v, want 0.64", a.Confidence)
		}
	})

	t.Run("short narrative scales by 0.6", func(t *testing.T) {
		a := BuildAssessment(base, knowledge, "Too short.")
		if math.Abs(a.Confidence-0.48) > 1e-9 {
			t.Errorf("confidence = %v, want 0.48", a.Confidence)
		}
	})

	t.Run("failure phrase scales by 0.7", func(t *testing.T) {
		narrative := "The requested financial details could not be located in the available filings for this period. Additional sources may be required."
		a := BuildAssessment(base, knowledge, narrative)
		if math.Abs(a.Confidence-0.8*0.7) > 1e-9 {
			t.Errorf("confidence = %v, want %v", a.Confidence, 0.8*0.7)
		}
	})

	t.Run("clamped to 0.1 floor", func(t *testing.T) {
		empty := models.KnowledgeSet{}
		a := BuildAssessment(base, empty, "x")
		if a.Confidence != 0.1 {
			t.Errorf("confidence = %v, want 0.1", a.Confidence)
		}
		if a.Completeness != 0.1 {
			t.Errorf("completeness = %v, want 0.1", a.Completeness)
		}
	})

	t.Run("lists are never nil", func(t *testing.T) {
		a := BuildAssessment(base, models.KnowledgeSet{}, "x")
		if a.Limitations == nil || a.Assumptions == nil || a.DataFreshness == nil || a.BiasRisks == nil {
			t.Errorf("assessment lists must be non-nil: %+v", a)
		}
	})
}

func TestBuildAnswerData(t *testing.T) {
	two := models.KnowledgeSet{Companies: []models.CompanyKnowledge{
		{
			Identity: models.CompanyIdentity{Name: "Apple Inc.", Sector: "Manufacturing"},
			Financials: &models.FinancialProfile{Metrics: []models.FinancialMetric{
				{Label: "Revenue", Value: 383_285_000_000, Unit: "USD", PeriodEnd: date(2023, 9, 30), Form: "10-K"},
			}},
		},
		{Identity: models.CompanyIdentity{Name: "Microsoft Corp", Sector: "Services"}},
	}}

	query := models.StructuredQuery{
		Intent: models.QueryIntent{Primary: models.IntentComparativeAnalysis, RequiresComparison: true},
	}
	data := BuildAnswerData(query, two)
	if data == nil || data.Comparison == nil {
		t.Fatalf("data = %+v, want comparison table", data)
	}
	if len(data.Comparison.Rows) != 2 {
		t.Errorf("comparison rows = %d", len(data.Comparison.Rows))
	}
	if data.Comparison.Rows[0][2] != "$383.3B" {
		t.Errorf("revenue cell = %q", data.Comparison.Rows[0][2])
	}
	if data.Comparison.Rows[1][2] != "n/a" {
		t.Errorf("missing revenue cell = %q", data.Comparison.Rows[1][2])
	}

	// A single company never produces a comparison.
	one := models.KnowledgeSet{Companies: two.Companies[:1]}
	if d := BuildAnswerData(query, one); d != nil && d.Comparison != nil {
		t.Error("comparison built for a single company")
	}
}

func TestRiskTableCap(t *testing.T) {
	factors := make([]models.RiskFactor, 14)
	for i := range factors {
		factors[i] = models.RiskFactor{Description: "risk", Category: models.RiskGeneralBusiness, Severity: models.SeverityLow}
	}
	knowledge := models.KnowledgeSet{Companies: []models.CompanyKnowledge{{
		Identity: models.CompanyIdentity{Name: "Apple Inc."},
		Risks:    &models.RiskProfile{Factors: factors},
	}}}
	query := models.StructuredQuery{Intent: models.QueryIntent{Primary: models.IntentRiskAnalysis}}

	data := BuildAnswerData(query, knowledge)
	if data == nil || data.RiskFactors == nil {
		t.Fatal("risk table missing")
	}
	if len(data.RiskFactors.Rows) != maxRiskTableRows {
		t.Errorf("risk rows = %d, want %d", len(data.RiskFactors.Rows), maxRiskTableRows)
	}
}

func TestFilingTimeline(t *testing.T) {
	knowledge := lookupKnowledge()
	query := models.StructuredQuery{Intent: models.QueryIntent{RequiresHistorical: true}}

	data := BuildAnswerData(query, knowledge)
	if data == nil || len(data.Timeline) != 3 {
		t.Fatalf("timeline = %+v", data)
	}
	if !data.Timeline[0].Date.Before(data.Timeline[1].Date) {
		t.Error("timeline not chronological")
	}
}

func TestBuildFollowUp(t *testing.T) {
	knowledge := models.KnowledgeSet{Companies: []models.CompanyKnowledge{
		{Identity: models.CompanyIdentity{Sector: "Manufacturing"}},
		{Identity: models.CompanyIdentity{Sector: "Services"}},
		{Identity: models.CompanyIdentity{Sector: "Manufacturing"}},
	}}
	query := models.StructuredQuery{Intent: models.QueryIntent{Primary: models.IntentRiskAnalysis}}

	fu := BuildFollowUp(query, knowledge)
	if len(fu.Queries) == 0 {
		t.Error("no follow-up queries")
	}
	if len(fu.Topics) != 2 {
		t.Errorf("topics = %v, want two distinct sectors", fu.Topics)
	}
}
