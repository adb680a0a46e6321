package query

import (
	"regexp"
	"strings"

	"github.com/seenimoa/openedgarai/internal/reference"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// Deterministic fallback extraction. Used whenever the understanding
// provider is unavailable or returns something that fails strict decoding.

var (
	filingFormRe = regexp.MustCompile(`(?i)\b(10-k|10-q|8-k|s-1|def 14a|13f|20-f|form 4)\b`)
	yearRe       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	recencyRe    = regexp.MustCompile(`(?i)\b(latest|recent|last|newest|current)\b`)
	estimateRe   = regexp.MustCompile(`(?i)\b(estimate|estimates|projection|projections|forecast)\b`)
	forwardRe    = regexp.MustCompile(`(?i)\b(outlook|guidance|future|forward[- ]looking|next year)\b`)
)

var filingKeywords = []string{
	"filing", "filings", "annual report", "quarterly report", "proxy statement",
}

var businessConceptKeywords = []string{
	"business", "products", "services", "operations", "segment", "strategy",
	"competition", "customers", "market share",
}

var financialConceptKeywords = []string{
	"revenue", "sales", "net income", "profit", "earnings", "margin",
	"cash flow", "assets", "liabilities", "debt", "eps",
}

var riskConceptKeywords = []string{
	"risk", "risks", "threat", "exposure", "uncertainty", "litigation",
	"going concern",
}

var timeExpressionKeywords = []string{
	"last year", "this year", "last quarter", "past year", "past 5 years",
	"fiscal year", "ytd", "recently",
}

// FallbackEntities extracts entities from text with the curated company
// table and keyword lists.
func FallbackEntities(text string) models.QueryEntities {
	lower := strings.ToLower(text)
	var e models.QueryEntities

	for _, c := range reference.FindAll(text) {
		e.Companies = append(e.Companies, models.CompanyRef{
			Name:       c.Name,
			Ticker:     c.Ticker,
			CIK:        c.CIK,
			Confidence: 0.7,
		})
	}

	for _, kw := range businessConceptKeywords {
		if strings.Contains(lower, kw) {
			e.Concepts = append(e.Concepts, models.ConceptRef{Concept: kw, Domain: "business", Confidence: 0.6})
		}
	}
	for _, kw := range financialConceptKeywords {
		if strings.Contains(lower, kw) {
			e.Concepts = append(e.Concepts, models.ConceptRef{Concept: kw, Domain: "financial", Confidence: 0.6})
			e.Metrics = append(e.Metrics, models.MetricRef{Metric: kw, Confidence: 0.6})
		}
	}
	for _, kw := range riskConceptKeywords {
		if strings.Contains(lower, kw) {
			e.Concepts = append(e.Concepts, models.ConceptRef{Concept: kw, Domain: "risk", Confidence: 0.6})
		}
	}

	seen := map[string]bool{}
	for _, expr := range timeExpressionKeywords {
		if strings.Contains(lower, expr) && !seen[expr] {
			seen[expr] = true
			e.TimeRanges = append(e.TimeRanges, models.TimeRangeRef{Expression: expr, Confidence: 0.6})
		}
	}
	for _, year := range yearRe.FindAllString(text, -1) {
		if !seen[year] {
			seen[year] = true
			e.TimeRanges = append(e.TimeRanges, models.TimeRangeRef{
				Expression: year,
				Start:      year + "-01-01",
				End:        year + "-12-31",
				Confidence: 0.6,
			})
		}
	}

	forms := map[string]bool{}
	for _, m := range filingFormRe.FindAllString(text, -1) {
		form := strings.ToUpper(m)
		if !forms[form] {
			forms[form] = true
			e.FilingTypes = append(e.FilingTypes, models.FilingTypeRef{Form: form, Confidence: 0.8})
		}
	}

	return e
}

// FallbackIntent classifies intent with a keyword ladder. First match wins.
func FallbackIntent(text string) models.PrimaryIntent {
	lower := strings.ToLower(text)

	if filingFormRe.MatchString(text) || containsAny(lower, filingKeywords) {
		return models.IntentFilingLookup
	}
	if strings.Contains(lower, "what") || strings.Contains(lower, "business") {
		return models.IntentBusinessOverview
	}
	if containsAny(lower, []string{"revenue", "profit", "income", "earnings", "margin"}) {
		return models.IntentFinancialMetrics
	}
	if strings.Contains(lower, "compare") || strings.Contains(lower, "vs") {
		return models.IntentComparativeAnalysis
	}
	if strings.Contains(lower, "risk") {
		return models.IntentRiskAnalysis
	}
	if strings.Contains(lower, "trend") || strings.Contains(lower, "over time") {
		return models.IntentTrendAnalysis
	}
	return models.IntentBusinessOverview
}

// FallbackScope returns a minimal single-company scope whose data category
// follows from the intent.
func FallbackScope(intent models.QueryIntent) models.QueryScope {
	category := models.CategoryBusinessDescription
	switch intent.Primary {
	case models.IntentFinancialMetrics, models.IntentTrendAnalysis, models.IntentComparativeAnalysis:
		category = models.CategoryFinancialData
	case models.IntentRiskAnalysis, models.IntentRegulatoryAnalysis:
		category = models.CategoryRiskFactors
	case models.IntentFilingLookup, models.IntentContentSearch:
		category = models.CategoryFilingHistory
	}

	breadth := models.BreadthSingleCompany
	if intent.RequiresComparison {
		breadth = models.BreadthMultiCompany
	}

	return models.QueryScope{
		Categories:  []models.DataCategory{category},
		Granularity: models.GranularitySummary,
		Perspective: models.PerspectiveFactual,
		Breadth:     breadth,
		Depth:       models.DepthSurface,
	}
}

// ExtractConstraints derives query constraints from the text. Always
// deterministic, no provider involved.
func ExtractConstraints(text string) models.QueryConstraints {
	lower := strings.ToLower(text)

	c := models.QueryConstraints{
		MinConfidence:          0.0,
		MaxDataAgeDays:         365,
		RequireOfficialFilings: true,
	}
	if recencyRe.MatchString(text) {
		c.MaxDataAgeDays = 30
	}
	if yearRe.MatchString(text) || containsAny(lower, timeExpressionKeywords) || recencyRe.MatchString(text) {
		c.TimeBound = true
	}
	if estimateRe.MatchString(text) {
		c.RequireOfficialFilings = false
	} else {
		c.ExcludeEstimates = true
	}
	if forwardRe.MatchString(text) {
		c.IncludeForwardLooking = true
	}
	return c
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
