// Package models defines the shared data structures flowing through the
// query intelligence pipeline: the structured query produced by the parser,
// the knowledge set produced by the extractor, and the universal answer
// produced by the synthesizer.
package models

// PrimaryIntent is the main goal of a query.
type PrimaryIntent string

const (
	IntentBusinessOverview     PrimaryIntent = "business_overview"
	IntentFinancialMetrics     PrimaryIntent = "financial_metrics"
	IntentComparativeAnalysis  PrimaryIntent = "comparative_analysis"
	IntentTrendAnalysis        PrimaryIntent = "trend_analysis"
	IntentContentSearch        PrimaryIntent = "content_search"
	IntentFilingLookup         PrimaryIntent = "filing_lookup"
	IntentRiskAnalysis         PrimaryIntent = "risk_analysis"
	IntentRegulatoryAnalysis   PrimaryIntent = "regulatory_analysis"
	IntentMarketAnalysis       PrimaryIntent = "market_analysis"
	IntentRelationshipAnalysis PrimaryIntent = "relationship_analysis"
	IntentPatternAnalysis      PrimaryIntent = "pattern_analysis"
	IntentPredictiveAnalysis   PrimaryIntent = "predictive_analysis"
	IntentMetaAnalysis         PrimaryIntent = "meta_analysis"
)

// PrimaryIntents lists every recognized primary intent.
var PrimaryIntents = []PrimaryIntent{
	IntentBusinessOverview,
	IntentFinancialMetrics,
	IntentComparativeAnalysis,
	IntentTrendAnalysis,
	IntentContentSearch,
	IntentFilingLookup,
	IntentRiskAnalysis,
	IntentRegulatoryAnalysis,
	IntentMarketAnalysis,
	IntentRelationshipAnalysis,
	IntentPatternAnalysis,
	IntentPredictiveAnalysis,
	IntentMetaAnalysis,
}

// Valid reports whether p is one of the recognized primary intents.
func (p PrimaryIntent) Valid() bool {
	for _, v := range PrimaryIntents {
		if p == v {
			return true
		}
	}
	return false
}

// QueryComplexity buckets queries by how much work answering them takes.
type QueryComplexity string

const (
	ComplexitySimple     QueryComplexity = "simple"
	ComplexityCompound   QueryComplexity = "compound"
	ComplexityAnalytical QueryComplexity = "analytical"
	ComplexityResearch   QueryComplexity = "research"
)

// DataCategory names a category of company data a query asks for.
type DataCategory string

const (
	CategoryBusinessDescription DataCategory = "business_description"
	CategoryFinancialData       DataCategory = "financial_data"
	CategoryRiskFactors         DataCategory = "risk_factors"
	CategoryFilingHistory       DataCategory = "filing_history"
	CategoryOwnership           DataCategory = "ownership"
	CategoryManagement          DataCategory = "management"
)

// Scope enums.
type (
	// Granularity is the level of detail requested.
	Granularity string
	// Perspective is the analytical angle requested.
	Perspective string
	// Breadth is how many entities the query spans.
	Breadth string
	// Depth is how deep the analysis should go.
	Depth string
)

const (
	GranularitySummary  Granularity = "summary"
	GranularityDetailed Granularity = "detailed"
	GranularityFull     Granularity = "full"

	PerspectiveFactual    Perspective = "factual"
	PerspectiveAnalytical Perspective = "analytical"
	PerspectiveCritical   Perspective = "critical"

	BreadthSingleCompany Breadth = "single_company"
	BreadthMultiCompany  Breadth = "multi_company"
	BreadthSector        Breadth = "sector"

	DepthSurface  Depth = "surface"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
)

// CompanyRef is a company mentioned in a query.
type CompanyRef struct {
	Name       string  `json:"name"`
	Ticker     string  `json:"ticker,omitempty"`
	CIK        string  `json:"cik,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ConceptRef is a business, financial, or risk concept mentioned in a query.
type ConceptRef struct {
	Concept    string  `json:"concept"`
	Domain     string  `json:"domain,omitempty"` // "business", "financial", "risk"
	Confidence float64 `json:"confidence"`
}

// TimeRangeRef is a time period mentioned in a query.
type TimeRangeRef struct {
	Expression string  `json:"expression"`       // original phrase, e.g. "last year"
	Start      string  `json:"start,omitempty"`  // YYYY-MM-DD when resolvable
	End        string  `json:"end,omitempty"`    // YYYY-MM-DD when resolvable
	Confidence float64 `json:"confidence"`
}

// MetricRef is a financial metric mentioned in a query.
type MetricRef struct {
	Metric     string  `json:"metric"` // e.g. "revenue", "net income"
	Confidence float64 `json:"confidence"`
}

// FilingTypeRef is a filing form type mentioned in a query.
type FilingTypeRef struct {
	Form       string  `json:"form"` // e.g. "10-K"
	Confidence float64 `json:"confidence"`
}

// AmountRef is a monetary or numeric amount mentioned in a query.
type AmountRef struct {
	Raw        string  `json:"raw"`
	Value      float64 `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
}

// PersonRef is a person mentioned in a query.
type PersonRef struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// LocationRef is a geographic location mentioned in a query.
type LocationRef struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// QueryEntities holds every entity extracted from a query.
type QueryEntities struct {
	Companies   []CompanyRef    `json:"companies"`
	Concepts    []ConceptRef    `json:"concepts"`
	TimeRanges  []TimeRangeRef  `json:"time_ranges"`
	Metrics     []MetricRef     `json:"metrics"`
	FilingTypes []FilingTypeRef `json:"filing_types"`
	Amounts     []AmountRef     `json:"amounts"`
	People      []PersonRef     `json:"people"`
	Locations   []LocationRef   `json:"locations"`
}

// QueryIntent is the classified goal of a query.
type QueryIntent struct {
	Primary            PrimaryIntent `json:"primary"`
	Secondary          []string      `json:"secondary"`
	RequiresAnalysis   bool          `json:"requires_analysis"`
	RequiresComparison bool          `json:"requires_comparison"`
	RequiresHistorical bool          `json:"requires_historical"`
}

// QueryScope describes what data the answer should draw on and at what level.
type QueryScope struct {
	Categories  []DataCategory `json:"categories"`
	Granularity Granularity    `json:"granularity"`
	Perspective Perspective    `json:"perspective"`
	Breadth     Breadth        `json:"breadth"`
	Depth       Depth          `json:"depth"`
}

// Requests reports whether the scope asks for the given data category.
func (s QueryScope) Requests(c DataCategory) bool {
	for _, cat := range s.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// QueryConstraints are hard requirements the answer must respect.
type QueryConstraints struct {
	TimeBound              bool    `json:"time_bound"`
	MinConfidence          float64 `json:"min_confidence"`
	ExcludeEstimates       bool    `json:"exclude_estimates"`
	IncludeForwardLooking  bool    `json:"include_forward_looking"`
	MaxDataAgeDays         int     `json:"max_data_age_days"`
	RequireOfficialFilings bool    `json:"require_official_filings"`
}

// StructuredQuery is the parser's structured representation of a
// natural-language question.
type StructuredQuery struct {
	OriginalQuery string           `json:"original_query"`
	Entities      QueryEntities    `json:"entities"`
	Intent        QueryIntent      `json:"intent"`
	Scope         QueryScope       `json:"scope"`
	Constraints   QueryConstraints `json:"constraints"`
	Confidence    float64          `json:"confidence"` // in [0,1]
	Complexity    QueryComplexity  `json:"complexity"`
}
