package models

import "time"

// Table is a generic supporting-data table.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// TimelineEvent is one entry in a filing timeline.
type TimelineEvent struct {
	Date        time.Time `json:"date"`
	Company     string    `json:"company"`
	Form        string    `json:"form"`
	Description string    `json:"description"`
}

// AnswerData holds optional structured data supporting the narrative.
type AnswerData struct {
	Comparison       *Table          `json:"comparison,omitempty"`
	FinancialMetrics *Table          `json:"financial_metrics,omitempty"`
	RiskFactors      *Table          `json:"risk_factors,omitempty"`
	Timeline         []TimelineEvent `json:"timeline,omitempty"`
}

// Empty reports whether the answer carries no structured data at all.
func (d *AnswerData) Empty() bool {
	return d == nil ||
		(d.Comparison == nil && d.FinancialMetrics == nil &&
			d.RiskFactors == nil && len(d.Timeline) == 0)
}

// Citation references a data source, optionally pinned to a specific filing
// document.
type Citation struct {
	SourceType      DataSourceType `json:"source_type"`
	SourceName      string         `json:"source_name"`
	CIK             string         `json:"cik,omitempty"`
	AccessionNumber string         `json:"accession_number,omitempty"`
	Form            string         `json:"form,omitempty"`
	URL             string         `json:"url,omitempty"`
	Confidence      float64        `json:"confidence"`
	Relevance       float64        `json:"relevance"`
}

// Assessment is the answer's self-evaluation. All list fields are always
// non-nil; an empty list means "nothing to report", never "unknown".
type Assessment struct {
	Confidence    float64  `json:"confidence"`   // in [0.1,1.0]
	Completeness  float64  `json:"completeness"` // in [0.1,1.0]
	Limitations   []string `json:"limitations"`
	Assumptions   []string `json:"assumptions"`
	DataFreshness []string `json:"data_freshness"`
	BiasRisks     []string `json:"bias_risks"`
}

// FollowUp suggests what to ask next.
type FollowUp struct {
	Queries []string `json:"queries"`
	Topics  []string `json:"topics"`
}

// AnswerMetadata describes how the answer was produced.
type AnswerMetadata struct {
	QueryID          string          `json:"query_id"`
	Timestamp        time.Time       `json:"timestamp"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	Complexity       QueryComplexity `json:"complexity"`
	Confidence       float64         `json:"confidence"`
}

// UniversalAnswer is the final product of the pipeline: a narrative answer
// with supporting data, citations, and a self-assessment. It is constructed
// once per query and immutable after return.
type UniversalAnswer struct {
	Narrative  string         `json:"narrative"`
	Data       *AnswerData    `json:"data,omitempty"`
	Citations  []Citation     `json:"citations"`
	Assessment Assessment     `json:"assessment"`
	FollowUp   FollowUp       `json:"follow_up"`
	Metadata   AnswerMetadata `json:"metadata"`
}
