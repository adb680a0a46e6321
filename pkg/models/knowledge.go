package models

import "time"

// CompanyStatus is the lifecycle status of a filer.
type CompanyStatus string

const (
	StatusActive   CompanyStatus = "active"
	StatusInactive CompanyStatus = "inactive"
	StatusMerged   CompanyStatus = "merged"
	StatusAcquired CompanyStatus = "acquired"
)

// CompanyIdentity identifies a filer. CIK is the primary key for all joins.
type CompanyIdentity struct {
	CIK                  string        `json:"cik"` // zero-padded to 10 digits
	Name                 string        `json:"name"`
	Ticker               string        `json:"ticker,omitempty"`
	SICCode              string        `json:"sic_code,omitempty"`
	SICDescription       string        `json:"sic_description,omitempty"`
	Sector               string        `json:"sector"`
	Headquarters         string        `json:"headquarters,omitempty"`
	StateOfIncorporation string        `json:"state_of_incorporation,omitempty"`
	FiscalYearEnd        string        `json:"fiscal_year_end,omitempty"` // MMDD
	Status               CompanyStatus `json:"status"`
	Aliases              []string      `json:"aliases,omitempty"`
}

// BusinessProfile summarizes what a company does.
type BusinessProfile struct {
	Description string `json:"description"`
	// Source identifies where the description came from: the accession
	// number of the filing it was extracted from, or "industry_classification"
	// for the synthesized fallback.
	Source string `json:"source"`
}

// FinancialMetric is one observation of an XBRL concept.
type FinancialMetric struct {
	Concept    string    `json:"concept"` // e.g. "Revenues", "NetIncomeLoss"
	Label      string    `json:"label,omitempty"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"` // e.g. "USD"
	PeriodEnd  time.Time `json:"period_end"`
	FiscalYear int       `json:"fiscal_year,omitempty"`
	Form       string    `json:"form"` // source filing form, e.g. "10-K"
	Accession  string    `json:"accession,omitempty"`
}

// FinancialTrend is a derived figure computed from metric observations.
type FinancialTrend struct {
	Name        string  `json:"name"`  // e.g. "revenue_growth_yoy"
	Value       float64 `json:"value"` // ratios as fractions, growth as fraction
	Description string  `json:"description"`
}

// FinancialProfile holds extracted metrics plus derived trends.
type FinancialProfile struct {
	Metrics []FinancialMetric `json:"metrics"`
	Trends  []FinancialTrend  `json:"trends,omitempty"`
}

// RiskSeverity grades a risk factor.
type RiskSeverity string

const (
	SeverityCritical RiskSeverity = "critical"
	SeverityHigh     RiskSeverity = "high"
	SeverityMedium   RiskSeverity = "medium"
	SeverityLow      RiskSeverity = "low"
)

// RiskCategory buckets a risk factor.
type RiskCategory string

const (
	RiskCybersecurity   RiskCategory = "Cybersecurity & Data Protection"
	RiskRegulatory      RiskCategory = "Regulatory & Legal"
	RiskMarket          RiskCategory = "Market & Competition"
	RiskFinancial       RiskCategory = "Financial"
	RiskOperational     RiskCategory = "Operational"
	RiskTechnology      RiskCategory = "Technology & IP"
	RiskHumanCapital    RiskCategory = "Human Capital"
	RiskEnvironmental   RiskCategory = "Environmental & Climate"
	RiskGeneralBusiness RiskCategory = "General Business"
)

// RiskFactor is one risk disclosed in a filing.
type RiskFactor struct {
	Description string       `json:"description"`
	Category    RiskCategory `json:"category"`
	Severity    RiskSeverity `json:"severity"`
}

// RiskProfile holds the risk factors extracted for a company.
type RiskProfile struct {
	Factors []RiskFactor `json:"factors"`
	Source  string       `json:"source,omitempty"` // accession number
}

// FilingSummary is a lightweight reference to one filing.
type FilingSummary struct {
	AccessionNumber string    `json:"accession_number"` // NNNNNNNNNN-YY-NNNNNN
	Form            string    `json:"form"`
	FilingDate      time.Time `json:"filing_date"`
	PrimaryDocument string    `json:"primary_document,omitempty"`
}

// CompanyKnowledge is everything extracted about one company for one query.
// Profile fields are nil when their data category was not in scope or could
// not be populated.
type CompanyKnowledge struct {
	Identity      CompanyIdentity   `json:"identity"`
	Business      *BusinessProfile  `json:"business,omitempty"`
	Financials    *FinancialProfile `json:"financials,omitempty"`
	Risks         *RiskProfile      `json:"risks,omitempty"`
	RecentFilings []FilingSummary   `json:"recent_filings"` // most recent first
}

// FilingKnowledge is a filing whose content was parsed during extraction.
// Section absence is not an error; each section is independently optional.
type FilingKnowledge struct {
	CIK             string            `json:"cik"`
	AccessionNumber string            `json:"accession_number"`
	Form            string            `json:"form"`
	FilingDate      time.Time         `json:"filing_date"`
	PrimaryDocument string            `json:"primary_document,omitempty"`
	Sections        map[string]string `json:"sections,omitempty"` // section label → text
}

// DataSourceType describes the kind of source behind extracted data.
type DataSourceType string

const (
	SourceFilingsDirectory DataSourceType = "filings_directory"
	SourceFilingDocument   DataSourceType = "filing_document"
	SourceXBRLFacts        DataSourceType = "xbrl_facts"
	SourceCompanyFeed      DataSourceType = "company_feed"
	SourceToolRouter       DataSourceType = "tool_router"
)

// DataSource records one source consulted during extraction.
type DataSource struct {
	Type        DataSourceType `json:"type"`
	Name        string         `json:"name"`
	Timestamp   time.Time      `json:"timestamp"`
	Reliability float64        `json:"reliability"` // in [0,1]
	Official    bool           `json:"official"`
}

// KnowledgeSet is the aggregate of everything extracted for one query.
// Companies and Filings are append-only during a single extraction pass.
type KnowledgeSet struct {
	Companies    []CompanyKnowledge `json:"companies"`
	Filings      []FilingKnowledge  `json:"filings"`
	Sources      []DataSource       `json:"sources"`
	Confidence   float64            `json:"confidence"`   // in [0,1]
	Completeness float64            `json:"completeness"` // in [0,1]
}

// Company returns the knowledge for the given CIK, or nil.
func (k *KnowledgeSet) Company(cik string) *CompanyKnowledge {
	for i := range k.Companies {
		if k.Companies[i].Identity.CIK == cik {
			return &k.Companies[i]
		}
	}
	return nil
}

// FilingsFor returns the parsed filings belonging to the given CIK, in the
// order they were appended (most recent first).
func (k *KnowledgeSet) FilingsFor(cik string) []FilingKnowledge {
	var out []FilingKnowledge
	for _, f := range k.Filings {
		if f.CIK == cik {
			out = append(out, f)
		}
	}
	return out
}
