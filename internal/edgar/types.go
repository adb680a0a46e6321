package edgar

import "time"

// Address is a filer address from the submissions endpoint.
type Address struct {
	Street1        string `json:"street1"`
	Street2        string `json:"street2"`
	City           string `json:"city"`
	StateOrCountry string `json:"stateOrCountry"`
	ZipCode        string `json:"zipCode"`
}

// Submissions is the company submissions response from data.sec.gov.
type Submissions struct {
	CIK            string             `json:"cik"`
	EntityType     string             `json:"entityType"`
	SIC            string             `json:"sic"`
	SICDescription string             `json:"sicDescription"`
	Name           string             `json:"name"`
	Tickers        []string           `json:"tickers"`
	Exchanges      []string           `json:"exchanges"`
	EIN            string             `json:"ein"`
	StateOfIncorp  string             `json:"stateOfIncorporation"`
	FiscalYearEnd  string             `json:"fiscalYearEnd"`
	FormerNames    []FormerName       `json:"formerNames"`
	Addresses      map[string]Address `json:"addresses"`
	Filings        FilingIndex        `json:"filings"`
}

// FormerName is a previous registered name of a filer.
type FormerName struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// FilingIndex holds the recent filings block of a submissions response.
type FilingIndex struct {
	Recent FilingSet `json:"recent"`
}

// FilingSet is the columnar recent-filings table; index i across the
// parallel slices describes one filing, most recent first.
type FilingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	PrimaryDocDesc  []string `json:"primaryDocDescription"`
}

// Filing is one row of a FilingSet.
type Filing struct {
	AccessionNumber string
	Form            string
	FilingDate      time.Time
	ReportDate      time.Time
	PrimaryDocument string
	Description     string
}

// Filings decodes the columnar set into rows, preserving order.
func (s FilingSet) Filings() []Filing {
	n := len(s.AccessionNumber)
	out := make([]Filing, 0, n)
	for i := 0; i < n; i++ {
		f := Filing{AccessionNumber: s.AccessionNumber[i]}
		if i < len(s.Form) {
			f.Form = s.Form[i]
		}
		if i < len(s.FilingDate) {
			f.FilingDate = ParseDate(s.FilingDate[i])
		}
		if i < len(s.ReportDate) {
			f.ReportDate = ParseDate(s.ReportDate[i])
		}
		if i < len(s.PrimaryDocument) {
			f.PrimaryDocument = s.PrimaryDocument[i]
		}
		if i < len(s.PrimaryDocDesc) {
			f.Description = s.PrimaryDocDesc[i]
		}
		out = append(out, f)
	}
	return out
}

// BusinessAddress returns the filer's business address formatted as one
// line, or "" when absent.
func (s *Submissions) BusinessAddress() string {
	addr, ok := s.Addresses["business"]
	if !ok {
		return ""
	}
	parts := make([]string, 0, 3)
	if addr.City != "" {
		parts = append(parts, addr.City)
	}
	if addr.StateOrCountry != "" {
		parts = append(parts, addr.StateOrCountry)
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// CompanyFacts is the XBRL company facts response.
type CompanyFacts struct {
	CIK        int                        `json:"cik"`
	EntityName string                     `json:"entityName"`
	Facts      map[string]map[string]Fact `json:"facts"` // taxonomy -> concept -> fact
}

// Fact is one XBRL concept with observations grouped by unit.
type Fact struct {
	Label       string                       `json:"label"`
	Description string                       `json:"description"`
	Units       map[string][]FactObservation `json:"units"` // unit ("USD", "shares") -> values
}

// FactObservation is one dated observation of a fact.
type FactObservation struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"` // "Q1".."Q4", "FY"
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame,omitempty"`
}

// Concept looks up a fact by concept name across taxonomies, preferring
// us-gaap. Returns false when no taxonomy carries the concept.
func (cf *CompanyFacts) Concept(name string) (Fact, bool) {
	if facts, ok := cf.Facts["us-gaap"]; ok {
		if f, ok := facts[name]; ok {
			return f, true
		}
	}
	for taxonomy, facts := range cf.Facts {
		if taxonomy == "us-gaap" {
			continue
		}
		if f, ok := facts[name]; ok {
			return f, true
		}
	}
	return Fact{}, false
}

// ParseDate parses the date formats EDGAR uses. Returns the zero time when
// none match.
func ParseDate(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02T15:04:05.000Z",
		"01/02/2006",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
