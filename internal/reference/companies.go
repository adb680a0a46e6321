// Package reference holds small curated lookup tables: well-known company
// identifiers for offline entity resolution and SIC code ranges for sector
// derivation.
package reference

import "strings"

// Company is one entry in the curated identifier table.
type Company struct {
	Name   string
	Ticker string
	CIK    string // zero-padded to 10 digits
}

// companies is the curated name/ticker/CIK table. It is deliberately small:
// it backs the deterministic fallback path, not general entity resolution,
// which goes through the understanding provider.
var companies = []Company{
	{"Apple", "AAPL", "0000320193"},
	{"Microsoft", "MSFT", "0000789019"},
	{"Alphabet", "GOOGL", "0001652044"},
	{"Google", "GOOGL", "0001652044"},
	{"Amazon", "AMZN", "0001018724"},
	{"Meta Platforms", "META", "0001326801"},
	{"Facebook", "META", "0001326801"},
	{"Tesla", "TSLA", "0001318605"},
	{"NVIDIA", "NVDA", "0001045810"},
	{"Netflix", "NFLX", "0001065280"},
	{"JPMorgan Chase", "JPM", "0000019617"},
	{"Bank of America", "BAC", "0000070858"},
	{"Walmart", "WMT", "0000104169"},
	{"Exxon Mobil", "XOM", "0000034088"},
	{"Johnson & Johnson", "JNJ", "0000200406"},
	{"Visa", "V", "0001403161"},
	{"Procter & Gamble", "PG", "0000080424"},
	{"Walt Disney", "DIS", "0001744489"},
	{"Intel", "INTC", "0000050863"},
	{"IBM", "IBM", "0000051143"},
	{"Oracle", "ORCL", "0001341439"},
	{"Coca-Cola", "KO", "0000021344"},
}

// ByTicker resolves an exact ticker symbol (case-insensitive).
func ByTicker(ticker string) (Company, bool) {
	upper := strings.ToUpper(ticker)
	for _, c := range companies {
		if c.Ticker == upper {
			return c, true
		}
	}
	return Company{}, false
}

// ByName resolves a company whose curated name appears as a substring of
// text, or whose name contains the text (case-insensitive).
func ByName(text string) (Company, bool) {
	lower := strings.ToLower(text)
	for _, c := range companies {
		name := strings.ToLower(c.Name)
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return c, true
		}
	}
	return Company{}, false
}

// FindAll returns every curated company mentioned in text, matching by name
// substring first and then by ticker token.
func FindAll(text string) []Company {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var out []Company

	for _, c := range companies {
		if strings.Contains(lower, strings.ToLower(c.Name)) && !seen[c.CIK] {
			seen[c.CIK] = true
			out = append(out, c)
		}
	}

	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,;:!?()'\"")
		if len(tok) < 1 || len(tok) > 5 || tok != strings.ToUpper(tok) {
			continue
		}
		if c, ok := ByTicker(tok); ok && !seen[c.CIK] {
			seen[c.CIK] = true
			out = append(out, c)
		}
	}
	return out
}

// All returns a copy of the curated table.
func All() []Company {
	out := make([]Company, len(companies))
	copy(out, companies)
	return out
}
