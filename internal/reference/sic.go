package reference

import "strconv"

// sicRange maps a numeric SIC code range to a sector name.
type sicRange struct {
	lo, hi int
	sector string
}

// SIC divisions, collapsed to the sector names used in answers.
var sicRanges = []sicRange{
	{100, 999, "Agriculture"},
	{1000, 1499, "Mining"},
	{1500, 1799, "Construction"},
	{2000, 3999, "Manufacturing"},
	{4000, 4999, "Transportation & Utilities"},
	{5000, 5199, "Wholesale Trade"},
	{5200, 5999, "Retail Trade"},
	{6000, 6799, "Finance & Insurance"},
	{7000, 8999, "Services"},
	{9100, 9729, "Public Administration"},
}

// SectorForSIC derives a sector name from a SIC code string. Returns
// "Other" for codes outside the known ranges and "Unknown" when the code
// is absent or non-numeric.
func SectorForSIC(sic string) string {
	if sic == "" {
		return "Unknown"
	}
	code, err := strconv.Atoi(sic)
	if err != nil {
		return "Unknown"
	}
	for _, r := range sicRanges {
		if code >= r.lo && code <= r.hi {
			return r.sector
		}
	}
	return "Other"
}
