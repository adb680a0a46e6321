package knowledge

import (
	"fmt"
	"sort"

	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// Concepts extracted into the financial profile. Aliases are tried in
// order; the first concept present in the facts wins.
var financialConcepts = []struct {
	aliases []string
	label   string
}{
	{[]string{"Revenues", "Revenue", "RevenueFromContractWithCustomerExcludingAssessedTax"}, "Revenue"},
	{[]string{"NetIncomeLoss"}, "Net Income"},
}

// BuildFinancialProfile extracts the latest annual observation for each
// concept of interest and attaches trends from the given computer. Returns
// nil when no concept yields an observation.
func BuildFinancialProfile(facts *edgar.CompanyFacts, trends TrendComputer) *models.FinancialProfile {
	var profile models.FinancialProfile
	for _, entry := range financialConcepts {
		for _, name := range entry.aliases {
			fact, ok := facts.Concept(name)
			if !ok {
				continue
			}
			if metric, ok := latestAnnual(name, entry.label, fact); ok {
				profile.Metrics = append(profile.Metrics, metric)
				break
			}
		}
	}
	if len(profile.Metrics) == 0 {
		return nil
	}
	if trends != nil {
		profile.Trends = trends.Compute(facts)
	}
	return &profile
}

// latestAnnual picks the annual-report observation with the most recent
// period end. USD is preferred; other units are considered only when no
// USD series exists.
func latestAnnual(concept, label string, fact edgar.Fact) (models.FinancialMetric, bool) {
	units := []string{"USD"}
	for unit := range fact.Units {
		if unit != "USD" {
			units = append(units, unit)
		}
	}
	for _, unit := range units {
		series := annualSeries(fact.Units[unit])
		if len(series) == 0 {
			continue
		}
		obs := series[0]
		return models.FinancialMetric{
			Concept:    concept,
			Label:      label,
			Value:      obs.Val,
			Unit:       unit,
			PeriodEnd:  edgar.ParseDate(obs.End),
			FiscalYear: obs.FY,
			Form:       obs.Form,
			Accession:  obs.Accn,
		}, true
	}
	return models.FinancialMetric{}, false
}

// annualSeries filters to annual-report observations, deduplicates by
// period end (facts repeat across amended filings; the latest-filed copy
// wins), and sorts most recent period first.
func annualSeries(observations []edgar.FactObservation) []edgar.FactObservation {
	byEnd := map[string]edgar.FactObservation{}
	for _, obs := range observations {
		if obs.Form != "10-K" {
			continue
		}
		if prev, ok := byEnd[obs.End]; !ok || obs.Filed > prev.Filed {
			byEnd[obs.End] = obs
		}
	}
	series := make([]edgar.FactObservation, 0, len(byEnd))
	for _, obs := range byEnd {
		series = append(series, obs)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].End > series[j].End })
	return series
}

// TrendComputer derives trend figures from a company's facts. The
// computation is pluggable so callers can swap in domain-specific ratio
// sets without touching extraction.
type TrendComputer interface {
	Compute(facts *edgar.CompanyFacts) []models.FinancialTrend
}

// StandardTrends computes year-over-year revenue growth, year-over-year
// net income growth, and the latest net margin.
type StandardTrends struct{}

// Compute implements TrendComputer.
func (StandardTrends) Compute(facts *edgar.CompanyFacts) []models.FinancialTrend {
	revenue := annualUSDSeries(facts, "Revenues", "Revenue", "RevenueFromContractWithCustomerExcludingAssessedTax")
	netIncome := annualUSDSeries(facts, "NetIncomeLoss")

	var trends []models.FinancialTrend
	if g, ok := yoyGrowth(revenue); ok {
		trends = append(trends, models.FinancialTrend{
			Name:        "revenue_growth_yoy",
			Value:       g,
			Description: fmt.Sprintf("Revenue changed %.1f%% year over year", g*100),
		})
	}
	if g, ok := yoyGrowth(netIncome); ok {
		trends = append(trends, models.FinancialTrend{
			Name:        "net_income_growth_yoy",
			Value:       g,
			Description: fmt.Sprintf("Net income changed %.1f%% year over year", g*100),
		})
	}
	if len(revenue) > 0 && len(netIncome) > 0 && revenue[0].Val != 0 && revenue[0].End == netIncome[0].End {
		margin := netIncome[0].Val / revenue[0].Val
		trends = append(trends, models.FinancialTrend{
			Name:        "net_margin",
			Value:       margin,
			Description: fmt.Sprintf("Net margin of %.1f%% in the latest fiscal year", margin*100),
		})
	}
	return trends
}

func annualUSDSeries(facts *edgar.CompanyFacts, aliases ...string) []edgar.FactObservation {
	for _, name := range aliases {
		if fact, ok := facts.Concept(name); ok {
			if series := annualSeries(fact.Units["USD"]); len(series) > 0 {
				return series
			}
		}
	}
	return nil
}

// yoyGrowth computes (latest-prior)/|prior| over the two most recent
// annual observations.
func yoyGrowth(series []edgar.FactObservation) (float64, bool) {
	if len(series) < 2 || series[1].Val == 0 {
		return 0, false
	}
	prior := series[1].Val
	growth := (series[0].Val - prior) / abs(prior)
	return growth, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
