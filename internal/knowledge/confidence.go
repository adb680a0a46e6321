package knowledge

import (
	"time"

	"github.com/seenimoa/openedgarai/pkg/models"
)

// Aggregate confidence and completeness are computed from observable
// extraction outcomes, not constants:
//
//	resolution = companies resolved / companies requested
//	coverage   = mean over resolved companies of
//	             (requested data categories populated / requested)
//	recency    = mean recency score of each company's newest filing,
//	             1.0 up to 90 days old, decaying linearly to 0.0 at
//	             two years
//
//	confidence   = 0.6*resolution + 0.25*coverage + 0.15*recency
//	completeness = resolution * coverage
//
// Both are monotonic in all three inputs and clamped to [0,1]. With no
// requested companies both are 0; with no resolved companies confidence is
// 0 regardless of the other terms.
const (
	resolutionWeight = 0.6
	coverageWeight   = 0.25
	recencyWeight    = 0.15

	recencyFreshWindow = 90 * 24 * time.Hour
	recencyStaleLimit  = 2 * 365 * 24 * time.Hour
)

// ScoreKnowledge fills in set.Confidence and set.Completeness.
func ScoreKnowledge(set *models.KnowledgeSet, requested int, scope models.QueryScope, now time.Time) {
	if requested <= 0 || len(set.Companies) == 0 {
		set.Confidence = 0
		set.Completeness = 0
		return
	}

	resolution := float64(len(set.Companies)) / float64(requested)
	if resolution > 1 {
		resolution = 1
	}

	coverageSum := 0.0
	recencySum := 0.0
	for i := range set.Companies {
		coverageSum += categoryCoverage(&set.Companies[i], scope)
		recencySum += recencyScore(&set.Companies[i], now)
	}
	n := float64(len(set.Companies))
	coverage := coverageSum / n
	recency := recencySum / n

	set.Confidence = clampUnit(resolutionWeight*resolution + coverageWeight*coverage + recencyWeight*recency)
	set.Completeness = clampUnit(resolution * coverage)
}

// categoryCoverage is the fraction of requested data categories actually
// populated for one company. Filing history counts as populated when any
// recent filings were recorded. With no requested categories the identity
// alone counts as full coverage.
func categoryCoverage(c *models.CompanyKnowledge, scope models.QueryScope) float64 {
	if len(scope.Categories) == 0 {
		return 1
	}
	populated := 0
	for _, cat := range scope.Categories {
		switch cat {
		case models.CategoryBusinessDescription:
			if c.Business != nil && c.Business.Description != "" {
				populated++
			}
		case models.CategoryFinancialData:
			if c.Financials != nil && len(c.Financials.Metrics) > 0 {
				populated++
			}
		case models.CategoryRiskFactors:
			if c.Risks != nil && len(c.Risks.Factors) > 0 {
				populated++
			}
		case models.CategoryFilingHistory:
			if len(c.RecentFilings) > 0 {
				populated++
			}
		default:
			// Ownership and management data come only through the filing
			// history; count them when filings were recorded.
			if len(c.RecentFilings) > 0 {
				populated++
			}
		}
	}
	return float64(populated) / float64(len(scope.Categories))
}

func recencyScore(c *models.CompanyKnowledge, now time.Time) float64 {
	if len(c.RecentFilings) == 0 {
		return 0
	}
	newest := c.RecentFilings[0].FilingDate
	for _, f := range c.RecentFilings[1:] {
		if f.FilingDate.After(newest) {
			newest = f.FilingDate
		}
	}
	if newest.IsZero() {
		return 0
	}
	age := now.Sub(newest)
	if age <= recencyFreshWindow {
		return 1
	}
	if age >= recencyStaleLimit {
		return 0
	}
	return 1 - float64(age-recencyFreshWindow)/float64(recencyStaleLimit-recencyFreshWindow)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
