package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/openedgarai/pkg/models"
)

// Failure phrases that mark a degraded narrative.
var failurePhrases = []string{"could not", "no data could be retrieved", "unable to"}

// BuildAssessment derives the answer's self-evaluation. Confidence starts
// at the extraction confidence, is scaled down for harder queries and for
// weak narratives, and is clamped to [0.1,1.0]. All list fields are
// non-nil.
func BuildAssessment(query models.StructuredQuery, knowledge models.KnowledgeSet, narrative string) models.Assessment {
	confidence := knowledge.Confidence
	switch query.Complexity {
	case models.ComplexityResearch:
		confidence *= 0.8
	case models.ComplexityAnalytical:
		confidence *= 0.9
	}
	if len(narrative) < 100 {
		confidence *= 0.6
	}
	lower := strings.ToLower(narrative)
	for _, phrase := range failurePhrases {
		if strings.Contains(lower, phrase) {
			confidence *= 0.7
			break
		}
	}

	requested := len(query.Entities.Companies)
	resolvedRatio := 1.0
	if requested > 0 {
		resolvedRatio = float64(len(knowledge.Companies)) / float64(requested)
	}
	completeness := knowledge.Completeness * resolvedRatio

	return models.Assessment{
		Confidence:    clampAssessment(confidence),
		Completeness:  clampAssessment(completeness),
		Limitations:   limitations(query, knowledge),
		Assumptions:   assumptions(query, knowledge),
		DataFreshness: dataFreshness(knowledge),
		BiasRisks:     biasRisks(knowledge),
	}
}

func clampAssessment(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

func limitations(query models.StructuredQuery, knowledge models.KnowledgeSet) []string {
	out := []string{}
	if len(knowledge.Companies) == 0 {
		out = append(out, "No companies could be resolved from the query.")
	}
	if len(knowledge.Filings) == 0 {
		out = append(out, "No filing documents were parsed; the answer relies on directory metadata only.")
	}
	if knowledge.Confidence < 0.7 {
		out = append(out, "Extraction confidence is below 0.7; some details may be missing.")
	}
	if query.Intent.RequiresComparison && len(knowledge.Companies) < 2 {
		out = append(out, "A comparison was requested but fewer than two companies were resolved.")
	}
	if query.Intent.RequiresComparison && len(knowledge.Companies) >= 2 {
		for _, c := range knowledge.Companies {
			if c.Financials == nil || len(c.Financials.Metrics) == 0 {
				out = append(out, "Financial data is not available for every compared company.")
				break
			}
		}
	}
	return out
}

func assumptions(query models.StructuredQuery, knowledge models.KnowledgeSet) []string {
	out := []string{}
	if query.Constraints.RequireOfficialFilings {
		out = append(out, "Only official SEC filings were consulted.")
	}
	for _, c := range knowledge.Companies {
		if c.Business != nil && c.Business.Source != "industry_classification" {
			out = append(out, "The most recent annual report is assumed to reflect current operations.")
			break
		}
	}
	return out
}

func dataFreshness(knowledge models.KnowledgeSet) []string {
	out := []string{}
	for _, c := range knowledge.Companies {
		if len(c.RecentFilings) == 0 {
			out = append(out, fmt.Sprintf("%s: no filings on record.", c.Identity.Name))
			continue
		}
		newest := c.RecentFilings[0]
		out = append(out, fmt.Sprintf("%s: newest filing is a %s dated %s.",
			c.Identity.Name, newest.Form, newest.FilingDate.Format("2006-01-02")))
	}
	return out
}

func biasRisks(knowledge models.KnowledgeSet) []string {
	out := []string{}
	for _, c := range knowledge.Companies {
		if c.Risks != nil && len(c.Risks.Factors) > 0 {
			out = append(out, "Risk disclosures are company-authored and may understate exposure.")
			break
		}
	}
	for _, c := range knowledge.Companies {
		if c.Business != nil && c.Business.Source == "industry_classification" {
			out = append(out, "Some business descriptions were synthesized from industry classification rather than filings.")
			break
		}
	}
	return out
}

// Follow-up query suggestions keyed by primary intent.
var followUpByIntent = map[models.PrimaryIntent][]string{
	models.IntentBusinessOverview:    {"What are the main risk factors?", "How has revenue developed over recent years?"},
	models.IntentFinancialMetrics:    {"How does this compare with competitors?", "What risks could affect these figures?"},
	models.IntentComparativeAnalysis: {"Which company has the stronger recent filings record?", "How do their risk profiles differ?"},
	models.IntentTrendAnalysis:       {"What does the latest annual report attribute the trend to?", "Which risks could reverse the trend?"},
	models.IntentFilingLookup:        {"What does the latest annual report say about the business?", "What are the key risk factors in the latest 10-K?"},
	models.IntentRiskAnalysis:        {"How do these risks compare with industry peers?", "Which financial metrics are most exposed to these risks?"},
}

var defaultFollowUps = []string{"What are the most recent filings?", "What does the company do?"}

// BuildFollowUp suggests next queries keyed by intent, with related topics
// drawn from the distinct sectors of the resolved companies.
func BuildFollowUp(query models.StructuredQuery, knowledge models.KnowledgeSet) models.FollowUp {
	queries, ok := followUpByIntent[query.Intent.Primary]
	if !ok {
		queries = defaultFollowUps
	}

	seen := map[string]bool{}
	topics := []string{}
	for _, c := range knowledge.Companies {
		sector := c.Identity.Sector
		if sector != "" && sector != "Unknown" && !seen[sector] {
			seen[sector] = true
			topics = append(topics, sector)
		}
	}
	sort.Strings(topics)

	return models.FollowUp{
		Queries: append([]string(nil), queries...),
		Topics:  topics,
	}
}
