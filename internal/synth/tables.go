package synth

import (
	"sort"
	"strings"

	"github.com/seenimoa/openedgarai/pkg/models"
)

const maxRiskTableRows = 10
const maxTimelineEvents = 10

// BuildAnswerData assembles the optional supporting tables the query calls
// for. Returns nil when nothing applies.
func BuildAnswerData(query models.StructuredQuery, knowledge models.KnowledgeSet) *models.AnswerData {
	data := &models.AnswerData{}

	if query.Intent.RequiresComparison && len(knowledge.Companies) >= 2 {
		data.Comparison = comparisonTable(knowledge)
	}
	if query.Intent.Primary == models.IntentFinancialMetrics {
		data.FinancialMetrics = financialMetricsTable(knowledge)
	}
	if query.Intent.Primary == models.IntentRiskAnalysis {
		data.RiskFactors = riskTable(knowledge)
	}
	if query.Intent.RequiresHistorical {
		data.Timeline = filingTimeline(knowledge)
	}

	if data.Empty() {
		return nil
	}
	return data
}

func comparisonTable(knowledge models.KnowledgeSet) *models.Table {
	table := &models.Table{
		Title:   "Company Comparison",
		Headers: []string{"Company", "Sector", "Revenue", "Net Income", "Top Risk Categories"},
	}
	for _, c := range knowledge.Companies {
		revenue, netIncome := "n/a", "n/a"
		if c.Financials != nil {
			for _, m := range c.Financials.Metrics {
				switch m.Label {
				case "Revenue":
					revenue = FormatAmount(m.Value, m.Unit)
				case "Net Income":
					netIncome = FormatAmount(m.Value, m.Unit)
				}
			}
		}
		table.Rows = append(table.Rows, []string{
			c.Identity.Name, c.Identity.Sector, revenue, netIncome, topRiskCategories(c, 3),
		})
	}
	return table
}

func financialMetricsTable(knowledge models.KnowledgeSet) *models.Table {
	table := &models.Table{
		Title:   "Financial Metrics",
		Headers: []string{"Company", "Metric", "Value", "Period End", "Source"},
	}
	for _, c := range knowledge.Companies {
		if c.Financials == nil {
			continue
		}
		for _, m := range c.Financials.Metrics {
			table.Rows = append(table.Rows, []string{
				c.Identity.Name, m.Label, FormatAmount(m.Value, m.Unit),
				m.PeriodEnd.Format("2006-01-02"), m.Form,
			})
		}
	}
	if len(table.Rows) == 0 {
		return nil
	}
	return table
}

func riskTable(knowledge models.KnowledgeSet) *models.Table {
	table := &models.Table{
		Title:   "Risk Factors",
		Headers: []string{"Company", "Category", "Severity", "Description"},
	}
	for _, c := range knowledge.Companies {
		if c.Risks == nil {
			continue
		}
		for _, f := range c.Risks.Factors {
			table.Rows = append(table.Rows, []string{
				c.Identity.Name, string(f.Category), string(f.Severity), truncateText(f.Description, 80),
			})
			if len(table.Rows) == maxRiskTableRows {
				return table
			}
		}
	}
	if len(table.Rows) == 0 {
		return nil
	}
	return table
}

// filingTimeline flattens every company's recent filings into one
// chronological sequence, keeping the last (most recent) events.
func filingTimeline(knowledge models.KnowledgeSet) []models.TimelineEvent {
	var events []models.TimelineEvent
	for _, c := range knowledge.Companies {
		for _, f := range c.RecentFilings {
			events = append(events, models.TimelineEvent{
				Date:        f.FilingDate,
				Company:     c.Identity.Name,
				Form:        f.Form,
				Description: f.Form + " (" + f.AccessionNumber + ")",
			})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	if len(events) > maxTimelineEvents {
		events = events[len(events)-maxTimelineEvents:]
	}
	return events
}

func topRiskCategories(c models.CompanyKnowledge, max int) string {
	if c.Risks == nil || len(c.Risks.Factors) == 0 {
		return "n/a"
	}
	var categories []string
	seen := map[models.RiskCategory]bool{}
	for _, f := range c.Risks.Factors {
		if !seen[f.Category] {
			seen[f.Category] = true
			categories = append(categories, string(f.Category))
			if len(categories) == max {
				break
			}
		}
	}
	return strings.Join(categories, ", ")
}
