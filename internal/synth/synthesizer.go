// Package synth implements the knowledge synthesizer: it turns a structured
// query plus extracted knowledge into a narrative answer with supporting
// tables, citations, a self-assessment, and follow-up suggestions.
package synth

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/pkg/models"
)

const defaultFilingCount = 5

var filingCountRe = regexp.MustCompile(`(?i)\b(?:last|latest|past|top|recent)\s+(\d{1,3})\b`)
var countFilingsRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s+filings?\b`)

const narrativeSystemPrompt = `You write answers to questions about US public companies using only the provided knowledge context.
Answer the question directly first, then support it with specifics attributed to their filings.
When comparing companies, give each balanced treatment. Phrase claims so they can be traced to the listed sources.
Do not invent figures or filings that are not in the context.`

// Synthesizer builds UniversalAnswers from extracted knowledge.
type Synthesizer struct {
	provider llm.Provider
	opts     *llm.ChatOptions
	timeout  time.Duration
	log      zerolog.Logger
}

// Option configures the Synthesizer.
type Option func(*Synthesizer)

// WithChatOptions sets the chat options used for narrative generation.
func WithChatOptions(opts *llm.ChatOptions) Option {
	return func(s *Synthesizer) { s.opts = opts }
}

// WithTimeout bounds the narrative-generation call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.timeout = d }
}

// WithLogger sets the synthesizer's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Synthesizer) { s.log = log.With().Str("component", "synthesizer").Logger() }
}

// NewSynthesizer creates a synthesizer backed by the given text-generation
// provider.
func NewSynthesizer(provider llm.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider: provider,
		timeout:  30 * time.Second,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces the final answer for a query. Generation failures
// degrade to a deterministic narrative; the only returned error is context
// cancellation.
func (s *Synthesizer) Synthesize(ctx context.Context, query models.StructuredQuery, knowledge models.KnowledgeSet) (models.UniversalAnswer, error) {
	if err := ctx.Err(); err != nil {
		return models.UniversalAnswer{}, err
	}

	var narrative string
	if query.Intent.Primary == models.IntentFilingLookup && len(knowledge.Companies) > 0 {
		narrative = FilingLookupNarrative(query.OriginalQuery, knowledge)
	} else {
		narrative = s.generateNarrative(ctx, query, knowledge)
	}

	answer := models.UniversalAnswer{
		Narrative:  narrative,
		Data:       BuildAnswerData(query, knowledge),
		Citations:  BuildCitations(knowledge),
		Assessment: BuildAssessment(query, knowledge, narrative),
		FollowUp:   BuildFollowUp(query, knowledge),
	}
	answer.Metadata = models.AnswerMetadata{
		QueryID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Complexity: query.Complexity,
		Confidence: answer.Assessment.Confidence,
	}
	return answer, nil
}

func (s *Synthesizer) generateNarrative(ctx context.Context, query models.StructuredQuery, knowledge models.KnowledgeSet) string {
	prompt := BuildContext(knowledge) + "\n\nQuestion: " + query.OriginalQuery
	content, err := llm.Complete(ctx, s.provider, narrativeSystemPrompt, prompt, "", s.opts, s.timeout)
	if err != nil || strings.TrimSpace(content) == "" {
		s.log.Warn().Err(err).Msg("narrative generation failed, using deterministic fallback")
		return FallbackNarrative(knowledge)
	}
	return strings.TrimSpace(content)
}

// FilingLookupNarrative renders the deterministic filing-list answer. The
// count K is parsed from the query text, defaulting to 5, and filings are
// listed in their existing most-recent-first order with accession numbers
// reproduced verbatim.
func FilingLookupNarrative(queryText string, knowledge models.KnowledgeSet) string {
	k := parseFilingCount(queryText)

	var b strings.Builder
	for ci, company := range knowledge.Companies {
		if ci > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Recent filings for %s (CIK %s):\n\n", company.Identity.Name, company.Identity.CIK)

		n := k
		if len(company.RecentFilings) < n {
			n = len(company.RecentFilings)
		}
		if n == 0 {
			b.WriteString("No filings on record.\n")
			continue
		}
		for i := 0; i < n; i++ {
			f := company.RecentFilings[i]
			fmt.Fprintf(&b, "%d. %s filed %s (accession %s)\n", i+1, f.Form, f.FilingDate.Format("2006-01-02"), f.AccessionNumber)
			if f.PrimaryDocument != "" {
				fmt.Fprintf(&b, "   %s\n", edgar.DocumentURL(company.Identity.CIK, f.AccessionNumber, f.PrimaryDocument))
			}
		}
		fmt.Fprintf(&b, "\nBrowse all filings: %s\n", edgar.BrowseURL(company.Identity.CIK))
	}

	b.WriteString("\nForm types: 10-K = annual report; 10-Q = quarterly report; 8-K = current report of material events; DEF 14A = proxy statement; S-1 = registration statement.")
	return b.String()
}

func parseFilingCount(text string) int {
	for _, re := range []*regexp.Regexp{filingCountRe, countFilingsRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return defaultFilingCount
}

// BuildContext renders the knowledge set as a plain-text block for the
// text-generation provider.
func BuildContext(knowledge models.KnowledgeSet) string {
	var b strings.Builder
	b.WriteString("Knowledge context:\n")

	for _, c := range knowledge.Companies {
		fmt.Fprintf(&b, "\n%s (CIK %s)", c.Identity.Name, c.Identity.CIK)
		if c.Identity.Ticker != "" {
			fmt.Fprintf(&b, ", ticker %s", c.Identity.Ticker)
		}
		if c.Identity.Sector != "" {
			fmt.Fprintf(&b, ", sector %s", c.Identity.Sector)
		}
		if c.Identity.Headquarters != "" {
			fmt.Fprintf(&b, ", headquartered in %s", c.Identity.Headquarters)
		}
		b.WriteString("\n")

		if c.Business != nil && c.Business.Description != "" {
			fmt.Fprintf(&b, "Business: %s\n", c.Business.Description)
		}
		if c.Financials != nil {
			for _, m := range c.Financials.Metrics {
				fmt.Fprintf(&b, "%s: %s (%s, FY%d, from %s)\n", m.Label, FormatAmount(m.Value, m.Unit), m.PeriodEnd.Format("2006-01-02"), m.FiscalYear, m.Form)
			}
			for _, tr := range c.Financials.Trends {
				fmt.Fprintf(&b, "Trend: %s\n", tr.Description)
			}
		}
		if c.Risks != nil && len(c.Risks.Factors) > 0 {
			fmt.Fprintf(&b, "Top risks (%d):\n", len(c.Risks.Factors))
			for _, f := range c.Risks.Factors {
				fmt.Fprintf(&b, "- [%s/%s] %s\n", f.Category, f.Severity, truncateText(f.Description, 200))
			}
		}
		if len(c.RecentFilings) > 0 {
			fmt.Fprintf(&b, "Recent filings: %d on record, newest %s filed %s\n",
				len(c.RecentFilings), c.RecentFilings[0].Form, c.RecentFilings[0].FilingDate.Format("2006-01-02"))
		}
	}

	if len(knowledge.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, src := range knowledge.Sources {
			fmt.Fprintf(&b, "- %s (%s)\n", src.Name, src.Type)
		}
	}
	fmt.Fprintf(&b, "\nExtraction confidence %.2f, completeness %.2f\n", knowledge.Confidence, knowledge.Completeness)
	return b.String()
}

// FallbackNarrative is the deterministic answer used when narrative
// generation fails.
func FallbackNarrative(knowledge models.KnowledgeSet) string {
	if len(knowledge.Companies) == 0 {
		return "No data could be retrieved for the companies in this query."
	}
	c := knowledge.Companies[0]
	narrative := fmt.Sprintf("%s (CIK %s) is a %s company.", c.Identity.Name, c.Identity.CIK, strings.ToLower(orUnknown(c.Identity.Sector)))
	if c.Business != nil && c.Business.Description != "" {
		narrative += " " + firstSentences(c.Business.Description, 2)
	}
	return narrative
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatAmount renders a monetary value compactly ($383.3B, $81.8M).
func FormatAmount(v float64, unit string) string {
	if unit != "USD" {
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func firstSentences(text string, n int) string {
	var count, end int
	for i := 0; i < len(text); i++ {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			count++
			end = i + 1
			if count == n {
				break
			}
		}
	}
	if count == 0 {
		return text
	}
	return strings.TrimSpace(text[:end])
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
