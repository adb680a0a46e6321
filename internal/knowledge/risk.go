package knowledge

import (
	"regexp"
	"strings"

	"github.com/seenimoa/openedgarai/pkg/models"
)

const maxRiskFactors = 10

const minFactorLength = 50

var (
	bulletLineRe   = regexp.MustCompile(`(?m)^\s*(?:[-•*●]|\d{1,2}[\.\)])\s+(.+)$`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]\s+`)
	riskKeywordRe  = regexp.MustCompile(`(?i)\b(risk|adverse|could harm|may not|uncertain|failure|depend|litigation|disruption)\b`)
	headerLikeRe   = regexp.MustCompile(`^[A-Z][^.!?]{4,79}$`)
)

// riskCategoryKeywords maps each category to its trigger keywords. Order is
// the classification priority; the first category with a match wins.
var riskCategoryKeywords = []struct {
	category models.RiskCategory
	keywords []string
}{
	{models.RiskCybersecurity, []string{"cyber", "data breach", "hacking", "ransomware", "privacy", "personal data", "information security"}},
	{models.RiskRegulatory, []string{"regulat", "legal", "compliance", "litigation", "lawsuit", "government", "antitrust", "sanction"}},
	{models.RiskMarket, []string{"competit", "market share", "demand", "pricing pressure", "consumer preference", "economic condition"}},
	{models.RiskFinancial, []string{"currency", "exchange rate", "interest rate", "credit", "liquidity", "indebtedness", "capital", "impairment"}},
	{models.RiskOperational, []string{"supply chain", "manufactur", "operations", "suppliers", "logistics", "production", "facility"}},
	{models.RiskTechnology, []string{"intellectual property", "patent", "technolog", "innovation", "obsolescence", "trade secret"}},
	{models.RiskHumanCapital, []string{"personnel", "employees", "talent", "key executive", "labor", "workforce"}},
	{models.RiskEnvironmental, []string{"climate", "environmental", "natural disaster", "weather", "sustainability", "carbon"}},
}

var criticalSeverityPhrases = []string{"material adverse", "going concern", "bankruptcy"}
var highSeverityWords = []string{"substantial", "significant", "materially", "severe"}
var mediumSeverityWords = []string{"adverse", "negative", "harm", "impact"}

// SplitRiskFactors splits a risk-factors section into candidate factor
// texts using three ordered pattern families: bulleted or numbered lines,
// header-plus-paragraph pairs, then risk-keyword sentences. The first
// family that yields anything wins. At most ten factors are returned.
func SplitRiskFactors(section string) []string {
	if factors := splitBullets(section); len(factors) > 0 {
		return factors
	}
	if factors := splitHeaderParagraphs(section); len(factors) > 0 {
		return factors
	}
	return splitRiskSentences(section)
}

func splitBullets(section string) []string {
	var factors []string
	for _, m := range bulletLineRe.FindAllStringSubmatch(section, -1) {
		line := strings.TrimSpace(m[1])
		if len(line) >= minFactorLength {
			factors = append(factors, line)
			if len(factors) == maxRiskFactors {
				break
			}
		}
	}
	return factors
}

func splitHeaderParagraphs(section string) []string {
	paragraphs := strings.Split(section, "\n\n")
	var factors []string
	for i := 0; i+1 < len(paragraphs); i++ {
		header := strings.TrimSpace(strings.ReplaceAll(paragraphs[i], "\n", " "))
		body := strings.TrimSpace(strings.ReplaceAll(paragraphs[i+1], "\n", " "))
		if headerLikeRe.MatchString(header) && len(body) >= minFactorLength {
			factors = append(factors, header+": "+body)
			if len(factors) == maxRiskFactors {
				break
			}
		}
	}
	return factors
}

func splitRiskSentences(section string) []string {
	flat := strings.ReplaceAll(section, "\n", " ")
	var factors []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(flat, -1) {
		sentence := strings.TrimSpace(flat[start:loc[1]])
		start = loc[1]
		if len(sentence) >= minFactorLength && riskKeywordRe.MatchString(sentence) {
			factors = append(factors, sentence)
			if len(factors) == maxRiskFactors {
				return factors
			}
		}
	}
	if tail := strings.TrimSpace(flat[start:]); len(tail) >= minFactorLength && riskKeywordRe.MatchString(tail) {
		factors = append(factors, tail)
	}
	return factors
}

// ClassifyRisk buckets a factor into exactly one category by first-match
// keyword scan in priority order. No match yields General Business.
func ClassifyRisk(text string) models.RiskCategory {
	lower := strings.ToLower(text)
	for _, entry := range riskCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return models.RiskGeneralBusiness
}

// GradeRiskSeverity assigns severity by keyword ladder, strongest phrase
// family first.
func GradeRiskSeverity(text string) models.RiskSeverity {
	lower := strings.ToLower(text)
	for _, phrase := range criticalSeverityPhrases {
		if strings.Contains(lower, phrase) {
			return models.SeverityCritical
		}
	}
	for _, w := range highSeverityWords {
		if strings.Contains(lower, w) {
			return models.SeverityHigh
		}
	}
	for _, w := range mediumSeverityWords {
		if strings.Contains(lower, w) {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}

// BuildRiskProfile turns a risk-factors section into a classified profile.
// Returns nil when the section yields no factors.
func BuildRiskProfile(section, accession string) *models.RiskProfile {
	texts := SplitRiskFactors(section)
	if len(texts) == 0 {
		return nil
	}
	profile := &models.RiskProfile{Source: accession}
	for _, t := range texts {
		profile.Factors = append(profile.Factors, models.RiskFactor{
			Description: t,
			Category:    ClassifyRisk(t),
			Severity:    GradeRiskSeverity(t),
		})
	}
	return profile
}
