// Package knowledge implements the knowledge extractor: it resolves the
// companies named in a structured query against the filings directory,
// fetches filing documents and XBRL facts, and parses them into structured
// business, financial, and risk profiles.
package knowledge

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Canonical section labels produced by ExtractSections.
const (
	SectionBusiness    = "business"
	SectionRiskFactors = "risk_factors"
)

const (
	businessMaxParagraphs = 3
	businessMinParagraph  = 100
	businessMaxChars      = 2000
)

// itemHeaderRe matches annual-report item headers at the start of a line.
// The item number decides the section; unknown numbers still terminate the
// preceding section.
var itemHeaderRe = regexp.MustCompile(`(?im)^\s*item\s+(\d{1,2}[a-c]?)[\.\:]?\s`)

// sectionLabels maps item numbers to the canonical labels we keep.
var sectionLabels = map[string]string{
	"1":  SectionBusiness,
	"1a": SectionRiskFactors,
}

// Regex fallback tier, used when the header tokenizer finds nothing. These
// tolerate headers glued into running text.
var (
	businessFallbackRe = regexp.MustCompile(`(?is)item\s*1\s*[\.\:]?\s*business\b(.*?)item\s*1a`)
	riskFallbackRe     = regexp.MustCompile(`(?is)item\s*1a\s*[\.\:]?\s*risk\s*factors\b(.*?)item\s*(?:1b|2)\b`)

	// Last-resort sentence patterns for business descriptions.
	businessSentenceRe = regexp.MustCompile(`(?i)\b(?:we|the company)\s+(?:are|is|operate[s]?|provide[s]?|develop[s]?|design[s]?|sell[s]?|manufacture[s]?)\b[^.]{20,400}\.`)
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`[ \t\r\f]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces a filing document to plain text. EDGAR primary
// documents are usually HTML; plain-text filings pass through with
// whitespace normalized.
func StripHTML(raw string) string {
	if !strings.Contains(raw, "<") {
		return normalizeWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// Malformed enough that the parser refused it; fall back to tag
		// stripping.
		return normalizeWhitespace(tagRe.ReplaceAllString(raw, " "))
	}
	doc.Find("script, style, head").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
		b.WriteString("\n")
	})
	text := b.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return normalizeWhitespace(text)
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

// ExtractSections tokenizes plain filing text into a section→text map by
// scanning for item headers. Every header closes the previous section;
// only labeled items are kept. When no headers are found it falls back to
// bounded regex extraction.
func ExtractSections(text string) map[string]string {
	sections := map[string]string{}

	matches := itemHeaderRe.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		item := strings.ToLower(text[m[2]:m[3]])
		label, keep := sectionLabels[item]
		if !keep {
			continue
		}
		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[start:end])
		// Tables of contents produce near-empty sections; prefer the
		// longest occurrence of each item.
		if len(body) > len(sections[label]) {
			sections[label] = body
		}
	}

	if _, ok := sections[SectionBusiness]; !ok {
		if m := businessFallbackRe.FindStringSubmatch(text); m != nil {
			if body := strings.TrimSpace(m[1]); body != "" {
				sections[SectionBusiness] = body
			}
		}
	}
	if _, ok := sections[SectionRiskFactors]; !ok {
		if m := riskFallbackRe.FindStringSubmatch(text); m != nil {
			if body := strings.TrimSpace(m[1]); body != "" {
				sections[SectionRiskFactors] = body
			}
		}
	}

	return sections
}

// BusinessDescription derives a bounded business description from parsed
// sections, or from sentence patterns over the whole document when the
// business section is missing. Returns "" when nothing usable is found.
func BusinessDescription(sections map[string]string, fullText string) string {
	if section := sections[SectionBusiness]; section != "" {
		if desc := capDescription(section); desc != "" {
			return desc
		}
	}

	sentences := businessSentenceRe.FindAllString(fullText, businessMaxParagraphs)
	if len(sentences) == 0 {
		return ""
	}
	return truncate(strings.Join(sentences, " "), businessMaxChars)
}

// capDescription keeps at most the first three paragraphs longer than 100
// characters, truncated to 2000 characters.
func capDescription(section string) string {
	var kept []string
	for _, p := range strings.Split(section, "\n\n") {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if len(p) > businessMinParagraph {
			kept = append(kept, p)
			if len(kept) == businessMaxParagraphs {
				break
			}
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return truncate(strings.Join(kept, "\n\n"), businessMaxChars)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
