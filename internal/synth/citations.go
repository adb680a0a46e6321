package synth

import (
	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// Citation scores are fixed by convention rather than computed: parsed
// filing documents score 0.95/0.9, every other source 0.9/0.8.
const (
	filingCitationConfidence = 0.95
	filingCitationRelevance  = 0.9
	sourceCitationConfidence = 0.9
	sourceCitationRelevance  = 0.8
)

// BuildCitations emits one citation per parsed filing and one per raw data
// source. Filing citations carry a constructed document URL.
func BuildCitations(knowledge models.KnowledgeSet) []models.Citation {
	citations := make([]models.Citation, 0, len(knowledge.Filings)+len(knowledge.Sources))

	for _, f := range knowledge.Filings {
		name := f.Form + " " + f.AccessionNumber
		if c := knowledge.Company(f.CIK); c != nil {
			name = c.Identity.Name + " " + name
		}
		citation := models.Citation{
			SourceType:      models.SourceFilingDocument,
			SourceName:      name,
			CIK:             f.CIK,
			AccessionNumber: f.AccessionNumber,
			Form:            f.Form,
			Confidence:      filingCitationConfidence,
			Relevance:       filingCitationRelevance,
		}
		if f.PrimaryDocument != "" {
			citation.URL = edgar.DocumentURL(f.CIK, f.AccessionNumber, f.PrimaryDocument)
		}
		citations = append(citations, citation)
	}

	for _, src := range knowledge.Sources {
		if src.Type == models.SourceFilingDocument {
			// Already cited through the parsed filing itself.
			continue
		}
		citations = append(citations, models.Citation{
			SourceType: src.Type,
			SourceName: src.Name,
			Confidence: sourceCitationConfidence,
			Relevance:  sourceCitationRelevance,
		})
	}

	return citations
}
