package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/internal/reference"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// ErrUnresolvable marks a company reference that could not be mapped to a
// CIK. It is caught at the per-company boundary and never escapes Extract.
var ErrUnresolvable = errors.New("company could not be resolved to a CIK")

// Directory is the filings-directory capability the extractor needs. The
// EDGAR client satisfies it; tests substitute doubles.
type Directory interface {
	GetSubmissions(ctx context.Context, cik string) (*edgar.Submissions, error)
	GetFacts(ctx context.Context, cik string) (*edgar.CompanyFacts, error)
	GetDocument(ctx context.Context, cik, accessionNumber, primaryDocument string) (string, error)
}

// FeedSource is optionally implemented by directories that also expose the
// company Atom feed. When present it backs the filing-history fallback for
// companies whose submissions response carries an empty recent set.
type FeedSource interface {
	GetCompanyFeed(ctx context.Context, cik string) ([]edgar.FeedEntry, error)
}

const (
	defaultWorkers    = 4
	defaultMaxFilings = 20
)

// Extractor turns a structured query into a KnowledgeSet.
type Extractor struct {
	dir        Directory
	trends     TrendComputer
	workers    int
	maxFilings int
	now        func() time.Time
	log        zerolog.Logger
}

// ExtractorOption configures the Extractor.
type ExtractorOption func(*Extractor)

// WithTrendComputer replaces the trend computation.
func WithTrendComputer(tc TrendComputer) ExtractorOption {
	return func(e *Extractor) { e.trends = tc }
}

// WithWorkers bounds the per-company fan-out.
func WithWorkers(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxFilings caps how many recent filings are kept per company.
func WithMaxFilings(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFilings = n
		}
	}
}

// WithExtractorLogger sets the extractor's logger.
func WithExtractorLogger(log zerolog.Logger) ExtractorOption {
	return func(e *Extractor) { e.log = log.With().Str("component", "extractor").Logger() }
}

func withClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an extractor over the given filings directory.
func NewExtractor(dir Directory, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		dir:        dir,
		trends:     StandardTrends{},
		workers:    defaultWorkers,
		maxFilings: defaultMaxFilings,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// companyResult carries one company's extraction outcome back from the
// worker pool. Failed companies keep their error and contribute nothing.
type companyResult struct {
	company models.CompanyKnowledge
	filings []models.FilingKnowledge
	sources []models.DataSource
	err     error
}

// Extract resolves every company in the query and assembles a KnowledgeSet.
// Companies are processed in parallel under a bounded pool; a failure for
// one company is logged and skipped without affecting its siblings. The
// only returned error is context cancellation.
func (e *Extractor) Extract(ctx context.Context, query models.StructuredQuery) (models.KnowledgeSet, error) {
	refs := query.Entities.Companies
	results := make([]companyResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = e.extractCompany(gctx, ref, query.Scope)
			if results[i].err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.KnowledgeSet{}, err
	}

	var set models.KnowledgeSet
	for i, res := range results {
		if res.err != nil {
			e.log.Warn().Err(res.err).Str("company", refs[i].Name).Msg("company extraction skipped")
			continue
		}
		set.Companies = append(set.Companies, res.company)
		set.Filings = append(set.Filings, res.filings...)
		set.Sources = append(set.Sources, res.sources...)
	}

	ScoreKnowledge(&set, len(refs), query.Scope, e.now())
	return set, nil
}

func (e *Extractor) extractCompany(ctx context.Context, ref models.CompanyRef, scope models.QueryScope) companyResult {
	cik, err := ResolveCIK(ref)
	if err != nil {
		return companyResult{err: err}
	}

	subs, err := e.dir.GetSubmissions(ctx, cik)
	if err != nil {
		return companyResult{err: fmt.Errorf("submissions for %s: %w", cik, err)}
	}

	now := e.now()
	res := companyResult{
		company: models.CompanyKnowledge{Identity: IdentityFrom(cik, subs)},
		sources: []models.DataSource{{
			Type:        models.SourceFilingsDirectory,
			Name:        "EDGAR submissions " + cik,
			Timestamp:   now,
			Reliability: 0.95,
			Official:    true,
		}},
	}

	filings := subs.Filings.Recent.Filings()
	for _, f := range filings {
		res.company.RecentFilings = append(res.company.RecentFilings, models.FilingSummary{
			AccessionNumber: f.AccessionNumber,
			Form:            f.Form,
			FilingDate:      f.FilingDate,
			PrimaryDocument: f.PrimaryDocument,
		})
		if len(res.company.RecentFilings) == e.maxFilings {
			break
		}
	}

	if len(res.company.RecentFilings) == 0 {
		e.filingsFromFeed(ctx, cik, &res)
	}

	needDocument := scope.Requests(models.CategoryBusinessDescription) || scope.Requests(models.CategoryRiskFactors)
	if needDocument {
		e.extractFromAnnualReport(ctx, cik, filings, scope, &res)
	}

	if scope.Requests(models.CategoryBusinessDescription) && res.company.Business == nil {
		// Industry-classification fallback, never an error.
		res.company.Business = &models.BusinessProfile{
			Description: syntheticDescription(res.company.Identity),
			Source:      "industry_classification",
		}
	}

	if scope.Requests(models.CategoryFinancialData) {
		facts, err := e.dir.GetFacts(ctx, cik)
		if err != nil {
			e.log.Warn().Err(err).Str("cik", cik).Msg("facts fetch failed")
		} else {
			res.company.Financials = BuildFinancialProfile(facts, e.trends)
			res.sources = append(res.sources, models.DataSource{
				Type:        models.SourceXBRLFacts,
				Name:        "EDGAR company facts " + cik,
				Timestamp:   now,
				Reliability: 0.95,
				Official:    true,
			})
		}
	}

	return res
}

// filingsFromFeed rebuilds the recent-filings list from the company Atom
// feed. It runs only when the submissions recent set is empty and the
// directory exposes the feed; failures leave the list empty.
func (e *Extractor) filingsFromFeed(ctx context.Context, cik string, res *companyResult) {
	feed, ok := e.dir.(FeedSource)
	if !ok {
		return
	}

	entries, err := feed.GetCompanyFeed(ctx, cik)
	if err != nil {
		e.log.Warn().Err(err).Str("cik", cik).Msg("company feed fetch failed")
		return
	}
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		res.company.RecentFilings = append(res.company.RecentFilings, models.FilingSummary{
			AccessionNumber: entry.AccessionNumber,
			Form:            entry.Form,
			FilingDate:      edgar.ParseDate(entry.FilingDate),
		})
		if len(res.company.RecentFilings) == e.maxFilings {
			break
		}
	}
	res.sources = append(res.sources, models.DataSource{
		Type:        models.SourceCompanyFeed,
		Name:        "EDGAR company feed " + cik,
		Timestamp:   e.now(),
		Reliability: 0.85,
		Official:    true,
	})
}

// extractFromAnnualReport fetches the most recent 10-K primary document
// and parses the requested sections out of it. Fetch or parse failures
// leave the profiles unset; they never fail the company.
func (e *Extractor) extractFromAnnualReport(ctx context.Context, cik string, filings []edgar.Filing, scope models.QueryScope, res *companyResult) {
	var annual *edgar.Filing
	for i := range filings {
		if filings[i].Form == "10-K" {
			annual = &filings[i]
			break
		}
	}
	if annual == nil || annual.PrimaryDocument == "" {
		return
	}

	raw, err := e.dir.GetDocument(ctx, cik, annual.AccessionNumber, annual.PrimaryDocument)
	if err != nil {
		e.log.Warn().Err(err).Str("cik", cik).Str("accession", annual.AccessionNumber).Msg("document fetch failed")
		return
	}

	text := StripHTML(raw)
	sections := ExtractSections(text)

	res.filings = append(res.filings, models.FilingKnowledge{
		CIK:             cik,
		AccessionNumber: annual.AccessionNumber,
		Form:            annual.Form,
		FilingDate:      annual.FilingDate,
		PrimaryDocument: annual.PrimaryDocument,
		Sections:        sections,
	})
	res.sources = append(res.sources, models.DataSource{
		Type:        models.SourceFilingDocument,
		Name:        annual.Form + " " + annual.AccessionNumber,
		Timestamp:   e.now(),
		Reliability: 0.9,
		Official:    true,
	})

	if scope.Requests(models.CategoryBusinessDescription) {
		if desc := BusinessDescription(sections, text); desc != "" {
			res.company.Business = &models.BusinessProfile{
				Description: desc,
				Source:      annual.AccessionNumber,
			}
		}
	}
	if scope.Requests(models.CategoryRiskFactors) {
		if section := sections[SectionRiskFactors]; section != "" {
			res.company.Risks = BuildRiskProfile(section, annual.AccessionNumber)
		}
	}
}

// ResolveCIK maps a company reference to a padded CIK, consulting the
// curated table when the reference carries no CIK of its own.
func ResolveCIK(ref models.CompanyRef) (string, error) {
	if ref.CIK != "" {
		return edgar.PadCIK(ref.CIK), nil
	}
	if ref.Ticker != "" {
		if c, ok := reference.ByTicker(ref.Ticker); ok {
			return c.CIK, nil
		}
	}
	if ref.Name != "" {
		if c, ok := reference.ByName(ref.Name); ok {
			return c.CIK, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolvable, ref.Name)
}

// IdentityFrom builds a company identity from a submissions response.
func IdentityFrom(cik string, subs *edgar.Submissions) models.CompanyIdentity {
	id := models.CompanyIdentity{
		CIK:                  cik,
		Name:                 subs.Name,
		SICCode:              subs.SIC,
		SICDescription:       subs.SICDescription,
		Sector:               reference.SectorForSIC(subs.SIC),
		Headquarters:         subs.BusinessAddress(),
		StateOfIncorporation: subs.StateOfIncorp,
		FiscalYearEnd:        subs.FiscalYearEnd,
		Status:               models.StatusActive,
	}
	if len(subs.Tickers) > 0 {
		id.Ticker = subs.Tickers[0]
	}
	for _, fn := range subs.FormerNames {
		id.Aliases = append(id.Aliases, fn.Name)
	}
	return id
}

func syntheticDescription(id models.CompanyIdentity) string {
	name := id.Name
	if name == "" {
		name = "The company"
	}
	if id.SICDescription != "" {
		return fmt.Sprintf("%s operates in the %s industry within the %s sector.",
			name, strings.ToLower(id.SICDescription), strings.ToLower(id.Sector))
	}
	return fmt.Sprintf("%s is a public company filing with the SEC.", name)
}
