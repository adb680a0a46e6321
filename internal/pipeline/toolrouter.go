package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/internal/knowledge"
	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// RouteResult is what the alternate knowledge provider reports back.
type RouteResult struct {
	Success    bool                `json:"success"`
	Knowledge  models.KnowledgeSet `json:"knowledge"`
	ToolsUsed  []string            `json:"tools_used"`
	Confidence float64             `json:"confidence"`
}

// KnowledgeRouter is the alternate, tool-routing knowledge provider the
// orchestrator may try before direct extraction.
type KnowledgeRouter interface {
	Route(ctx context.Context, query models.StructuredQuery) (RouteResult, error)
}

// ToolRouter maps a structured query onto a batch of registry tool
// invocations and reassembles their outputs into a KnowledgeSet. Individual
// tool failures are tolerated: each failed call contributes an error
// placeholder source instead of aborting the batch.
type ToolRouter struct {
	registry *llm.ToolRegistry
	now      func() time.Time
	log      zerolog.Logger
}

// NewToolRouter builds a router whose tools are backed by the given filings
// directory.
func NewToolRouter(dir knowledge.Directory, log zerolog.Logger) *ToolRouter {
	r := &ToolRouter{
		registry: llm.NewToolRegistry(),
		now:      time.Now,
		log:      log.With().Str("component", "tool_router").Logger(),
	}

	r.registry.RegisterFunc("get_submissions",
		"Fetch company submissions metadata by CIK",
		llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"cik": llm.StringProp("zero-padded 10-digit CIK"),
		}, "cik"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			cik, err := cikArg(args)
			if err != nil {
				return "", err
			}
			subs, err := dir.GetSubmissions(ctx, cik)
			if err != nil {
				return "", err
			}
			return marshalJSON(subs)
		})

	r.registry.RegisterFunc("get_facts",
		"Fetch XBRL company facts by CIK",
		llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"cik": llm.StringProp("zero-padded 10-digit CIK"),
		}, "cik"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			cik, err := cikArg(args)
			if err != nil {
				return "", err
			}
			facts, err := dir.GetFacts(ctx, cik)
			if err != nil {
				return "", err
			}
			return marshalJSON(facts)
		})

	return r
}

// Tools exposes the registry, e.g. for serving a tool listing.
func (r *ToolRouter) Tools() *llm.ToolRegistry { return r.registry }

// Route resolves the query's companies and executes one tool batch. The
// result's confidence comes from the same scoring as direct extraction, so
// the orchestrator can gate on it uniformly.
func (r *ToolRouter) Route(ctx context.Context, query models.StructuredQuery) (RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return RouteResult{}, err
	}

	type plannedCall struct {
		call llm.ToolCall
		cik  string
	}
	var planned []plannedCall

	wantFacts := query.Scope.Requests(models.CategoryFinancialData)
	for _, ref := range query.Entities.Companies {
		cik, err := knowledge.ResolveCIK(ref)
		if err != nil {
			r.log.Debug().Err(err).Str("company", ref.Name).Msg("skipping unresolvable company")
			continue
		}
		args, _ := json.Marshal(map[string]string{"cik": cik})
		planned = append(planned, plannedCall{
			call: llm.ToolCall{ID: "subs-" + cik, Name: "get_submissions", Arguments: args},
			cik:  cik,
		})
		if wantFacts {
			planned = append(planned, plannedCall{
				call: llm.ToolCall{ID: "facts-" + cik, Name: "get_facts", Arguments: args},
				cik:  cik,
			})
		}
	}
	if len(planned) == 0 {
		return RouteResult{}, nil
	}

	calls := make([]llm.ToolCall, len(planned))
	for i, p := range planned {
		calls[i] = p.call
	}
	results := r.registry.ExecuteAll(ctx, calls)

	now := r.now()
	var set models.KnowledgeSet
	toolsUsed := make([]string, 0, len(results))
	byCIK := map[string]int{}

	for i, res := range results {
		toolsUsed = append(toolsUsed, res.Name)
		cik := planned[i].cik
		if res.Err != nil {
			// Error placeholder keeps the batch going and leaves a trace.
			set.Sources = append(set.Sources, models.DataSource{
				Type:      models.SourceToolRouter,
				Name:      fmt.Sprintf("%s %s failed: %v", res.Name, cik, res.Err),
				Timestamp: now,
			})
			continue
		}

		switch res.Name {
		case "get_submissions":
			var subs edgar.Submissions
			if err := json.Unmarshal([]byte(res.Content), &subs); err != nil {
				r.log.Warn().Err(err).Str("cik", cik).Msg("submissions tool output malformed")
				continue
			}
			company := models.CompanyKnowledge{Identity: knowledge.IdentityFrom(cik, &subs)}
			for _, f := range subs.Filings.Recent.Filings() {
				company.RecentFilings = append(company.RecentFilings, models.FilingSummary{
					AccessionNumber: f.AccessionNumber,
					Form:            f.Form,
					FilingDate:      f.FilingDate,
					PrimaryDocument: f.PrimaryDocument,
				})
			}
			set.Companies = append(set.Companies, company)
			byCIK[cik] = len(set.Companies) - 1
			set.Sources = append(set.Sources, models.DataSource{
				Type:        models.SourceToolRouter,
				Name:        "get_submissions " + cik,
				Timestamp:   now,
				Reliability: 0.9,
				Official:    true,
			})
		case "get_facts":
			var facts edgar.CompanyFacts
			if err := json.Unmarshal([]byte(res.Content), &facts); err != nil {
				r.log.Warn().Err(err).Str("cik", cik).Msg("facts tool output malformed")
				continue
			}
			if idx, ok := byCIK[cik]; ok {
				set.Companies[idx].Financials = knowledge.BuildFinancialProfile(&facts, knowledge.StandardTrends{})
			}
			set.Sources = append(set.Sources, models.DataSource{
				Type:        models.SourceToolRouter,
				Name:        "get_facts " + cik,
				Timestamp:   now,
				Reliability: 0.9,
				Official:    true,
			})
		}
	}

	knowledge.ScoreKnowledge(&set, len(query.Entities.Companies), query.Scope, now)
	return RouteResult{
		Success:    len(set.Companies) > 0,
		Knowledge:  set,
		ToolsUsed:  toolsUsed,
		Confidence: set.Confidence,
	}, nil
}

func cikArg(args json.RawMessage) (string, error) {
	var payload struct {
		CIK string `json:"cik"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	if payload.CIK == "" {
		return "", fmt.Errorf("missing cik argument")
	}
	return payload.CIK, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
