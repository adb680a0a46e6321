// OpenEDGAR.ai — natural-language research over SEC EDGAR filings.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/openedgarai/api"
	"github.com/seenimoa/openedgarai/internal/config"
	"github.com/seenimoa/openedgarai/internal/edgar"
	"github.com/seenimoa/openedgarai/internal/infra"
	"github.com/seenimoa/openedgarai/internal/knowledge"
	"github.com/seenimoa/openedgarai/internal/llm"
	"github.com/seenimoa/openedgarai/internal/pipeline"
	"github.com/seenimoa/openedgarai/internal/query"
	"github.com/seenimoa/openedgarai/internal/synth"
	"github.com/seenimoa/openedgarai/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set in PersistentPreRunE.
var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "openedgarai",
	Short: "OpenEDGAR.ai — natural-language research over SEC EDGAR filings",
	Long: `OpenEDGAR.ai (Open + EDGAR + Agentic AI)
Ask plain-English questions about public companies and get cited,
confidence-scored answers built from SEC EDGAR submissions, XBRL
financial facts, and annual report sections.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = buildLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(filingsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildLogger constructs the process logger from logging config.
func buildLogger(lc config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if lc.Format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return log.Level(level).With().Timestamp().Logger()
}

// buildPipeline wires the three pipeline stages from config.
func buildPipeline() (*pipeline.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := edgar.NewClient(
		edgar.WithUserAgent(cfg.Edgar.UserAgent),
		edgar.WithGate(infra.NewGate(float64(cfg.Edgar.RequestsPerSec), cfg.Edgar.RequestsPerSec)),
		edgar.WithCacheTTL(time.Duration(cfg.Edgar.CacheTTLSec)*time.Second),
		edgar.WithLogger(logger),
	)

	var provider llm.Provider
	if cfg.LLM.Primary == llm.ProviderStub {
		provider = llm.NewStubProvider("")
	} else {
		router, err := llm.NewRouterFromConfig(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("LLM setup failed: %w", err)
		}
		provider = router
	}

	opts := &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	parser := query.NewParser(provider,
		query.WithChatOptions(opts),
		query.WithTimeout(time.Duration(cfg.Pipeline.ParseTimeout)*time.Second),
		query.WithLogger(logger),
	)
	extractor := knowledge.NewExtractor(client,
		knowledge.WithWorkers(cfg.Pipeline.Workers),
		knowledge.WithMaxFilings(cfg.Pipeline.MaxFilings),
		knowledge.WithExtractorLogger(logger),
	)
	synthesizer := synth.NewSynthesizer(provider,
		synth.WithChatOptions(opts),
		synth.WithTimeout(time.Duration(cfg.Pipeline.SynthTimeout)*time.Second),
		synth.WithLogger(logger),
	)

	orchOpts := []pipeline.OrchestratorOption{
		pipeline.WithDeadline(time.Duration(cfg.Pipeline.DeadlineSec) * time.Second),
		pipeline.WithPipelineLogger(logger),
	}
	if cfg.Pipeline.UseToolRouter {
		orchOpts = append(orchOpts, pipeline.WithRouter(pipeline.NewToolRouter(client, logger)))
	}

	return pipeline.NewOrchestrator(parser, extractor, synthesizer, orchOpts...), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("OpenEDGAR.ai %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about public companies",
	Long: `Run a natural-language question through the query pipeline and print
the answer with citations and a confidence assessment.

Examples:
  openedgarai ask "What does Apple do?"
  openedgarai ask "Compare revenue trends for Apple vs Microsoft"
  openedgarai ask "Show me Tesla's last 5 SEC filings"
  openedgarai ask --json "What are NVIDIA's main risk factors?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		orch, err := buildPipeline()
		if err != nil {
			return err
		}

		answer := orch.Process(cmd.Context(), question)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		}

		printAnswer(answer)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the full answer as JSON")
}

// printAnswer renders a UniversalAnswer for the terminal.
func printAnswer(a models.UniversalAnswer) {
	fmt.Println(a.Narrative)

	if !a.Data.Empty() {
		printTable(a.Data.Comparison)
		printTable(a.Data.FinancialMetrics)
		printTable(a.Data.RiskFactors)
		if len(a.Data.Timeline) > 0 {
			fmt.Println("\nFiling Timeline:")
			for _, ev := range a.Data.Timeline {
				fmt.Printf("  %s  %-10s %s\n", ev.Date.Format("2006-01-02"), ev.Form, ev.Description)
			}
		}
	}

	if len(a.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, c := range a.Citations {
			fmt.Printf("  [%d] %s", i+1, c.SourceName)
			if c.URL != "" {
				fmt.Printf("\n      %s", c.URL)
			}
			fmt.Println()
		}
	}

	fmt.Printf("\nConfidence: %.0f%%  Completeness: %.0f%%\n",
		a.Assessment.Confidence*100, a.Assessment.Completeness*100)
	for _, lim := range a.Assessment.Limitations {
		fmt.Printf("  ⚠ %s\n", lim)
	}

	if len(a.FollowUp.Queries) > 0 {
		fmt.Println("\nYou could also ask:")
		for _, q := range a.FollowUp.Queries {
			fmt.Printf("  • %s\n", q)
		}
	}
}

// printTable renders one supporting table, column widths fit to content.
func printTable(t *models.Table) {
	if t == nil {
		return
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	fmt.Printf("\n%s:\n", t.Title)
	for i, h := range t.Headers {
		fmt.Printf("  %-*s", widths[i], h)
	}
	fmt.Println()
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Printf("  %-*s", widths[i], cell)
			}
		}
		fmt.Println()
	}
}

// --- Filings Command ---

var filingsCmd = &cobra.Command{
	Use:   "filings [ticker-or-cik]",
	Short: "List recent SEC filings for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		client := edgar.NewClient(
			edgar.WithUserAgent(cfg.Edgar.UserAgent),
			edgar.WithLogger(logger),
		)

		cik, err := knowledge.ResolveCIK(companyRef(args[0]))
		if err != nil {
			return fmt.Errorf("could not resolve %q to a CIK: %w", args[0], err)
		}

		subs, err := client.GetSubmissions(cmd.Context(), cik)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		fmt.Printf("Recent filings for %s (CIK %s):\n", subs.Name, cik)
		filings := subs.Filings.Recent.Filings()
		if len(filings) == 0 {
			// Some filers have an empty recent set; the Atom feed still works.
			entries, err := client.GetCompanyFeed(cmd.Context(), cik)
			if err != nil {
				return err
			}
			for i, e := range entries {
				if i == limit {
					break
				}
				fmt.Printf("  %s  %-10s %s\n", e.FilingDate, e.Form, e.AccessionNumber)
			}
		}
		for i, f := range filings {
			if i == limit {
				break
			}
			fmt.Printf("  %s  %-10s %s\n", f.FilingDate.Format("2006-01-02"), f.Form, f.AccessionNumber)
		}
		fmt.Printf("\nAll filings: %s\n", edgar.BrowseURL(cik))
		return nil
	},
}

func init() {
	filingsCmd.Flags().Int("limit", 10, "maximum filings to list")
}

// companyRef builds a company reference from a CLI argument, treating
// all-digit input as a CIK, short uppercase input as a ticker, and
// anything else as a name.
func companyRef(arg string) models.CompanyRef {
	trimmed := strings.TrimSpace(arg)
	if trimmed != "" && strings.Trim(trimmed, "0123456789") == "" {
		return models.CompanyRef{CIK: trimmed}
	}
	if len(trimmed) <= 5 && trimmed == strings.ToUpper(trimmed) {
		return models.CompanyRef{Ticker: trimmed}
	}
	return models.CompanyRef{Name: trimmed}
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		srv, err := api.NewServer(cfg, logger)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting OpenEDGAR.ai API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  OpenEDGAR.ai — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):  %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    EDGAR Agent:   %s\n", cfg.Edgar.UserAgent)
		fmt.Printf("    Rate Budget:   %d req/s\n", cfg.Edgar.RequestsPerSec)
		fmt.Printf("    Tool Router:   %t\n", cfg.Pipeline.UseToolRouter)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
