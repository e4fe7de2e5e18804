// Command redline runs an iterative multi-agent review over a document
// and writes the revised text plus reports to an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redlinehq/redline/config"
	"github.com/redlinehq/redline/document"
	"github.com/redlinehq/redline/engine"
	"github.com/redlinehq/redline/inference"
	"github.com/redlinehq/redline/ingest"
	"github.com/redlinehq/redline/logger"
	"github.com/redlinehq/redline/resilience"
	"github.com/redlinehq/redline/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "redline:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.DefaultConfigFile, "path to YAML configuration")
		input      = flag.String("input", "", "document to review (markdown or plain text)")
		title      = flag.String("title", "", "document title (default: derived from filename)")
		provider   = flag.String("provider", "", "LLM provider: gemini, groq, openrouter, mock")
		model      = flag.String("model", "", "model name override")
		outputDir  = flag.String("output", "", "artifact directory override")
		formats    = flag.String("formats", "", "comma-separated report formats: markdown, html")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error")
		useTUI     = flag.Bool("tui", false, "show interactive progress view")
		listModels = flag.Bool("list-models", false, "list models available from the provider and exit")
	)
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, *provider, *model, *outputDir, *formats, *logLevel)

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := buildPort(cfg)
	if err != nil {
		return err
	}

	if *listModels {
		models, err := port.ListAvailableModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	}

	if *input == "" {
		return fmt.Errorf("-input is required")
	}
	doc, err := ingest.File(*input, ingest.Options{
		SplitLevel: cfg.Review.SplitLevel,
		Title:      *title,
	})
	if err != nil {
		return err
	}
	log.Info("document ingested",
		"title", doc.Title, "sections", len(doc.Sections), "format", doc.SourceFormat)

	orch, err := engine.New(port, engineConfig(cfg), engine.WithLogger(log))
	if err != nil {
		return err
	}

	var result *engine.Result
	if *useTUI {
		result, err = runTUI(ctx, orch, doc)
	} else {
		result, err = runPlain(ctx, log, orch, doc)
	}
	if result == nil {
		return err
	}
	// A cancelled run still carries partial results worth persisting.
	if err != nil && result.Status != engine.RunCancelled {
		return err
	}

	st, err := store.New(cfg.Report.OutputDir)
	if err != nil {
		return err
	}
	dir, err := st.SaveResult(result)
	if err != nil {
		return err
	}
	if err := st.SaveReports(result, cfg.Report.Formats); err != nil {
		return err
	}

	fmt.Printf("run %s: %s\n", result.RunID, result.Status)
	fmt.Printf("findings: %d (%d open, %d resolved, %d disputed)\n",
		result.Ledger.Total, result.Ledger.Open, result.Ledger.Resolved, result.Ledger.Disputed)
	fmt.Printf("artifacts: %s\n", dir)
	if result.Status == engine.RunFailed {
		os.Exit(1)
	}
	return nil
}

// runPlain executes the run while logging progress events.
func runPlain(ctx context.Context, log *slog.Logger, orch *engine.Orchestrator, doc *document.Document) (*engine.Result, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Events() {
			log.Info(string(ev.Kind), "section", ev.SectionID, "data", ev.Data)
		}
	}()
	result, err := orch.Run(ctx, doc)
	<-done
	return result, err
}

// applyFlags overlays non-empty CLI flags onto the loaded configuration.
// Flags win over both YAML and environment.
func applyFlags(cfg *config.Config, provider, model, outputDir, formats, logLevel string) {
	if provider != "" {
		cfg.Provider.Name = provider
	}
	if model != "" {
		cfg.Provider.Model = model
	}
	if outputDir != "" {
		cfg.Report.OutputDir = outputDir
	}
	if formats != "" {
		cfg.Report.Formats = strings.Split(formats, ",")
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// engineConfig maps the file-level configuration onto the engine record.
func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Model = cfg.Provider.Model
	ec.Temperature = cfg.Review.Temperature
	ec.MaxTokens = cfg.Review.MaxTokens
	ec.MaxRetries = cfg.Review.MaxRetries
	ec.CallTimeout = cfg.Review.CallTimeout
	ec.MaxIterations = cfg.Review.MaxIterations
	ec.ConvergenceThreshold = cfg.Review.ConvergenceThreshold
	ec.SimilarityStrategy = cfg.Review.SimilarityStrategy
	ec.Workers = cfg.Review.Workers
	ec.Terminology = strings.Join(cfg.Review.Terminology, ", ")
	return ec
}

// buildPort constructs the provider adapter, wrapped with the shared rate
// limiter. Every agent goes through this single port, so the provider sees
// one request stream regardless of section concurrency.
func buildPort(cfg *config.Config) (inference.Port, error) {
	var (
		port inference.Port
		err  error
	)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)

	switch strings.ToLower(cfg.Provider.Name) {
	case "gemini":
		opts := []inference.GeminiOption{inference.WithGeminiBreaker(breaker)}
		if cfg.Provider.Model != "" {
			opts = append(opts, inference.WithGeminiModel(cfg.Provider.Model))
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, inference.WithGeminiBaseURL(cfg.Provider.BaseURL))
		}
		port, err = inference.NewGeminiAdapter(cfg.Provider.APIKey, opts...)
	case "groq":
		opts := []inference.GollmOption{inference.WithAPIKey(cfg.Provider.APIKey)}
		if cfg.Provider.Model != "" {
			opts = append(opts, inference.WithModel(cfg.Provider.Model))
		}
		port, err = inference.NewGollmAdapter("groq", opts...)
	case "openrouter":
		opts := []inference.OpenRouterOption{inference.WithOpenRouterBreaker(breaker)}
		if cfg.Provider.Model != "" {
			opts = append(opts, inference.WithOpenRouterModel(cfg.Provider.Model))
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, inference.WithOpenRouterBaseURL(cfg.Provider.BaseURL))
		}
		port, err = inference.NewOpenRouterAdapter(cfg.Provider.APIKey, opts...)
	case "mock":
		port = inference.NewMockAdapter()
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
	if err != nil {
		return nil, err
	}
	return inference.RateLimited(port, cfg.Rate.RequestsPerSecond, cfg.Rate.Burst), nil
}
