package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/config"
	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms"
	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/pipeline"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/store"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

type flags struct {
	configPath        string
	articlesDir       string
	provider          string
	model             string
	embeddingProvider string
	embeddingModel    string
	threshold         float64
	strategy          string
	store             string
	regenerate        bool
	logLevel          string
	noProgress        bool
}

func main() {
	f, set, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, f, set, os.Stdout)
	if err != nil {
		color.Red("quizpipe: %v", err)
		stop()
		os.Exit(1)
	}
}

// parseFlags returns the parsed values and the names of the flags given on
// the command line, which are the only ones allowed to override config.
func parseFlags(args []string) (flags, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("quizpipe", flag.ContinueOnError)

	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.articlesDir, "articles", "", "Directory containing article_*.md files")
	fs.StringVar(&f.provider, "provider", "", "Generation provider: gemini, openai, ollama, bedrock")
	fs.StringVar(&f.model, "model", "", "Generation model")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (defaults to -provider)")
	fs.StringVar(&f.embeddingModel, "embedding-model", "", "Embedding model")
	fs.Float64Var(&f.threshold, "threshold", dedup.DefaultThreshold, "Similarity at or above which a question is a duplicate")
	fs.StringVar(&f.strategy, "strategy", string(dedup.DefaultStrategy), "Duplicate match strategy: first or best")
	fs.StringVar(&f.store, "store", store.DriverJSON, "Record store: json or sqlite")
	fs.BoolVar(&f.regenerate, "regenerate", false, "Regenerate articles that already have a record")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level")
	fs.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")

	err := fs.Parse(args)
	if err != nil {
		return f, nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

func applyFlags(cfg *config.Config, f flags, set map[string]bool) {
	if set["articles"] {
		cfg.Articles.Dir = f.articlesDir
	}
	if set["provider"] {
		if !set["embedding-provider"] && strings.EqualFold(cfg.Embedding.Provider, cfg.Generation.Provider) {
			cfg.Embedding.Provider = f.provider
		}
		cfg.Generation.Provider = f.provider
	}
	if set["model"] {
		cfg.Generation.Model = f.model
	}
	if set["embedding-provider"] {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	if set["embedding-model"] {
		cfg.Embedding.Model = f.embeddingModel
	}
	if set["threshold"] {
		cfg.Dedup.Threshold = f.threshold
	}
	if set["strategy"] {
		cfg.Dedup.Strategy = f.strategy
	}
	if set["store"] {
		cfg.Store.Driver = f.store
	}
	if set["regenerate"] {
		cfg.Pipeline.Regenerate = f.regenerate
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
}

func loadConfig(f flags, set map[string]bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, f, set)

	validationErrs := cfg.Validate()
	if len(validationErrs) > 0 {
		errs := make([]error, 0, len(validationErrs))
		for _, e := range validationErrs {
			errs = append(errs, e)
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func run(ctx context.Context, f flags, set map[string]bool, out io.Writer) error {
	cfg, err := loadConfig(f, set)
	if err != nil {
		return err
	}

	err = logging.Configure(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return err
	}

	recordStore, err := store.Open(store.Config{
		Driver:     cfg.Store.Driver,
		QuizDir:    cfg.Store.QuizDir,
		ErrorDir:   cfg.Store.ErrorDir,
		SQLitePath: cfg.Store.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer recordStore.Close()

	generator, embedder, err := buildCollaborators(cfg)
	if err != nil {
		return err
	}

	strategy, err := dedup.ParseStrategy(cfg.Dedup.Strategy)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	p, err := pipeline.New(pipeline.Config{
		Threshold:      cfg.Dedup.Threshold,
		Strategy:       strategy,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		Regenerate:     cfg.Pipeline.Regenerate,
		OnStart: func(total int) {
			if !f.noProgress {
				bar = getProgressBar(total, " Generating quizzes...")
			}
		},
		OnProgress: func(pipeline.Outcome) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	}, pipeline.Dependencies{
		Articles:  articles.NewLoader(cfg.Articles.Dir, cfg.Articles.Pattern),
		Generator: generator,
		Embedder:  embedder,
		Store:     recordStore,
	})
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(out)
	}
	printSummary(out, summary)
	return err
}

func buildCollaborators(cfg *config.Config) (*quiz.Generator, *quiz.Embedder, error) {
	genProvider, err := llms.ParseProvider(cfg.Generation.Provider)
	if err != nil {
		return nil, nil, err
	}
	factory, err := llms.StructuredGeneratorFactory[quiz.Candidate](genProvider)
	if err != nil {
		return nil, nil, err
	}
	generator, err := quiz.NewGenerator(factory, cfg.Generation.GenerationOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize quiz generator: %w", err)
	}

	embedProvider, err := llms.ParseProvider(cfg.Embedding.Provider)
	if err != nil {
		return nil, nil, err
	}
	embeddingGenerator, err := llms.NewEmbeddingGenerator(embedProvider, cfg.Embedding.EmbeddingOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding generator: %w", err)
	}
	embedder, err := quiz.NewEmbedder(embeddingGenerator)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return generator, embedder, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("articles"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printSummary(out io.Writer, summary pipeline.Summary) {
	if summary.Total == 0 {
		color.New(color.FgYellow).Fprintln(out, "No articles found.")
		return
	}

	for _, o := range summary.Outcomes {
		switch o.State {
		case pipeline.StatePersisted:
			color.New(color.FgGreen).Fprintf(out, "  ✓ %s -> %s\n", o.ArticleID, o.Source)
		case pipeline.StateRejected:
			color.New(color.FgYellow).Fprintf(out, "  ↺ %s duplicate of %s (similarity %.4f)\n", o.ArticleID, o.MatchedWith, o.Similarity)
		case pipeline.StateSkipped:
			color.New(color.FgCyan).Fprintf(out, "  - %s skipped, record exists\n", o.ArticleID)
		default:
			color.New(color.FgRed).Fprintf(out, "  ✗ %s failed at %s: %v\n", o.ArticleID, o.Stage, o.Err)
		}
	}

	color.New(color.Bold).Fprintf(out,
		"\nrun %s: %d articles, %d persisted, %d rejected, %d failed, %d skipped\n",
		summary.RunID,
		summary.Total,
		summary.Persisted,
		summary.Rejected,
		summary.Failed,
		summary.Skipped,
	)
}
