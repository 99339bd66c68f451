package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/gemini"
	"github.com/medflow/medical-ocr/internal/docprocessing/pages"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor/pdfraster"
	"github.com/medflow/medical-ocr/internal/docprocessing/schema"
	"github.com/medflow/medical-ocr/internal/docprocessing/service"
	"github.com/medflow/medical-ocr/pkg/config"
	"github.com/medflow/medical-ocr/pkg/logger"
)

type options struct {
	model  string
	pages  string
	output string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "medocr <file>",
		Short: "Extract structured medical data from a PDF or image",
		Long: `Runs one extraction against the configured Gemini model, prints a
summary and saves the full result as <output>/<name>_fast.json.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "Gemini model to use (default: gemini.model from config, "+string(domain.DefaultModel)+" if unset)")
	cmd.Flags().StringVar(&opts.pages, "pages", "", "pages to process (e.g. 1,3-5); disables direct PDF upload")
	cmd.Flags().StringVar(&opts.output, "output", "output/medical_ocr", "output directory")
	return cmd
}

func run(cmd *cobra.Command, path string, opts *options) error {
	cfg, err := config.Load("medocr")
	if err != nil {
		return err
	}

	model := resolveModel(opts.model, cfg)
	if !model.IsSupported() {
		return fmt.Errorf("unsupported model %q", model)
	}
	selected, err := pages.Parse(opts.pages)
	if err != nil {
		return err
	}

	log := logger.NewWithWriter(os.Stderr, "medocr")
	log.SetLevel(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nProcessing: %s\n", path)
	result, err := svc.Extract(ctx, domain.Request{
		Path:  path,
		Model: model,
		Pages: selected,
	}, func(p domain.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  [%3d%%] %s\n", p.Percent, p.Message)
	})
	if err != nil {
		return err
	}

	printSummary(out, result)

	dest, err := save(opts.output, path, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSaved full JSON to: %s\n", dest)
	return nil
}

// resolveModel prefers the --model flag, then the configured default.
func resolveModel(flag string, cfg *config.Config) domain.Model {
	if flag != "" {
		return domain.Model(flag)
	}
	if cfg.Gemini.Model != "" {
		return domain.Model(cfg.Gemini.Model)
	}
	return domain.DefaultModel
}

func newService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*service.Service, error) {
	client, err := gemini.New(ctx, cfg.Gemini.APIKey, schema.Build(), log)
	if err != nil {
		return nil, err
	}

	registry := processor.NewRegistry(log,
		processor.NewDirectStrategy(client, cfg.Gemini.PollInterval, cfg.Gemini.MaxPolls, processor.Sleep, log),
		processor.NewPageImageStrategy(pdfraster.New()),
	)
	return service.NewService(registry, client, nil, service.Options{
		APIKey:       cfg.Gemini.APIKey,
		DefaultModel: domain.Model(cfg.Gemini.Model),
		MaxAttempts:  cfg.Gemini.MaxAttempts,
		BaseDelay:    cfg.Gemini.BaseDelay,
	}, log), nil
}

// save writes the result next to the others in dir as <stem>_fast.json.
func save(dir, source string, result *domain.ExtractionResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	dest := filepath.Join(dir, stem+"_fast.json")

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, nil
}
