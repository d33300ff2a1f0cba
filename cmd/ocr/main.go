// File: cmd/ocr/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gemini-batch-ocr/internal/application"
	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/infra/i18n"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/infra/sink"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run processes the images named in args and returns the exit code.
// Per-image failures are reported in the output and do not change it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ocr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "config.yaml", "path to YAML config file")
	devMode := fs.Bool("dev", false, "enable developer mode")
	modelName := fs.String("model", "", "model to use (defaults to ai.default_model)")
	outPath := fs.String("out", "", "write the combined text to this file instead of stdout")
	listModels := fs.Bool("models", false, "list available models and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := logging.NewWithWriter(stderr, cfg.Log, cfg.Runtime.Dev)
	tr, err := i18n.Load(cfg.UI.Lang)
	if err != nil {
		fmt.Fprintf(stderr, "i18n: %v\n", err)
		return 1
	}

	svc, err := application.Build(ctx, cfg, sink.NewConsoleSink(stderr, tr), logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer svc.Close()

	if *listModels {
		fmt.Fprintln(stderr, tr.T("models_loading"))
		models, err := svc.Models.ListModels(ctx)
		if err != nil {
			fmt.Fprintln(stderr, localize(tr, err, cfg.Batch.MaxImages))
			return 1
		}
		for _, m := range models {
			fmt.Fprintf(stdout, "%s\t%s\n", m.Name, m.DisplayName)
		}
		return 0
	}

	uploads, err := readFiles(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	batch, err := svc.Batches.Run(ctx, *modelName, uploads)
	if err != nil {
		fmt.Fprintln(stderr, localize(tr, err, cfg.Batch.MaxImages))
		return 1
	}

	text := batch.CombinedText(func(n int) string { return tr.T("image_header", n) })
	if *outPath == "" {
		fmt.Fprintln(stdout, text)
		return 0
	}
	if err := os.WriteFile(*outPath, []byte(text+"\n"), 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", *outPath, err)
		return 1
	}
	return 0
}

func readFiles(paths []string) ([]model.Upload, error) {
	uploads := make([]model.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, model.Upload{Name: filepath.Base(p), Data: data})
	}
	return uploads, nil
}

// localize turns a batch-level error into the user-facing message.
func localize(tr *i18n.Translator, err error, maxImages int) string {
	switch {
	case errors.Is(err, domain.ErrEmptyPool):
		return tr.T("err_empty_pool")
	case errors.Is(err, domain.ErrNoImages):
		return tr.T("err_no_images")
	case errors.Is(err, domain.ErrTooManyImages):
		return tr.T("err_too_many_images", maxImages)
	case errors.Is(err, domain.ErrBatchInProgress):
		return tr.T("err_batch_in_progress")
	case errors.Is(err, domain.ErrCredentialsExhausted):
		return tr.T("err_credentials_exhausted")
	default:
		return err.Error()
	}
}
