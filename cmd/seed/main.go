package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"gemini-batch-ocr/internal/application"
	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/usecase"
)

// seed loads API keys into the configured credential store. With the redis
// store this is how keys reach every instance without editing config files.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	keysFile := flag.String("keys", "", "file with one API key per line (- for stdin)")
	force := flag.Bool("force", false, "add keys even if the store is not empty")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, err := application.Build(ctx, cfg, nil, logging.New(cfg.Log, false))
	if err != nil {
		log.Fatalf("services: %v", err)
	}
	defer svc.Close()

	keys, err := readKeys(*keysFile)
	if err != nil {
		log.Fatalf("read keys: %v", err)
	}
	added, err := seed(ctx, svc.Credentials, keys, *force)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("%d keys added.\n", added)
}

// seed adds keys that are not stored yet. A non-empty store is left alone
// unless force is set.
func seed(ctx context.Context, uc usecase.CredentialUseCase, keys []string, force bool) (int, error) {
	existing, err := uc.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 && !force {
		fmt.Printf("%d keys already present. No changes.\n", len(existing))
		for _, c := range existing {
			fmt.Printf("  - [%d] %s\n", c.Index, c.Masked)
		}
		return 0, nil
	}

	have := map[string]bool{}
	for _, c := range existing {
		full, err := uc.Reveal(ctx, c.Index)
		if err != nil {
			return 0, err
		}
		have[full.String()] = true
	}

	added := 0
	for _, k := range keys {
		if have[k] {
			continue
		}
		idx, err := uc.Add(ctx, k)
		if err != nil {
			return added, fmt.Errorf("add key %d: %w", added+1, err)
		}
		have[k] = true
		added++
		fmt.Printf("seeded: [%d] %s\n", idx, logging.Redact(k, false))
	}
	return added, nil
}

func readKeys(path string) ([]string, error) {
	var r io.Reader
	switch path {
	case "":
		return nil, fmt.Errorf("-keys is required")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseKeys(r)
}

// parseKeys reads one key per line. Blank lines and # comments are skipped.
func parseKeys(r io.Reader) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	return keys, sc.Err()
}
