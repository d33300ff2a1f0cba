//go:build !integration

package main

import (
	"context"
	"strings"
	"testing"

	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/infra/memory"
	"gemini-batch-ocr/internal/usecase"
)

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys(strings.NewReader("# primary\nAIza-one\n\n  AIza-two  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "AIza-one" || keys[1] != "AIza-two" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store gets every key once", func(t *testing.T) {
		uc := usecase.NewCredentialUseCase(memory.NewCredentialRepo(nil), logging.Nop())
		n, err := seed(ctx, uc, []string{"AIza-one", "AIza-two", "AIza-one"}, false)
		if err != nil || n != 2 {
			t.Fatalf("want 2 added, got %d (%v)", n, err)
		}
	})

	t.Run("non-empty store is kept without force", func(t *testing.T) {
		uc := usecase.NewCredentialUseCase(memory.NewCredentialRepo([]string{"AIza-old"}), logging.Nop())
		if n, _ := seed(ctx, uc, []string{"AIza-new"}, false); n != 0 {
			t.Fatalf("want nothing added, got %d", n)
		}
		n, err := seed(ctx, uc, []string{"AIza-old", "AIza-new"}, true)
		if err != nil || n != 1 {
			t.Fatalf("force: want 1 added, got %d (%v)", n, err)
		}
		list, _ := uc.List(ctx)
		if len(list) != 2 {
			t.Errorf("want 2 stored, got %d", len(list))
		}
	})
}
