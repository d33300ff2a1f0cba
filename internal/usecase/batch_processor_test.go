//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/infra/logging"
)

func newRun(ids ...string) *model.BatchRun {
	items := make([]model.ImageItem, len(ids))
	for i, id := range ids {
		items[i] = model.ImageItem{ID: id, Position: i, MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	}
	return model.NewBatchRun("batch-"+ids[0], "gemini-1.5-flash", items)
}

func newTestProcessor(repo *memCredRepo, ocr *scriptedOCR, sink *eventRecorder) (*BatchProcessor, *CredentialPool) {
	pool := NewCredentialPool(repo, nil, logging.Nop())
	return NewBatchProcessor(pool, ocr, sink, logging.Nop(), false), pool
}

func TestProcess_AlwaysRateLimited_ExhaustsEveryCredential(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("pool of %d", n), func(t *testing.T) {
			keys := make([]string, n)
			ocr := newScriptedOCR()
			ocr.fallback = rateLimited()
			for i := range keys {
				keys[i] = fmt.Sprintf("k%d", i)
			}
			sink := &eventRecorder{}
			p, pool := newTestProcessor(newMemCredRepo(keys...), ocr, sink)

			run := newRun("x")
			if err := p.Process(context.Background(), run); err != nil {
				t.Fatalf("Process: %v", err)
			}

			res := run.Results[0]
			if ocr.callCount() != n || res.Attempts != n {
				t.Fatalf("want %d attempts, got calls=%d attempts=%d", n, ocr.callCount(), res.Attempts)
			}
			if res.Status != model.ItemStatusFailed || res.Kind != model.FailureCredentialsExhausted {
				t.Fatalf("want failed/credentials_exhausted, got %s/%s", res.Status, res.Kind)
			}
			// advanced exactly n times: back where it started
			if pool.Cursor() != 0 {
				t.Errorf("cursor should wrap back to 0 after %d advances, got %d", n, pool.Cursor())
			}
			seen := map[model.Credential]bool{}
			for _, c := range ocr.credsFor("x") {
				seen[c] = true
			}
			if len(seen) != n {
				t.Errorf("every credential should be tried once, saw %v", seen)
			}
		})
	}
}

func TestProcess_FirstResponseSuccess(t *testing.T) {
	ocr := newScriptedOCR().on("k2", success("TEXT"))
	p, pool := newTestProcessor(newMemCredRepo("k1", "k2", "k3"), ocr, &eventRecorder{})
	_, _ = pool.ActiveCredentials(context.Background())
	pool.Advance(context.Background()) // cursor on k2

	run := newRun("x")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if ocr.callCount() != 1 {
		t.Fatalf("want 1 call, got %d", ocr.callCount())
	}
	if run.Results[0].Status != model.ItemStatusSucceeded || run.Results[0].Text != "TEXT" {
		t.Fatalf("unexpected result %+v", run.Results[0])
	}
	if pool.Cursor() != 1 {
		t.Errorf("success must not move the cursor; got %d", pool.Cursor())
	}
}

func TestProcess_TerminalErrorIsNotRetried(t *testing.T) {
	ocr := newScriptedOCR().on("k1", terminal(400, "Invalid image data"))
	p, pool := newTestProcessor(newMemCredRepo("k1", "k2"), ocr, &eventRecorder{})

	run := newRun("x")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	res := run.Results[0]
	if ocr.callCount() != 1 {
		t.Fatalf("want exactly 1 call, got %d", ocr.callCount())
	}
	if res.Status != model.ItemStatusFailed || res.Kind != model.FailureRemote {
		t.Fatalf("want failed/remote, got %s/%s", res.Status, res.Kind)
	}
	if res.Reason != "Invalid image data" {
		t.Errorf("remote message must be kept verbatim, got %q", res.Reason)
	}
	if pool.Cursor() != 0 {
		t.Errorf("cursor must not move on terminal error, got %d", pool.Cursor())
	}
}

func TestProcess_RotationIsSharedAcrossImages(t *testing.T) {
	ocr := newScriptedOCR().
		on("A", rateLimited()).
		on("B", success("one"), success("two"))
	p, pool := newTestProcessor(newMemCredRepo("A", "B"), ocr, &eventRecorder{})

	run := newRun("img1", "img2")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	got1 := ocr.credsFor("img1")
	if len(got1) != 2 || got1[0] != "A" || got1[1] != "B" {
		t.Fatalf("img1 should try A then B, got %v", got1)
	}
	got2 := ocr.credsFor("img2")
	if len(got2) != 1 || got2[0] != "B" {
		t.Fatalf("img2 must start from B where img1 left the cursor, got %v", got2)
	}
	if pool.Cursor() != 1 {
		t.Errorf("want cursor on B (1), got %d", pool.Cursor())
	}
}

func TestProcess_ScenarioTwoKeys(t *testing.T) {
	ocr := newScriptedOCR().on("k1", rateLimited()).on("k2", success("HELLO"))
	p, pool := newTestProcessor(newMemCredRepo("k1", "k2"), ocr, &eventRecorder{})

	run := newRun("X")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	res := run.Results[0]
	if res.Status != model.ItemStatusSucceeded || res.Text != "HELLO" || res.Attempts != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	cur, _ := pool.Current()
	if cur != "k2" {
		t.Errorf("cursor should stay on the credential that succeeded, got %s", cur)
	}
}

func TestProcess_ScenarioSingleKeyRateLimited(t *testing.T) {
	ocr := newScriptedOCR().on("k1", rateLimited())
	sink := &eventRecorder{}
	p, _ := newTestProcessor(newMemCredRepo("k1"), ocr, sink)

	run := newRun("Y")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	res := run.Results[0]
	if res.Attempts != 1 || res.Kind != model.FailureCredentialsExhausted {
		t.Fatalf("want 1 attempt and exhausted, got %+v", res)
	}
	if res.Reason != domain.ErrCredentialsExhausted.Error() {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestProcess_EmptyPoolFailsBeforeAnyWork(t *testing.T) {
	ocr := newScriptedOCR()
	sink := &eventRecorder{}
	p, _ := newTestProcessor(newMemCredRepo("", ""), ocr, sink)

	run := newRun("a", "b")
	err := p.Process(context.Background(), run)
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("want ErrEmptyPool, got %v", err)
	}
	if ocr.callCount() != 0 {
		t.Errorf("remote must not be called, got %d calls", ocr.callCount())
	}
	if len(sink.snapshot()) != 0 {
		t.Errorf("no events expected, got %v", sink.snapshot())
	}
	for _, r := range run.Results {
		if r.Status != model.ItemStatusPending {
			t.Errorf("item %s left pending: %s", r.ItemID, r.Status)
		}
	}
}

func TestProcess_EventOrder(t *testing.T) {
	ocr := newScriptedOCR().
		on("k1", rateLimited()).
		on("k2", success("ok"), terminal(500, "internal"))
	sink := &eventRecorder{}
	p, _ := newTestProcessor(newMemCredRepo("k1", "k2"), ocr, sink)

	if err := p.Process(context.Background(), newRun("a", "b")); err != nil {
		t.Fatal(err)
	}

	want := []sinkEvent{
		{Kind: "batch_started"},
		{Kind: "item", ItemID: "a", Status: model.ItemStatusPending},
		{Kind: "item", ItemID: "b", Status: model.ItemStatusPending},
		{Kind: "item", ItemID: "a", Status: model.ItemStatusInProgress},
		{Kind: "retrying", ItemID: "a", Attempt: 1},
		{Kind: "item", ItemID: "a", Status: model.ItemStatusSucceeded},
		{Kind: "item", ItemID: "b", Status: model.ItemStatusInProgress},
		{Kind: "item", ItemID: "b", Status: model.ItemStatusFailed},
		{Kind: "batch_complete"},
	}
	got := sink.snapshot()
	if len(got) != len(want) {
		t.Fatalf("want %d events, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestProcess_OneFailureDoesNotAbortBatch(t *testing.T) {
	ocr := newScriptedOCR().on("k1", terminal(403, "API key not valid"), success("second"))
	p, _ := newTestProcessor(newMemCredRepo("k1"), ocr, &eventRecorder{})

	run := newRun("a", "b")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if run.Results[0].Status != model.ItemStatusFailed || run.Results[1].Status != model.ItemStatusSucceeded {
		t.Fatalf("unexpected results %+v", run.Results)
	}
	if run.Status != model.BatchStatusComplete || run.CompletedAt == nil {
		t.Errorf("batch should be complete, got %s", run.Status)
	}
}

func TestProcess_PoolEditsApplyToNextImage(t *testing.T) {
	repo := newMemCredRepo("k1")
	ocr := newScriptedOCR()
	ocr.fallback = rateLimited()
	ocr.on("k1", success("first"))
	// after the first image is done the user adds two more keys
	ocr.hook = func(call ocrCall) {
		if call.ItemID == "a" {
			_ = repo.Replace(context.Background(), newMemCredRepo("k1", "k2", "k3").creds)
		}
	}
	p, _ := newTestProcessor(repo, ocr, &eventRecorder{})

	run := newRun("a", "b")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	// bound for image b is 3 (pool size when b began), not 1
	if got := run.Results[1].Attempts; got != 3 {
		t.Fatalf("want 3 attempts for b, got %d", got)
	}
	if run.Results[1].Kind != model.FailureCredentialsExhausted {
		t.Errorf("want exhausted, got %s", run.Results[1].Kind)
	}
}

func TestProcess_PoolEmptiedMidBatch(t *testing.T) {
	repo := newMemCredRepo("k1")
	ocr := newScriptedOCR()
	ocr.hook = func(call ocrCall) {
		_ = repo.Replace(context.Background(), nil)
	}
	p, _ := newTestProcessor(repo, ocr, &eventRecorder{})

	run := newRun("a", "b")
	if err := p.Process(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if run.Results[0].Status != model.ItemStatusSucceeded {
		t.Fatalf("first image should succeed, got %+v", run.Results[0])
	}
	if run.Results[1].Kind != model.FailureNoCredentials || ocr.callCount() != 1 {
		t.Errorf("second image should fail without a call, got %+v (calls=%d)", run.Results[1], ocr.callCount())
	}
}

func TestProcess_ResubmittedItemStartsFromPending(t *testing.T) {
	ocr := newScriptedOCR()
	p, _ := newTestProcessor(newMemCredRepo("k1"), ocr, &eventRecorder{})

	first := newRun("x")
	_ = p.Process(context.Background(), first)
	second := model.NewBatchRun("again", first.Model, first.Items)
	if second.Results[0].Status != model.ItemStatusPending {
		t.Fatalf("resubmitted item must start pending")
	}
	if err := p.Process(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if ocr.callCount() != 2 || second.Results[0].Status != model.ItemStatusSucceeded {
		t.Errorf("resubmitted item should be processed again; calls=%d result=%+v", ocr.callCount(), second.Results[0])
	}
}

func TestProcess_CancelMarksRemainingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ocr := newScriptedOCR()
	ocr.hook = func(call ocrCall) {
		if call.ItemID == "a" {
			cancel()
		}
	}
	sink := &eventRecorder{}
	p, _ := newTestProcessor(newMemCredRepo("k1"), ocr, sink)

	run := newRun("a", "b", "c")
	if err := p.Process(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.Results[0].Kind != model.FailureRemote {
		t.Errorf("in-flight item should fail terminally, got %+v", run.Results[0])
	}
	for _, r := range run.Results[1:] {
		if r.Status != model.ItemStatusFailed || r.Kind != model.FailureCanceled {
			t.Errorf("item %s: want failed/canceled, got %s/%s", r.ItemID, r.Status, r.Kind)
		}
	}
	if ocr.callCount() != 1 {
		t.Errorf("no calls after cancel, got %d", ocr.callCount())
	}
	ev := sink.snapshot()
	if ev[len(ev)-1].Kind != "batch_complete" {
		t.Errorf("batch should still complete, last event %+v", ev[len(ev)-1])
	}
}
