//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/infra/security"
)

// fakeClient is an in-memory RedisClient.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.err }

func (f *fakeClient) Set(ctx context.Context, k string, v interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[k] = v.(string)
	return nil
}

func (f *fakeClient) Get(ctx context.Context, k string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[k]
	if !ok {
		return "", ErrNil
	}
	return v, nil
}

func (f *fakeClient) Incr(ctx context.Context, k string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[k], 10, 64)
	n++
	f.data[k] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeClient) Expire(ctx context.Context, k string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl[k] = exp
	return nil
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeClient) Close() error { return nil }

func newSealer(t *testing.T) *security.Sealer {
	t.Helper()
	s, err := security.NewSealer("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCredentialRepo(t *testing.T) {
	ctx := context.Background()
	cli := newFakeClient()
	repo := NewCredentialRepo(cli, newSealer(t), "ocr", []string{"seed-key"})

	got, err := repo.List(ctx)
	if err != nil || len(got) != 1 || got[0] != "seed-key" {
		t.Fatalf("want seed before first save, got %v (%v)", got, err)
	}

	if err := repo.Replace(ctx, []model.Credential{"AIza-1", "AIza-2"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	stored := cli.data["ocr:credentials"]
	if stored == "" || strings.Contains(stored, "AIza") {
		t.Fatalf("credentials must be stored sealed, got %q", stored)
	}

	got, err = repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "AIza-1" || got[1] != "AIza-2" {
		t.Errorf("unexpected list %v", got)
	}

	// an emptied list stays empty instead of falling back to the seed
	_ = repo.Replace(ctx, nil)
	if got, _ = repo.List(ctx); len(got) != 0 {
		t.Errorf("want empty list, got %v", got)
	}

	cli.err = errors.New("connection refused")
	if _, err := repo.List(ctx); err == nil {
		t.Errorf("want error when redis is down")
	}
}

func TestCursorStore(t *testing.T) {
	ctx := context.Background()
	cli := newFakeClient()
	s := NewCursorStore(cli, "ocr")

	if c, err := s.Load(ctx); err != nil || c != 0 {
		t.Fatalf("missing key should load as 0, got %d (%v)", c, err)
	}
	if err := s.Store(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if cli.data["ocr:cursor"] != "3" {
		t.Errorf("unexpected stored value %q", cli.data["ocr:cursor"])
	}
	if c, _ := s.Load(ctx); c != 3 {
		t.Errorf("want 3, got %d", c)
	}

	cli.data["ocr:cursor"] = "garbage"
	if _, err := s.Load(ctx); err == nil {
		t.Errorf("want parse error")
	}
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	cli := newFakeClient()
	rl := NewRateLimiter(cli, "ocr")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("attempt %d should pass: %v %v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "10.0.0.1", 3, time.Minute); ok {
		t.Errorf("4th attempt should be refused")
	}
	if cli.ttl[LoginAttemptsKey("ocr", "10.0.0.1")] != time.Minute {
		t.Errorf("window not applied on first hit")
	}
	if ok, _ := rl.Allow(ctx, "10.0.0.2", 3, time.Minute); !ok {
		t.Errorf("other subjects are counted separately")
	}
}
