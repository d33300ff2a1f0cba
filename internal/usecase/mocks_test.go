// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

// memCredRepo is a small in-memory credential store used by unit tests.
type memCredRepo struct {
	mu      sync.Mutex
	creds   []model.Credential
	listErr error
}

func newMemCredRepo(keys ...string) *memCredRepo {
	r := &memCredRepo{}
	for _, k := range keys {
		r.creds = append(r.creds, model.Credential(k))
	}
	return r
}

func (m *memCredRepo) List(ctx context.Context) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Credential(nil), m.creds...), nil
}

func (m *memCredRepo) Replace(ctx context.Context, creds []model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append([]model.Credential(nil), creds...)
	return nil
}

// memCursorStore records the last stored cursor.
type memCursorStore struct {
	mu       sync.Mutex
	cursor   int
	stores   int
	storeErr error
}

func (m *memCursorStore) Load(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *memCursorStore) Store(ctx context.Context, c int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.cursor = c
	return nil
}

// ocrCall is one recorded ExtractText invocation.
type ocrCall struct {
	ItemID string
	Cred   model.Credential
}

type ocrReply struct {
	text string
	err  error
}

// scriptedOCR answers ExtractText from per-credential scripts. When a script
// runs out the fallback answer is used.
type scriptedOCR struct {
	mu       sync.Mutex
	scripts  map[model.Credential][]ocrReply
	fallback ocrReply
	calls    []ocrCall
	hook     func(call ocrCall) // runs before answering
}

func newScriptedOCR() *scriptedOCR {
	return &scriptedOCR{scripts: map[model.Credential][]ocrReply{}, fallback: ocrReply{text: "ok"}}
}

func (s *scriptedOCR) on(cred string, replies ...ocrReply) *scriptedOCR {
	s.scripts[model.Credential(cred)] = append(s.scripts[model.Credential(cred)], replies...)
	return s
}

func (s *scriptedOCR) Provider() string { return "fake" }

func (s *scriptedOCR) ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error) {
	s.mu.Lock()
	call := ocrCall{ItemID: image.ID, Cred: cred}
	s.calls = append(s.calls, call)
	hook := s.hook
	reply := s.fallback
	if q := s.scripts[cred]; len(q) > 0 {
		reply = q[0]
		s.scripts[cred] = q[1:]
	}
	s.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return "", &domain.RemoteError{Message: err.Error()}
	}
	return reply.text, reply.err
}

func (s *scriptedOCR) ListModels(ctx context.Context, cred model.Credential) ([]adapter.ModelInfo, error) {
	s.mu.Lock()
	s.calls = append(s.calls, ocrCall{ItemID: "list-models", Cred: cred})
	s.mu.Unlock()
	return []adapter.ModelInfo{{Name: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash"}}, nil
}

func (s *scriptedOCR) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedOCR) credsFor(itemID string) []model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Credential
	for _, c := range s.calls {
		if c.ItemID == itemID {
			out = append(out, c.Cred)
		}
	}
	return out
}

func rateLimited() ocrReply { return ocrReply{err: domain.RateLimitedError("quota exceeded")} }
func success(text string) ocrReply {
	return ocrReply{text: text}
}
func terminal(code int, msg string) ocrReply {
	return ocrReply{err: &domain.RemoteError{StatusCode: code, Message: msg}}
}

// sinkEvent is one recorded ResultSink call.
type sinkEvent struct {
	Kind    string // batch_started | item | retrying | batch_complete
	ItemID  string
	Status  model.ItemStatus
	Attempt int
}

type eventRecorder struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (r *eventRecorder) add(e sinkEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	r.add(sinkEvent{Kind: "batch_started"})
}
func (r *eventRecorder) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	r.add(sinkEvent{Kind: "item", ItemID: res.ItemID, Status: res.Status})
}
func (r *eventRecorder) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	r.add(sinkEvent{Kind: "retrying", ItemID: res.ItemID, Attempt: attempt})
}
func (r *eventRecorder) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	r.add(sinkEvent{Kind: "batch_complete"})
}

func (r *eventRecorder) snapshot() []sinkEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sinkEvent(nil), r.events...)
}

// memBatchRepo mirrors infra/memory.BatchRepo for usecase tests.
type memBatchRepo struct {
	mu   sync.Mutex
	runs map[string]*model.BatchRun
}

func newMemBatchRepo() *memBatchRepo { return &memBatchRepo{runs: map[string]*model.BatchRun{}} }

func (m *memBatchRepo) Save(ctx context.Context, run *model.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run.Snapshot()
	return nil
}

func (m *memBatchRepo) FindByID(ctx context.Context, id string) (*model.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Snapshot(), nil
}

func (m *memBatchRepo) List(ctx context.Context) ([]model.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BatchSummary, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *memBatchRepo) UpdateStatus(ctx context.Context, id string, status model.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	if status == model.BatchStatusComplete {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

func (m *memBatchRepo) UpdateResult(ctx context.Context, id string, res model.ItemResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if res.Position < 0 || res.Position >= len(r.Results) {
		return fmt.Errorf("position %d: %w", res.Position, domain.ErrInvalidArgument)
	}
	r.Results[res.Position] = res
	return nil
}

func (m *memBatchRepo) DeleteCompletedBefore(ctx context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.runs {
		if r.CompletedAt != nil && r.CompletedAt.Before(t) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}

// passthroughPreparer accepts everything and keeps the declared type.
type passthroughPreparer struct{ err error }

func (p passthroughPreparer) Prepare(u model.Upload) (string, []byte, error) {
	if p.err != nil {
		return "", nil, p.err
	}
	if len(u.Data) == 0 {
		return "", nil, errors.New("empty upload")
	}
	mt := u.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return mt, u.Data, nil
}
