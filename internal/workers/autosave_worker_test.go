package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

type stubAnswerStore struct {
	mu       sync.Mutex
	saved    map[uint]datatypes.JSON
	failures map[uint]int
	errs     map[uint]error
}

func newStubAnswerStore() *stubAnswerStore {
	return &stubAnswerStore{
		saved:    make(map[uint]datatypes.JSON),
		failures: make(map[uint]int),
		errs:     make(map[uint]error),
	}
}

func (s *stubAnswerStore) SaveAnswers(ctx context.Context, id uint, answers datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[id] > 0 {
		s.failures[id]--
		return context.DeadlineExceeded
	}
	if err := s.errs[id]; err != nil {
		return err
	}
	s.saved[id] = answers
	return nil
}

func (s *stubAnswerStore) savedFor(id uint) (datatypes.JSON, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers, ok := s.saved[id]
	return answers, ok
}

func testWorker(t *testing.T) (*AutosaveWorker, *stubAnswerStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newStubAnswerStore()
	worker := NewAutosaveWorker(client, "autosave:answers", store, utils.NewDefaultLogger("error"))
	return worker, store, client
}

func enqueue(t *testing.T, client *redis.Client, payload services.AutosavePayload) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.RPush(context.Background(), "autosave:answers", raw).Err(); err != nil {
		t.Fatal(err)
	}
}

func TestAutosaveWorkerProcessPersists(t *testing.T) {
	worker, store, _ := testWorker(t)

	payload := services.AutosavePayload{
		AttemptSectionID: 7,
		Answers:          json.RawMessage(`{"12":"a"}`),
		SavedAt:          time.Now(),
	}
	raw, _ := json.Marshal(payload)
	worker.process(context.Background(), raw)

	saved, ok := store.savedFor(7)
	if !ok {
		t.Fatal("answers were not persisted")
	}
	if string(saved) != `{"12":"a"}` {
		t.Errorf("persisted %s, want %s", saved, `{"12":"a"}`)
	}
}

func TestAutosaveWorkerRequeuesOnFailure(t *testing.T) {
	worker, store, client := testWorker(t)
	store.failures[3] = 1

	payload := services.AutosavePayload{
		AttemptSectionID: 3,
		Answers:          json.RawMessage(`{"1":"b"}`),
	}
	raw, _ := json.Marshal(payload)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // skip the retry backoff sleep
	worker.process(ctx, raw)

	entries, err := client.LRange(context.Background(), "autosave:answers", 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("queue length = %d, want 1", len(entries))
	}

	var requeued services.AutosavePayload
	if err := json.Unmarshal([]byte(entries[0]), &requeued); err != nil {
		t.Fatal(err)
	}
	if requeued.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", requeued.Attempts)
	}

	// Second pass succeeds.
	worker.process(context.Background(), []byte(entries[0]))
	if _, ok := store.savedFor(3); !ok {
		t.Error("retry did not persist the answers")
	}
}

func TestAutosaveWorkerDropsFinalizedSection(t *testing.T) {
	worker, store, client := testWorker(t)
	store.errs[9] = services.ErrSectionFinalized

	payload := services.AutosavePayload{AttemptSectionID: 9, Answers: json.RawMessage(`{}`)}
	raw, _ := json.Marshal(payload)
	worker.process(context.Background(), raw)

	length, err := client.LLen(context.Background(), "autosave:answers").Result()
	if err != nil {
		t.Fatal(err)
	}
	if length != 0 {
		t.Error("writes against a closed section must not be requeued")
	}
}

func TestAutosaveWorkerDropsAfterMaxAttempts(t *testing.T) {
	worker, _, client := testWorker(t)

	payload := services.AutosavePayload{
		AttemptSectionID: 5,
		Answers:          json.RawMessage(`{}`),
		Attempts:         autosaveMaxAttempts - 1,
	}
	raw, _ := json.Marshal(payload)

	worker.store.(*stubAnswerStore).errs[5] = context.DeadlineExceeded

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.process(ctx, raw)

	length, err := client.LLen(context.Background(), "autosave:answers").Result()
	if err != nil {
		t.Fatal(err)
	}
	if length != 0 {
		t.Error("payload past the retry limit must be dropped")
	}
}

func TestAutosaveWorkerDrainOnShutdown(t *testing.T) {
	worker, store, client := testWorker(t)

	enqueue(t, client, services.AutosavePayload{AttemptSectionID: 1, Answers: json.RawMessage(`{"q":"x"}`)})
	enqueue(t, client, services.AutosavePayload{AttemptSectionID: 2, Answers: json.RawMessage(`{"q":"y"}`)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	if _, ok := store.savedFor(1); !ok {
		t.Error("first queued write was not drained")
	}
	if _, ok := store.savedFor(2); !ok {
		t.Error("second queued write was not drained")
	}
}
