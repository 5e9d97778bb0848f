package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/intervu-app/intervu/models"
)

type memorySnapshots struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{sessions: make(map[string]models.Session)}
}

func (m *memorySnapshots) Save(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memorySnapshots) Load(_ context.Context, id string) (models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *memorySnapshots) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func TestRegistryPutGetRemove(t *testing.T) {
	reg := NewRegistry(time.Hour, nil, nil)
	eng := NewEngine(&scriptedLLM{}, "user", nil)

	reg.Put(eng)
	if reg.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", reg.Len())
	}
	got, err := reg.Get(eng.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != eng {
		t.Fatal("Get returned a different engine")
	}

	reg.Remove(eng.ID())
	if _, err := reg.Get(eng.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after remove, got %v", err)
	}
}

func TestRegistryExpiry(t *testing.T) {
	now := time.Now()
	reg := NewRegistry(time.Minute, nil, nil)
	reg.now = func() time.Time { return now }

	eng := NewEngine(&scriptedLLM{}, "user", nil)
	reg.Put(eng)

	now = now.Add(2 * time.Minute)
	if _, err := reg.Get(eng.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired entry, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expired Get must evict, got %d entries", reg.Len())
	}
}

func TestRegistryGetRefreshesTTL(t *testing.T) {
	now := time.Now()
	reg := NewRegistry(time.Minute, nil, nil)
	reg.now = func() time.Time { return now }

	eng := NewEngine(&scriptedLLM{}, "user", nil)
	reg.Put(eng)

	now = now.Add(45 * time.Second)
	if _, err := reg.Get(eng.ID()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	now = now.Add(45 * time.Second)
	if _, err := reg.Get(eng.ID()); err != nil {
		t.Fatalf("refreshed entry must still be live: %v", err)
	}
}

func TestRegistrySweep(t *testing.T) {
	now := time.Now()
	reg := NewRegistry(time.Minute, nil, nil)
	reg.now = func() time.Time { return now }

	live := NewEngine(&scriptedLLM{}, "user", nil)
	stale := NewEngine(&scriptedLLM{}, "user", nil)
	reg.Put(stale)
	now = now.Add(30 * time.Second)
	reg.Put(live)
	now = now.Add(45 * time.Second)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := reg.Get(live.ID()); err != nil {
		t.Fatalf("live entry must survive sweep: %v", err)
	}
}

func TestRegistryPutWritesInitialSnapshot(t *testing.T) {
	snaps := newMemorySnapshots()
	reg := NewRegistry(time.Hour, snaps, nil)

	llm := &scriptedLLM{steps: []scriptStep{{text: "Q1"}}}
	eng := NewEngine(llm, "user", nil)
	// the first transition happens before registration
	if _, err := eng.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reg.Put(eng)

	saved, ok, err := snaps.Load(context.Background(), eng.ID())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(saved.Turns) != 1 || saved.Turns[0].Question != "Q1" {
		t.Fatalf("initial snapshot missing the first question: %+v", saved)
	}
}

func TestRegistryGetOrPutSharesOneEngine(t *testing.T) {
	reg := NewRegistry(time.Hour, nil, nil)
	sess := models.Session{
		ID:     "dup",
		UserID: "user",
		Config: testConfig(),
		Turns:  []models.Turn{{Question: "Q1"}},
		Status: models.StatusInProgress,
	}
	a := RestoreEngine(&scriptedLLM{}, sess, nil)
	b := RestoreEngine(&scriptedLLM{}, sess, nil)

	if got := reg.GetOrPut(a); got != a {
		t.Fatal("first GetOrPut must register the given engine")
	}
	if got := reg.GetOrPut(b); got != a {
		t.Fatal("second GetOrPut must return the already registered engine")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", reg.Len())
	}
}

func TestRegistrySnapshotsFollowTransitions(t *testing.T) {
	snaps := newMemorySnapshots()
	reg := NewRegistry(time.Hour, snaps, nil)

	llm := &scriptedLLM{steps: []scriptStep{{text: "Q1"}, {text: "F1"}}}
	eng := NewEngine(llm, "user", nil)
	reg.Put(eng)

	ctx := context.Background()
	if _, err := eng.Start(ctx, testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := eng.SubmitAnswer(ctx, "A1"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	saved, ok, err := snaps.Load(ctx, eng.ID())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(saved.Turns) != 1 || saved.Turns[0].Feedback != "F1" {
		t.Fatalf("snapshot out of date: %+v", saved)
	}

	reg.Remove(eng.ID())
	if _, ok, err := snaps.Load(ctx, eng.ID()); err != nil || ok {
		t.Fatalf("expected snapshot cleared on remove, got ok=%v err=%v", ok, err)
	}
}
