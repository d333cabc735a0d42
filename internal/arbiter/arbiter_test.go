package arbiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEvictor struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeEvictor) UnloadModel(ctx context.Context, workload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, workload)
	return f.err
}

func (f *fakeEvictor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestArbiter(ev Evictor) *Arbiter {
	return New(ev, time.Second, zerolog.Nop())
}

func TestAcquireFromFree(t *testing.T) {
	a := newTestArbiter(&fakeEvictor{})
	res := a.Acquire(context.Background(), WorkloadInference)
	if !res.Granted || res.Evicted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if owner, _ := a.Owner(); owner != WorkloadInference {
		t.Fatalf("owner = %s", owner)
	}
}

func TestAcquireSameOwnerIsIdempotent(t *testing.T) {
	ev := &fakeEvictor{}
	a := newTestArbiter(ev)
	a.Acquire(context.Background(), WorkloadTraining)

	res := a.Acquire(context.Background(), WorkloadTraining)
	if !res.Granted || res.Evicted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if ev.callCount() != 0 {
		t.Fatalf("evictions = %d, want 0", ev.callCount())
	}
}

func TestAcquireEvictsOtherOwner(t *testing.T) {
	ev := &fakeEvictor{}
	a := newTestArbiter(ev)
	a.Acquire(context.Background(), WorkloadInference)

	res := a.Acquire(context.Background(), WorkloadTraining)
	if !res.Granted || !res.Evicted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if owner, _ := a.Owner(); owner != WorkloadTraining {
		t.Fatalf("owner = %s", owner)
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if len(ev.calls) != 1 || ev.calls[0] != "inference" {
		t.Fatalf("unload calls = %v", ev.calls)
	}
}

func TestAcquireEvictionFailureLeavesOwner(t *testing.T) {
	ev := &fakeEvictor{err: errors.New("unload timed out")}
	a := newTestArbiter(ev)
	a.Acquire(context.Background(), WorkloadInference)

	res := a.Acquire(context.Background(), WorkloadTraining)
	if res.Granted {
		t.Fatal("grant must be refused when eviction fails")
	}
	if res.Message == "" {
		t.Fatal("expected a failure message")
	}
	if owner, _ := a.Owner(); owner != WorkloadInference {
		t.Fatalf("owner = %s, want inference unchanged", owner)
	}
}

func TestAcquireNilEvictorRefusesSwitch(t *testing.T) {
	a := newTestArbiter(nil)
	a.Acquire(context.Background(), WorkloadInference)

	res := a.Acquire(context.Background(), WorkloadTraining)
	if res.Granted {
		t.Fatal("grant must be refused without an evictor")
	}
	if owner, _ := a.Owner(); owner != WorkloadInference {
		t.Fatalf("owner = %s", owner)
	}
}

func TestAcquireUnknownWorkload(t *testing.T) {
	a := newTestArbiter(&fakeEvictor{})
	if res := a.Acquire(context.Background(), Workload("batch")); res.Granted {
		t.Fatal("unknown workload must not be granted")
	}
}

func TestReleaseOnlyByOwner(t *testing.T) {
	a := newTestArbiter(&fakeEvictor{})
	a.Acquire(context.Background(), WorkloadTraining)

	a.Release(WorkloadInference)
	if owner, _ := a.Owner(); owner != WorkloadTraining {
		t.Fatalf("owner = %s, non-owner release must be a no-op", owner)
	}

	a.Release(WorkloadTraining)
	if owner, _ := a.Owner(); owner != WorkloadNone {
		t.Fatalf("owner = %s, want none", owner)
	}
	// Releasing again is harmless.
	a.Release(WorkloadTraining)
}

func TestTrainingActive(t *testing.T) {
	a := newTestArbiter(&fakeEvictor{})
	if a.TrainingActive() {
		t.Fatal("fresh arbiter must not report training")
	}
	a.Acquire(context.Background(), WorkloadTraining)
	if !a.TrainingActive() {
		t.Fatal("expected training active")
	}
	a.Release(WorkloadTraining)
	if a.TrainingActive() {
		t.Fatal("released arbiter must not report training")
	}
}

func TestConcurrentAcquireSingleEviction(t *testing.T) {
	ev := &fakeEvictor{}
	a := newTestArbiter(ev)
	a.Acquire(context.Background(), WorkloadInference)

	var wg sync.WaitGroup
	granted := 0
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := a.Acquire(context.Background(), WorkloadTraining)
			mu.Lock()
			if res.Granted {
				granted++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if granted != 8 {
		t.Fatalf("granted = %d, want 8 (later acquirers see training resident)", granted)
	}
	if ev.callCount() != 1 {
		t.Fatalf("evictions = %d, want exactly 1", ev.callCount())
	}
	if owner, _ := a.Owner(); owner != WorkloadTraining {
		t.Fatalf("owner = %s", owner)
	}
}
