package operator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRunner tracks how many invocations run concurrently per
// registration so tests can assert the mutual-exclusion property.
type countingRunner struct {
	mu        sync.Mutex
	inFlight  map[string]int
	maxSeen   map[string]int
	total     atomic.Int32
	outcome   Outcome
	perJob    map[string]Outcome
	holdForMs int
}

func newCountingRunner(outcome Outcome) *countingRunner {
	return &countingRunner{
		inFlight: make(map[string]int),
		maxSeen:  make(map[string]int),
		outcome:  outcome,
	}
}

func (r *countingRunner) Run(ctx context.Context, job Job) Outcome {
	regID := job.Registration.ID
	r.mu.Lock()
	r.inFlight[regID]++
	if r.inFlight[regID] > r.maxSeen[regID] {
		r.maxSeen[regID] = r.inFlight[regID]
	}
	r.mu.Unlock()

	if r.holdForMs > 0 {
		time.Sleep(time.Duration(r.holdForMs) * time.Millisecond)
	}
	r.total.Add(1)

	r.mu.Lock()
	r.inFlight[regID]--
	r.mu.Unlock()

	if out, ok := r.perJob[job.RequestID]; ok {
		return out
	}
	return r.outcome
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestDispatcherSerializesSameRegistration(t *testing.T) {
	reg := &Registration{ID: "reg-1", ScriptID: "s1"}
	// Second registration widens the pool so the lock, not the pool
	// size, is what serializes reg-1's jobs.
	state := NewState([]Registration{*reg, {ID: "reg-2", ScriptID: "s2"}})
	runner := newCountingRunner(recorded())
	runner.holdForMs = 5

	d := NewDispatcher(context.Background(), runner, state)
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		d.Submit(Job{RequestID: id, DiscoveredID: id, Registration: reg})
	}
	go d.Close()
	drain(t, d.Events())

	assert.Equal(t, 1, runner.maxSeen["reg-1"], "same registration must never overlap")
}

func TestDispatcherDedupesUnderLock(t *testing.T) {
	reg := &Registration{ID: "reg-1", ScriptID: "s1"}
	state := NewState([]Registration{*reg})
	runner := newCountingRunner(recorded())

	d := NewDispatcher(context.Background(), runner, state)
	// Two polls discovered the same request before the first finished.
	d.Submit(Job{RequestID: "req-1", DiscoveredID: "req-1", Registration: reg})
	d.Submit(Job{RequestID: "req-1", DiscoveredID: "req-1", Registration: reg})
	go d.Close()
	events := drain(t, d.Events())

	require.Len(t, events, 2)
	assert.Equal(t, int32(1), runner.total.Load(), "only one job may execute")

	statuses := map[Status]int{}
	reasons := map[SkipReason]int{}
	for _, ev := range events {
		statuses[ev.Outcome.Status]++
		reasons[ev.Outcome.Reason]++
	}
	assert.Equal(t, 1, statuses[StatusRecorded])
	assert.Equal(t, 1, reasons[SkipAlreadyProcessed])
}

func TestDispatcherMarksByOutcome(t *testing.T) {
	reg := &Registration{ID: "reg-1", ScriptID: "s1"}
	state := NewState([]Registration{*reg})
	runner := newCountingRunner(recorded())
	runner.perJob = map[string]Outcome{
		"ok":   recorded(),
		"skip": skipped(SkipPaymentMissing),
		"fail": failed(assert.AnError),
	}

	d := NewDispatcher(context.Background(), runner, state)
	for _, id := range []string{"ok", "skip", "fail"} {
		d.Submit(Job{RequestID: id, DiscoveredID: id, Registration: reg})
	}
	go d.Close()
	drain(t, d.Events())

	processed := state.Processed()
	assert.True(t, processed.IsProcessed("ok"))
	assert.True(t, processed.IsProcessed("skip"))
	assert.False(t, processed.IsProcessed("fail"), "failed jobs must stay eligible for retry")
}

func TestDispatcherSubmitAfterCloseIsDropped(t *testing.T) {
	reg := &Registration{ID: "reg-1", ScriptID: "s1"}
	state := NewState([]Registration{*reg})
	runner := newCountingRunner(recorded())

	d := NewDispatcher(context.Background(), runner, state)
	d.Close()

	// A poller caught mid-cycle during shutdown may still submit.
	assert.NotPanics(t, func() {
		d.Submit(Job{RequestID: "late", DiscoveredID: "late", Registration: reg})
	})
	assert.Zero(t, runner.total.Load())
	assert.False(t, state.Processed().IsProcessed("late"), "dropped jobs stay eligible for the next start")

	_, open := <-d.Events()
	assert.False(t, open)
}

func TestDispatcherEmitsEventPerJob(t *testing.T) {
	reg1 := &Registration{ID: "reg-1", ScriptID: "s1"}
	reg2 := &Registration{ID: "reg-2", ScriptID: "s2"}
	state := NewState([]Registration{*reg1, *reg2})
	runner := newCountingRunner(recorded())

	d := NewDispatcher(context.Background(), runner, state)
	d.Submit(Job{RequestID: "a", DiscoveredID: "a", Registration: reg1})
	d.Submit(Job{RequestID: "b", DiscoveredID: "b", Registration: reg2})
	go d.Close()
	events := drain(t, d.Events())

	require.Len(t, events, 2)
	ids := map[string]bool{}
	for _, ev := range events {
		assert.NotEmpty(t, ev.JobID)
		ids[ev.JobID] = true
	}
	assert.Len(t, ids, 2, "job ids must be unique")
}
