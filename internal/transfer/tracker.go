package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/core-coin/offramp/internal/models"
)

// Tracker keeps the latest state of every transfer seen by this process.
type Tracker struct {
	mu      sync.Mutex
	states  map[string]models.TransferState
	settled map[string]chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		states:  make(map[string]models.TransferState),
		settled: make(map[string]chan struct{}),
	}
}

// Update records state as the latest state of its transfer.
func (t *Tracker) Update(state models.TransferState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[state.ID] = state
	if ch, ok := t.settled[state.ID]; ok && state.Step.IsTerminal() {
		close(ch)
		delete(t.settled, state.ID)
	}
}

// Get returns the latest state of transfer id.
func (t *Tracker) Get(id string) (models.TransferState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[id]
	return state, ok
}

// Await blocks until transfer id reaches a terminal state and returns that state.
func (t *Tracker) Await(ctx context.Context, id string) (models.TransferState, error) {
	t.mu.Lock()
	if state, ok := t.states[id]; ok && state.Step.IsTerminal() {
		t.mu.Unlock()
		return state, nil
	}
	ch, ok := t.settled[id]
	if !ok {
		ch = make(chan struct{})
		t.settled[id] = ch
	}
	t.mu.Unlock()

	select {
	case <-ch:
		state, _ := t.Get(id)
		return state, nil
	case <-ctx.Done():
		state, _ := t.Get(id)
		return state, ctx.Err()
	}
}

// Prune forgets terminal transfers last updated before cutoff and returns how many were removed.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, state := range t.states {
		if state.Step.IsTerminal() && state.UpdatedAt.Before(cutoff) {
			delete(t.states, id)
			removed++
		}
	}
	return removed
}
