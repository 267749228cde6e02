package dispatcher

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	// StateUnknown follows a timed out or abandoned action whose effect could not be confirmed.
	// It clears once a Status action succeeds.
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ComponentStatus is a point in time view of a component as seen by the dispatcher.
type ComponentStatus struct {
	Name       string
	State      State
	LastAction action.Kind
	LastResult action.Result
	HasResult  bool
	UpdatedAt  time.Time
}

type componentEntry struct {
	running    bool
	unknown    bool
	lastAction action.Kind
	lastResult action.Result
	hasResult  bool
	updatedAt  time.Time
}

func (e *componentEntry) state() State {
	switch {
	case e.running:
		return StateRunning
	case e.unknown:
		return StateUnknown
	default:
		return StateIdle
	}
}

// stateTracker holds the observable state of every registered component.
// Entries are created up front, the set never changes afterwards.
type stateTracker struct {
	mu      sync.RWMutex
	entries map[string]*componentEntry
}

func newStateTracker(names []string) *stateTracker {
	entries := make(map[string]*componentEntry, len(names))
	now := time.Now()
	for _, name := range names {
		entries[name] = &componentEntry{updatedAt: now}
	}
	return &stateTracker{entries: entries}
}

func (t *stateTracker) begin(name string, kind action.Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[name]
	entry.running = true
	entry.lastAction = kind
	entry.updatedAt = time.Now()
}

func (t *stateTracker) finish(name string, kind action.Kind, result action.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[name]
	entry.running = false
	entry.lastAction = kind
	entry.lastResult = result
	entry.hasResult = true
	entry.updatedAt = time.Now()

	switch {
	case result.Abandoned, result.Outcome == action.TimedOut:
		entry.unknown = true
	case kind == action.Status && result.Outcome == action.Success:
		entry.unknown = false
	}
}

// markUnknown flags the component as unknown while the action is still running.
func (t *stateTracker) markUnknown(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entries[name]
	entry.unknown = true
	entry.updatedAt = time.Now()
}

func (t *stateTracker) status(name string) (ComponentStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[name]
	if !ok {
		return ComponentStatus{}, false
	}
	return entry.view(name), true
}

func (t *stateTracker) snapshot() []ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	statuses := make([]ComponentStatus, 0, len(t.entries))
	for name, entry := range t.entries {
		statuses = append(statuses, entry.view(name))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (e *componentEntry) view(name string) ComponentStatus {
	return ComponentStatus{
		Name:       name,
		State:      e.state(),
		LastAction: e.lastAction,
		LastResult: e.lastResult,
		HasResult:  e.hasResult,
		UpdatedAt:  e.updatedAt,
	}
}
