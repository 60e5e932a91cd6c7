package task

import (
	"time"

	"rtos-go/kerrors"
)

// transitionRule is one (from, to) entry in the static rule table.
type transitionRule struct {
	from State
	to   State
}

// transitionTable enumerates every permitted transition (§4.F). Any pair
// absent from this table is forbidden. TERMINATED has no outgoing rows,
// making it absorbing by construction.
//
// CREATED is not named in the reference's transition table (spec.md §4.F
// only shows INVALID/READY/RUNNING/BLOCKED/SUSPENDED/DORMANT/TERMINATED);
// this implementation resolves that gap by giving CREATED the same
// outgoing edges as INVALID, so a TCB whose owner has marked it CREATED
// can move to READY or DORMANT. New leaves a TCB in INVALID, and no rule
// leads into CREATED.
var transitionTable = []transitionRule{
	{Invalid, Ready}, {Invalid, Dormant},
	{Created, Ready}, {Created, Dormant},
	{Ready, Running}, {Ready, Blocked}, {Ready, Suspended}, {Ready, Terminated},
	{Running, Ready}, {Running, Blocked}, {Running, Suspended}, {Running, Terminated},
	{Blocked, Ready}, {Blocked, Suspended}, {Blocked, Terminated},
	{Suspended, Ready}, {Suspended, Terminated},
	{Dormant, Ready}, {Dormant, Terminated},
}

func allowed(from, to State) bool {
	if from == to {
		return true
	}
	for _, r := range transitionTable {
		if r.from == from && r.to == to {
			return true
		}
	}
	return false
}

// Enqueuer is the contract the state machine needs from the ready and
// wait queues without importing them (they import task for *TCB,
// so the dependency runs task -> queues only through this interface,
// satisfied by an adapter the kernel package wires up).
type Enqueuer interface {
	InsertReady(t *TCB) error
	RemoveReady(t *TCB) error
	InsertBlocked(t *TCB, wakeTick uint64) error
	RemoveBlocked(t *TCB) error
	InsertSuspended(t *TCB) error
	RemoveSuspended(t *TCB) error
	InsertDelayed(t *TCB, wakeTick uint64) error
	RemoveDelayed(t *TCB) error
}

// CriticalSection brackets a transition's queue mutation, matching §4.F
// ("Enter critical section ... exit critical section").
type CriticalSection interface {
	Enter()
	Exit()
}

// Observer is called after a committed transition.
type Observer func(t *TCB, from, to State)

// historyEntry is one row of a TCB's 8-entry circular transition history.
type historyEntry struct {
	From State
	To   State
	At   time.Time
}

// Machine drives task-state transitions against the queues reachable
// through Enqueuer, under the given critical-section gate.
type Machine struct {
	gate     CriticalSection
	queues   Enqueuer
	observer Observer

	invalidTransitions uint64
	history            map[int][8]historyEntry
	historyLen         map[int]int
	maxTransitionTime  time.Duration
}

// NewMachine constructs a Machine bound to the given gate and queues.
func NewMachine(gate CriticalSection, queues Enqueuer) *Machine {
	return &Machine{
		gate:       gate,
		queues:     queues,
		history:    make(map[int][8]historyEntry),
		historyLen: make(map[int]int),
	}
}

// SetObserver registers the state-change observer, replacing any prior one.
func (m *Machine) SetObserver(obs Observer) {
	m.observer = obs
}

// InvalidTransitions returns the count of rejected transition attempts.
func (m *Machine) InvalidTransitions() uint64 {
	return m.invalidTransitions
}

// MaxTransitionTime returns the longest observed transition duration.
func (m *Machine) MaxTransitionTime() time.Duration {
	return m.maxTransitionTime
}

// Transition validates and performs a state transition for t, per §4.F:
// validate the TCB, look up the rule, no-op on same-state, otherwise
// enter the critical section, move the TCB's queue membership, update
// timing, exit the critical section, record history, and invoke the
// observer.
func (m *Machine) Transition(t *TCB, to State, now time.Time) error {
	if !t.Validate() {
		return kerrors.New(kerrors.Corrupted, "transition", "TCB failed validation")
	}

	from := t.State
	if !allowed(from, to) {
		m.invalidTransitions++
		return kerrors.WrapWithDetail(nil, kerrors.InvalidState, "transition",
			from.String()+" -> "+to.String()+" is not permitted")
	}

	if from == to {
		return nil
	}

	start := now
	m.gate.Enter()

	if err := m.removeFromSource(t, from); err != nil {
		m.gate.Exit()
		return err
	}
	if err := m.insertIntoTarget(t, to); err != nil {
		// Atomic failure: the transition is undone by returning before
		// mutating state (§7). Re-insert into the source so the TCB is
		// not left unlinked.
		_ = m.insertIntoTarget(t, from)
		m.gate.Exit()
		return err
	}

	t.PrevState = from
	t.State = to
	m.updateTiming(t, from, to, now)
	t.Recompute()

	m.gate.Exit()

	elapsed := time.Since(start)
	if elapsed > m.maxTransitionTime {
		m.maxTransitionTime = elapsed
	}
	m.recordHistory(t.TaskID, from, to, now)

	if m.observer != nil {
		m.observer(t, from, to)
	}
	return nil
}

func (m *Machine) removeFromSource(t *TCB, from State) error {
	switch from {
	case Ready, Running:
		if t.QueueNode.Kind == InReadyQueue {
			return m.queues.RemoveReady(t)
		}
	case Blocked:
		if t.QueueNode.Kind == InDelayedList {
			return m.queues.RemoveDelayed(t)
		}
		return m.queues.RemoveBlocked(t)
	case Suspended:
		return m.queues.RemoveSuspended(t)
	}
	return nil
}

func (m *Machine) insertIntoTarget(t *TCB, to State) error {
	switch to {
	case Ready:
		return m.queues.InsertReady(t)
	case Blocked:
		return m.queues.InsertBlocked(t, t.WakeTime)
	case Suspended:
		return m.queues.InsertSuspended(t)
	}
	return nil
}

func (m *Machine) updateTiming(t *TCB, from, to State, now time.Time) {
	if from == Running {
		t.Timing.TotalRuntime += t.Timing.LastRuntime
	}
	if to == Running {
		t.Timing.ActivationTime = now
		t.Counters.ContextSwitches++
	}
	if from == Blocked && to == Ready {
		if !t.Timing.ActivationTime.IsZero() {
			t.Timing.ResponseTime = now.Sub(t.Timing.ActivationTime)
		}
	}
}

func (m *Machine) recordHistory(taskID int, from, to State, at time.Time) {
	h := m.history[taskID]
	n := m.historyLen[taskID]
	idx := n % 8
	h[idx] = historyEntry{From: from, To: to, At: at}
	m.history[taskID] = h
	m.historyLen[taskID] = n + 1
}

// History returns the up-to-8 most recent transitions for taskID,
// oldest first.
func (m *Machine) History(taskID int) []historyEntry {
	n := m.historyLen[taskID]
	h := m.history[taskID]
	if n == 0 {
		return nil
	}
	count := n
	if count > 8 {
		count = 8
	}
	out := make([]historyEntry, 0, count)
	start := n - count
	for i := 0; i < count; i++ {
		out = append(out, h[(start+i)%8])
	}
	return out
}
