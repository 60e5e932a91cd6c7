// Package waitqueue implements the blocked, suspended, and delayed task
// lists (spec component E): doubly-linked FIFOs for blocked/suspended,
// and a wake-time-sorted list for delayed tasks that process_delayed
// sweeps on every tick.
package waitqueue

import (
	"sync"

	"rtos-go/kerrors"
	"rtos-go/pool"
	"rtos-go/task"
)

// waitNode is the list node shared by all three lists in this package.
type waitNode struct {
	tcb        *task.TCB
	next, prev pool.Handle
	wakeTick   uint64
	seq        uint64 // insertion order, for delayed-list wake-time ties
}

// list is a doubly-linked chain of waitNodes living in a shared pool.
type list struct {
	head, tail pool.Handle
	count      int
}

// Lists owns the blocked, suspended, and delayed queues.
type Lists struct {
	mu sync.Mutex

	blockedNodes   *pool.Pool[waitNode]
	suspendedNodes *pool.Pool[waitNode]
	delayedNodes   *pool.Pool[waitNode]

	blocked   list
	suspended list
	delayed   list

	seqCounter uint64
}

// New constructs Lists with independent node pools each sized for
// maxTasks entries (a TCB occupies at most one of the three lists at a
// time, so this is deliberately generous rather than shared-capacity).
func New(maxTasks int) *Lists {
	return &Lists{
		blockedNodes:   pool.New[waitNode](maxTasks),
		suspendedNodes: pool.New[waitNode](maxTasks),
		delayedNodes:   pool.New[waitNode](maxTasks),
	}
}

// InsertBlocked links tcb into the blocked FIFO if wakeTick is zero
// (wait with no timeout), or into the wake-time-sorted delayed list
// otherwise (§4.E, §5 "Cancellation and timeouts").
func (w *Lists) InsertBlocked(tcb *task.TCB, wakeTick uint64) error {
	if wakeTick == 0 {
		return w.insertFIFO(w.blockedNodes, &w.blocked, tcb, task.InBlockedList)
	}
	return w.insertDelayed(tcb, wakeTick)
}

// RemoveBlocked unlinks tcb from the blocked FIFO.
func (w *Lists) RemoveBlocked(tcb *task.TCB) error {
	return w.removeFrom(w.blockedNodes, &w.blocked, tcb)
}

// InsertSuspended links tcb into the suspended FIFO.
func (w *Lists) InsertSuspended(tcb *task.TCB) error {
	return w.insertFIFO(w.suspendedNodes, &w.suspended, tcb, task.InSuspendedList)
}

// RemoveSuspended unlinks tcb from the suspended FIFO.
func (w *Lists) RemoveSuspended(tcb *task.TCB) error {
	return w.removeFrom(w.suspendedNodes, &w.suspended, tcb)
}

// InsertDelayed links tcb into the delayed list, sorted ascending by
// wakeTick; ties break by insertion order.
func (w *Lists) InsertDelayed(tcb *task.TCB, wakeTick uint64) error {
	return w.insertDelayed(tcb, wakeTick)
}

// RemoveDelayed unlinks tcb from the delayed list.
func (w *Lists) RemoveDelayed(tcb *task.TCB) error {
	return w.removeFrom(w.delayedNodes, &w.delayed, tcb)
}

// BlockedCount, SuspendedCount, and DelayedCount report each list's size.
func (w *Lists) BlockedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocked.count
}

func (w *Lists) SuspendedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspended.count
}

func (w *Lists) DelayedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delayed.count
}

// Matured returns, in wake order, the TCBs in the delayed list whose
// wakeTick is <= now. Scanning starts at the head and stops at the
// first entry still in the future, since the list is kept sorted
// ascending (§4.E process_delayed). Entries are not unlinked here; the
// caller drives each through the state machine to READY, which removes
// it from the delayed list as part of committing the transition.
func (w *Lists) Matured(now uint64) []*task.TCB {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []*task.TCB
	for cur := w.delayed.head; cur != pool.None; {
		n, err := w.delayedNodes.Get(cur)
		if err != nil {
			break
		}
		if n.wakeTick > now {
			break
		}
		out = append(out, n.tcb)
		cur = n.next
	}
	return out
}

func (w *Lists) insertFIFO(p *pool.Pool[waitNode], l *list, tcb *task.TCB, kind task.QueueKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tcb == nil || !tcb.Validate() {
		return kerrors.New(kerrors.InvalidParameter, "insert", "TCB failed validation")
	}
	if !tcb.QueueNode.None() {
		return kerrors.New(kerrors.AlreadyInitialized, "insert", "TCB is already linked")
	}

	h, err := p.Allocate()
	if err != nil {
		return kerrors.Wrap(err, kerrors.NoResource, "insert")
	}
	n := waitNode{tcb: tcb, next: pool.None, prev: l.tail}
	if l.tail != pool.None {
		tailNode, _ := p.Get(l.tail)
		tailNode.next = h
	} else {
		l.head = h
	}
	l.tail = h
	l.count++
	*mustGet(p, h) = n

	tcb.QueueNode = task.QueueRef{Kind: kind, Handle: h}
	return nil
}

func (w *Lists) insertDelayed(tcb *task.TCB, wakeTick uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tcb == nil || !tcb.Validate() {
		return kerrors.New(kerrors.InvalidParameter, "insert", "TCB failed validation")
	}
	if !tcb.QueueNode.None() {
		return kerrors.New(kerrors.AlreadyInitialized, "insert", "TCB is already linked")
	}

	h, err := w.delayedNodes.Allocate()
	if err != nil {
		return kerrors.Wrap(err, kerrors.NoResource, "insert")
	}
	w.seqCounter++
	n := waitNode{tcb: tcb, next: pool.None, prev: pool.None, wakeTick: wakeTick, seq: w.seqCounter}

	// Find the first node whose wake time is strictly later than this one;
	// nodes with an equal wake time stay ahead, since they were inserted
	// first.
	var prev pool.Handle = pool.None
	cur := w.delayed.head
	for cur != pool.None {
		cn, err := w.delayedNodes.Get(cur)
		if err != nil {
			break
		}
		if cn.wakeTick > wakeTick {
			break
		}
		prev = cur
		cur = cn.next
	}

	n.prev = prev
	n.next = cur
	if prev != pool.None {
		pn, _ := w.delayedNodes.Get(prev)
		pn.next = h
	} else {
		w.delayed.head = h
	}
	if cur != pool.None {
		cn, _ := w.delayedNodes.Get(cur)
		cn.prev = h
	} else {
		w.delayed.tail = h
	}
	w.delayed.count++
	*mustGet(w.delayedNodes, h) = n

	tcb.QueueNode = task.QueueRef{Kind: task.InDelayedList, Handle: h}
	return nil
}

func (w *Lists) removeFrom(p *pool.Pool[waitNode], l *list, tcb *task.TCB) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tcb == nil || tcb.QueueNode.None() {
		return kerrors.New(kerrors.NotInitialized, "remove", "TCB not linked")
	}
	h := tcb.QueueNode.Handle
	n, err := p.Get(h)
	if err != nil {
		return kerrors.Wrap(err, kerrors.Corrupted, "remove")
	}

	if n.prev != pool.None {
		pn, _ := p.Get(n.prev)
		pn.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != pool.None {
		nn, _ := p.Get(n.next)
		nn.prev = n.prev
	} else {
		l.tail = n.prev
	}
	l.count--

	p.Free(h)
	tcb.QueueNode = task.QueueRef{}
	return nil
}

func mustGet(p *pool.Pool[waitNode], h pool.Handle) *waitNode {
	n, err := p.Get(h)
	if err != nil {
		panic("waitqueue: internal pool handle invariant violated: " + err.Error())
	}
	return n
}
