// Package readyqueue implements the priority-indexed ready queue: an
// array of FIFO lists, one per priority, gated by a redundant bitmap and
// backed by a fixed-capacity node pool (spec component D).
package readyqueue

import (
	"sync"

	"rtos-go/bitmap"
	"rtos-go/checksum"
	"rtos-go/kerrors"
	"rtos-go/pool"
	"rtos-go/task"
)

const (
	queueLeadMagic  = 0x52445931 // "RDY1"
	queueTailMagic  = 0x31595244 // "1YDR"
	defaultCapacity = 256
)

// priorityList is one FIFO list of ready tasks at a single priority.
type priorityList struct {
	head, tail pool.Handle
	count      int
	checksum   uint32
}

func (l *priorityList) recompute() {
	l.checksum = checksum.Fold(checksum.Seed, uint32(l.head), uint32(l.tail), uint32(l.count))
}

// Stats mirrors the ready queue's statistics record (§3). Corruption and
// repair counters live in the integrity package, which is the sole
// caller of the Repair* methods and therefore the sole source of truth
// for how many repairs were attempted and how many succeeded.
type Stats struct {
	TotalTasks      int
	Insertions      uint64
	Removals        uint64
	HighWaterMark   int
	HighestPriority int
}

// Status is the taxonomy validate() can return (§4.I).
type Status int

const (
	OK Status = iota
	MagicFail
	BitmapMismatch
	NodeCorrupted
	ListCorrupted
	CycleDetected
	CountMismatch
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case MagicFail:
		return "MAGIC_FAIL"
	case BitmapMismatch:
		return "BITMAP_MISMATCH"
	case NodeCorrupted:
		return "NODE_CORRUPTED"
	case ListCorrupted:
		return "LIST_CORRUPTED"
	case CycleDetected:
		return "CYCLE_DETECTED"
	case CountMismatch:
		return "COUNT_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// Queue is the priority-indexed ready queue.
type Queue struct {
	mu sync.Mutex

	leadMagic uint32
	tailMagic uint32

	lists    []priorityList
	listCap  int
	bmp      bitmap.Bitmap
	nodes    *pool.Pool[node]
	maxTasks int

	stats Stats

	validationInterval int
	opsSinceCheck      int
	lastValidation     Status

	idleTask *task.TCB
}

// New constructs a Queue with priorityLevels lists, a node pool sized
// for maxTasks TCBs, and per-list capacity bounded by maxTasks.
func New(priorityLevels, maxTasks, validationInterval int) *Queue {
	q := &Queue{
		leadMagic:          queueLeadMagic,
		tailMagic:          queueTailMagic,
		lists:              make([]priorityList, priorityLevels),
		listCap:            maxTasks,
		nodes:              pool.New[node](maxTasks),
		maxTasks:           maxTasks,
		validationInterval: validationInterval,
	}
	for i := range q.lists {
		q.lists[i].head = pool.None
		q.lists[i].tail = pool.None
		q.lists[i].recompute()
	}
	return q
}

// PriorityLevels returns the number of priority lists the queue was built with.
func (q *Queue) PriorityLevels() int {
	return len(q.lists)
}

// MaxTasks returns the node pool capacity the queue was built with.
func (q *Queue) MaxTasks() int {
	return q.maxTasks
}

// ListHead returns the head handle of priority list p, for callers
// (the integrity checker's cycle sweep) that need to walk a list
// without duplicating readyqueue's own node storage.
func (q *Queue) ListHead(p int) (pool.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p < 0 || p >= len(q.lists) {
		return pool.None, kerrors.New(kerrors.InvalidParameter, "list_head", "priority out of range")
	}
	return q.lists[p].head, nil
}

// Successor returns the node at h's next pointer, for the same
// external-walk use case as ListHead.
func (q *Queue) Successor(h pool.Handle) (pool.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.nodes.Get(h)
	if err != nil {
		return pool.None, kerrors.Wrap(err, kerrors.Corrupted, "successor")
	}
	return n.next, nil
}

// SetIdleTask registers the task returned by PeekHighest when the
// bitmap is empty.
func (q *Queue) SetIdleTask(t *task.TCB) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idleTask = t
}

// Stats returns a copy of the queue's statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Insert links tcb into list[tcb.EffectivePriority] (§4.D).
func (q *Queue) Insert(tcb *task.TCB, tick uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if tcb == nil || !tcb.Validate() {
		return kerrors.New(kerrors.InvalidParameter, "insert", "TCB failed validation")
	}
	p := tcb.EffectivePriority
	if p < 0 || p >= len(q.lists) {
		return kerrors.New(kerrors.InvalidParameter, "insert", "priority out of range")
	}
	if !tcb.QueueNode.None() {
		return kerrors.New(kerrors.AlreadyInitialized, "insert", "TCB is already linked")
	}
	list := &q.lists[p]
	if list.count >= q.listCap {
		return kerrors.New(kerrors.LimitExceeded, "insert", "priority list is full")
	}

	h, err := q.nodes.Allocate()
	if err != nil {
		return kerrors.Wrap(err, kerrors.NoResource, "insert")
	}
	n := newNode(tcb, tick)

	if list.tail != pool.None {
		tailNode, _ := q.nodes.Get(list.tail)
		tailNode.next = h
		tailNode.recompute()
		n.prev = list.tail
	} else {
		list.head = h
	}
	list.tail = h
	list.count++
	list.recompute()

	*mustGet(q.nodes, h) = n
	q.bmp.Set(p)
	tcb.QueueNode = task.QueueRef{Kind: task.InReadyQueue, Handle: h}

	q.stats.TotalTasks++
	q.stats.Insertions++
	if q.stats.TotalTasks > q.stats.HighWaterMark {
		q.stats.HighWaterMark = q.stats.TotalTasks
	}
	if p > q.stats.HighestPriority {
		q.stats.HighestPriority = p
	}

	q.maybeValidateLocked()
	return nil
}

// Remove unlinks tcb from its priority list.
func (q *Queue) Remove(tcb *task.TCB) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if tcb == nil || tcb.QueueNode.Kind != task.InReadyQueue {
		return kerrors.New(kerrors.NotInitialized, "remove", "TCB not linked in ready queue")
	}
	p := tcb.EffectivePriority
	if p < 0 || p >= len(q.lists) {
		return kerrors.New(kerrors.InvalidParameter, "remove", "priority out of range")
	}
	h := tcb.QueueNode.Handle
	n, err := q.nodes.Get(h)
	if err != nil {
		return kerrors.Wrap(err, kerrors.Corrupted, "remove")
	}

	list := &q.lists[p]
	if n.prev != pool.None {
		prevNode, _ := q.nodes.Get(n.prev)
		prevNode.next = n.next
		prevNode.recompute()
	} else {
		list.head = n.next
	}
	if n.next != pool.None {
		nextNode, _ := q.nodes.Get(n.next)
		nextNode.prev = n.prev
		nextNode.recompute()
	} else {
		list.tail = n.prev
	}
	list.count--
	list.recompute()

	q.nodes.Free(h)
	tcb.QueueNode = task.QueueRef{}

	if list.count == 0 {
		q.bmp.Clear(p)
		if p == q.stats.HighestPriority {
			q.stats.HighestPriority = q.bmp.HighestSet() - 1
		}
	}

	q.stats.TotalTasks--
	q.stats.Removals++

	q.maybeValidateLocked()
	return nil
}

// PeekHighest returns the TCB at the head of the highest-priority
// non-empty list, falling back to the registered idle task when the
// bitmap is empty.
func (q *Queue) PeekHighest() (*task.TCB, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	highest := q.bmp.HighestSet()
	if highest == 0 {
		if q.idleTask == nil {
			return nil, kerrors.New(kerrors.NotInitialized, "peek_highest", "no idle task registered")
		}
		return q.idleTask, nil
	}

	p := highest - 1
	list := &q.lists[p]
	n, err := q.nodes.Get(list.head)
	if err != nil || !n.valid() {
		return nil, kerrors.New(kerrors.Corrupted, "peek_highest", "head node failed validation")
	}
	return n.tcb, nil
}

// maybeValidateLocked runs validate() every validationInterval operations.
// Caller must hold q.mu.
func (q *Queue) maybeValidateLocked() {
	if q.validationInterval <= 0 {
		return
	}
	q.opsSinceCheck++
	if q.opsSinceCheck >= q.validationInterval {
		q.opsSinceCheck = 0
		q.lastValidation = q.validateLocked()
	}
}

// LastValidation returns the result of the most recent periodic self-check.
func (q *Queue) LastValidation() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastValidation
}

// Validate verifies every invariant in §4.D/§8 and returns the first
// violation found, bounding traversal at maxTasks to detect cycles.
func (q *Queue) Validate() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.validateLocked()
}

func (q *Queue) validateLocked() Status {
	if q.leadMagic != queueLeadMagic || q.tailMagic != queueTailMagic {
		return MagicFail
	}
	if !q.bmp.Consistent() {
		return BitmapMismatch
	}

	total := 0
	for p := range q.lists {
		list := &q.lists[p]
		nonEmpty := list.count > 0
		if nonEmpty != q.bmp.Test(p) {
			return BitmapMismatch
		}
		if list.count == 0 {
			if list.head != pool.None || list.tail != pool.None {
				return ListCorrupted
			}
			continue
		}

		// Bounded traversal: a well-formed list never exceeds maxTasks
		// nodes, so exceeding that bound here means a cycle (the full
		// tortoise-and-hare sweep lives in the integrity checker, which
		// additionally has to pinpoint where to cut a cycle for repair).
		counted := 0
		for cur := list.head; cur != pool.None; {
			n, err := q.nodes.Get(cur)
			if err != nil {
				return NodeCorrupted
			}
			if !n.valid() {
				return NodeCorrupted
			}
			counted++
			if counted > q.maxTasks {
				return CycleDetected
			}
			cur = n.next
		}
		if counted != list.count {
			return CountMismatch
		}
		total += list.count
	}

	if total != q.stats.TotalTasks {
		return CountMismatch
	}
	return OK
}

func mustGet(p *pool.Pool[node], h pool.Handle) *node {
	n, err := p.Get(h)
	if err != nil {
		panic("readyqueue: internal pool handle invariant violated: " + err.Error())
	}
	return n
}
