package readyqueue

import (
	"rtos-go/checksum"
	"rtos-go/pool"
	"rtos-go/task"
)

const (
	nodeStartMagic = 0x4E4F4445 // "NODE"
	nodeEndMagic   = 0x45444F4E // "EDON"
)

// node is the ready queue's list node (spec "Queue node", §3). It is
// stored in a fixed-capacity pool.Pool and addressed by pool.Handle; raw
// pointers are avoided in favor of index-based prev/next, per spec.md
// §9's guidance on representing these structures memory-safely.
type node struct {
	startMagic uint32
	endMagic   uint32

	tcb *task.TCB

	next, prev    pool.Handle
	insertionTick uint64

	checksum uint32
}

func newNode(tcb *task.TCB, tick uint64) node {
	n := node{
		startMagic:    nodeStartMagic,
		endMagic:      nodeEndMagic,
		tcb:           tcb,
		next:          pool.None,
		prev:          pool.None,
		insertionTick: tick,
	}
	n.recompute()
	return n
}

func (n *node) recompute() {
	var taskID uint32
	if n.tcb != nil {
		taskID = uint32(n.tcb.TaskID)
	}
	n.checksum = checksum.Fold(checksum.Seed,
		n.startMagic,
		taskID,
		uint32(n.next),
		uint32(n.prev),
		uint32(n.insertionTick),
		n.endMagic,
	)
}

func (n *node) valid() bool {
	if n.startMagic != nodeStartMagic || n.endMagic != nodeEndMagic {
		return false
	}
	if n.tcb == nil {
		return false
	}
	var taskID uint32 = uint32(n.tcb.TaskID)
	want := checksum.Fold(checksum.Seed,
		n.startMagic,
		taskID,
		uint32(n.next),
		uint32(n.prev),
		uint32(n.insertionTick),
		n.endMagic,
	)
	return want == n.checksum
}

// repairMagics rewrites the node's magic words in place (integrity tier MINIMAL).
func (n *node) repairMagics() {
	n.startMagic = nodeStartMagic
	n.endMagic = nodeEndMagic
	n.recompute()
}
