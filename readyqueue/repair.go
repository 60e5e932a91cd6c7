package readyqueue

import "rtos-go/pool"

// RepairMinimal rewrites the queue's own magics and every live node's
// magics in place (integrity tier MINIMAL, §4.I).
func (q *Queue) RepairMinimal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leadMagic = queueLeadMagic
	q.tailMagic = queueTailMagic
	for p := range q.lists {
		for cur := q.lists[p].head; cur != pool.None; {
			n, err := q.nodes.Get(cur)
			if err != nil {
				break
			}
			next := n.next
			n.repairMagics()
			cur = next
		}
	}
}

// RepairModerate performs RepairMinimal, then copies the primary bitmap
// over the mirror (integrity tier MODERATE).
func (q *Queue) RepairModerate() {
	q.RepairMinimal()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bmp.Resync()
}

// RepairAggressive rebuilds every priority list in place, dropping any
// node that fails magic/checksum validation, recomputing counts and the
// queue total, and rebuilding both bitmap copies from the surviving
// lists (integrity tier AGGRESSIVE).
func (q *Queue) RepairAggressive() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.leadMagic = queueLeadMagic
	q.tailMagic = queueTailMagic
	q.bmp.Reset()

	total := 0
	for p := range q.lists {
		total += q.rebuildListLocked(p)
	}
	q.stats.TotalTasks = total
	if total > q.stats.HighWaterMark {
		q.stats.HighWaterMark = total
	}
	q.stats.HighestPriority = q.bmp.HighestSet() - 1
}

// rebuildListLocked walks list p's existing chain (best effort — it may
// itself be corrupt), keeps only nodes that pass validation, relinks
// them into a fresh chain, and returns the surviving count. Caller must
// hold q.mu.
func (q *Queue) rebuildListLocked(p int) int {
	list := &q.lists[p]
	var survivors []pool.Handle

	seen := make(map[pool.Handle]bool)
	steps := 0
	for cur := list.head; cur != pool.None && steps <= q.maxTasks; steps++ {
		if seen[cur] {
			break // cycle; stop walking what we already rebuilt
		}
		seen[cur] = true

		n, err := q.nodes.Get(cur)
		if err != nil {
			break
		}
		next := n.next
		if n.valid() {
			survivors = append(survivors, cur)
		} else {
			q.nodes.Free(cur)
		}
		cur = next
	}

	list.head, list.tail = pool.None, pool.None
	list.count = 0
	var prev pool.Handle = pool.None
	for _, h := range survivors {
		n, err := q.nodes.Get(h)
		if err != nil {
			continue
		}
		n.prev = prev
		n.next = pool.None
		n.recompute()
		if prev != pool.None {
			pn, _ := q.nodes.Get(prev)
			pn.next = h
			pn.recompute()
		} else {
			list.head = h
		}
		list.tail = h
		list.count++
		prev = h
	}
	list.recompute()

	if list.count > 0 {
		q.bmp.Set(p)
	}
	return list.count
}

// RepairRebuild wipes both bitmaps and runs RepairAggressive over every
// list, restoring all invariants from scratch (integrity tier REBUILD).
// If the queue still fails validation afterward, the caller (the
// integrity checker) is responsible for escalating to a kernel panic.
func (q *Queue) RepairRebuild() {
	q.mu.Lock()
	q.bmp.Reset()
	q.mu.Unlock()
	q.RepairAggressive()
}
