package integrity

import (
	"rtos-go/pool"
	"rtos-go/readyqueue"
)

// HasCycle runs Floyd's tortoise-and-hare over every priority list in
// q, using the slow/fast pointer technique so a cyclic list is detected
// in bounded time without a visited-set allocation (§4.I: "Cycle
// detection uses Floyd's tortoise-and-hare over each priority list").
func HasCycle(q *readyqueue.Queue) bool {
	for p := 0; p < q.PriorityLevels(); p++ {
		if listHasCycle(q, p) {
			return true
		}
	}
	return false
}

func listHasCycle(q *readyqueue.Queue, priority int) bool {
	slow, err := q.ListHead(priority)
	if err != nil || slow == pool.None {
		return false
	}
	fast := slow

	for {
		var err error
		fast, err = advance(q, fast)
		if err != nil || fast == pool.None {
			return false
		}
		fast, err = advance(q, fast)
		if err != nil || fast == pool.None {
			return false
		}
		slow, err = advance(q, slow)
		if err != nil {
			return false
		}
		if slow == fast {
			return true
		}
	}
}

func advance(q *readyqueue.Queue, h pool.Handle) (pool.Handle, error) {
	if h == pool.None {
		return pool.None, nil
	}
	return q.Successor(h)
}
