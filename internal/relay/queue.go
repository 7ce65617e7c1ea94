package relay

// waitQueue is the ordered backlog of connections seeking a partner.
// FIFO, each identifier present at most once. Queue sizes stay small,
// so linear removal by value is fine. Not safe for concurrent use on
// its own; the Relay serializes access.
type waitQueue struct {
	ids []string
}

func newWaitQueue() *waitQueue {
	return &waitQueue{}
}

// enqueue appends the identifier unless it is already queued.
func (q *waitQueue) enqueue(id string) {
	if q.contains(id) {
		return
	}
	q.ids = append(q.ids, id)
}

// dequeueFront pops the earliest enqueued identifier.
func (q *waitQueue) dequeueFront() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// remove deletes the identifier if present; no-op otherwise.
func (q *waitQueue) remove(id string) {
	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

func (q *waitQueue) contains(id string) bool {
	for _, queued := range q.ids {
		if queued == id {
			return true
		}
	}
	return false
}

// sweepStale removes every identifier for which isLive reports false,
// preserving the order of survivors, and returns the count removed.
func (q *waitQueue) sweepStale(isLive func(string) bool) int {
	kept := q.ids[:0]
	removed := 0
	for _, id := range q.ids {
		if isLive(id) {
			kept = append(kept, id)
		} else {
			removed++
		}
	}
	q.ids = kept
	return removed
}

func (q *waitQueue) len() int {
	return len(q.ids)
}
