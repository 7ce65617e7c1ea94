package relay

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := newWaitQueue()
	q.enqueue("a")
	q.enqueue("b")
	q.enqueue("c")

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.dequeueFront()
		if !ok || got != want {
			t.Fatalf("expected %q, got %q (ok=%v)", want, got, ok)
		}
	}
	if _, ok := q.dequeueFront(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueEnqueueIdempotent(t *testing.T) {
	q := newWaitQueue()
	q.enqueue("a")
	q.enqueue("b")
	q.enqueue("a")

	if q.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", q.len())
	}
	if got, _ := q.dequeueFront(); got != "a" {
		t.Fatalf("re-enqueue must not reorder, got %q first", got)
	}
}

func TestQueueRemove(t *testing.T) {
	q := newWaitQueue()
	q.enqueue("a")
	q.enqueue("b")
	q.enqueue("c")
	q.remove("b")
	q.remove("missing")

	if q.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", q.len())
	}
	first, _ := q.dequeueFront()
	second, _ := q.dequeueFront()
	if first != "a" || second != "c" {
		t.Fatalf("expected a,c got %q,%q", first, second)
	}
}

func TestQueueSweepStale(t *testing.T) {
	q := newWaitQueue()
	q.enqueue("a")
	q.enqueue("b")
	q.enqueue("c")
	q.enqueue("d")

	live := map[string]bool{"b": true, "d": true}
	removed := q.sweepStale(func(id string) bool { return live[id] })
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	first, _ := q.dequeueFront()
	second, _ := q.dequeueFront()
	if first != "b" || second != "d" {
		t.Fatalf("expected survivors in order b,d got %q,%q", first, second)
	}
}
