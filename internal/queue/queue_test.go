package queue

import (
	"sync"
	"testing"
)

type sample struct {
	Tick    uint64
	ActorID string
}

func TestQueue_New(t *testing.T) {
	q := New[sample]()
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
	if q.Dropped() != 0 {
		t.Errorf("expected nothing dropped, got %d", q.Dropped())
	}
}

func TestQueue_TakeAll(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Tick: 1, ActorID: "m1"}, sample{Tick: 1, ActorID: "m2"}, sample{Tick: 2, ActorID: "m1"})

	got := q.Take(0)
	if len(got) != 3 || got[0].ActorID != "m1" || got[2].Tick != 2 {
		t.Errorf("unexpected items: %v", got)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Take(0)")
	}

	// the returned slice must not alias new pushes
	q.Push(sample{Tick: 9})
	if got[0].Tick != 1 {
		t.Errorf("returned slice was modified: %v", got)
	}
}

func TestQueue_TakeN(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	first := q.Take(2)
	if len(first) != 2 || first[0] != 1 || first[1] != 2 {
		t.Errorf("expected [1 2], got %v", first)
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 left, got %d", q.Len())
	}

	rest := q.Take(10)
	if len(rest) != 3 || rest[0] != 3 {
		t.Errorf("expected [3 4 5], got %v", rest)
	}
	if got := q.Take(0); len(got) != 0 {
		t.Errorf("expected nothing from empty queue, got %v", got)
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	q.Push(3, 4, 5)

	if q.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", q.Dropped())
	}
	got := q.Take(0)
	if got[0] != 3 || got[2] != 5 {
		t.Errorf("expected newest [3 4 5], got %v", got)
	}
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	failed := q.Take(0)
	q.Push(3)
	q.Requeue(failed...)

	got := q.Take(0)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestQueue_RequeueOverLimit(t *testing.T) {
	q := NewBounded[int](2)
	q.Push(1, 2)
	failed := q.Take(0)
	q.Push(3)
	q.Requeue(failed...)

	got := q.Take(0)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(id)
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- len(q.Take(10))
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for n := range results {
		total += n
	}
	if total != 100 {
		t.Errorf("expected 100 items taken, got %d", total)
	}
}
