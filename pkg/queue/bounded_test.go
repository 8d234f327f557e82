package queue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPopFIFO(t *testing.T) {
	q := NewBounded[int](10)
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false on open queue", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatal("Pop returned false with items queued")
		}
		if v != i {
			t.Errorf("Pop() = %d, want %d (FIFO order)", v, i)
		}
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	const capacity = 3
	q := NewBounded[int](capacity)
	for i := 0; i < capacity; i++ {
		q.Push(i)
	}

	pushed := make(chan struct{})
	go func() {
		q.Push(capacity) // must block until a slot frees
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push on full queue did not block")
	case <-time.After(100 * time.Millisecond):
		// still blocked, as expected
	}

	if _, ok := q.Pop(); !ok {
		t.Fatal("Pop failed")
	}

	select {
	case <-pushed:
		// unblocked by the freed slot
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Pop freed a slot")
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewBounded[string](1)
	got := make(chan string, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	time.Sleep(50 * time.Millisecond) // let the consumer park
	q.Push("item")

	select {
	case v := <-got:
		if v != "item" {
			t.Errorf("Pop() = %q, want %q", v, "item")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestCloseDrainsRemainingItems(t *testing.T) {
	q := NewBounded[int](5)
	q.Push(1)
	q.Push(2)
	q.Close()

	if v, ok := q.Pop(); !ok || v != 1 {
		t.Errorf("Pop() = (%d, %v), want (1, true)", v, ok)
	}
	if v, ok := q.Pop(); !ok || v != 2 {
		t.Errorf("Pop() = (%d, %v), want (2, true)", v, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on closed+empty queue must return false")
	}
	if q.Push(3) {
		t.Error("Push on closed queue must return false")
	}
}

func TestCloseWakesBlockedProducers(t *testing.T) {
	q := NewBounded[int](1)
	q.Push(0)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = q.Push(i)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	q.Close()
	wg.Wait()

	for i, ok := range results {
		if ok {
			t.Errorf("producer %d: Push returned true after Close", i)
		}
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const (
		producers = 8
		perProd   = 200
	)
	q := NewBounded[int](16)

	var prodWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		prodWg.Add(1)
		go func() {
			defer prodWg.Done()
			for i := 0; i < perProd; i++ {
				q.Push(i)
			}
		}()
	}

	var consumed int
	var consWg sync.WaitGroup
	var mu sync.Mutex
	for c := 0; c < 4; c++ {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			for {
				if _, ok := q.Pop(); !ok {
					return
				}
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}

	prodWg.Wait()
	q.Close()
	consWg.Wait()

	if consumed != producers*perProd {
		t.Errorf("consumed %d items, want %d", consumed, producers*perProd)
	}
}
