// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree_test

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/nodeforge/lockfree"
)

func TestPoolAcquireEmpty(t *testing.T) {
	p := lockfree.NewPool[int]()
	if _, err := p.Acquire(); !errors.Is(err, lockfree.ErrWouldBlock) {
		t.Fatalf("Acquire on empty pool: got %v, want ErrWouldBlock", err)
	}
}

// TestPoolLIFOOrder matches spec.md §8 scenario 3: release W1, W2, W3
// in order; acquire must return W3, W2, W1, then empty.
func TestPoolLIFOOrder(t *testing.T) {
	p := lockfree.NewPool[string]()
	p.Release(lockfree.NewWrapper("w1"))
	p.Release(lockfree.NewWrapper("w2"))
	p.Release(lockfree.NewWrapper("w3"))

	want := []string{"w3", "w2", "w1"}
	for i, w := range want {
		got, err := p.Acquire()
		if err != nil {
			t.Fatalf("Acquire(%d): %v", i, err)
		}
		if got.Payload() != w {
			t.Fatalf("Acquire(%d): got %q, want %q", i, got.Payload(), w)
		}
	}
	if _, err := p.Acquire(); !errors.Is(err, lockfree.ErrWouldBlock) {
		t.Fatalf("Acquire on drained pool: got %v, want ErrWouldBlock", err)
	}
}

func TestPoolRoundTrip(t *testing.T) {
	p := lockfree.NewPool[int]()
	w := lockfree.NewWrapper(7)
	p.Release(w)
	got, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != w || got.Payload() != 7 {
		t.Fatalf("round trip: got wrapper with payload %d, want the same wrapper with payload 7", got.Payload())
	}
}

func TestPoolReleaseBatch(t *testing.T) {
	p := lockfree.NewPool[int]()
	items := []*lockfree.Wrapper[int]{
		lockfree.NewWrapper(1),
		lockfree.NewWrapper(2),
		lockfree.NewWrapper(3),
		lockfree.NewWrapper(4),
	}
	p.ReleaseBatch(items, 1, 2) // releases items[1], items[2]: payloads 2, 3

	// The batch is published as the chain items[1] -> items[2], with
	// items[1] as the new head, so the top of the stack is items[1]
	// (payload 2), then items[2] (payload 3).
	first, err := p.Acquire()
	if err != nil || first.Payload() != 2 {
		t.Fatalf("Acquire after batch: got (%v, %v), want (2, nil)", first.Payload(), err)
	}
	second, err := p.Acquire()
	if err != nil || second.Payload() != 3 {
		t.Fatalf("Acquire after batch: got (%v, %v), want (3, nil)", second.Payload(), err)
	}
	if _, err := p.Acquire(); !errors.Is(err, lockfree.ErrWouldBlock) {
		t.Fatalf("Acquire after batch drained: got %v, want ErrWouldBlock", err)
	}
}

// TestPoolReleaseBatchLinksLastElement guards the off-box-one
// spec.md §9 documents: the batch's *last* element's next must point
// at the pool's prior head, not the first element's.
func TestPoolReleaseBatchLinksLastElement(t *testing.T) {
	p := lockfree.NewPool[int]()
	p.Release(lockfree.NewWrapper(99)) // prior head

	items := []*lockfree.Wrapper[int]{
		lockfree.NewWrapper(1),
		lockfree.NewWrapper(2),
		lockfree.NewWrapper(3),
	}
	p.ReleaseBatch(items, 0, 3)

	var got []int
	for {
		w, err := p.Acquire()
		if err != nil {
			break
		}
		got = append(got, w.Payload())
	}
	want := []int{1, 2, 3, 99}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

// TestPoolConcurrentRoundTrip verifies spec.md §8 property 1: for any
// sequence of release/acquire pairs under concurrency, the multiset of
// acquired payloads equals the multiset released minus those left in
// the pool.
func TestPoolConcurrentRoundTrip(t *testing.T) {
	const n = 20000
	p := lockfree.NewPool[int]()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			p.Release(lockfree.NewWrapper(v))
		}(i)
	}
	wg.Wait()

	var mu sync.Mutex
	var acquired []int
	var done atomix.Int64
	const consumers = 8
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			backoff := iox.Backoff{}
			for {
				w, err := p.Acquire()
				if err != nil {
					if done.LoadAcquire() >= int64(n) {
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				mu.Lock()
				acquired = append(acquired, w.Payload())
				mu.Unlock()
				done.AddAcqRel(1)
			}
		}()
	}
	cwg.Wait()

	if len(acquired) != n {
		t.Fatalf("acquired %d items, want %d", len(acquired), n)
	}
	sort.Ints(acquired)
	for i := range acquired {
		if acquired[i] != i {
			t.Fatalf("acquired multiset mismatch at %d: got %d", i, acquired[i])
		}
	}
}
