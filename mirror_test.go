// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/iox"
	"github.com/nodeforge/lockfree"
)

type intImage struct {
	v int
}

func (i *intImage) MirrorFrom(other *intImage) {
	i.v = other.v
}

// TestMirrorReadWriteSequence matches spec.md §8 scenario 4: after each
// completed write, a reader observes exactly that write's value, never
// a mixture with a prior or initial value.
func TestMirrorReadWriteSequence(t *testing.T) {
	m := lockfree.NewMirror(&intImage{v: 0})

	var into intImage
	m.Read(&into)
	if into.v != 0 {
		t.Fatalf("initial read: got %d, want 0", into.v)
	}

	m.Write(&intImage{v: 42})
	m.Read(&into)
	if into.v != 42 {
		t.Fatalf("read after first write: got %d, want 42", into.v)
	}

	m.Write(&intImage{v: 99})
	m.Read(&into)
	if into.v != 99 {
		t.Fatalf("read after second write: got %d, want 99", into.v)
	}
}

func TestMirrorWriteRejectsOwnInitial(t *testing.T) {
	initial := &intImage{v: 0}
	m := lockfree.NewMirror(initial)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Write(initial) did not panic")
		}
		var iv lockfree.InvariantViolation
		if !errors.As(toError(r), &iv) {
			t.Fatalf("panic value is not InvariantViolation: %v", r)
		}
	}()
	m.Write(initial)
}

func TestMirrorReadRejectsOwnInitial(t *testing.T) {
	initial := &intImage{v: 0}
	m := lockfree.NewMirror(initial)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Read(initial) did not panic")
		}
		var iv lockfree.InvariantViolation
		if !errors.As(toError(r), &iv) {
			t.Fatalf("panic value is not InvariantViolation: %v", r)
		}
	}()
	m.Read(initial)
}

func toError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return nil
}

// TestMirrorConcurrentReaders verifies spec.md §8 property 2: a single
// writer racing against many readers always hands each reader a
// value the writer actually published, never a torn mixture.
func TestMirrorConcurrentReaders(t *testing.T) {
	if lockfree.RaceEnabled {
		t.Skip("acquire/release ordering is invisible to the race detector")
	}

	m := lockfree.NewMirror(&intImage{v: 0})
	const writes = 2000
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			var into intImage
			for {
				select {
				case <-stop:
					return
				default:
				}
				m.Read(&into)
				if into.v < 0 || into.v > writes {
					t.Errorf("torn read: got %d, want in [0, %d]", into.v, writes)
					return
				}
				backoff.Wait()
			}
		}()
	}

	for v := 1; v <= writes; v++ {
		m.Write(&intImage{v: v})
	}
	close(stop)
	wg.Wait()

	var final intImage
	m.Read(&final)
	if final.v != writes {
		t.Fatalf("final read: got %d, want %d", final.v, writes)
	}
}
