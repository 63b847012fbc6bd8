// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lockfree provides four small, wait-free-where-possible
// concurrent primitives, each encoding all of its coordination state
// in a single atomic machine word so that every mutation is one CAS
// on one location:
//
//   - Pool: an unbounded lock-free LIFO object pool (Treiber stack).
//   - Mirror: a single-writer/many-reader snapshot of a typed image,
//     using a seqlock pair of atomic counters.
//   - Buffer: a bounded multi-producer/multi-consumer byte FIFO whose
//     read/claim/write cursors are packed into one 64-bit word.
//   - Bag: a bounded, 32-slot multi-producer/multi-consumer unordered
//     container whose per-slot state is packed 2 bits per slot into
//     one 64-bit word.
//
// None of the four depend on each other. There is no surrounding
// system here — no CLI, no I/O, no configuration, no persistence —
// only the concurrency protocols themselves.
//
// # Pool
//
// Pool is an unbounded LIFO stack of *Wrapper[T]. Acquire and Release
// are each a single CAS loop against one atomic head pointer:
//
//	pool := lockfree.NewPool[[]byte]()
//	pool.Release(lockfree.NewWrapper([]byte("buf")))
//
//	w, err := pool.Acquire()
//	if lockfree.IsWouldBlock(err) {
//	    // pool is empty — allocate fresh, or back off and retry
//	}
//	buf := w.Payload()
//
// ReleaseBatch links a slice of Wrappers into a chain and publishes
// the whole chain with one CAS, the first Wrapper of the slice on top —
// equivalent to, but cheaper than, calling Release once per item from
// the last item to the first.
//
// # Mirror
//
// Mirror is a single-writer/many-reader snapshot of a user Image. The
// writer calls Write; any number of readers may call Read
// concurrently with that one writer and with each other:
//
//	type counter struct{ n int }
//	func (c *counter) MirrorFrom(other *counter) { c.n = other.n }
//
//	m := lockfree.NewMirror(&counter{})
//	go func() {
//	    m.Write(&counter{n: 42})
//	}()
//
//	var into counter
//	m.Read(&into) // into.n is 0 or 42, never a torn value
//
// Passing the mirror's own initial image to Write or Read panics with
// [InvariantViolation], and so does a Write whose after-counter CAS
// fails because another goroutine is writing concurrently; overlapping
// writers that finish in the order they started are not detected.
// These are programmer errors, not conditions to retry past.
//
// # Buffer
//
// Buffer is a bounded byte FIFO safe for any number of concurrent
// producers and consumers:
//
//	buf := lockfree.NewBuffer(12) // 4096-byte capacity
//	n := buf.Put([]byte("hello"))
//	dest := make([]byte, 64)
//	n = buf.Get(dest) // n == 5, dest[:5] == "hello"
//
// Put returns 0 if the buffer has no room; Get returns 0 if there are
// no written, unread bytes. PutWithListener accepts a [WaitListener] hook,
// invoked only when this writer must wait for an earlier, still
// in-flight writer to publish before it — never when waiting on a
// reader, and never for a single writer against itself.
//
// # Bag
//
// Bag holds up to [BagSlots] items, unordered, with duplicates
// allowed:
//
//	bag := lockfree.NewBag[string]()
//	_ = bag.Store("a")
//	_ = bag.Store("b")
//	n := bag.Size() // 2
//	v, err := bag.Remove()
//	if lockfree.IsWouldBlock(err) {
//	    // bag is empty
//	}
//
// Store and Remove operate on one item at a time; StoreBatch and
// RemoveTo move up to BagSlots items per call — StoreBatch with two
// CAS operations total and RemoveTo with one — instead of one pair per
// item. CopyTo, Get, and Size never
// modify the bag and are wait-free (a single snapshot of the state
// word).
//
// # Error handling
//
// Capacity-exhausted and empty conditions are ordinary, recoverable
// return values — [ErrWouldBlock] for Pool.Acquire, Bag.Store and
// Bag.Remove, 0 for Buffer.Put/Get and Bag.StoreBatch/RemoveTo, false
// for Bag.Get. None of these panic. Precondition violations (an out-of-range Buffer
// exponent, a Mirror's own initial image passed back to it, a second
// concurrent Mirror writer) are programmer errors and panic instead —
// see [InvariantViolation] for the subset of those worth a typed,
// recoverable signal rather than a bare string.
//
// # Concurrency model
//
// Every primitive serializes its state transitions through exactly
// one atomic word. No operation takes a lock or blocks the caller;
// Buffer's WaitListener is the only cooperative-yield hook, and it is
// optional. A CAS failure always means some other goroutine made
// progress (lock-freedom); Buffer.Get, Mirror.Read under the
// single-writer contract, and Bag's CopyTo/Get/Size are wait-free.
package lockfree
