// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// Wrapper is an owned node holding a user payload and the pool's
// singly-linked stack pointer.
//
// A Wrapper is owned either by the pool it is linked into, or by the
// caller that acquired it — never both at once. The caller must not
// release the same Wrapper twice without an intervening Acquire; the
// pool does not detect this (see spec.md §9, "canonical site to apply
// generation counters" — this package relies on contract instead,
// matching the no-ABA-hazard argument in spec.md §4.1).
type Wrapper[T any] struct {
	payload T
	next    atomic.Pointer[Wrapper[T]]
}

// NewWrapper constructs a detached Wrapper around payload, ready to be
// released into a Pool.
func NewWrapper[T any](payload T) *Wrapper[T] {
	return &Wrapper[T]{payload: payload}
}

// Payload returns the wrapped value. The next pointer is
// package-internal and intentionally has no accessor.
func (w *Wrapper[T]) Payload() T {
	return w.payload
}

// Pool is an unbounded lock-free LIFO (Treiber stack) of *Wrapper[T].
//
// All coordination is a single atomic reference, head, to the top
// Wrapper or nil. Every mutation is one CAS on head; Wrapper.next is
// touched only by the thread that currently owns that Wrapper (either
// the caller, before Release, or the single winner of a CAS that
// spliced it out during Acquire).
//
// The head CAS uses sync/atomic.Pointer rather than
// code.hybscloud.com/atomix: atomix, as used throughout this module's
// sibling packages, exposes only fixed-width scalar atomics
// (Uint64/Uint128/Uintptr/Bool/Int64) — no generic atomic-pointer type.
// code.hybscloud.com/iobuf's bounded_pool.go shows the same fallback
// (plain sync/atomic, not routed through atomix) for the same reason.
type Pool[T any] struct {
	_    pad64
	head atomic.Pointer[Wrapper[T]]
	_    pad64
}

// NewPool creates an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Acquire removes and returns the top Wrapper, or ErrWouldBlock if the
// pool is empty. Acquire does not retry on an empty pool — the caller
// decides whether and how to retry.
//
// The returned Wrapper's next field must not be inspected by the
// caller; it is left untouched (not cleared) and is package-internal.
func (p *Pool[T]) Acquire() (*Wrapper[T], error) {
	sw := spin.Wait{}
	for {
		h := p.head.Load()
		if h == nil {
			return nil, ErrWouldBlock
		}
		next := h.next.Load()
		if p.head.CompareAndSwap(h, next) {
			return h, nil
		}
		sw.Once()
	}
}

// Release pushes w onto the pool. The caller must hold exclusive
// ownership of w (it came from Acquire, or was never in any pool).
func (p *Pool[T]) Release(w *Wrapper[T]) {
	sw := spin.Wait{}
	for {
		h := p.head.Load()
		w.next.Store(h)
		if p.head.CompareAndSwap(h, w) {
			return
		}
		sw.Once()
	}
}

// ReleaseBatch links items[start : start+num] into a chain and
// publishes the whole chain with a single CAS on head, with
// items[start] as the new top. The result is the same as num
// successive Release calls made from items[start+num-1] down to
// items[start].
//
// The chain's last element, items[start+num-1], is the one whose next
// field is swung to point at the pool's prior head; every other
// element in the batch points at its successor within the batch. This
// is the off-by-one spec.md §9 calls out in the original source
// (which linked items[start+num], one past the batch, into next
// instead of the batch's actual last element) — binding behavior here
// links the last element, not a phantom one past it.
func (p *Pool[T]) ReleaseBatch(items []*Wrapper[T], start, num int) {
	if num <= 0 {
		return
	}
	last := items[start+num-1]
	for i := start; i < start+num-1; i++ {
		items[i].next.Store(items[i+1])
	}

	sw := spin.Wait{}
	for {
		h := p.head.Load()
		last.next.Store(h)
		if p.head.CompareAndSwap(h, items[start]) {
			return
		}
		sw.Once()
	}
}
