// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// BagSlots is the fixed number of slots in a Bag.
const BagSlots = 32

// Per-slot state, a 2-bit field packed 32-deep into one 64-bit word.
// Transitions are FREE -> CLAIMED -> FULL and FULL -> REMOVING -> FREE;
// no other transition is permitted (spec.md §3, §4.4).
const (
	slotFree     = 0
	slotClaimed  = 1
	slotFull     = 2
	slotRemoving = 3
)

func slotMask(i int) uint64 {
	return uint64(0b11) << (2 * i)
}

func slotGet(s uint64, i int) uint64 {
	return (s >> (2 * i)) & 0b11
}

// setSlot replaces slot i's two bits with v, clearing the prior bits
// first. A naive OR-only variant (without the AND-NOT) is the bug
// spec.md §9 documents for the bulk publish path; every slot mutation
// in this file goes through this helper or its bulk-mask equivalent to
// avoid it.
func setSlot(s uint64, i int, v uint64) uint64 {
	return (s &^ slotMask(i)) | (v << (2 * i))
}

// Bag is a bounded multi-producer/multi-consumer unordered container
// (a set-with-duplicates) of up to BagSlots items, whose per-slot
// state machine is packed 2 bits per slot into one atomic 64-bit word.
//
// CopyTo, Size, and Get are wait-free (single snapshot, no mutation).
// Store and Remove are lock-free: a losing CAS implies some other
// goroutine made progress.
type Bag[T any] struct {
	_       pad64
	state   atomix.Uint64
	_       pad64
	storage [BagSlots]T
}

// NewBag creates an empty Bag.
func NewBag[T any]() *Bag[T] {
	return &Bag[T]{}
}

// Cap returns the bag's fixed slot count, BagSlots.
func (b *Bag[T]) Cap() int {
	return BagSlots
}

// Store inserts item into the first FREE slot found. Returns
// ErrWouldBlock if no slot is FREE.
//
// Phase A claims a slot with a single CAS (FREE -> CLAIMED). Phase B
// writes the payload — safe because CLAIMED is exclusively owned by
// this goroutine. Phase C publishes with a second CAS (CLAIMED ->
// FULL); that CAS is a release on the state word, making the Phase B
// write visible to any goroutine that subsequently observes FULL.
func (b *Bag[T]) Store(item T) error {
	sw := spin.Wait{}
	var idx int
	for {
		s := b.state.LoadAcquire()
		idx = -1
		for i := 0; i < BagSlots; i++ {
			if slotGet(s, i) == slotFree {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrWouldBlock
		}
		s2 := setSlot(s, idx, slotClaimed)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			break
		}
		sw.Once()
	}

	b.storage[idx] = item

	sw = spin.Wait{}
	for {
		s := b.state.LoadAcquire()
		s2 := setSlot(s, idx, slotFull)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			return nil
		}
		sw.Once()
	}
}

// StoreBatch inserts up to min(BagSlots, num) items from
// items[start:start+num] in bulk, claiming all chosen slots with a
// single CAS and publishing them with a second single CAS. Returns the
// number of items actually stored, which may be less than num (or 0)
// if fewer FREE slots are available.
//
// The publish-phase mask is built explicitly — clear each selected
// slot's two bits, then OR in FULL — rather than by reusing the
// single-slot helper against a blank seed. spec.md §9 documents the
// latter as the source's bug: ORing a "storedMask" built from an
// all-zero seed onto the current state fails to clear the CLAIMED bits
// first, so the result is not a clean FREE/CLAIMED->FULL transition.
func (b *Bag[T]) StoreBatch(items []T, start, num int) int {
	sw := spin.Wait{}
	var chosen []int
	for {
		s := b.state.LoadAcquire()
		chosen = chosen[:0]
		for i := 0; i < BagSlots && len(chosen) < num; i++ {
			if slotGet(s, i) == slotFree {
				chosen = append(chosen, i)
			}
		}
		if len(chosen) == 0 {
			return 0
		}
		s2 := s
		for _, i := range chosen {
			s2 = setSlot(s2, i, slotClaimed)
		}
		if b.state.CompareAndSwapAcqRel(s, s2) {
			break
		}
		sw.Once()
	}

	for n, i := range chosen {
		b.storage[i] = items[start+n]
	}

	sw = spin.Wait{}
	for {
		s := b.state.LoadAcquire()
		s2 := s
		for _, i := range chosen {
			s2 = setSlot(s2, i, slotFull)
		}
		if b.state.CompareAndSwapAcqRel(s, s2) {
			return len(chosen)
		}
		sw.Once()
	}
}

// Remove detaches and returns an arbitrary FULL item, or ErrWouldBlock
// if no slot is FULL.
//
// Phase A claims a FULL slot for exclusive removal with a single CAS
// (FULL -> REMOVING). Phase B reads the payload and nulls the storage
// entry, so the removed value does not keep an otherwise-unreferenced
// object alive. Phase C releases the slot (REMOVING -> FREE).
func (b *Bag[T]) Remove() (T, error) {
	sw := spin.Wait{}
	var idx int
	for {
		s := b.state.LoadAcquire()
		idx = -1
		for i := 0; i < BagSlots; i++ {
			if slotGet(s, i) == slotFull {
				idx = i
				break
			}
		}
		if idx < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		s2 := setSlot(s, idx, slotRemoving)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			break
		}
		sw.Once()
	}

	item := b.storage[idx]
	var zero T
	b.storage[idx] = zero

	sw = spin.Wait{}
	for {
		s := b.state.LoadAcquire()
		s2 := setSlot(s, idx, slotFree)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			return item, nil
		}
		sw.Once()
	}
}

// RemoveTo bulk-removes up to num FULL items into dest[start:start+num]
// and returns the count actually removed.
//
// Unlike Remove, this transitions each selected slot directly from
// FULL to FREE in a single CAS, without an intermediate REMOVING state
// — spec.md §9 documents this as the source's own bulk-path behavior.
// The payload copy happens against the pre-CAS snapshot and only
// becomes real once that CAS succeeds: since every mutation of this
// bag goes through the one state word, a successful CAS proves nothing
// else touched these slots between the snapshot and the transition, so
// the speculative copy was safe. Unlike the source, this implementation
// nulls the storage entries after a successful transition, for
// symmetry with Remove and to avoid keeping removed payloads reachable
// — spec.md §9 calls this out as the recommended fix to a known
// asymmetry, not a required one.
func (b *Bag[T]) RemoveTo(dest []T, start, num int) int {
	sw := spin.Wait{}
	var chosen []int
	var snapshot []T
	for {
		s := b.state.LoadAcquire()
		chosen = chosen[:0]
		for i := 0; i < BagSlots && len(chosen) < num; i++ {
			if slotGet(s, i) == slotFull {
				chosen = append(chosen, i)
			}
		}
		if len(chosen) == 0 {
			return 0
		}

		snapshot = snapshot[:0]
		for _, i := range chosen {
			snapshot = append(snapshot, b.storage[i])
		}

		s2 := s
		for _, i := range chosen {
			s2 = setSlot(s2, i, slotFree)
		}
		if b.state.CompareAndSwapAcqRel(s, s2) {
			break
		}
		sw.Once()
	}

	var zero T
	for n, i := range chosen {
		dest[start+n] = snapshot[n]
		b.storage[i] = zero
	}
	return len(chosen)
}

// Get returns an arbitrary FULL item without removing it, or false if
// no slot is FULL. The caller may observe a stale reference if the
// item is concurrently removed — acceptable for the documented use
// case of long-lived objects (spec.md §4.4).
func (b *Bag[T]) Get() (T, bool) {
	s := b.state.LoadAcquire()
	for i := 0; i < BagSlots; i++ {
		if slotGet(s, i) == slotFull {
			return b.storage[i], true
		}
	}
	var zero T
	return zero, false
}

// CopyTo copies up to num FULL items into dest[start:start+num]
// without modifying the bag, and returns the count copied. Slots
// observed as REMOVING are treated as not-FULL, never returned
// (spec.md §8 property 6).
func (b *Bag[T]) CopyTo(dest []T, start, num int) int {
	s := b.state.LoadAcquire()
	n := 0
	for i := 0; i < BagSlots && n < num; i++ {
		if slotGet(s, i) == slotFull {
			dest[start+n] = b.storage[i]
			n++
		}
	}
	return n
}

// Size returns the number of slots currently FULL.
func (b *Bag[T]) Size() int {
	s := b.state.LoadAcquire()
	count := 0
	for i := 0; i < BagSlots; i++ {
		if slotGet(s, i) == slotFull {
			count++
		}
	}
	return count
}
