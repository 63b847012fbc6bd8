// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import "code.hybscloud.com/atomix"

// Image is a user-supplied mutable value exposing a single capability:
// overwrite my contents from another image of a compatible type. It is
// an abstract copy target used by Mirror.
//
// Image additionally requires comparable so Mirror can check, by
// identity, that a caller is not passing the mirror's own initial
// image back into Write or Read (spec.md is silent on how that check
// is performed; this is the Open Question resolution recorded in
// DESIGN.md). In practice T is almost always a pointer-shaped type, so
// the comparison is a pointer-identity check.
type Image[T any] interface {
	comparable

	// MirrorFrom overwrites the receiver's contents from other.
	MirrorFrom(other T)
}

// Mirror is a single-writer / many-reader seqlock snapshot of a
// user-defined Image.
//
// All coordination is two atomic 64-bit counters, before and after.
// Quiescent: before == after. Mid-write: before == after + 1. Both
// counters only increase. This is the classic seqlock pair (spec.md
// §4.2, §9): a reader revalidates its copy against before/after rather
// than taking a lock.
type Mirror[T Image[T]] struct {
	_       pad64
	before  atomix.Uint64
	_       pad64
	after   atomix.Uint64
	_       pad64
	initial T
}

// NewMirror creates a Mirror whose canonical storage is initial.
// initial is owned by the Mirror from this point on; callers must not
// mutate it directly.
func NewMirror[T Image[T]](initial T) *Mirror[T] {
	return &Mirror[T]{initial: initial}
}

// Write publishes from as the Mirror's new content.
//
// Write panics with InvariantViolation if from is the Mirror's own
// initial image (a no-op alias that cannot be meaningfully copied into
// itself), and if the after-counter CAS loses — which can only happen
// if a second concurrent writer exists, violating the single-writer
// contract this primitive depends on. Both are programmer errors per
// spec.md §7 and are not recoverable by retrying.
func (m *Mirror[T]) Write(from T) {
	if from == m.initial {
		panic(InvariantViolation{Component: "mirror", Reason: "write: from is the mirror's own initial image"})
	}

	b := m.before.AddAcqRel(1) - 1
	m.initial.MirrorFrom(from)
	if !m.after.CompareAndSwapAcqRel(b, b+1) {
		panic(InvariantViolation{Component: "mirror", Reason: "write: after-counter CAS lost — concurrent writer detected"})
	}
}

// Read copies the Mirror's current content into into.
//
// Read panics with InvariantViolation if into is the Mirror's own
// initial image. Otherwise it loops: snapshot the after counter,
// copy, then confirm before still matches — a classic seqlock
// revalidation. Under the single-writer contract this completes in at
// most two iterations in practice, though it is not formally
// wait-free under unbounded concurrent writes (spec.md §4.2).
func (m *Mirror[T]) Read(into T) {
	if into == m.initial {
		panic(InvariantViolation{Component: "mirror", Reason: "read: into is the mirror's own initial image"})
	}

	for {
		rev := m.after.LoadAcquire()
		into.MirrorFrom(m.initial)
		if m.before.LoadAcquire() == rev {
			return
		}
	}
}
