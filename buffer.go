// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"runtime"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MaxBufferSizePow2 is the largest exponent NewBuffer accepts.
//
// Three (k+1)-bit cursors must fit in one 64-bit word: 3*(k+1) <= 63,
// leaving the top bit unused. That bounds k at 20, not 21 — the figure
// the source's own Open Question note names ("three k+1-bit cursors
// must fit in 63 bits") only holds at k=20 (3*21 = 63 bits); at k=21
// the same fields would need 66 bits and silently overflow the word.
// This resolves spec.md §9's stated Open Question in favor of the bit
// width that is actually safe rather than the literal ceiling named
// alongside it: at k=20 the three 21-bit fields sit at offsets 0, 21,
// 42, which is exactly the fixed-width layout spec.md §4.3 offers as
// an equivalent notation for the maximum case.
const MaxBufferSizePow2 = 20

// WaitListener is the Buffer's one cooperative-yield hook: it is
// invoked when a writer must spin until an earlier writer publishes.
// The hook is an abstraction boundary, not a thread primitive — it
// must be safe to call from any goroutine and must side-effect only
// the calling goroutine (spec.md §9).
type WaitListener interface {
	OnWait()
}

// yieldWaitListener is the default WaitListener used by Put: it yields
// the current goroutine, matching spec.md §9's "the reference listener
// yields the current thread."
type yieldWaitListener struct{}

func (yieldWaitListener) OnWait() { runtime.Gosched() }

// Buffer is a bounded multi-producer/multi-consumer byte FIFO whose
// read/claim/write cursors are packed into one atomic 64-bit word.
//
// Capacity is 2^k bytes, k in [0, MaxBufferSizePow2]. Each cursor uses
// k+1 bits, packed at bit offsets 0 (read), k+1 (claimed), 2*(k+1)
// (written). Cursors are absolute, non-wrapping offsets into data;
// the buffer empties by resetting all three cursors to zero once a
// reader drains to claimed == written (spec.md §3, §4.3).
type Buffer struct {
	_        pad64
	state    atomix.Uint64
	_        pad64
	data     []byte
	capacity uint64
	width    uint // bits per cursor field, k+1
	mask     uint64
}

// NewBuffer creates a Buffer of capacity 2^sizePow2 bytes.
// sizePow2 must be in [0, MaxBufferSizePow2]; violating this is a
// constructor-time programmer error and panics.
func NewBuffer(sizePow2 int) *Buffer {
	if sizePow2 < 0 || sizePow2 > MaxBufferSizePow2 {
		panic("lockfree: buffer sizePow2 must be in [0, 20]")
	}
	capacity := uint64(1) << uint(sizePow2)
	width := uint(sizePow2) + 1
	return &Buffer{
		data:     make([]byte, capacity),
		capacity: capacity,
		width:    width,
		mask:     (uint64(1) << width) - 1,
	}
}

// Cap returns the buffer's byte capacity.
func (b *Buffer) Cap() int {
	return int(b.capacity)
}

func (b *Buffer) decode(s uint64) (r, c, w uint64) {
	r = s & b.mask
	c = (s >> b.width) & b.mask
	w = (s >> (2 * b.width)) & b.mask
	return
}

func (b *Buffer) encode(r, c, w uint64) uint64 {
	return r | (c << b.width) | (w << (2 * b.width))
}

// Put copies as much of src as fits into the buffer, using the default
// yielding wait listener for any write-phase stall. Returns the number
// of bytes written, or 0 if the buffer has no room.
func (b *Buffer) Put(src []byte) int {
	return b.PutWithListener(src, yieldWaitListener{})
}

// PutWithListener is Put with a caller-supplied WaitListener, invoked
// whenever this writer's write phase must wait for an earlier writer
// (one with a smaller claim start) to publish first. listener may be
// nil, in which case no hook is invoked but the writer still spins.
//
// Protocol (spec.md §4.3): a claim phase reserves [c, c') via a single
// CAS that advances the claimed cursor (never past capacity); a write
// phase then waits for written to reach this writer's claim start,
// copies the bytes, and advances written by the claimed length via a
// second CAS. Multiple writers serialize their publish order through
// written; a single writer never waits, since its claim start always
// equals the current written cursor.
func (b *Buffer) PutWithListener(src []byte, listener WaitListener) int {
	if len(src) == 0 {
		return 0
	}

	sw := spin.Wait{}
	var startPos, claimed uint64
	for {
		s := b.state.LoadAcquire()
		r, c, w := b.decode(s)
		if c == b.capacity {
			return 0
		}
		newC := c + uint64(len(src))
		if newC > b.capacity {
			newC = b.capacity
		}
		if newC == c {
			return 0
		}
		s2 := b.encode(r, newC, w)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			startPos = c
			claimed = newC - c
			break
		}
		sw.Once()
	}

	sw = spin.Wait{}
	for {
		s := b.state.LoadAcquire()
		r, c, w := b.decode(s)
		if w < startPos {
			if listener != nil {
				listener.OnWait()
			}
			sw.Once()
			continue
		}

		copy(b.data[startPos:startPos+claimed], src[:claimed])
		s2 := b.encode(r, c, w+claimed)
		if b.state.CompareAndSwapAcqRel(s, s2) {
			return int(claimed)
		}
		sw.Once()
	}
}

// Get drains all currently-written, unread bytes into dest and returns
// the number of bytes copied, or 0 if the buffer is empty.
//
// dest must be at least written-read bytes long; an undersized dest
// silently truncates the copy (spec.md §4.3 leaves this case
// undefined — go's copy semantics, which copy min(len(dest), n) bytes,
// are the chosen behavior here). Get still returns written-read in
// that case and advances the read cursor past all of it, so the bytes
// that did not fit are dropped.
//
// When a drain empties the buffer exactly (claimed == written after
// the read), the whole state word resets to zero — the only point at
// which any cursor moves backward.
func (b *Buffer) Get(dest []byte) int {
	sw := spin.Wait{}
	for {
		s := b.state.LoadAcquire()
		r, c, w := b.decode(s)
		if r == w {
			return 0
		}
		n := w - r
		copy(dest, b.data[r:w])

		var s2 uint64
		if w == c {
			s2 = 0
		} else {
			s2 = b.encode(w, c, w)
		}
		if b.state.CompareAndSwapAcqRel(s, s2) {
			return int(n)
		}
		sw.Once()
	}
}
