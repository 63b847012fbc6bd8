// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a capacity-exhausted or empty condition: the
// pool has nothing to acquire, the bag has no free slot to store into,
// or the bag has nothing to remove.
//
// ErrWouldBlock is a control flow signal, not a failure — callers
// retry later rather than propagating it. This is an alias for
// [iox.ErrWouldBlock] for ecosystem consistency with
// [code.hybscloud.com/lfq].
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal, not a failure.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// InvariantViolation is the typed panic value used for runtime
// protocol violations that are fatal and non-recoverable, as opposed
// to ordinary constructor misuse (Buffer sizePow2 out of range), which
// panics with a plain string, matching the teacher's own style.
//
// Mirror.Write panics with InvariantViolation when its single-writer
// contract is violated (the after-counter CAS loses to a second
// concurrent writer) and when called with the mirror's own initial
// image, which would make the copy a no-op alias of itself.
//
// Callers that want to classify a recovered panic rather than match
// on its message can do so with errors.As:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        if err, ok := r.(error); ok {
//	            var iv lockfree.InvariantViolation
//	            if errors.As(err, &iv) {
//	                // handle protocol violation
//	            }
//	        }
//	    }
//	}()
type InvariantViolation struct {
	Component string // "mirror"
	Reason    string
}

func (e InvariantViolation) Error() string {
	return fmt.Sprintf("lockfree: %s: invariant violation: %s", e.Component, e.Reason)
}
