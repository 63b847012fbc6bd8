// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lockfree

// RaceEnabled is true when the race detector is active. Tests use it
// to skip stress scenarios whose correctness depends on acquire/
// release orderings the race detector cannot model — it tracks
// explicit synchronization primitives, not happens-before relations
// established purely through atomic memory ordering.
const RaceEnabled = true
