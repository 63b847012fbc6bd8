// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

// pad64 is cache line padding to prevent false sharing between
// independently-contended atomic words.
type pad64 [64]byte
