// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import "unsafe"

func isPowerOf2[T uint | uint8 | uint16 | uint32 | uint64](num T) bool {
	return (num != 0 && ((num & (num - 1)) == 0))
}

func alignDown(v, alignment int64) int64 {
	return v - v%alignment
}

func alignUp(v, alignment int64) int64 {
	return alignDown(v+alignment-1, alignment)
}

// alignedBuffer returns a zeroed slice of the given size whose first byte is aligned to alignment.
//
// alignment must be a power of 2.
func alignedBuffer(size, alignment int) []byte {
	buf := make([]byte, size+alignment)

	var shift int

	if rem := int(uintptr(unsafe.Pointer(&buf[0])) & uintptr(alignment-1)); rem != 0 {
		shift = alignment - rem
	}

	return buf[shift : shift+size : shift+size]
}
