// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

// HashOffsetBlock returns the hash tree start on the hash device, in hash blocks.
//
// With FlagNoHeader the tree starts at HashAreaOffset; otherwise it starts at the first
// hash block boundary past the superblock. A zero HashBlockSize yields 0.
func HashOffsetBlock(params *Params) uint64 {
	if params.HashBlockSize == 0 {
		return 0
	}

	hashOffset := params.HashAreaOffset

	if params.Flags&FlagNoHeader != 0 {
		return hashOffset / params.HashBlockSize
	}

	hashOffset += SuperblockSize
	hashOffset += params.HashBlockSize - 1

	return hashOffset / params.HashBlockSize
}
