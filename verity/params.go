// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"

	"github.com/siderolabs/go-dmverity/internal/veritystructs"
)

// SuperblockSize is the on-disk size of the superblock.
const SuperblockSize = veritystructs.SuperblockSize

// MaxSaltSize is the maximum salt length in bytes.
const MaxSaltSize = veritystructs.MaxSaltSize

// HashType selects the hashing scheme of the hash tree.
type HashType uint32

// Hash types.
const (
	// HashTypeChromeOS is the Chrome OS scheme (salt appended).
	HashTypeChromeOS HashType = 0
	// HashTypeNormal is the standard scheme (salt prepended, hash blocks padded).
	HashTypeNormal HashType = 1
)

// String implements fmt.Stringer.
func (h HashType) String() string {
	switch h {
	case HashTypeChromeOS:
		return "chromeos"
	case HashTypeNormal:
		return "normal"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(h))
	}
}

// Flags modify how the parameters are used.
type Flags uint32

// Parameter flags.
const (
	// FlagNoHeader means there is no superblock; the hash tree starts at HashAreaOffset.
	FlagNoHeader Flags = 1 << iota
	// FlagCheckHash runs the verifier before activation.
	FlagCheckHash
)

// Params describes a verity hash device.
type Params struct { //nolint:govet
	// HashName is the hash algorithm name, e.g. "sha256".
	HashName string

	// Block sizes in bytes.
	DataBlockSize uint64
	HashBlockSize uint64

	// DataBlocks is the number of data blocks covered by the hash tree.
	DataBlocks uint64

	Salt []byte

	HashType HashType

	// HashAreaOffset is the byte offset of the superblock on the hash device,
	// or of the hash tree itself with FlagNoHeader.
	HashAreaOffset uint64

	Flags Flags
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {
	c := *p

	if p.Salt != nil {
		c.Salt = bytes.Clone(p.Salt)
	}

	return &c
}

// Validate checks that the parameters can be stored in the superblock of the given format.
func (p *Params) Validate(format Format) error {
	if p.HashName == "" {
		return fmt.Errorf("%w: hash algorithm required", ErrInvalidArgument)
	}

	if len(p.Salt) > MaxSaltSize {
		return fmt.Errorf("%w: salt size %d exceeds maximum of %d bytes", ErrInvalidArgument, len(p.Salt), MaxSaltSize)
	}

	if p.HashType > HashTypeNormal {
		return fmt.Errorf("%w: unsupported hash type %d", ErrInvalidArgument, p.HashType)
	}

	switch format {
	case FormatLegacy:
		if len(p.HashName) >= veritystructs.Legacy.Algorithm.Size {
			return fmt.Errorf("%w: hash algorithm name %q is too long", ErrInvalidArgument, p.HashName)
		}

		for _, size := range []uint64{p.DataBlockSize, p.HashBlockSize} {
			if !isPowerOf2(size) || size < 1<<minBlockBits || size >= 1<<maxBlockBits {
				return fmt.Errorf("%w: block size %d is not a power of 2 in [%d, %d)", ErrInvalidArgument, size, 1<<minBlockBits, 1<<maxBlockBits)
			}
		}

		if p.DataBlocks > math.MaxInt64 {
			return fmt.Errorf("%w: data block count %d exceeds 63 bits", ErrInvalidArgument, p.DataBlocks)
		}
	case FormatCurrent:
		if len(p.HashName) > veritystructs.Current.Algorithm.Size {
			return fmt.Errorf("%w: hash algorithm name %q is too long", ErrInvalidArgument, p.HashName)
		}

		for _, size := range []uint64{p.DataBlockSize, p.HashBlockSize} {
			if size == 0 || size%512 != 0 {
				return fmt.Errorf("%w: block size %d is not a multiple of 512", ErrInvalidArgument, size)
			}
		}
	default:
		return fmt.Errorf("%w: unknown format %d", ErrInvalidArgument, format)
	}

	return nil
}

// Legacy block sizes are stored as log2 in [minBlockBits, maxBlockBits).
const (
	minBlockBits = 9
	maxBlockBits = 31
)

func isPowerOf2(num uint64) bool {
	return num != 0 && num&(num-1) == 0
}

func log2(num uint64) uint64 {
	return uint64(bits.TrailingZeros64(num))
}
