// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package veritystructs provides encoded definitions for dm-verity on-disk superblocks.
package veritystructs

import (
	"encoding/binary"

	"github.com/siderolabs/go-dmverity/internal/layout"
	"github.com/siderolabs/go-dmverity/internal/magic"
)

// SuperblockSize is the on-disk size of both superblock formats.
const SuperblockSize = 512

// MaxSaltSize is the largest salt accepted by either format.
const MaxSaltSize = 256

// Signature is the superblock signature.
const Signature = "verity\x00\x00"

// SignatureMagic matches the superblock signature.
var SignatureMagic = magic.Magic{
	Offset: 0,
	Value:  []byte(Signature),
}

// LegacyLayout is the big-endian superblock with log2-encoded block sizes and no UUID.
type LegacyLayout struct {
	Signature     layout.Field
	Version       layout.Field
	DataBlockBits layout.Field
	HashBlockBits layout.Field
	SaltSize      layout.Field
	DataBlocksHi  layout.Field
	DataBlocksLo  layout.Field
	Algorithm     layout.Field
	Salt          layout.Field

	Size int
}

// CurrentLayout is the little-endian version 1 superblock.
type CurrentLayout struct {
	Signature     layout.Field
	Version       layout.Field
	HashType      layout.Field
	UUID          layout.Field
	Algorithm     layout.Field
	DataBlockSize layout.Field
	HashBlockSize layout.Field
	DataBlocks    layout.Field
	SaltSize      layout.Field
	Salt          layout.Field

	Size int
}

// Legacy describes the legacy superblock.
var Legacy = func() LegacyLayout {
	c := layout.NewCursor(binary.BigEndian)

	var l LegacyLayout

	l.Signature = c.Bytes("signature", 8)
	l.Version = c.Uint8("version")
	l.DataBlockBits = c.Uint8("data_block_bits")
	l.HashBlockBits = c.Uint8("hash_block_bits")
	c.Pad(1)
	l.SaltSize = c.Uint16("salt_size")
	c.Pad(2)
	l.DataBlocksHi = c.Uint32("data_blocks_hi")
	l.DataBlocksLo = c.Uint32("data_blocks_lo")
	l.Algorithm = c.Bytes("algorithm", 16)
	l.Salt = c.Bytes("salt", 384)
	c.Pad(88)

	l.Size = c.Size()

	return l
}()

// Current describes the version 1 superblock.
var Current = func() CurrentLayout {
	c := layout.NewCursor(binary.LittleEndian)

	var l CurrentLayout

	l.Signature = c.Bytes("signature", 8)
	l.Version = c.Uint32("version")
	l.HashType = c.Uint32("hash_type")
	l.UUID = c.Bytes("uuid", 16)
	l.Algorithm = c.Bytes("algorithm", 32)
	l.DataBlockSize = c.Uint64("data_block_size")
	l.HashBlockSize = c.Uint64("hash_block_size")
	l.DataBlocks = c.Uint64("data_blocks")
	l.SaltSize = c.Uint64("salt_size")
	l.Salt = c.Bytes("salt", MaxSaltSize)
	c.Pad(160)

	l.Size = c.Size()

	return l
}()
