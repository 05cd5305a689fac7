// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/go-dmverity/internal/veritystructs"
)

// Header is a decoded superblock.
type Header struct {
	// UUID of the hash device, empty for FormatLegacy which has no UUID field.
	UUID string

	Params Params
}

// Decode parses a superblock buffer.
//
// The signature is checked before any other field. On error no partial Header is returned.
// HashAreaOffset and Flags of the returned parameters are left zero.
func Decode(buf []byte, format Format) (*Header, error) {
	if len(buf) < SuperblockSize {
		return nil, fmt.Errorf("%w: superblock buffer is %d bytes, expected %d", ErrInvalidArgument, len(buf), SuperblockSize)
	}

	if !veritystructs.SignatureMagic.Matches(buf) {
		return nil, ErrInvalidHeader
	}

	switch format {
	case FormatLegacy:
		return decodeLegacy(buf)
	case FormatCurrent:
		return decodeCurrent(buf)
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrInvalidArgument, format)
	}
}

func decodeLegacy(buf []byte) (*Header, error) {
	l := veritystructs.Legacy

	version := l.Version.Uint(buf)
	if version > 1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptHeader, version)
	}

	dataBits := l.DataBlockBits.Uint(buf)
	hashBits := l.HashBlockBits.Uint(buf)

	if dataBits < minBlockBits || dataBits >= maxBlockBits || hashBits < minBlockBits || hashBits >= maxBlockBits {
		return nil, fmt.Errorf("%w: block size bits %d/%d out of range", ErrCorruptHeader, dataBits, hashBits)
	}

	algorithm, terminated := l.Algorithm.CString(buf)
	if !terminated {
		return nil, fmt.Errorf("%w: algorithm name is not terminated", ErrCorruptHeader)
	}

	saltSize := l.SaltSize.Uint(buf)
	if saltSize > MaxSaltSize {
		return nil, fmt.Errorf("%w: salt size %d", ErrCorruptHeader, saltSize)
	}

	return &Header{
		Params: Params{
			HashName:      algorithm,
			DataBlockSize: 1 << dataBits,
			HashBlockSize: 1 << hashBits,
			DataBlocks:    l.DataBlocksHi.Uint(buf)<<32 | l.DataBlocksLo.Uint(buf),
			Salt:          cloneSalt(l.Salt.Bytes(buf)[:saltSize]),
			HashType:      HashType(version),
		},
	}, nil
}

func decodeCurrent(buf []byte) (*Header, error) {
	l := veritystructs.Current

	version := l.Version.Uint(buf)
	if version != 1 {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}

	hashType := l.HashType.Uint(buf)
	if hashType > uint64(HashTypeNormal) {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedHashType, hashType)
	}

	dataBlockSize := l.DataBlockSize.Uint(buf)
	hashBlockSize := l.HashBlockSize.Uint(buf)

	if dataBlockSize%512 != 0 || hashBlockSize%512 != 0 {
		return nil, fmt.Errorf("%w: %d/%d", ErrUnsupportedBlockSize, dataBlockSize, hashBlockSize)
	}

	saltSize := l.SaltSize.Uint(buf)
	if saltSize > uint64(l.Salt.Size) {
		return nil, fmt.Errorf("%w: salt size %d", ErrCorruptHeader, saltSize)
	}

	algorithm, _ := l.Algorithm.CString(buf)

	id, err := uuid.FromBytes(l.UUID.Bytes(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptHeader, err)
	}

	return &Header{
		UUID: id.String(),
		Params: Params{
			HashName:      algorithm,
			DataBlockSize: dataBlockSize,
			HashBlockSize: hashBlockSize,
			DataBlocks:    l.DataBlocks.Uint(buf),
			Salt:          cloneSalt(l.Salt.Bytes(buf)[:saltSize]),
			HashType:      HashType(hashType),
		},
	}, nil
}

// Encode serializes params into a superblock buffer of SuperblockSize bytes.
//
// A parseable UUID is required for both formats (FormatLegacy doesn't store it).
func Encode(format Format, uuidString string, params *Params) ([]byte, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: no parameters", ErrInvalidArgument)
	}

	id, err := uuid.Parse(uuidString)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong VERITY UUID format provided: %w", ErrInvalidArgument, err)
	}

	if params.Flags&FlagNoHeader != 0 {
		return nil, fmt.Errorf("%w: verity device doesn't use on-disk header", ErrInvalidArgument)
	}

	if err = params.Validate(format); err != nil {
		return nil, err
	}

	buf := make([]byte, SuperblockSize)

	veritystructs.SignatureMagic.Put(buf)

	switch format {
	case FormatLegacy:
		l := veritystructs.Legacy

		l.Version.PutUint(buf, uint64(params.HashType))
		l.DataBlockBits.PutUint(buf, log2(params.DataBlockSize))
		l.HashBlockBits.PutUint(buf, log2(params.HashBlockSize))
		l.SaltSize.PutUint(buf, uint64(len(params.Salt)))
		l.DataBlocksHi.PutUint(buf, params.DataBlocks>>32)
		l.DataBlocksLo.PutUint(buf, params.DataBlocks&0xffffffff)
		l.Algorithm.PutBytes(buf, []byte(params.HashName))
		l.Salt.PutBytes(buf, params.Salt)
	case FormatCurrent:
		l := veritystructs.Current

		l.Version.PutUint(buf, 1)
		l.HashType.PutUint(buf, uint64(params.HashType))
		l.UUID.PutBytes(buf, id[:])
		l.Algorithm.PutBytes(buf, []byte(params.HashName))
		l.DataBlockSize.PutUint(buf, params.DataBlockSize)
		l.HashBlockSize.PutUint(buf, params.HashBlockSize)
		l.DataBlocks.PutUint(buf, params.DataBlocks)
		l.SaltSize.PutUint(buf, uint64(len(params.Salt)))
		l.Salt.PutBytes(buf, params.Salt)
	}

	return buf, nil
}

func cloneSalt(salt []byte) []byte {
	if len(salt) == 0 {
		return nil
	}

	return bytes.Clone(salt)
}
