// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-dmverity/verity"
)

// paramsFlags describe the hash device when it carries no superblock, or a new superblock.
type paramsFlags struct {
	hashName      string
	salt          string
	offset        uint64
	dataBlockSize uint64
	hashBlockSize uint64
	dataBlocks    uint64
	hashType      uint32
	noSuperblock  bool
}

func (p *paramsFlags) register(cmd *cobra.Command, withNoSuperblock bool) {
	flags := cmd.Flags()

	flags.Uint64Var(&p.offset, "hash-offset", 0, "superblock offset on the hash device in bytes (hash tree offset with --no-superblock)")
	flags.StringVar(&p.hashName, "hash", "sha256", "hash algorithm")
	flags.StringVar(&p.salt, "salt", "-", "salt as hex string, - for none")
	flags.Uint64Var(&p.dataBlockSize, "data-block-size", 4096, "data block size in bytes")
	flags.Uint64Var(&p.hashBlockSize, "hash-block-size", 4096, "hash block size in bytes")
	flags.Uint64Var(&p.dataBlocks, "data-blocks", 0, "number of data blocks")
	flags.Uint32Var(&p.hashType, "hash-type", uint32(verity.HashTypeNormal), "hash type (0 - chromeos, 1 - normal)")

	if withNoSuperblock {
		flags.BoolVar(&p.noSuperblock, "no-superblock", false, "the hash device has no superblock, parameters come from flags")
	}
}

func (p *paramsFlags) params() (*verity.Params, error) {
	var (
		salt []byte
		err  error
	)

	if p.salt != "" && p.salt != "-" {
		salt, err = hex.DecodeString(p.salt)
		if err != nil {
			return nil, fmt.Errorf("%w: salt: %w", verity.ErrInvalidArgument, err)
		}
	}

	params := &verity.Params{
		HashName:       p.hashName,
		DataBlockSize:  p.dataBlockSize,
		HashBlockSize:  p.hashBlockSize,
		DataBlocks:     p.dataBlocks,
		Salt:           salt,
		HashType:       verity.HashType(p.hashType),
		HashAreaOffset: p.offset,
	}

	if p.noSuperblock {
		params.Flags |= verity.FlagNoHeader
	}

	return params, nil
}

// resolve returns the parameters from flags or from the superblock of the hash device.
func (p *paramsFlags) resolve(a *app, hashDevice string) (*verity.Params, string, error) {
	if p.noSuperblock {
		params, err := p.params()

		return params, "", err
	}

	hdr, err := verity.ReadSuperblock(hashDevice, p.offset, 0, a.superblockOptions()...)
	if err != nil {
		return nil, "", err
	}

	return &hdr.Params, hdr.UUID, nil
}

func decodeRootHash(s string) ([]byte, error) {
	rootHash, err := hex.DecodeString(s)
	if err != nil || len(rootHash) == 0 {
		return nil, fmt.Errorf("%w: invalid root hash %q", verity.ErrInvalidArgument, s)
	}

	return rootHash, nil
}
