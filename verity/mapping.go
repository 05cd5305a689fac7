// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/siderolabs/gen/xslices"
)

// ActivationFlags tune the dm-verity target.
type ActivationFlags uint32

// Activation flags.
const (
	// ActivateIgnoreCorruption logs corrupted blocks instead of failing the I/O.
	ActivateIgnoreCorruption ActivationFlags = 1 << iota
	// ActivateRestartOnCorruption restarts the system on corruption.
	ActivateRestartOnCorruption
	// ActivateIgnoreZeroBlocks returns zeroes for blocks hashed as zero blocks without reading them.
	ActivateIgnoreZeroBlocks
	// ActivateCheckAtMostOnce verifies each data block only on the first read.
	ActivateCheckAtMostOnce
)

type targetOption struct {
	arg  string
	flag ActivationFlags
}

var targetOptions = []targetOption{
	{"ignore_corruption", ActivateIgnoreCorruption},
	{"restart_on_corruption", ActivateRestartOnCorruption},
	{"ignore_zero_blocks", ActivateIgnoreZeroBlocks},
	{"check_at_most_once", ActivateCheckAtMostOnce},
}

// Validate rejects contradicting flags.
func (f ActivationFlags) Validate() error {
	if f&ActivateIgnoreCorruption != 0 && f&ActivateRestartOnCorruption != 0 {
		return fmt.Errorf("%w: ignore and restart on corruption are mutually exclusive", ErrInvalidArgument)
	}

	return nil
}

// Target describes the dm-verity target of a mapping.
type Target struct { //nolint:govet
	DataDevice string
	HashDevice string
	HashName   string

	DataBlockSize uint64
	HashBlockSize uint64
	DataBlocks    uint64

	// HashStartBlock is the hash tree start on the hash device, in hash blocks.
	HashStartBlock uint64

	RootHash []byte
	Salt     []byte

	HashType HashType
	Flags    ActivationFlags
}

// Table renders the dm-verity target parameters.
//
// Format: <version> <data dev> <hash dev> <data block size> <hash block size>
// <#data blocks> <hash start block> <algorithm> <root hash> <salt> [<#opt args> <opt args>...].
func (t *Target) Table() string {
	salt := "-"
	if len(t.Salt) > 0 {
		salt = hex.EncodeToString(t.Salt)
	}

	fields := []string{
		strconv.FormatUint(uint64(t.HashType), 10),
		t.DataDevice,
		t.HashDevice,
		strconv.FormatUint(t.DataBlockSize, 10),
		strconv.FormatUint(t.HashBlockSize, 10),
		strconv.FormatUint(t.DataBlocks, 10),
		strconv.FormatUint(t.HashStartBlock, 10),
		t.HashName,
		hex.EncodeToString(t.RootHash),
		salt,
	}

	enabled := xslices.Filter(targetOptions, func(o targetOption) bool {
		return t.Flags&o.flag != 0
	})

	if len(enabled) > 0 {
		fields = append(fields, strconv.Itoa(len(enabled)))
		fields = append(fields, xslices.Map(enabled, func(o targetOption) string { return o.arg })...)
	}

	return strings.Join(fields, " ")
}

// Mapping is a request for a kernel device-mapper device.
type Mapping struct {
	Name string
	UUID string

	// Sectors is the mapping size in 512-byte sectors.
	Sectors uint64

	ReadOnly bool

	Target Target
}

// DMUUID builds the device-mapper UUID for a verity mapping.
func DMUUID(uuid, name string) string {
	if uuid == "" {
		return "CRYPT-VERITY-" + name
	}

	return fmt.Sprintf("CRYPT-VERITY-%s-%s", strings.ReplaceAll(uuid, "-", ""), name)
}
