// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-dmverity/verity"
)

func TestTargetTable(t *testing.T) {
	t.Parallel()

	target := verity.Target{
		DataDevice:     "/dev/sda1",
		HashDevice:     "/dev/sda2",
		HashName:       "sha256",
		DataBlockSize:  4096,
		HashBlockSize:  4096,
		DataBlocks:     262144,
		HashStartBlock: 1,
		RootHash:       []byte{0x0a, 0xbc, 0xde},
		Salt:           []byte{0xff, 0x00},
		HashType:       verity.HashTypeNormal,
	}

	assert.Equal(t, "1 /dev/sda1 /dev/sda2 4096 4096 262144 1 sha256 0abcde ff00", target.Table())

	target.Salt = nil
	target.HashType = verity.HashTypeChromeOS

	assert.Equal(t, "0 /dev/sda1 /dev/sda2 4096 4096 262144 1 sha256 0abcde -", target.Table())

	target.Flags = verity.ActivateCheckAtMostOnce | verity.ActivateIgnoreZeroBlocks | verity.ActivateRestartOnCorruption

	assert.Equal(t,
		"0 /dev/sda1 /dev/sda2 4096 4096 262144 1 sha256 0abcde - 3 restart_on_corruption ignore_zero_blocks check_at_most_once",
		target.Table(),
	)
}

func TestActivationFlagsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, verity.ActivationFlags(0).Validate())
	require.NoError(t, (verity.ActivateIgnoreCorruption | verity.ActivateIgnoreZeroBlocks).Validate())
	require.ErrorIs(t, (verity.ActivateIgnoreCorruption | verity.ActivateRestartOnCorruption).Validate(), verity.ErrInvalidArgument)
}

func TestDMUUID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CRYPT-VERITY-3f5a1b2c9d8e4f70a1b2c3d4e5f60718-vroot", verity.DMUUID(testUUID, "vroot"))
	assert.Equal(t, "CRYPT-VERITY-vroot", verity.DMUUID("", "vroot"))
}
