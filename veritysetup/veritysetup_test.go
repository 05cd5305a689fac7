// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package veritysetup

import (
	"errors"
	"testing"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-dmverity/verity"
)

func TestBuildArgs(t *testing.T) {
	rootHash := []byte{0xde, 0xad, 0xbe, 0xef}

	legacy, err := verity.Encode(verity.FormatLegacy, "3f5a1b2c-9d8e-4f70-a1b2-c3d4e5f60718", &verity.Params{
		HashName:      "sha256",
		DataBlockSize: 4096,
		HashBlockSize: 4096,
		DataBlocks:    1000,
		Salt:          []byte{0x01},
		HashType:      verity.HashTypeNormal,
	})
	require.NoError(t, err)

	legacyHeader, err := verity.Decode(legacy, verity.FormatLegacy)
	require.NoError(t, err)

	legacyHeader.Params.HashAreaOffset = 8192

	for _, tt := range []struct {
		name     string
		params   verity.Params
		expected []string
	}{
		{
			name: "superblock",
			params: verity.Params{
				HashName:       "sha256",
				DataBlockSize:  4096,
				HashBlockSize:  4096,
				DataBlocks:     256,
				HashType:       verity.HashTypeNormal,
				HashAreaOffset: 1048576,
			},
			expected: []string{
				"verify", "/dev/data", "/dev/hash", "deadbeef",
				"--no-superblock",
				"--format=1",
				"--hash=sha256",
				"--data-block-size=4096",
				"--hash-block-size=4096",
				"--data-blocks=256",
				"--salt=-",
				"--hash-offset=1052672",
			},
		},
		{
			name: "superblock at zero",
			params: verity.Params{
				HashName:      "sha256",
				DataBlockSize: 512,
				HashBlockSize: 512,
				DataBlocks:    8,
				HashType:      verity.HashTypeNormal,
			},
			expected: []string{
				"verify", "/dev/data", "/dev/hash", "deadbeef",
				"--no-superblock",
				"--format=1",
				"--hash=sha256",
				"--data-block-size=512",
				"--hash-block-size=512",
				"--data-blocks=8",
				"--salt=-",
				"--hash-offset=512",
			},
		},
		{
			name:   "legacy superblock",
			params: legacyHeader.Params,
			expected: []string{
				"verify", "/dev/data", "/dev/hash", "deadbeef",
				"--no-superblock",
				"--format=1",
				"--hash=sha256",
				"--data-block-size=4096",
				"--hash-block-size=4096",
				"--data-blocks=1000",
				"--salt=01",
				"--hash-offset=12288",
			},
		},
		{
			name: "no superblock",
			params: verity.Params{
				HashName:       "sha1",
				DataBlockSize:  512,
				HashBlockSize:  1024,
				DataBlocks:     100,
				Salt:           []byte{0x01, 0x02},
				HashType:       verity.HashTypeNormal,
				HashAreaOffset: 4096,
				Flags:          verity.FlagNoHeader,
			},
			expected: []string{
				"verify", "/dev/data", "/dev/hash", "deadbeef",
				"--no-superblock",
				"--format=1",
				"--hash=sha1",
				"--data-block-size=512",
				"--hash-block-size=1024",
				"--data-blocks=100",
				"--salt=0102",
				"--hash-offset=4096",
			},
		},
		{
			name: "no superblock no salt",
			params: verity.Params{
				HashName:      "sha256",
				DataBlockSize: 4096,
				HashBlockSize: 4096,
				DataBlocks:    1,
				HashType:      verity.HashTypeChromeOS,
				Flags:         verity.FlagNoHeader | verity.FlagCheckHash,
			},
			expected: []string{
				"verify", "/dev/data", "/dev/hash", "deadbeef",
				"--no-superblock",
				"--format=0",
				"--hash=sha256",
				"--data-block-size=4096",
				"--hash-block-size=4096",
				"--data-blocks=1",
				"--salt=-",
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildArgs(&tt.params, "/dev/data", "/dev/hash", rootHash))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&cmd.ExitError{ExitCode: 2, Output: []byte("Verification failed.\n")}), verity.ErrVerificationFailed)
	assert.ErrorIs(t, mapError(&cmd.ExitError{ExitCode: 5, Output: []byte("Device busy.")}), verity.ErrDeviceBusy)

	err := mapError(&cmd.ExitError{ExitCode: 1})
	assert.NotErrorIs(t, err, verity.ErrVerificationFailed)
	assert.NotErrorIs(t, err, verity.ErrDeviceBusy)

	assert.ErrorContains(t, mapError(errors.New("exec: not found")), "failed to call veritysetup")
}
