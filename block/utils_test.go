// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPowerOf2(t *testing.T) {
	assert.True(t, isPowerOf2(uint32(512)))
	assert.True(t, isPowerOf2(uint64(1<<30)))
	assert.False(t, isPowerOf2(uint32(0)))
	assert.False(t, isPowerOf2(uint(1536)))
}

func TestAlign(t *testing.T) {
	assert.EqualValues(t, 0, alignDown(511, 512))
	assert.EqualValues(t, 512, alignDown(512, 512))
	assert.EqualValues(t, 512, alignUp(1, 512))
	assert.EqualValues(t, 1024, alignUp(1024, 512))
	assert.EqualValues(t, 0, alignUp(0, 4096))
}

func TestAlignedBuffer(t *testing.T) {
	for _, alignment := range []int{512, 4096} {
		buf := alignedBuffer(1000, alignment)

		require.Len(t, buf, 1000)
		assert.Equal(t, 1000, cap(buf))
		assert.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%uintptr(alignment))
	}
}

func TestAdjustSize(t *testing.T) {
	for _, test := range []struct { //nolint:govet
		name string

		devSectors, size, offset uint64

		expectedSize uint64
		expectedErr  error
	}{
		{
			name:         "whole device",
			devSectors:   2048,
			expectedSize: 2048,
		},
		{
			name:         "whole device past offset",
			devSectors:   2048,
			offset:       48,
			expectedSize: 2000,
		},
		{
			name:         "fits",
			devSectors:   2048,
			size:         1024,
			offset:       1024,
			expectedSize: 1024,
		},
		{
			name:        "too large",
			devSectors:  2048,
			size:        1025,
			offset:      1024,
			expectedErr: ErrDeviceTooSmall,
		},
		{
			name:        "offset past end",
			devSectors:  2048,
			offset:      2048,
			expectedErr: ErrDeviceTooSmall,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			size, offset, err := adjustSize("/dev/test", test.devSectors, test.size, test.offset)
			if test.expectedErr != nil {
				require.ErrorIs(t, err, test.expectedErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedSize, size)
			assert.Equal(t, test.offset, offset)
		})
	}
}
