// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import "fmt"

// SectorSize is the unit of device-mapper sizes and offsets.
const SectorSize = 512

// CheckAndAdjust verifies that a device at path can hold a mapping of size sectors
// starting at offset sectors.
//
// If exclusive is set, the device is opened with O_EXCL, which fails with ErrDeviceBusy
// when the kernel reports the device as held. A zero size is adjusted to span from offset
// to the end of the device.
//
// The returned size and offset are in 512-byte sectors.
func CheckAndAdjust(path string, exclusive bool, size, offset uint64) (uint64, uint64, error) {
	var opts []Option

	if exclusive {
		opts = append(opts, OpenExclusive())
	}

	dev, err := NewFromPath(path, opts...)
	if err != nil {
		return 0, 0, err
	}

	defer dev.Close() //nolint:errcheck

	devSize, err := dev.GetSize()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get size of %s: %w", path, err)
	}

	return adjustSize(path, devSize/SectorSize, size, offset)
}

func adjustSize(path string, devSectors, size, offset uint64) (uint64, uint64, error) {
	if offset >= devSectors {
		return 0, 0, fmt.Errorf("%w: %s has %d sectors, requested offset %d", ErrDeviceTooSmall, path, devSectors, offset)
	}

	if size == 0 {
		size = devSectors - offset
	}

	if size > devSectors-offset {
		return 0, 0, fmt.Errorf("%w: %s has %d sectors, requested %d at offset %d", ErrDeviceTooSmall, path, devSectors, size, offset)
	}

	return size, offset, nil
}
