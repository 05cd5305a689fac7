// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package block

import (
	"errors"
)

var errNotImplemented = errors.New("not implemented")

// NewFromPath returns a new Device from the specified path.
func NewFromPath(string, ...Option) (*Device, error) {
	return nil, errNotImplemented
}

// GetSize returns blockdevice size in bytes.
func (d *Device) GetSize() (uint64, error) {
	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}

	return uint64(st.Size()), nil
}

// GetSectorSize returns blockdevice sector size in bytes.
func (d *Device) GetSectorSize() uint {
	return DefaultBlockSize
}

// TryLock (and return an error if failed).
func (d *Device) TryLock(bool) error {
	return errNotImplemented
}

// Unlock releases any lock.
func (d *Device) Unlock() error {
	return errNotImplemented
}
