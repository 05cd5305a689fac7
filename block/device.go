// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides support for operations on blockdevices.
package block

import (
	"errors"
	"os"
)

// Device wraps blockdevice operations.
type Device struct {
	f *os.File
}

// DefaultBlockSize is the default block size in bytes.
const DefaultBlockSize = 512

// Common errors.
var (
	ErrDeviceBusy     = errors.New("device is in use")
	ErrDeviceTooSmall = errors.New("device is too small")
	ErrUnaligned      = errors.New("unaligned I/O request")
)

// Close releases the underlying file and any lock held on it.
func (d *Device) Close() error {
	return d.f.Close()
}
