// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"fmt"
	"os"

	"github.com/siderolabs/go-dmverity/internal/ioutil"
)

// ReadAtBlockwise reads exactly len(p) bytes at offset off.
//
// The request is widened to whole logical sectors and read into a memory-aligned
// bounce buffer, so it works for devices opened with OpenDirect.
func (d *Device) ReadAtBlockwise(p []byte, off int64) error {
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrUnaligned, off)
	}

	if len(p) == 0 {
		return nil
	}

	start, buf := d.bounce(off, len(p))

	if err := ioutil.ReadFullAt(d.f, buf, start); err != nil {
		return err
	}

	copy(p, buf[off-start:])

	return nil
}

// WriteAtBlockwise writes all of p at offset off.
//
// Partial leading or trailing sectors are read first and merged (read-modify-write).
func (d *Device) WriteAtBlockwise(p []byte, off int64) error {
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrUnaligned, off)
	}

	if len(p) == 0 {
		return nil
	}

	start, buf := d.bounce(off, len(p))

	if start != off || len(buf) != len(p) {
		if err := ioutil.ReadFullAt(d.f, buf, start); err != nil {
			return err
		}
	}

	copy(buf[off-start:], p)

	return ioutil.WriteFullAt(d.f, buf, start)
}

// Sync flushes the device.
func (d *Device) Sync() error {
	return d.f.Sync()
}

// bounce returns the sector-aligned start offset and an aligned buffer covering [off, off+length).
func (d *Device) bounce(off int64, length int) (int64, []byte) {
	sectorSize := int64(d.GetSectorSize())

	start := alignDown(off, sectorSize)
	end := alignUp(off+int64(length), sectorSize)

	return start, alignedBuffer(int(end-start), max(int(sectorSize), os.Getpagesize()))
}
