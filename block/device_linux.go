// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewFromPath returns a new Device from the specified path.
func NewFromPath(path string, opts ...Option) (*Device, error) {
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	flag := os.O_RDONLY | unix.O_CLOEXEC

	if options.Write {
		flag = os.O_RDWR | unix.O_CLOEXEC
	}

	if options.Direct {
		flag |= unix.O_DIRECT
	}

	if options.Exclusive {
		flag |= unix.O_EXCL
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, path)
		}

		return nil, err
	}

	return &Device{f: f}, nil
}

// GetSize returns blockdevice size in bytes.
//
// For regular files (disk images) the file size is returned.
func (d *Device) GetSize() (uint64, error) {
	var devsize uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno != 0 {
		if errno != unix.ENOTTY {
			return 0, errno
		}

		st, err := d.f.Stat()
		if err != nil {
			return 0, err
		}

		return uint64(st.Size()), nil
	}

	return devsize, nil
}

// GetSectorSize returns blockdevice sector size in bytes.
func (d *Device) GetSectorSize() uint {
	var size uint32

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uintptr(unix.BLKSSZGET), uintptr(unsafe.Pointer(&size))); errno != 0 {
		return DefaultBlockSize
	}

	if !isPowerOf2(size) {
		return DefaultBlockSize
	}

	return uint(size)
}

// TryLock takes an advisory lock on the block device without waiting.
//
// ErrDeviceBusy is returned if a conflicting lock is held.
func (d *Device) TryLock(exclusive bool) error {
	err := d.lock(exclusive, unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return fmt.Errorf("%w: %w", ErrDeviceBusy, err)
	}

	return err
}

// Unlock releases any lock.
func (d *Device) Unlock() error {
	for {
		if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func (d *Device) lock(exclusive bool, flag int) error {
	if exclusive {
		flag |= unix.LOCK_EX
	} else {
		flag |= unix.LOCK_SH
	}

	for {
		if err := unix.Flock(int(d.f.Fd()), flag); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
