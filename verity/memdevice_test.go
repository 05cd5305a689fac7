// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/siderolabs/go-dmverity/block"
	"github.com/siderolabs/go-dmverity/verity"
)

// memDevices is a set of in-memory images opened by path.
type memDevices struct {
	mu        sync.Mutex
	images    map[string][]byte
	shared    map[string]int
	exclusive map[string]bool
	opens     int
	open      int
	syncs     int
}

func newMemDevices() *memDevices {
	return &memDevices{
		images:    map[string][]byte{},
		shared:    map[string]int{},
		exclusive: map[string]bool{},
	}
}

func (m *memDevices) add(path string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.images[path] = make([]byte, size)
}

func (m *memDevices) image(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.images[path]
}

func (m *memDevices) opener() verity.Opener {
	return func(path string, write bool) (verity.Device, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		img, ok := m.images[path]
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
		}

		m.opens++
		m.open++

		return &memDevice{devices: m, path: path, image: img, write: write}, nil
	}
}

// openHandles returns the number of handles which were not closed.
func (m *memDevices) openHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.open
}

type memDevice struct {
	devices *memDevices
	path    string
	image   []byte
	lock    int // 0 - none, 1 - shared, 2 - exclusive
	write   bool
	closed  bool
}

func (d *memDevice) ReadAtBlockwise(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(d.image)) {
		return io.ErrUnexpectedEOF
	}

	copy(p, d.image[off:])

	return nil
}

func (d *memDevice) WriteAtBlockwise(p []byte, off int64) error {
	if !d.write {
		return errors.New("device is opened read-only")
	}

	if off < 0 || off+int64(len(p)) > int64(len(d.image)) {
		return io.ErrShortWrite
	}

	copy(d.image[off:], p)

	return nil
}

func (d *memDevice) TryLock(exclusive bool) error {
	d.devices.mu.Lock()
	defer d.devices.mu.Unlock()

	d.unlock()

	switch {
	case d.devices.exclusive[d.path]:
		return fmt.Errorf("%w: exclusive lock held", block.ErrDeviceBusy)
	case exclusive && d.devices.shared[d.path] > 0:
		return fmt.Errorf("%w: shared lock held", block.ErrDeviceBusy)
	case exclusive:
		d.devices.exclusive[d.path] = true
		d.lock = 2
	default:
		d.devices.shared[d.path]++
		d.lock = 1
	}

	return nil
}

func (d *memDevice) Unlock() error {
	d.devices.mu.Lock()
	defer d.devices.mu.Unlock()

	d.unlock()

	return nil
}

func (d *memDevice) unlock() {
	switch d.lock {
	case 1:
		d.devices.shared[d.path]--
	case 2:
		delete(d.devices.exclusive, d.path)
	}

	d.lock = 0
}

func (d *memDevice) Sync() error {
	d.devices.mu.Lock()
	d.devices.syncs++
	d.devices.mu.Unlock()

	return nil
}

func (d *memDevice) Close() error {
	if d.closed {
		return os.ErrClosed
	}

	d.closed = true

	d.devices.mu.Lock()
	d.unlock()
	d.devices.open--
	d.devices.mu.Unlock()

	return nil
}
