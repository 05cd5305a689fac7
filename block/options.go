// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

// Options for opening a block device.
type Options struct {
	Write     bool
	Direct    bool
	Exclusive bool
}

// Option is a function that sets some option.
type Option func(*Options)

// OpenForWrite opens the device read-write.
func OpenForWrite() Option {
	return func(o *Options) {
		o.Write = true
	}
}

// OpenDirect bypasses the page cache (O_DIRECT).
//
// All reads and writes should go through ReadAtBlockwise and WriteAtBlockwise.
func OpenDirect() Option {
	return func(o *Options) {
		o.Direct = true
	}
}

// OpenExclusive opens the device with O_EXCL.
//
// For block devices the kernel refuses the open with EBUSY if the device is mounted
// or held by another device (e.g. a device-mapper target).
func OpenExclusive() Option {
	return func(o *Options) {
		o.Exclusive = true
	}
}
