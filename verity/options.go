// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/block"
)

// Device is a block I/O provider for a single read or write burst.
//
// TryLock takes an advisory lock without waiting and fails with block.ErrDeviceBusy
// if a conflicting lock is held.
type Device interface {
	ReadAtBlockwise(p []byte, off int64) error
	WriteAtBlockwise(p []byte, off int64) error
	TryLock(exclusive bool) error
	Unlock() error
	Sync() error
	Close() error
}

// Opener opens the device at path, read-write if write is set.
type Opener func(path string, write bool) (Device, error)

// BlockOpener opens devices exclusively via the block package.
//
// With direct set the page cache is bypassed (O_DIRECT).
func BlockOpener(direct bool) Opener {
	return func(path string, write bool) (Device, error) {
		opts := []block.Option{block.OpenExclusive()}

		if direct {
			opts = append(opts, block.OpenDirect())
		}

		if write {
			opts = append(opts, block.OpenForWrite())
		}

		dev, err := block.NewFromPath(path, opts...)
		if err != nil {
			return nil, err
		}

		return dev, nil
	}
}

// Options configure superblock operations.
type Options struct {
	Logger *zap.Logger
	Opener Opener
	Format Format
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithOpener replaces the device opener.
func WithOpener(opener Opener) Option {
	return func(o *Options) {
		o.Opener = opener
	}
}

// WithFormat selects the superblock format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger: zap.NewNop(),
		Opener: BlockOpener(true),
		Format: FormatCurrent,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
