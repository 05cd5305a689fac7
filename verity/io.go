// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/block"
)

// ReadSuperblock reads and decodes the superblock at offset on the hash device at path.
//
// flags are the caller's parameter flags: FlagNoHeader is rejected before any I/O,
// the rest are carried over into the returned parameters. HashAreaOffset is set to offset.
func ReadSuperblock(path string, offset uint64, flags Flags, opts ...Option) (*Header, error) {
	options := applyOptions(opts...)

	options.Logger.Debug("reading VERITY header",
		zap.Int("size", SuperblockSize),
		zap.String("device", path),
		zap.Uint64("offset", offset),
		zap.Stringer("format", options.Format),
	)

	if flags&FlagNoHeader != 0 {
		return nil, fmt.Errorf("%w: verity device %s doesn't use on-disk header", ErrInvalidArgument, path)
	}

	buf, err := readRaw(options, path, offset)
	if err != nil {
		return nil, err
	}

	hdr, err := Decode(buf, options.Format)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", path, err)
	}

	hdr.Params.HashAreaOffset = offset
	hdr.Params.Flags = flags

	return hdr, nil
}

// WriteSuperblock encodes params and writes the superblock at offset on the hash device at path.
//
// Validation happens before the device is opened; a write is refused rather than storing a zero UUID.
func WriteSuperblock(path string, offset uint64, uuidString string, params *Params, opts ...Option) error {
	options := applyOptions(opts...)

	options.Logger.Debug("updating VERITY header",
		zap.Int("size", SuperblockSize),
		zap.String("device", path),
		zap.Uint64("offset", offset),
		zap.Stringer("format", options.Format),
	)

	buf, err := Encode(options.Format, uuidString, params)
	if err != nil {
		return err
	}

	return writeRaw(options, path, offset, buf)
}

func checkOffset(offset uint64) error {
	if offset > math.MaxInt64-SuperblockSize {
		return fmt.Errorf("%w: offset %d out of range", ErrInvalidArgument, offset)
	}

	return nil
}

func readRaw(options Options, path string, offset uint64) ([]byte, error) {
	if err := checkOffset(offset); err != nil {
		return nil, err
	}

	dev, err := options.Opener(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open device %s: %w", ErrIO, path, err)
	}

	defer dev.Close() //nolint:errcheck

	if err = dev.TryLock(false); err != nil {
		return nil, lockError(path, err)
	}

	defer dev.Unlock() //nolint:errcheck

	buf := make([]byte, SuperblockSize)

	if err = dev.ReadAtBlockwise(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: error reading header from %s: %w", ErrIO, path, err)
	}

	return buf, nil
}

func writeRaw(options Options, path string, offset uint64, buf []byte) error {
	if err := checkOffset(offset); err != nil {
		return err
	}

	dev, err := options.Opener(path, true)
	if err != nil {
		return fmt.Errorf("%w: cannot open device %s: %w", ErrIO, path, err)
	}

	if err = dev.TryLock(true); err != nil {
		dev.Close() //nolint:errcheck

		return lockError(path, err)
	}

	err = dev.WriteAtBlockwise(buf, int64(offset))
	if err == nil {
		err = dev.Sync()
	}

	err = errors.Join(err, dev.Unlock(), dev.Close())

	if err != nil {
		return fmt.Errorf("%w: error during update of verity header on device %s: %w", ErrIO, path, err)
	}

	return nil
}

func lockError(path string, err error) error {
	if errors.Is(err, block.ErrDeviceBusy) {
		return fmt.Errorf("%w: %s is locked: %w", ErrDeviceBusy, path, err)
	}

	return fmt.Errorf("%w: cannot lock device %s: %w", ErrIO, path, err)
}
