// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/internal/veritystructs"
)

// BackupHeader writes a zstd-compressed copy of the superblock at offset to w.
//
// The superblock is decoded first, so only valid headers are backed up.
func BackupHeader(w io.Writer, path string, offset uint64, opts ...Option) (*Header, error) {
	options := applyOptions(opts...)

	options.Logger.Debug("backing up VERITY header", zap.String("device", path), zap.Uint64("offset", offset))

	buf, err := readRaw(options, path, offset)
	if err != nil {
		return nil, err
	}

	hdr, err := Decode(buf, options.Format)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", path, err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}

	if _, err = zw.Write(buf); err != nil {
		zw.Close() //nolint:errcheck

		return nil, fmt.Errorf("%w: error writing header backup: %w", ErrIO, err)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: error writing header backup: %w", ErrIO, err)
	}

	hdr.Params.HashAreaOffset = offset

	return hdr, nil
}

// RestoreHeader writes the superblock from a backup created by BackupHeader at offset.
//
// The backup is decoded before the device is opened.
func RestoreHeader(r io.Reader, path string, offset uint64, opts ...Option) (*Header, error) {
	options := applyOptions(opts...)

	options.Logger.Debug("restoring VERITY header", zap.String("device", path), zap.Uint64("offset", offset))

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening header backup: %w", ErrIO, err)
	}

	defer zr.Close()

	buf, err := io.ReadAll(io.LimitReader(zr, SuperblockSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: error reading header backup: %w", ErrIO, err)
	}

	if len(buf) != SuperblockSize {
		return nil, fmt.Errorf("%w: header backup size %d, expected %d", ErrInvalidHeader, len(buf), SuperblockSize)
	}

	hdr, err := Decode(buf, options.Format)
	if err != nil {
		return nil, fmt.Errorf("header backup: %w", err)
	}

	if err = writeRaw(options, path, offset, buf); err != nil {
		return nil, err
	}

	hdr.Params.HashAreaOffset = offset

	return hdr, nil
}

// EraseSuperblock zeroes the superblock at offset.
//
// The device must carry the superblock signature, other fields are not checked.
func EraseSuperblock(path string, offset uint64, opts ...Option) error {
	options := applyOptions(opts...)

	options.Logger.Debug("erasing VERITY header", zap.String("device", path), zap.Uint64("offset", offset))

	buf, err := readRaw(options, path, offset)
	if err != nil {
		return err
	}

	if !veritystructs.SignatureMagic.Matches(buf) {
		return fmt.Errorf("%w: device %s", ErrInvalidHeader, path)
	}

	return writeRaw(options, path, offset, make([]byte, SuperblockSize))
}
