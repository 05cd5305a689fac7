// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import "errors"

// Error kinds returned by this package.
//
// Errors are wrapped with details; use errors.Is to check the kind.
var (
	// ErrInvalidArgument is returned for incompatible flags or malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIO is returned when opening, reading or writing a device fails.
	ErrIO = errors.New("I/O error")
	// ErrInvalidHeader is returned when the superblock signature doesn't match.
	ErrInvalidHeader = errors.New("not a valid VERITY device")
	// ErrCorruptHeader is returned when superblock fields violate structural bounds.
	ErrCorruptHeader = errors.New("VERITY header corrupted")
	// ErrUnsupportedVersion is returned for an unknown superblock version.
	ErrUnsupportedVersion = errors.New("unsupported VERITY version")
	// ErrUnsupportedHashType is returned for an unknown hash type.
	ErrUnsupportedHashType = errors.New("unsupported VERITY hash type")
	// ErrUnsupportedBlockSize is returned for block sizes which are not a multiple of 512.
	ErrUnsupportedBlockSize = errors.New("unsupported VERITY block size")
	// ErrNotSupported is returned when the kernel lacks the dm-verity target.
	ErrNotSupported = errors.New("kernel doesn't support dm-verity mapping")
	// ErrVerificationFailed is returned by verifiers when the hash tree doesn't match the root hash.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrDeviceBusy is returned when the data device is already held.
	ErrDeviceBusy = errors.New("device is in use")
	// ErrCorruptionDetected is reported as a warning when the mapping is corrupted right after activation.
	ErrCorruptionDetected = errors.New("verity device detected corruption after activation")
)
