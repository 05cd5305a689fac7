// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import "fmt"

// Format selects the superblock wire format.
//
// The two formats are incompatible; a given device uses exactly one of them.
type Format int

// Superblock formats.
const (
	// FormatCurrent is the little-endian version 1 superblock with UUID.
	FormatCurrent Format = iota
	// FormatLegacy is the big-endian superblock with log2 block sizes and no UUID.
	FormatLegacy
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatCurrent:
		return "current"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseFormat converts a format name into Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "current":
		return FormatCurrent, nil
	case "legacy":
		return FormatLegacy, nil
	default:
		return 0, fmt.Errorf("%w: unknown superblock format %q", ErrInvalidArgument, s)
	}
}
