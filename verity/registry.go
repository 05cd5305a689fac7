// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"context"
	"errors"
	"fmt"

	"github.com/siderolabs/go-dmverity/block"
)

// BlockRegistry checks devices by opening them exclusively.
type BlockRegistry struct{}

// CheckAndAdjust implements DeviceRegistry.
func (BlockRegistry) CheckAndAdjust(_ context.Context, path string, exclusive bool, size, offset uint64) (uint64, uint64, error) {
	size, offset, err := block.CheckAndAdjust(path, exclusive, size, offset)
	if err != nil {
		if errors.Is(err, block.ErrDeviceBusy) {
			return 0, 0, fmt.Errorf("%w: %s", ErrDeviceBusy, path)
		}

		if errors.Is(err, block.ErrDeviceTooSmall) {
			return 0, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}

		return 0, 0, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return size, offset, nil
}
