// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random UUID in canonical text form.
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate UUID: %w", ErrIO, err)
	}

	return id.String(), nil
}
