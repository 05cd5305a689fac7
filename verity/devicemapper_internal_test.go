// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-dmverity/devmapper"
)

func TestParseHealth(t *testing.T) {
	t.Parallel()

	health, err := parseHealth([]devmapper.Target{{Start: 0, Length: 2048, Type: "verity", Params: "V"}})
	require.NoError(t, err)
	assert.Equal(t, HealthOK, health)

	health, err = parseHealth([]devmapper.Target{{Start: 0, Length: 2048, Type: "verity", Params: "C 1"}})
	require.NoError(t, err)
	assert.Equal(t, HealthCorrupted, health)

	_, err = parseHealth([]devmapper.Target{{Start: 0, Length: 2048, Type: "verity", Params: "E"}})
	require.ErrorIs(t, err, ErrIO)

	_, err = parseHealth([]devmapper.Target{{Start: 0, Length: 2048, Type: "linear"}})
	require.ErrorIs(t, err, ErrIO)

	_, err = parseHealth(nil)
	require.ErrorIs(t, err, ErrIO)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	require.NoError(t, mapError(nil))
	require.ErrorIs(t, mapError(devmapper.ErrBusy), ErrDeviceBusy)

	err := mapError(errors.New("dmsetup: exit status 1"))
	require.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrDeviceBusy)
}
