// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devmapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetString(t *testing.T) {
	target := Target{
		Start:  0,
		Length: 2048,
		Type:   "verity",
		Params: "1 /dev/loop0 /dev/loop1 4096 4096 256 1 sha256 abcd -",
	}

	assert.Equal(t, "0 2048 verity 1 /dev/loop0 /dev/loop1 4096 4096 256 1 sha256 abcd -", target.String())
}

func TestParseStatus(t *testing.T) {
	targets, err := parseStatus("0 2097152 verity V\n")
	require.NoError(t, err)

	assert.Equal(t, []Target{
		{
			Start:  0,
			Length: 2097152,
			Type:   "verity",
			Params: "V",
		},
	}, targets)

	targets, err = parseStatus("0 1024 linear \n1024 2048 verity C -\n\n")
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "linear", targets[0].Type)
	assert.Equal(t, "", targets[0].Params)
	assert.Equal(t, "C -", targets[1].Params)
	assert.EqualValues(t, 1024, targets[1].Start)

	_, err = parseStatus("garbage\n")
	require.Error(t, err)

	_, err = parseStatus("x 1 verity V\n")
	require.Error(t, err)
}

func TestParseTargets(t *testing.T) {
	versions := parseTargets(`verity           v1.9.0
crypt            v1.24.0
striped          v1.6.0
linear           v1.4.0
error            v1.6.0
`)

	assert.Equal(t, "1.9.0", versions["verity"])
	assert.Equal(t, "1.24.0", versions["crypt"])
	assert.NotContains(t, versions, "zero")
}
