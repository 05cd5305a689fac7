// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-dmverity/verity"
)

const testUUID = "3f5a1b2c-9d8e-4f70-a1b2-c3d4e5f60718"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level=error", "--direct-io=false"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func createImage(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hash.img")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Format:            "current",
		LogLevel:          "info",
		DmsetupBinary:     "dmsetup",
		VeritysetupBinary: "veritysetup",
		DirectIO:          true,
	}, cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veritysb.yaml")

	require.NoError(t, os.WriteFile(path, []byte("format: legacy\nlog_level: debug\ndirect_io: false\ndmsetup: /sbin/dmsetup\n"), 0o644))

	t.Setenv("VERITYSB_VERITYSETUP", "/usr/local/sbin/veritysetup")

	cfg, err := loadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.Format)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.DirectIO)
	assert.Equal(t, "/sbin/dmsetup", cfg.DmsetupBinary)
	assert.Equal(t, "/usr/local/sbin/veritysetup", cfg.VeritysetupBinary)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veritysb.yaml")

	require.NoError(t, os.WriteFile(path, []byte("format: v3\n"), 0o644))

	_, err := loadConfig(viper.New(), path)
	require.ErrorIs(t, err, verity.ErrInvalidArgument)

	_, err = loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSuperblockCommands(t *testing.T) {
	img := createImage(t, 1<<20)
	backup := filepath.Join(t.TempDir(), "header.zst")

	out, err := run(t, "format-header", img, "--data-blocks", "256", "--uuid", testUUID, "--salt", "0102", "--hash-offset", "4096")
	require.NoError(t, err)
	assert.Contains(t, out, testUUID)

	out, err = run(t, "dump", img, "--hash-offset", "4096")
	require.NoError(t, err)
	assert.Contains(t, out, testUUID)
	assert.Regexp(t, `Data blocks:\s+256\n`, out)
	assert.Regexp(t, `Salt:\s+0102\n`, out)
	assert.Regexp(t, `Hash offset block:\s+2\n`, out)

	out, err = run(t, "hash-offset", img, "--hash-offset", "4096")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = run(t, "backup", img, backup, "--hash-offset", "4096")
	require.NoError(t, err)

	_, err = run(t, "erase", img, "--hash-offset", "4096")
	require.NoError(t, err)

	_, err = run(t, "dump", img, "--hash-offset", "4096")
	require.ErrorIs(t, err, verity.ErrInvalidHeader)

	_, err = run(t, "restore", img, backup, "--hash-offset", "4096")
	require.NoError(t, err)

	out, err = run(t, "dump", img, "--hash-offset", "4096")
	require.NoError(t, err)
	assert.Contains(t, out, testUUID)

	_, err = run(t, "--format", "legacy", "dump", img, "--hash-offset", "4096")
	require.ErrorIs(t, err, verity.ErrCorruptHeader)
}

func TestFormatHeaderGeneratesUUID(t *testing.T) {
	img := createImage(t, 1<<16)

	_, err := run(t, "--format", "legacy", "format-header", img, "--data-blocks", "16", "--hash-type", "0")
	require.NoError(t, err)

	out, err := run(t, "--format", "legacy", "dump", img)
	require.NoError(t, err)
	assert.Regexp(t, `Hash type:\s+0\n`, out)

	_, err = run(t, "format-header", img, "--data-blocks", "16", "--uuid", "nope")
	require.ErrorIs(t, err, verity.ErrInvalidArgument)
}

func TestHashOffsetNoSuperblock(t *testing.T) {
	out, err := run(t, "hash-offset", "--no-superblock", "--hash-offset", "8192", "--hash-block-size", "4096")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = run(t, "hash-offset")
	require.ErrorIs(t, err, verity.ErrInvalidArgument)
}

func TestUUIDCommand(t *testing.T) {
	out, err := run(t, "uuid")
	require.NoError(t, err)

	assert.Len(t, strings.TrimSpace(out), 36)
}
