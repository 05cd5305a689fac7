// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package veritysetup provides a hash tree verifier which calls veritysetup.
package veritysetup

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/verity"
)

// Verifier implements verity.Verifier.
type Verifier struct {
	logger *zap.Logger
	binary string
}

// Option configures the Verifier.
type Option func(v *Verifier)

// WithBinary sets the veritysetup binary.
func WithBinary(path string) Option {
	return func(v *Verifier) {
		v.binary = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a new Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		binary: "veritysetup",
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify implements verity.Verifier.
func (v *Verifier) Verify(ctx context.Context, params *verity.Params, dataDevice, hashDevice string, rootHash []byte) error {
	args := buildArgs(params, dataDevice, hashDevice, rootHash)

	v.logger.Debug("verifying hash tree", zap.Strings("args", args))

	_, err := v.runCommand(ctx, args)

	return err
}

// buildArgs passes every parameter explicitly, so veritysetup never parses the superblock
// and any superblock format can be verified.
func buildArgs(params *verity.Params, dataDevice, hashDevice string, rootHash []byte) []string {
	salt := "-"
	if len(params.Salt) > 0 {
		salt = hex.EncodeToString(params.Salt)
	}

	args := []string{
		"verify", dataDevice, hashDevice, hex.EncodeToString(rootHash),
		"--no-superblock",
		"--format=" + strconv.FormatUint(uint64(params.HashType), 10),
		"--hash=" + params.HashName,
		"--data-block-size=" + strconv.FormatUint(params.DataBlockSize, 10),
		"--hash-block-size=" + strconv.FormatUint(params.HashBlockSize, 10),
		"--data-blocks=" + strconv.FormatUint(params.DataBlocks, 10),
		"--salt=" + salt,
	}

	if hashOffset := verity.HashOffsetBlock(params) * params.HashBlockSize; hashOffset != 0 {
		args = append(args, "--hash-offset="+strconv.FormatUint(hashOffset, 10))
	}

	return args
}

// runCommand executes veritysetup with arguments.
func (v *Verifier) runCommand(ctx context.Context, args []string) (string, error) {
	stdout, err := cmd.RunContext(cmd.WithStdin(ctx, bytes.NewBuffer(nil)), v.binary, args...)
	if err != nil {
		return "", mapError(err)
	}

	return stdout, nil
}

func mapError(err error) error {
	var exitError *cmd.ExitError

	if errors.As(err, &exitError) {
		switch exitError.ExitCode {
		case 2:
			return fmt.Errorf("%w: %s", verity.ErrVerificationFailed, bytes.TrimSpace(exitError.Output))
		case 5:
			return fmt.Errorf("%w: %s", verity.ErrDeviceBusy, bytes.TrimSpace(exitError.Output))
		}
	}

	return fmt.Errorf("failed to call veritysetup: %w", err)
}
