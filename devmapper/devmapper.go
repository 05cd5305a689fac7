// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package devmapper provides a way to call dmsetup.
package devmapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/siderolabs/gen/xslices"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"
)

// Common errors.
var (
	ErrNotFound = errors.New("device-mapper device or target not found")
	ErrBusy     = errors.New("device-mapper device is busy")
)

// Target is a single line of a device-mapper table or status.
type Target struct {
	Type   string
	Params string

	// Start and Length are in 512-byte sectors.
	Start  uint64
	Length uint64
}

// String renders the target as a table line.
func (t Target) String() string {
	return fmt.Sprintf("%d %d %s %s", t.Start, t.Length, t.Type, t.Params)
}

// CreateOptions configure a new device.
type CreateOptions struct {
	UUID     string
	ReadOnly bool
}

// Client runs dmsetup.
type Client struct {
	logger *zap.Logger
	binary string
}

// Option configures the Client.
type Option func(*Client)

// WithBinary sets the dmsetup binary.
func WithBinary(path string) Option {
	return func(c *Client) {
		c.binary = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new dmsetup client.
func New(opts ...Option) *Client {
	c := &Client{
		binary: "dmsetup",
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Create creates and activates a device with the given table.
func (c *Client) Create(ctx context.Context, name string, options CreateOptions, targets ...Target) error {
	if len(targets) == 0 {
		return fmt.Errorf("no targets for device %q", name)
	}

	args := []string{"create", name}

	if options.ReadOnly {
		args = append(args, "--readonly")
	}

	if options.UUID != "" {
		args = append(args, "--uuid", options.UUID)
	}

	table := strings.Join(xslices.Map(targets, Target.String), "\n") + "\n"

	c.logger.Debug("creating device-mapper device", zap.String("name", name), zap.String("table", table))

	_, err := c.runCommand(ctx, args, []byte(table))

	return err
}

// Remove removes the device.
func (c *Client) Remove(ctx context.Context, name string) error {
	_, err := c.runCommand(ctx, []string{"remove", name}, nil)

	return err
}

// Status returns the runtime status of each target of the device.
func (c *Client) Status(ctx context.Context, name string) ([]Target, error) {
	stdout, err := c.runCommand(ctx, []string{"status", name}, nil)
	if err != nil {
		return nil, err
	}

	return parseStatus(stdout)
}

// TargetVersion returns the version of the kernel target type, e.g. "1.9.0".
//
// ErrNotFound is returned if the kernel doesn't provide the target.
func (c *Client) TargetVersion(ctx context.Context, targetType string) (string, error) {
	stdout, err := c.runCommand(ctx, []string{"targets"}, nil)
	if err != nil {
		return "", err
	}

	versions := parseTargets(stdout)

	version, ok := versions[targetType]
	if !ok {
		return "", fmt.Errorf("%w: target %q", ErrNotFound, targetType)
	}

	return version, nil
}

func parseStatus(output string) ([]Target, error) {
	lines := xslices.Filter(strings.Split(output, "\n"), func(line string) bool {
		return strings.TrimSpace(line) != ""
	})

	targets := make([]Target, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed status line %q", line)
		}

		start, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed status line %q: %w", line, err)
		}

		length, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed status line %q: %w", line, err)
		}

		targets = append(targets, Target{
			Start:  start,
			Length: length,
			Type:   fields[2],
			Params: strings.Join(fields[3:], " "),
		})
	}

	return targets, nil
}

func parseTargets(output string) map[string]string {
	versions := map[string]string{}

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		versions[fields[0]] = strings.TrimPrefix(fields[1], "v")
	}

	return versions
}

var (
	notFoundMatcher = regexp.MustCompile("(No such device or address|Device does not exist|No such device)")
	busyMatcher     = regexp.MustCompile("Device or resource busy")
)

// runCommand executes dmsetup with arguments.
func (c *Client) runCommand(ctx context.Context, args []string, stdin []byte) (string, error) {
	stdout, err := cmd.RunContext(cmd.WithStdin(ctx, bytes.NewBuffer(stdin)), c.binary, args...)
	if err != nil {
		var exitError *cmd.ExitError

		if errors.As(err, &exitError) {
			if notFoundMatcher.Match(exitError.Output) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, strings.Join(args, " "))
			}

			if busyMatcher.Match(exitError.Output) {
				return "", fmt.Errorf("%w: %s", ErrBusy, strings.Join(args, " "))
			}
		}

		return "", fmt.Errorf("failed to call dmsetup: %w", err)
	}

	return stdout, nil
}
