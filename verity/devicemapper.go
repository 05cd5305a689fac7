// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/devmapper"
)

// TargetType is the device-mapper target type of verity mappings.
const TargetType = "verity"

// DeviceMapper implements Mapper over dmsetup.
type DeviceMapper struct {
	client *devmapper.Client
	logger *zap.Logger
}

// NewDeviceMapper creates a Mapper backed by dmsetup.
func NewDeviceMapper(logger *zap.Logger, opts ...devmapper.Option) *DeviceMapper {
	opts = append([]devmapper.Option{devmapper.WithLogger(logger)}, opts...)

	return &DeviceMapper{
		client: devmapper.New(opts...),
		logger: logger,
	}
}

// CreateMapping implements Mapper.
func (m *DeviceMapper) CreateMapping(ctx context.Context, mapping *Mapping) error {
	err := m.client.Create(ctx, mapping.Name,
		devmapper.CreateOptions{
			UUID:     mapping.UUID,
			ReadOnly: mapping.ReadOnly,
		},
		devmapper.Target{
			Start:  0,
			Length: mapping.Sectors,
			Type:   TargetType,
			Params: mapping.Target.Table(),
		},
	)

	return mapError(err)
}

// TargetSupported implements Mapper.
func (m *DeviceMapper) TargetSupported(ctx context.Context) bool {
	version, err := m.client.TargetVersion(ctx, TargetType)
	if err != nil {
		m.logger.Debug("verity target is not available", zap.Error(err))

		return false
	}

	m.logger.Debug("verity target found", zap.String("version", version))

	return true
}

// MappingHealth implements Mapper.
func (m *DeviceMapper) MappingHealth(ctx context.Context, name string) (Health, error) {
	targets, err := m.client.Status(ctx, name)
	if err != nil {
		return HealthOK, mapError(err)
	}

	return parseHealth(targets)
}

// RemoveMapping removes the mapping.
func (m *DeviceMapper) RemoveMapping(ctx context.Context, name string) error {
	return mapError(m.client.Remove(ctx, name))
}

// parseHealth reads the verity status: "V" for verified, "C" for corrupted.
func parseHealth(targets []devmapper.Target) (Health, error) {
	if len(targets) != 1 || targets[0].Type != TargetType {
		return HealthOK, fmt.Errorf("%w: unexpected mapping status %v", ErrIO, targets)
	}

	status, _, _ := strings.Cut(targets[0].Params, " ")

	switch status {
	case "V":
		return HealthOK, nil
	case "C":
		return HealthCorrupted, nil
	default:
		return HealthOK, fmt.Errorf("%w: unknown verity status %q", ErrIO, status)
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, devmapper.ErrBusy):
		return fmt.Errorf("%w: %w", ErrDeviceBusy, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
