// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verity

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
)

// Verifier checks the hash tree on the hash device against the root hash.
type Verifier interface {
	Verify(ctx context.Context, params *Params, dataDevice, hashDevice string, rootHash []byte) error
}

// DeviceRegistry guards devices against double mapping.
//
// CheckAndAdjust returns the usable size and offset in 512-byte sectors.
type DeviceRegistry interface {
	CheckAndAdjust(ctx context.Context, path string, exclusive bool, size, offset uint64) (uint64, uint64, error)
}

// Health is the runtime status of an active mapping.
type Health int

// Health values.
const (
	HealthOK Health = iota
	HealthCorrupted
)

// String implements fmt.Stringer.
func (h Health) String() string {
	switch h {
	case HealthOK:
		return "verified"
	case HealthCorrupted:
		return "corrupted"
	default:
		return fmt.Sprintf("Health(%d)", int(h))
	}
}

// Mapper creates kernel mappings.
type Mapper interface {
	CreateMapping(ctx context.Context, mapping *Mapping) error
	TargetSupported(ctx context.Context) bool
	MappingHealth(ctx context.Context, name string) (Health, error)
}

// State of the activation.
type State int

// Activation states.
const (
	StateIdle State = iota
	StateVerifying
	StateVerified
	StateSizing
	StateCreatingMapping
	StateHealthCheck
	StateActive
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateSizing:
		return "sizing"
	case StateCreatingMapping:
		return "creating mapping"
	case StateHealthCheck:
		return "health check"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ActivationRequest describes a single activation.
type ActivationRequest struct {
	// Name of the mapping, nil to verify only.
	Name *string

	DataDevice string
	HashDevice string
	RootHash   []byte

	Params *Params

	Flags ActivationFlags

	// UUID of the verity header, used to build the device-mapper UUID.
	UUID string
}

// ActivationResult is returned on success.
type ActivationResult struct {
	State State

	// Warning is set when the mapping reports corruption right after activation.
	Warning error
}

// ActivatorOptions configure the Activator.
type ActivatorOptions struct {
	Logger   *zap.Logger
	Verifier Verifier
	Registry DeviceRegistry
	Mapper   Mapper
}

// ActivatorOption is a function that sets some option.
type ActivatorOption func(*ActivatorOptions)

// WithVerifier sets the hash tree verifier.
func WithVerifier(verifier Verifier) ActivatorOption {
	return func(o *ActivatorOptions) {
		o.Verifier = verifier
	}
}

// WithRegistry sets the device registry.
func WithRegistry(registry DeviceRegistry) ActivatorOption {
	return func(o *ActivatorOptions) {
		o.Registry = registry
	}
}

// WithMapper sets the kernel mapper.
func WithMapper(mapper Mapper) ActivatorOption {
	return func(o *ActivatorOptions) {
		o.Mapper = mapper
	}
}

// WithActivationLogger sets the logger.
func WithActivationLogger(logger *zap.Logger) ActivatorOption {
	return func(o *ActivatorOptions) {
		o.Logger = logger
	}
}

// Activator verifies verity devices and exposes them as kernel mappings.
type Activator struct {
	options ActivatorOptions
}

// NewActivator creates a new Activator.
//
// By default devices are checked via the block package and mapped via dmsetup,
// no verifier is configured.
func NewActivator(opts ...ActivatorOption) *Activator {
	o := ActivatorOptions{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.Registry == nil {
		o.Registry = &BlockRegistry{}
	}

	if o.Mapper == nil {
		o.Mapper = NewDeviceMapper(o.Logger)
	}

	return &Activator{options: o}
}

// Activate runs the activation.
//
// With a nil request Name the activation stops after verification.
func (a *Activator) Activate(ctx context.Context, req *ActivationRequest) (*ActivationResult, error) {
	if req == nil || req.Params == nil {
		return nil, fmt.Errorf("%w: missing activation parameters", ErrInvalidArgument)
	}

	if err := req.Flags.Validate(); err != nil {
		return nil, err
	}

	params := req.Params
	state := StateIdle

	log := a.options.Logger.With(
		zap.String("name", pointer.SafeDeref(req.Name)),
		zap.String("data_device", req.DataDevice),
		zap.String("hash_device", req.HashDevice),
	)

	if params.Flags&FlagCheckHash != 0 {
		state = StateVerifying

		if a.options.Verifier == nil {
			return nil, fmt.Errorf("%w: hash check requested without a verifier", ErrInvalidArgument)
		}

		log.Debug("verifying hash tree")

		if err := a.options.Verifier.Verify(ctx, params, req.DataDevice, req.HashDevice, req.RootHash); err != nil {
			return nil, err
		}

		state = StateVerified
	}

	if req.Name == nil {
		log.Debug("check only activation done", zap.Stringer("state", state))

		return &ActivationResult{State: state}, nil
	}

	name := *req.Name

	state = StateSizing

	hi, lo := bits.Mul64(params.DataBlocks, params.DataBlockSize)
	if hi != 0 {
		return nil, fmt.Errorf("%w: data area size overflows", ErrInvalidArgument)
	}

	sectors := lo / SuperblockSize
	hashStart := HashOffsetBlock(params)

	sectors, _, err := a.options.Registry.CheckAndAdjust(ctx, req.DataDevice, true, sectors, 0)
	if err != nil {
		return nil, err
	}

	log.Debug("sized mapping", zap.Uint64("sectors", sectors), zap.Uint64("hash_start", hashStart))

	state = StateCreatingMapping

	mapping := &Mapping{
		Name:     name,
		UUID:     DMUUID(req.UUID, name),
		Sectors:  sectors,
		ReadOnly: true,
		Target: Target{
			DataDevice:     req.DataDevice,
			HashDevice:     req.HashDevice,
			HashName:       params.HashName,
			DataBlockSize:  params.DataBlockSize,
			HashBlockSize:  params.HashBlockSize,
			DataBlocks:     params.DataBlocks,
			HashStartBlock: hashStart,
			RootHash:       req.RootHash,
			Salt:           params.Salt,
			HashType:       params.HashType,
			Flags:          req.Flags,
		},
	}

	if err = a.options.Mapper.CreateMapping(ctx, mapping); err != nil {
		return nil, err
	}

	// the mapping may be created on a kernel which doesn't enforce the target
	if !a.options.Mapper.TargetSupported(ctx) {
		return nil, fmt.Errorf("%w: mapping %q", ErrNotSupported, name)
	}

	state = StateHealthCheck

	health, err := a.options.Mapper.MappingHealth(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &ActivationResult{State: StateActive}

	if health == HealthCorrupted {
		result.Warning = fmt.Errorf("%w: mapping %q", ErrCorruptionDetected, name)

		log.Warn("verity mapping reports corruption", zap.Stringer("state", state))
	}

	log.Debug("mapping activated")

	return result, nil
}
