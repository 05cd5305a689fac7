// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/siderolabs/go-pointer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/verity"
)

func printHeader(w io.Writer, device string, uuid string, params *verity.Params) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	salt := "-"
	if len(params.Salt) > 0 {
		salt = hex.EncodeToString(params.Salt)
	}

	fmt.Fprintf(tw, "VERITY header information for %s\n", device)
	fmt.Fprintf(tw, "UUID:\t%s\n", uuid)
	fmt.Fprintf(tw, "Hash type:\t%d\n", params.HashType)
	fmt.Fprintf(tw, "Data blocks:\t%d\n", params.DataBlocks)
	fmt.Fprintf(tw, "Data block size:\t%d\n", params.DataBlockSize)
	fmt.Fprintf(tw, "Hash block size:\t%d\n", params.HashBlockSize)
	fmt.Fprintf(tw, "Hash algorithm:\t%s\n", params.HashName)
	fmt.Fprintf(tw, "Salt:\t%s\n", salt)
	fmt.Fprintf(tw, "Hash offset block:\t%d\n", verity.HashOffsetBlock(params))

	return tw.Flush()
}

func (a *app) dumpCmd() *cobra.Command {
	var offset uint64

	cmd := &cobra.Command{
		Use:   "dump <hash_device>",
		Short: "Print the superblock of the hash device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdr, err := verity.ReadSuperblock(args[0], offset, 0, a.superblockOptions()...)
			if err != nil {
				return err
			}

			return printHeader(cmd.OutOrStdout(), args[0], hdr.UUID, &hdr.Params)
		},
	}

	cmd.Flags().Uint64Var(&offset, "hash-offset", 0, "superblock offset on the hash device in bytes")

	return cmd
}

func (a *app) formatHeaderCmd() *cobra.Command {
	var (
		pf   paramsFlags
		uuid string
	)

	cmd := &cobra.Command{
		Use:   "format-header <hash_device>",
		Short: "Write a new superblock to the hash device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := pf.params()
			if err != nil {
				return err
			}

			if uuid == "" {
				if uuid, err = verity.GenerateUUID(); err != nil {
					return err
				}
			}

			if err = verity.WriteSuperblock(args[0], pf.offset, uuid, params, a.superblockOptions()...); err != nil {
				return err
			}

			a.logger.Info("superblock written", zap.String("device", args[0]), zap.String("uuid", uuid))

			return printHeader(cmd.OutOrStdout(), args[0], uuid, params)
		},
	}

	pf.register(cmd, false)
	cmd.Flags().StringVar(&uuid, "uuid", "", "UUID of the hash device (generated if empty)")
	cobra.CheckErr(cmd.MarkFlagRequired("data-blocks"))

	return cmd
}

func (a *app) uuidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uuid",
		Short: "Generate a random UUID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := verity.GenerateUUID()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)

			return nil
		},
	}
}

func (a *app) hashOffsetCmd() *cobra.Command {
	var pf paramsFlags

	cmd := &cobra.Command{
		Use:   "hash-offset [<hash_device>]",
		Short: "Print the hash tree start on the hash device in hash blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var device string

			if len(args) > 0 {
				device = args[0]
			}

			if device == "" && !pf.noSuperblock {
				return fmt.Errorf("%w: hash device required unless --no-superblock is set", verity.ErrInvalidArgument)
			}

			params, _, err := pf.resolve(a, device)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verity.HashOffsetBlock(params))

			return nil
		},
	}

	pf.register(cmd, true)

	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var pf paramsFlags

	cmd := &cobra.Command{
		Use:   "verify <data_device> <hash_device> <root_hash>",
		Short: "Verify the data device against the root hash",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootHash, err := decodeRootHash(args[2])
			if err != nil {
				return err
			}

			params, uuid, err := pf.resolve(a, args[1])
			if err != nil {
				return err
			}

			params.Flags |= verity.FlagCheckHash

			result, err := a.activator().Activate(cmd.Context(), &verity.ActivationRequest{
				DataDevice: args[0],
				HashDevice: args[1],
				RootHash:   rootHash,
				Params:     params,
				UUID:       uuid,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.State)

			return nil
		},
	}

	pf.register(cmd, true)

	return cmd
}

func (a *app) openCmd() *cobra.Command {
	var (
		pf                  paramsFlags
		checkHash           bool
		ignoreCorruption    bool
		restartOnCorruption bool
		ignoreZeroBlocks    bool
		checkAtMostOnce     bool
	)

	cmd := &cobra.Command{
		Use:   "open <data_device> <name> <hash_device> <root_hash>",
		Short: "Create a read-only verity mapping",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootHash, err := decodeRootHash(args[3])
			if err != nil {
				return err
			}

			params, uuid, err := pf.resolve(a, args[2])
			if err != nil {
				return err
			}

			if checkHash {
				params.Flags |= verity.FlagCheckHash
			}

			var flags verity.ActivationFlags

			for _, opt := range []struct {
				set  bool
				flag verity.ActivationFlags
			}{
				{ignoreCorruption, verity.ActivateIgnoreCorruption},
				{restartOnCorruption, verity.ActivateRestartOnCorruption},
				{ignoreZeroBlocks, verity.ActivateIgnoreZeroBlocks},
				{checkAtMostOnce, verity.ActivateCheckAtMostOnce},
			} {
				if opt.set {
					flags |= opt.flag
				}
			}

			result, err := a.activator().Activate(cmd.Context(), &verity.ActivationRequest{
				Name:       pointer.To(args[1]),
				DataDevice: args[0],
				HashDevice: args[2],
				RootHash:   rootHash,
				Params:     params,
				Flags:      flags,
				UUID:       uuid,
			})
			if err != nil {
				return err
			}

			if result.Warning != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", result.Warning)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.State)

			return nil
		},
	}

	pf.register(cmd, true)

	flags := cmd.Flags()
	flags.BoolVar(&checkHash, "verify", false, "verify the hash tree before creating the mapping")
	flags.BoolVar(&ignoreCorruption, "ignore-corruption", false, "log corrupted blocks instead of failing I/O")
	flags.BoolVar(&restartOnCorruption, "restart-on-corruption", false, "restart the system on corruption")
	flags.BoolVar(&ignoreZeroBlocks, "ignore-zero-blocks", false, "do not verify blocks expected to contain zeroes")
	flags.BoolVar(&checkAtMostOnce, "check-at-most-once", false, "verify data blocks only the first time they are read")

	return cmd
}

func (a *app) closeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <name>",
		Short: "Remove a verity mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.deviceMapper().RemoveMapping(cmd.Context(), args[0])
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Print the runtime status of a verity mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := a.deviceMapper().MappingHealth(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), health)

			return nil
		},
	}
}

func (a *app) backupCmd() *cobra.Command {
	var offset uint64

	cmd := &cobra.Command{
		Use:   "backup <hash_device> <file>",
		Short: "Save a compressed copy of the superblock",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.OpenFile(args[1], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}

			_, err = verity.BackupHeader(f, args[0], offset, a.superblockOptions()...)
			if err == nil {
				err = f.Close()
			} else {
				f.Close() //nolint:errcheck
			}

			if err != nil {
				os.Remove(args[1]) //nolint:errcheck

				return err
			}

			a.logger.Info("superblock saved", zap.String("device", args[0]), zap.String("file", args[1]))

			return nil
		},
	}

	cmd.Flags().Uint64Var(&offset, "hash-offset", 0, "superblock offset on the hash device in bytes")

	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	var offset uint64

	cmd := &cobra.Command{
		Use:   "restore <hash_device> <file>",
		Short: "Write the superblock from a backup file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}

			defer f.Close() //nolint:errcheck

			hdr, err := verity.RestoreHeader(f, args[0], offset, a.superblockOptions()...)
			if err != nil {
				return err
			}

			a.logger.Info("superblock restored", zap.String("device", args[0]), zap.String("uuid", hdr.UUID))

			return nil
		},
	}

	cmd.Flags().Uint64Var(&offset, "hash-offset", 0, "superblock offset on the hash device in bytes")

	return cmd
}

func (a *app) eraseCmd() *cobra.Command {
	var offset uint64

	cmd := &cobra.Command{
		Use:   "erase <hash_device>",
		Short: "Zero the superblock of the hash device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return verity.EraseSuperblock(args[0], offset, a.superblockOptions()...)
		},
	}

	cmd.Flags().Uint64Var(&offset, "hash-offset", 0, "superblock offset on the hash device in bytes")

	return cmd
}
