// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/devmapper"
	"github.com/siderolabs/go-dmverity/verity"
	"github.com/siderolabs/go-dmverity/veritysetup"
)

// app is the state shared by all commands.
type app struct {
	v      *viper.Viper
	cfg    *Config
	logger *zap.Logger
	format verity.Format
}

func newRootCmd() *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: zap.NewNop(),
	}

	var configFile string

	root := &cobra.Command{
		Use:   "veritysb",
		Short: "Manage dm-verity superblocks and mappings",
		Long: `veritysb reads, writes, backs up and erases dm-verity superblocks on hash
devices, and activates verified read-only device-mapper mappings.

Hash tree verification and mapping are delegated to veritysetup and dmsetup.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init(configFile)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.logger.Sync() //nolint:errcheck
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default is ./veritysb.yaml, $HOME/.config/veritysb or /etc/veritysb)")
	flags.String("format", verity.FormatCurrent.String(), "superblock format (current, legacy)")
	flags.String("log-level", "info", "log level")
	flags.Bool("direct-io", true, "bypass the page cache")
	flags.Bool("development", false, "use human friendly logs")
	flags.String("dmsetup", "dmsetup", "dmsetup binary")
	flags.String("veritysetup", "veritysetup", "veritysetup binary")

	for key, flag := range map[string]string{
		"format":      "format",
		"log_level":   "log-level",
		"direct_io":   "direct-io",
		"development": "development",
		"dmsetup":     "dmsetup",
		"veritysetup": "veritysetup",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(flag)))
	}

	root.AddCommand(
		a.dumpCmd(),
		a.formatHeaderCmd(),
		a.uuidCmd(),
		a.hashOffsetCmd(),
		a.verifyCmd(),
		a.openCmd(),
		a.closeCmd(),
		a.statusCmd(),
		a.backupCmd(),
		a.restoreCmd(),
		a.eraseCmd(),
	)

	return root
}

func (a *app) init(configFile string) error {
	cfg, err := loadConfig(a.v, configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	a.format, err = verity.ParseFormat(cfg.Format)

	return err
}

func (a *app) superblockOptions() []verity.Option {
	return []verity.Option{
		verity.WithFormat(a.format),
		verity.WithLogger(a.logger),
		verity.WithOpener(verity.BlockOpener(a.cfg.DirectIO)),
	}
}

func (a *app) deviceMapper() *verity.DeviceMapper {
	return verity.NewDeviceMapper(a.logger, devmapper.WithBinary(a.cfg.DmsetupBinary))
}

func (a *app) activator() *verity.Activator {
	return verity.NewActivator(
		verity.WithVerifier(veritysetup.New(
			veritysetup.WithBinary(a.cfg.VeritysetupBinary),
			veritysetup.WithLogger(a.logger),
		)),
		verity.WithMapper(a.deviceMapper()),
		verity.WithActivationLogger(a.logger),
	)
}
