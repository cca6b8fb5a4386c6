// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cilium/statgraph/cmd/statgraph/simulate"
	"github.com/cilium/statgraph/cmd/statgraph/version"
	"github.com/cilium/statgraph/pkg/logger"
	"github.com/cilium/statgraph/pkg/option"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := New().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func New() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "statgraph",
		Short:        "Context graph and windowed latency statistics",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := option.ReadAndSetFlags(); err != nil {
				return err
			}
			logger.SetupLogging(option.Config.LogOpts, option.Config.Debug)
			return nil
		},
	}
	// by default, it fallbacks to stderr
	rootCmd.SetOut(os.Stdout)

	cobra.OnInitialize(func() {
		viper.SetEnvPrefix(option.EnvPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
	})

	flags := rootCmd.PersistentFlags()
	option.AddFlags(flags)
	viper.BindPFlags(flags)

	rootCmd.AddCommand(
		simulate.New(),
		version.New(),
	)
	return rootCmd
}
