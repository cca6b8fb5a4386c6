// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package version

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cilium/statgraph/pkg/option"
	"github.com/cilium/statgraph/pkg/version"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.ReadBuildInfo()
			if option.Config.Output == option.OutputYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(struct {
					Name    string             `yaml:"name"`
					Version string             `yaml:"version"`
					Build   *version.BuildInfo `yaml:"build"`
				}{version.Name, version.Version, info})
			}
			info.Print(cmd.OutOrStdout())
			return nil
		},
	}
}
