/*
Copyright 2022 The Katalyst Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package app

import (
	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"

	"github.com/kubewharf/nic-plumber/cmd/nic-plumber/app/options"
	"github.com/kubewharf/nic-plumber/pkg/config"
)

// NewPlumberCommand creates the nic-plumber command with its subcommands
func NewPlumberCommand() *cobra.Command {
	opts := options.NewOptions()
	conf := config.NewConfiguration()

	cmd := &cobra.Command{
		Use:   "nic-plumber",
		Short: "Bind unqualified CXI addresses to a NIC close to the calling process",
		Long: `nic-plumber turns an address template such as cxi:// or ofi+cxi:// into an
address of one fabric NIC of this node, e.g. cxi://cxi1. NICs are grouped into
buckets by locality, and the NIC is picked from the bucket of the calling process
either in turns shared by all processes of the same identity or at random.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Complete(cmd.Flags()); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			c, err := opts.Config()
			if err != nil {
				return err
			}
			*conf = *c
			return nil
		},
	}

	fss := &cliflag.NamedFlagSets{}
	opts.AddFlags(fss)
	for _, f := range fss.FlagSets {
		cmd.PersistentFlags().AddFlagSet(f)
	}

	cmd.AddCommand(
		newResolveCommand(conf),
		newBucketsCommand(conf),
	)

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, *fss, cols)
	return cmd
}

func newResolveCommand(conf *config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address>",
		Short: "Print address bound to the selected NIC",
		Example: `  nic-plumber resolve cxi://
  nic-plumber resolve --bucket-policy all --nic-policy random ofi+cxi://`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunResolve(conf, args[0], cmd.OutOrStdout())
		},
	}
}

func newBucketsCommand(conf *config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "Print the NIC buckets of this node as yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunBuckets(conf, cmd.OutOrStdout())
		},
	}
}
