// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated
// to handler functions in the handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ec2cluster/internal/config"
)

// Root returns the root command for the ec2cluster CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ec2cluster",
		Short: "Launch and manage EC2 clusters for distributed training",
	}

	cmd.AddCommand(Init())
	cmd.AddCommand(Create())
	cmd.AddCommand(Delete())
	cmd.AddCommand(Describe())
	cmd.AddCommand(DescribeConfig())
	cmd.AddCommand(SSHCmd())
	cmd.AddCommand(SetupHorovod())
	cmd.AddCommand(Version())

	return cmd
}

// addConfigFlag binds the required -c/--config flag.
func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "Path to cluster configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
}

// addOverrideFlags registers one flag per config schema field so any
// file value can be overridden from the command line. Overriding
// cluster_template_name, node_count, or cluster_id addresses a
// different cluster.
func addOverrideFlags(cmd *cobra.Command) {
	for _, f := range config.Schema {
		usage := f.Description
		if f.Default != "" {
			usage = fmt.Sprintf("%s (default %s)", usage, f.Default)
		}
		cmd.Flags().String(f.Name, "", usage)
	}
}

// collectOverrides gathers the schema flags the user actually set.
func collectOverrides(cmd *cobra.Command) map[string]string {
	overrides := map[string]string{}
	for _, f := range config.Schema {
		if cmd.Flags().Changed(f.Name) {
			value, _ := cmd.Flags().GetString(f.Name)
			overrides[f.Name] = value
		}
	}
	return overrides
}
