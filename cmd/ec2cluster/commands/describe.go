package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// Describe returns the describe command.
func Describe() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show the addresses of a running cluster",
		Long: `Describe resolves the cluster's node addresses: the master's public
and private IPs and every worker's, in node order.

Output is a styled table on a terminal and plain YAML otherwise, so it
can be piped into scripts.

Example:
  ec2cluster describe -c cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Describe(cmd.Context(), configPath, collectOverrides(cmd))
		},
	}

	addConfigFlag(cmd, &configPath)
	addOverrideFlags(cmd)

	return cmd
}
