package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// Delete returns the delete command.
func Delete() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Terminate a cluster and clean up its resources",
		Long: `Delete terminates every node of the cluster named by the config file,
waits for full termination, and removes the cluster security group and
placement group.

Node Name tags are deleted as soon as termination starts, so a new
cluster with the same identity can launch while the old instances are
still shutting down.

Example:
  ec2cluster delete -c cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Delete(cmd.Context(), configPath, collectOverrides(cmd))
		},
	}

	addConfigFlag(cmd, &configPath)
	addOverrideFlags(cmd)

	return cmd
}
