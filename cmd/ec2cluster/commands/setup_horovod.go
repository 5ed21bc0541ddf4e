package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// SetupHorovod returns the setup-horovod command.
func SetupHorovod() *cobra.Command {
	var (
		configPath string
		sshKeyPath string
	)

	cmd := &cobra.Command{
		Use:   "setup-horovod",
		Short: "Wire the passwordless SSH mesh Horovod needs on a running cluster",
		Long: `setup-horovod prepares a running cluster for horovodrun: it mints an
SSH key on the master, authorizes it on every node, records host keys,
verifies the master can reach each node non-interactively, and writes
the hostfile with the configured slots per node.

Every step is idempotent; rerunning against a configured cluster is safe.

Example:
  ec2cluster setup-horovod -c cluster.yaml --ssh-key-path ~/.ssh/training.pem`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.SetupHorovod(cmd.Context(), configPath, collectOverrides(cmd), sshKeyPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	addOverrideFlags(cmd)
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key-path", "", "Private key for node SSH access (required)")
	_ = cmd.MarkFlagRequired("ssh-key-path")

	return cmd
}
