package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// SSHCmd returns the ssh-cmd command.
func SSHCmd() *cobra.Command {
	var (
		configPath string
		sshKeyPath string
		masterOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ssh-cmd <command>",
		Short: "Run a shell command on every node of a running cluster",
		Long: `ssh-cmd connects to all nodes in parallel and runs the given command.
Per-node output is printed with the node index and address; one node
failing does not stop the others.

Example:
  ec2cluster ssh-cmd -c cluster.yaml 'nvidia-smi --list-gpus'
  ec2cluster ssh-cmd -c cluster.yaml --master-only 'tail -n 50 train.log'`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("ssh-cmd takes exactly one command argument; quote multi-word commands")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SSHCmd(cmd.Context(), handlers.SSHCmdRequest{
				ConfigPath: configPath,
				Overrides:  collectOverrides(cmd),
				Command:    args[0],
				SSHKeyPath: sshKeyPath,
				MasterOnly: masterOnly,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	addOverrideFlags(cmd)
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key-path", "", "Private key for node SSH access (required)")
	cmd.Flags().BoolVar(&masterOnly, "master-only", false, "Run on the master node only")
	_ = cmd.MarkFlagRequired("ssh-key-path")

	return cmd
}
