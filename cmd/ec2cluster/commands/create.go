package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// Create returns the create command.
func Create() *cobra.Command {
	var (
		configPath  string
		cleanCreate bool
		horovod     bool
		sshKeyPath  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Launch a cluster and wait until every node is running",
		Long: `Create launches all nodes of the cluster named by the config file.

Launches that fail for lack of EC2 capacity are retried until the
configured timeout window expires. The window is measured from the most
recently acquired node, so a cluster that keeps making progress never
times out. On timeout the nodes that did launch are left running.

If nodes with this cluster's names already exist the command refuses;
pass --clean-create to terminate them and start over.

Example:
  ec2cluster create -c cluster.yaml --node_count 4 --horovod`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), handlers.CreateRequest{
				ConfigPath:  configPath,
				Overrides:   collectOverrides(cmd),
				CleanCreate: cleanCreate,
				Horovod:     horovod,
				SSHKeyPath:  sshKeyPath,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	addOverrideFlags(cmd)
	cmd.Flags().BoolVar(&cleanCreate, "clean-create", false, "Terminate any existing nodes with this identity first")
	cmd.Flags().BoolVar(&horovod, "horovod", false, "Run the passwordless SSH setup after launch")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key-path", "", "Private key for node SSH access (required with --horovod)")

	return cmd
}
