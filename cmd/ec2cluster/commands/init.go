package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// Init returns the init command.
func Init() *cobra.Command {
	var (
		outPath     string
		force       bool
		generateKey bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write a new cluster config file",
		Long: `Init walks through the required cluster settings and writes a config
file. Fields not asked for fall to their schema defaults and can be
edited in the written file; run describe-config for the full list.

With --generate-ssh-key an ed25519 key pair is written next to the
config file; import the .pub to EC2 under the configured key_name.

Example:
  ec2cluster init -o cluster.yaml --generate-ssh-key`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outPath, force, generateKey)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "cluster.yaml", "Where to write the config file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&generateKey, "generate-ssh-key", false, "Also write an SSH key pair next to the config file")

	return cmd
}
