package commands

import (
	"github.com/spf13/cobra"

	"ec2cluster/cmd/ec2cluster/handlers"
)

// DescribeConfig returns the describe-config command.
func DescribeConfig() *cobra.Command {
	return &cobra.Command{
		Use:   "describe-config",
		Short: "List every config field with its type, default, and description",
		RunE: func(*cobra.Command, []string) error {
			return handlers.DescribeConfig()
		},
	}
}
