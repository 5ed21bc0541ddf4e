package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2cluster/internal/config"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "ec2cluster", cmd.Use)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"init",
		"create",
		"delete",
		"describe",
		"describe-config",
		"ssh-cmd",
		"setup-horovod",
		"version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), len(expectedSubcommands))
}

func TestOverrideFlagsCoverSchema(t *testing.T) {
	for _, name := range []string{"create", "delete", "describe", "ssh-cmd", "setup-horovod"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, name)
			for _, f := range config.Schema {
				assert.NotNil(t, cmd.Flags().Lookup(f.Name), "missing override flag for %s", f.Name)
			}
		})
	}
}

func TestCollectOverridesOnlyChangedFlags(t *testing.T) {
	cmd := Create()
	require.NoError(t, cmd.Flags().Set("node_count", "5"))
	require.NoError(t, cmd.Flags().Set("instance_type", "p4d.24xlarge"))

	overrides := collectOverrides(cmd)
	assert.Equal(t, map[string]string{
		"node_count":    "5",
		"instance_type": "p4d.24xlarge",
	}, overrides)
}

func TestCreateFlags(t *testing.T) {
	cmd := Create()
	assert.NotNil(t, cmd.Flags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("clean-create"))
	assert.NotNil(t, cmd.Flags().Lookup("horovod"))
	assert.NotNil(t, cmd.Flags().Lookup("ssh-key-path"))
}

func TestInitFlags(t *testing.T) {
	cmd := Init()
	assert.NotNil(t, cmd.Flags().Lookup("out"))
	assert.NotNil(t, cmd.Flags().Lookup("force"))
	assert.NotNil(t, cmd.Flags().Lookup("generate-ssh-key"))
}

func TestSSHCmdArgs(t *testing.T) {
	cmd := SSHCmd()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"ls", "-la"}))
	assert.NoError(t, cmd.Args(cmd, []string{"ls -la"}))
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, sub := range Root().Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}
