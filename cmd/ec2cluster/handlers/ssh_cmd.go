package handlers

import (
	"context"
	"fmt"

	"ec2cluster/internal/shell"
)

// SSHCmdRequest carries the ssh-cmd command's inputs.
type SSHCmdRequest struct {
	ConfigPath string
	Overrides  map[string]string
	Command    string
	SSHKeyPath string
	MasterOnly bool
}

// SSHCmd handles the ssh-cmd command: run one command on the master or
// on every node, and print per-node output.
func SSHCmd(ctx context.Context, req SSHCmdRequest) error {
	cfg, err := loadConfig(req.ConfigPath, req.Overrides)
	if err != nil {
		return err
	}

	c, err := buildCluster(ctx, cfg)
	if err != nil {
		return err
	}
	ips, err := c.IPs(ctx)
	if err != nil {
		return err
	}

	runner, err := newRemoteRunner(cfg, ips, req.SSHKeyPath)
	if err != nil {
		return err
	}

	var results []shell.Result
	var runErr error
	if req.MasterOnly {
		var res shell.Result
		res, runErr = runner.RunOnMaster(ctx, req.Command)
		results = []shell.Result{res}
	} else {
		results, runErr = runner.RunOnAll(ctx, req.Command)
	}

	fmt.Print(renderResults(results))
	if runErr != nil {
		return fmt.Errorf("command failed: %w", runErr)
	}
	return nil
}
