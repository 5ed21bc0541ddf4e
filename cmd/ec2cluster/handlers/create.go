package handlers

import (
	"context"
	"fmt"
	"log"

	"ec2cluster/internal/orchestration"
)

// CreateRequest carries the create command's inputs.
type CreateRequest struct {
	ConfigPath  string
	Overrides   map[string]string
	CleanCreate bool
	Horovod     bool
	SSHKeyPath  string
}

// Create handles the create command: launch every node, wait for the
// running state, and optionally run the Horovod SSH bootstrap.
func Create(ctx context.Context, req CreateRequest) error {
	cfg, err := loadConfig(req.ConfigPath, req.Overrides)
	if err != nil {
		return err
	}
	if req.Horovod && req.SSHKeyPath == "" {
		return fmt.Errorf("--ssh-key-path is required with --horovod")
	}

	c, err := buildCluster(ctx, cfg)
	if err != nil {
		return err
	}

	log.Printf("Creating cluster %s (%d nodes)", c.Name, cfg.NodeCount)
	if err := c.Launch(ctx, req.CleanCreate); err != nil {
		return err
	}

	ips, err := c.IPs(ctx)
	if err != nil {
		return err
	}
	out, err := renderIPs(c.Name, ips)
	if err != nil {
		return err
	}
	fmt.Print(out)

	if !req.Horovod {
		log.Printf("Cluster %s created", c.Name)
		return nil
	}

	runner, err := newRemoteRunner(cfg, ips, req.SSHKeyPath)
	if err != nil {
		return err
	}

	log.Printf("Waiting for SSH on all nodes")
	if err := runner.WaitForSSHReady(ctx); err != nil {
		return err
	}

	if err := orchestration.SetupPasswordlessSSH(ctx, runner, orchestration.HorovodOptions{
		PrivateIPs:   append([]string{ips.MasterPrivateIP}, ips.WorkerPrivateIPs...),
		SlotsPerNode: cfg.SlotsPerNode,
	}); err != nil {
		return fmt.Errorf("horovod setup failed: %w", err)
	}

	log.Printf("Cluster %s created and ready for horovodrun", c.Name)
	return nil
}
