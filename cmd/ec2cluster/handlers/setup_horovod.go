package handlers

import (
	"context"
	"fmt"
	"log"

	"ec2cluster/internal/orchestration"
)

// SetupHorovod handles the setup-horovod command against a running
// cluster.
func SetupHorovod(ctx context.Context, configPath string, overrides map[string]string, sshKeyPath string) error {
	cfg, err := loadConfig(configPath, overrides)
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

	runner, err := newRemoteRunner(cfg, ips, sshKeyPath)
	if err != nil {
		return err
	}

	if err := runner.WaitForSSHReady(ctx); err != nil {
		return err
	}

	if err := orchestration.SetupPasswordlessSSH(ctx, runner, orchestration.HorovodOptions{
		PrivateIPs:   append([]string{ips.MasterPrivateIP}, ips.WorkerPrivateIPs...),
		SlotsPerNode: cfg.SlotsPerNode,
	}); err != nil {
		return fmt.Errorf("horovod setup failed: %w", err)
	}

	log.Printf("Cluster %s is ready for horovodrun", c.Name)
	return nil
}
