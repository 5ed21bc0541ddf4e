// Package handlers implements the command logic behind the CLI. Each
// handler loads and validates configuration, assembles the cluster
// engine or shell, and reports results.
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ec2cluster/internal/cluster"
	"ec2cluster/internal/config"
	"ec2cluster/internal/platform/ec2"
	"ec2cluster/internal/shell"
	"ec2cluster/internal/util/naming"
)

// Factory function variables - can be replaced in tests.
var (
	newEC2Client = func(ctx context.Context, region string) (ec2.Client, error) {
		return ec2.NewRealClient(ctx, region)
	}

	newRemoteRunner = func(cfg *config.ClusterConfig, ips *cluster.IPSet, keyPath string) (remoteRunner, error) {
		return buildShell(cfg, ips, keyPath)
	}
)

// remoteRunner is the shell surface the handlers drive. *shell.Shell
// satisfies it.
type remoteRunner interface {
	RunOnMaster(ctx context.Context, cmd string) (shell.Result, error)
	RunOnAll(ctx context.Context, cmd string) ([]shell.Result, error)
	WaitForSSHReady(ctx context.Context) error
	NodeCount() int
}

// loadConfig loads the config file with overrides layered on top.
func loadConfig(path string, overrides map[string]string) (*config.ClusterConfig, error) {
	return config.Load(path, overrides)
}

// buildCluster assembles the lifecycle engine for the config's cluster
// identity.
func buildCluster(ctx context.Context, cfg *config.ClusterConfig) (*cluster.Cluster, error) {
	client, err := newEC2Client(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to build EC2 client: %w", err)
	}
	return clusterFromConfig(client, cfg)
}

// clusterFromConfig derives the cluster name and per-node specs from a
// validated config.
func clusterFromConfig(client ec2.Client, cfg *config.ClusterConfig) (*cluster.Cluster, error) {
	name, err := naming.Cluster(cfg.ClusterTemplateName, cfg.NodeCount, cfg.ClusterID)
	if err != nil {
		return nil, err
	}

	placementGroup := ""
	if cfg.UsePlacementGroup {
		placementGroup = naming.PlacementGroup(name)
	}

	specs := make([]ec2.NodeSpec, cfg.NodeCount)
	for i := range specs {
		nodeName, err := naming.Node(name, i+1, cfg.NodeCount)
		if err != nil {
			return nil, err
		}
		specs[i] = ec2.NodeSpec{
			Name:             nodeName,
			ClusterName:      name,
			VPCID:            cfg.VPCID,
			SubnetID:         cfg.SubnetID,
			AMIID:            cfg.AMIID,
			InstanceType:     cfg.InstanceType,
			KeyName:          cfg.KeyName,
			IAMRole:          cfg.IAMRole,
			SecurityGroupIDs: append([]string(nil), cfg.SecurityGroupIDs...),
			PlacementGroup:   placementGroup,
			EBSType:          cfg.EBSType,
			EBSSizeGB:        int32(cfg.EBSSizeGB),
			EBSIOPS:          int32(cfg.EBSIOPS),
			EBSOptimized:     cfg.EBSOptimized,
			Tags:             cfg.AdditionalTags,
		}
	}

	return cluster.New(client, name, specs,
		cluster.WithCreateTimeout(time.Duration(cfg.ClusterCreateTimeoutSecs)*time.Second))
}

// connectAddrs picks the addresses the shell dials: private IPs when
// the config says the caller runs inside the VPC, public otherwise.
func connectAddrs(cfg *config.ClusterConfig, ips *cluster.IPSet) (master string, workers []string) {
	if cfg.SSHToPrivateIP {
		return ips.MasterPrivateIP, ips.WorkerPrivateIPs
	}
	return ips.MasterPublicIP, ips.WorkerPublicIPs
}

// buildShell constructs a shell over the cluster's nodes using the
// given private key file. With use_bastion the workers are addressed by
// private IP and tunneled through the master.
func buildShell(cfg *config.ClusterConfig, ips *cluster.IPSet, keyPath string) (*shell.Shell, error) {
	key, err := readPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	master, workers := connectAddrs(cfg, ips)
	opts := []shell.Option{
		shell.WithConnectAttempts(12),
		shell.WithRetryDelay(5 * time.Second),
	}
	if cfg.UseBastion {
		workers = ips.WorkerPrivateIPs
		opts = append(opts, shell.WithBastion(master))
	}
	return shell.New(cfg.Username, master, workers, key, opts...)
}

// readPrivateKey loads the key file, expanding a leading ~.
func readPrivateKey(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	key, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}
	return key, nil
}
