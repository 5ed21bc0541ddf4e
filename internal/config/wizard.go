package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// RunWizard collects a minimal working config interactively. Only the
// required fields plus the most commonly tuned options are asked for;
// everything else falls to schema defaults and can be edited in the
// written file.
func RunWizard(ctx context.Context) (*ClusterConfig, error) {
	cfg := &ClusterConfig{
		InstanceType: "m5.large",
		Username:     "ubuntu",
		EBSOptimized: true,
	}

	nodeCount := "2"
	clusterID := "1"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster template name").
				Description("Base name shared by all clusters from this config").
				Placeholder("dl-training").
				Value(&cfg.ClusterTemplateName).
				Validate(validateTemplateName),
			huh.NewInput().
				Title("Node count").
				Description("Total nodes including the master").
				Value(&nodeCount).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Cluster id").
				Description("Distinguishes concurrent clusters from the same template").
				Value(&clusterID).
				Validate(validateNonNegativeInt),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Region").
				Placeholder("us-east-1").
				Value(&cfg.Region).
				Validate(required("region")),
			huh.NewInput().
				Title("VPC id").
				Placeholder("vpc-0123456789abcdef0").
				Value(&cfg.VPCID).
				Validate(required("vpc_id")),
			huh.NewInput().
				Title("Subnet id").
				Placeholder("subnet-0123456789abcdef0").
				Value(&cfg.SubnetID).
				Validate(required("subnet_id")),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("AMI id").
				Placeholder("ami-0123456789abcdef0").
				Value(&cfg.AMIID).
				Validate(required("ami_id")),
			huh.NewInput().
				Title("Instance type").
				Value(&cfg.InstanceType),
			huh.NewInput().
				Title("EC2 key pair name").
				Description("Used for SSH access to the nodes").
				Value(&cfg.KeyName).
				Validate(required("key_name")),
			huh.NewInput().
				Title("SSH username").
				Description("Login user on the AMI").
				Value(&cfg.Username),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Use a placement group?").
				Description("Packs the nodes for low inter-node latency").
				Value(&cfg.UsePlacementGroup),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	cfg.NodeCount, _ = strconv.Atoi(nodeCount)
	cfg.ClusterID, _ = strconv.Atoi(clusterID)
	cfg.ApplyDefaults()
	return cfg, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateTemplateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cluster template name is required")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}
