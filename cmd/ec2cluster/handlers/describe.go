package handlers

import (
	"context"
	"fmt"
)

// Describe handles the describe command.
func Describe(ctx context.Context, configPath string, overrides map[string]string) error {
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

	out, err := renderIPs(c.Name, ips)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
