package handlers

import (
	"context"
	"log"
)

// Delete handles the delete command.
func Delete(ctx context.Context, configPath string, overrides map[string]string) error {
	cfg, err := loadConfig(configPath, overrides)
	if err != nil {
		return err
	}

	c, err := buildCluster(ctx, cfg)
	if err != nil {
		return err
	}

	log.Printf("Deleting cluster %s", c.Name)
	if err := c.Terminate(ctx); err != nil {
		return err
	}

	log.Printf("Cluster %s deleted", c.Name)
	return nil
}
