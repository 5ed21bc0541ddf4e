package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ec2cluster/internal/config"
	"ec2cluster/internal/util/keygen"
)

// Init handles the init command: run the config wizard, write the
// result, and optionally mint an SSH key pair for the cluster.
func Init(ctx context.Context, outPath string, force, generateKey bool) error {
	if !isInteractiveTTY() {
		return fmt.Errorf("init is interactive and needs a terminal; write the config file by hand instead (see describe-config)")
	}
	if _, err := os.Stat(outPath); err == nil && !force {
		return fmt.Errorf("%s already exists; pass --force to overwrite", outPath)
	}

	cfg, err := config.RunWizard(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := cfg.WriteFile(outPath); err != nil {
		return err
	}
	log.Printf("Wrote %s", outPath)

	if generateKey {
		keyPath, err := writeKeyPair(outPath, cfg.ClusterTemplateName)
		if err != nil {
			return err
		}
		log.Printf("Wrote %s; import %s.pub to EC2 as key pair %q before creating the cluster",
			keyPath, strings.TrimSuffix(keyPath, ".pem"), cfg.KeyName)
	}
	return nil
}

// writeKeyPair mints an ed25519 key pair next to the config file and
// returns the private key path. The public key goes alongside it in
// authorized_keys format, ready for aws ec2 import-key-pair.
func writeKeyPair(configPath, comment string) (string, error) {
	pair, err := keygen.GenerateED25519(comment)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(configPath, filepath.Ext(configPath))
	keyPath := base + ".pem"
	if _, err := os.Stat(keyPath); err == nil {
		return "", fmt.Errorf("%s already exists; refusing to overwrite a key", keyPath)
	}
	if err := os.WriteFile(keyPath, pair.PrivateKey, 0o600); err != nil {
		return "", fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(base+".pub", pair.PublicKey, 0o644); err != nil {
		return "", fmt.Errorf("failed to write public key: %w", err)
	}
	return keyPath, nil
}
