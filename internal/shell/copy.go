package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CopyToAll copies a local file to the same remote path on every node.
// The transfer rides the command channel: the file body is streamed to
// a remote cat, so no extra file-transfer subsystem is needed on the
// nodes.
func (s *Shell) CopyToAll(ctx context.Context, localPath, remotePath string) ([]Result, error) {
	body, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	dir := filepath.Dir(remotePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", quote(dir), quote(remotePath))

	return s.runAll(ctx, s.addrs, 1, func(ctx context.Context, nodeIndex int, addr string) (Result, error) {
		// Each node gets its own reader; a shared one would be drained
		// by whichever connection wins the race.
		return s.runOne(ctx, nodeIndex, addr, cmd, bytes.NewReader(body))
	})
}

// CopyFromAll fetches the same remote file from every node. Each node's
// copy lands in localDir/<node-index>/ alongside an ip.txt recording
// which address it came from, so outputs from identically named remote
// files never collide.
func (s *Shell) CopyFromAll(ctx context.Context, remotePath, localDir string) ([]string, error) {
	cmd := "cat " + quote(remotePath)

	results, err := s.runAll(ctx, s.addrs, 1, func(ctx context.Context, nodeIndex int, addr string) (Result, error) {
		return s.runOne(ctx, nodeIndex, addr, cmd, nil)
	})
	if err != nil {
		return nil, err
	}

	base := filepath.Base(remotePath)
	dirs := make([]string, 0, len(results))
	for _, res := range results {
		nodeDir := filepath.Join(localDir, fmt.Sprintf("%d", res.NodeIndex))
		if err := os.MkdirAll(nodeDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", nodeDir, err)
		}
		if err := os.WriteFile(filepath.Join(nodeDir, base), []byte(res.Stdout), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s from %s: %w", base, res.Addr, err)
		}
		if err := os.WriteFile(filepath.Join(nodeDir, "ip.txt"), []byte(res.Addr+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write ip.txt for %s: %w", res.Addr, err)
		}
		dirs = append(dirs, nodeDir)
	}
	return dirs, nil
}

// quote wraps a path for safe interpolation into a remote sh command.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
