// Package orchestration prepares a freshly launched cluster for
// distributed training frameworks. Its single concern today is the
// passwordless SSH mesh that horovodrun and mpirun expect: the master
// must be able to open non-interactive SSH sessions to itself and to
// every worker.
package orchestration

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ec2cluster/internal/shell"
)

// Runner is the slice of shell capability the bootstrap needs. It is
// satisfied by *shell.Shell.
type Runner interface {
	RunOnMaster(ctx context.Context, cmd string) (shell.Result, error)
	RunOnAll(ctx context.Context, cmd string) ([]shell.Result, error)
	NodeCount() int
}

const defaultSlotsPerNode = 8

// HorovodOptions tunes the trust bootstrap.
type HorovodOptions struct {
	// PrivateIPs are the in-VPC addresses, master first. The trust mesh
	// and the hostfile are built on these, not on whatever addresses the
	// Runner dials.
	PrivateIPs []string

	// SlotsPerNode is the process slot count written per hostfile line,
	// normally the GPU count. Defaults to 8.
	SlotsPerNode int

	// HostfilePath is where the hostfile lands on the master. Defaults
	// to ~/hostfile.
	HostfilePath string
}

// SetupPasswordlessSSH wires the master-to-all SSH trust mesh and
// writes the Horovod hostfile on the master. Every step is idempotent,
// so rerunning against an already configured cluster is safe.
//
// Nodes fresh out of launch sometimes drop the very first connection
// even after the SSH port opens, so the whole sequence is retried
// exactly once end-to-end when a node is unreachable; any other failure
// aborts immediately.
func SetupPasswordlessSSH(ctx context.Context, runner Runner, opts HorovodOptions) error {
	if len(opts.PrivateIPs) != runner.NodeCount() {
		return fmt.Errorf("got %d private IPs for %d nodes", len(opts.PrivateIPs), runner.NodeCount())
	}
	if opts.SlotsPerNode <= 0 {
		opts.SlotsPerNode = defaultSlotsPerNode
	}
	if opts.HostfilePath == "" {
		opts.HostfilePath = "$HOME/hostfile"
	}

	err := setup(ctx, runner, opts)
	if err != nil && shell.IsUnreachable(err) && ctx.Err() == nil {
		log.Printf("horovod setup: a node was unreachable, rerunning the sequence: %v", err)
		err = setup(ctx, runner, opts)
	}
	return err
}

func setup(ctx context.Context, runner Runner, opts HorovodOptions) error {
	log.Printf("horovod setup: generating master key")
	if err := generateMasterKey(ctx, runner); err != nil {
		return err
	}

	pubKey, err := masterPublicKey(ctx, runner)
	if err != nil {
		return err
	}

	log.Printf("horovod setup: authorizing master key on %d nodes", runner.NodeCount())
	if err := authorizeKeyEverywhere(ctx, runner, pubKey); err != nil {
		return err
	}

	log.Printf("horovod setup: recording host keys on master")
	if err := recordKnownHosts(ctx, runner, opts.PrivateIPs); err != nil {
		return err
	}

	log.Printf("horovod setup: verifying master can reach every node")
	if err := verifyMesh(ctx, runner, opts.PrivateIPs); err != nil {
		return err
	}

	log.Printf("horovod setup: writing hostfile to %s", opts.HostfilePath)
	return writeHostfile(ctx, runner, opts)
}

// generateMasterKey mints the master's identity key unless one exists.
func generateMasterKey(ctx context.Context, runner Runner) error {
	cmd := `mkdir -p $HOME/.ssh && chmod 700 $HOME/.ssh && ` +
		`[ -f $HOME/.ssh/id_rsa ] || ssh-keygen -t rsa -b 2048 -N '' -q -f $HOME/.ssh/id_rsa`
	return onMaster(ctx, runner, cmd)
}

func masterPublicKey(ctx context.Context, runner Runner) (string, error) {
	res, err := runner.RunOnMaster(ctx, "cat $HOME/.ssh/id_rsa.pub")
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("failed to read master public key: %s", strings.TrimSpace(res.Stderr))
	}
	key := strings.TrimSpace(res.Stdout)
	if key == "" {
		return "", fmt.Errorf("master public key is empty")
	}
	return key, nil
}

// authorizeKeyEverywhere appends the master key to each node's
// authorized_keys, skipping nodes that already carry it.
func authorizeKeyEverywhere(ctx context.Context, runner Runner, pubKey string) error {
	cmd := fmt.Sprintf(
		`mkdir -p $HOME/.ssh && chmod 700 $HOME/.ssh && touch $HOME/.ssh/authorized_keys && chmod 600 $HOME/.ssh/authorized_keys && `+
			`grep -qF %s $HOME/.ssh/authorized_keys || echo %s >> $HOME/.ssh/authorized_keys`,
		shellQuote(pubKey), shellQuote(pubKey))
	return onAll(ctx, runner, cmd)
}

// recordKnownHosts scans every cluster address from the master so that
// the first horovodrun never hits an interactive host key prompt.
func recordKnownHosts(ctx context.Context, runner Runner, privateIPs []string) error {
	targets := append([]string{"localhost", "127.0.0.1"}, privateIPs...)
	cmd := fmt.Sprintf(`ssh-keyscan -H %s 2>/dev/null >> $HOME/.ssh/known_hosts`,
		strings.Join(targets, " "))
	return onMaster(ctx, runner, cmd)
}

// verifyMesh opens one non-interactive session from the master to every
// node. BatchMode makes a broken trust chain fail instead of prompting.
func verifyMesh(ctx context.Context, runner Runner, privateIPs []string) error {
	checks := make([]string, len(privateIPs))
	for i, ip := range privateIPs {
		checks[i] = fmt.Sprintf("ssh -o BatchMode=yes -o ConnectTimeout=10 %s true", ip)
	}
	return onMaster(ctx, runner, strings.Join(checks, " && "))
}

// writeHostfile renders the Horovod hostfile on the master. The master
// appears as localhost so training runs survive a master IP change.
func writeHostfile(ctx context.Context, runner Runner, opts HorovodOptions) error {
	var b strings.Builder
	fmt.Fprintf(&b, "localhost slots=%d\n", opts.SlotsPerNode)
	for _, ip := range opts.PrivateIPs[1:] {
		fmt.Fprintf(&b, "%s slots=%d\n", ip, opts.SlotsPerNode)
	}
	cmd := fmt.Sprintf("printf '%%s' %s > %s", shellQuote(b.String()), opts.HostfilePath)
	return onMaster(ctx, runner, cmd)
}

func onMaster(ctx context.Context, runner Runner, cmd string) error {
	res, err := runner.RunOnMaster(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("command exited %d on master: %s", res.ExitStatus, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func onAll(ctx context.Context, runner Runner, cmd string) error {
	_, err := runner.RunOnAll(ctx, cmd)
	return err
}

// shellQuote single-quotes a string for sh, escaping embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
