// Package shell executes commands on every node of a cluster over SSH.
//
// A Shell is bound to one address list (master first, then workers in
// node-index order) and one private key. Connections are opened per
// call and never pooled; nodes are contacted in parallel and one node's
// failure never interrupts the others. Worker connections can be
// tunneled through a bastion host (usually the master) when the workers
// have no route of their own.
//
// Host key verification is disabled by default. The nodes are ephemeral
// and their host keys are minted at boot, so there is nothing to pin
// against; pass WithHostKeyCallback to override.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"ec2cluster/internal/util/async"
	"ec2cluster/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxAttempts = 1
	defaultRetryDelay  = 5 * time.Second
)

// Result is the outcome of one command on one node. NodeIndex follows
// cluster numbering: 1 is the master.
type Result struct {
	NodeIndex  int
	Addr       string
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Succeeded reports whether the command exited zero.
func (r Result) Succeeded() bool { return r.ExitStatus == 0 }

// conn is one live SSH connection. The indirection exists so tests can
// substitute an in-memory transport.
type conn interface {
	run(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr []byte, exitStatus int, err error)
	close() error
}

// dialFunc opens a connection to addr, tunneling through via when it is
// non-empty. Both are host:port.
type dialFunc func(ctx context.Context, addr, via string, cfg *ssh.ClientConfig) (conn, error)

// Shell runs commands across a fixed set of node addresses.
type Shell struct {
	user    string
	addrs   []string // master first
	signer  ssh.Signer
	bastion string

	port         int
	dialTimeout  time.Duration
	maxAttempts  int
	retryDelay   time.Duration
	hostKeyCheck ssh.HostKeyCallback
	dial         dialFunc
}

// Option adjusts connection behavior.
type Option func(*Shell)

// WithPort overrides the SSH port.
func WithPort(port int) Option {
	return func(s *Shell) { s.port = port }
}

// WithDialTimeout bounds each TCP connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Shell) { s.dialTimeout = d }
}

// WithConnectAttempts sets how many times a dial is tried before the
// node is reported unreachable.
func WithConnectAttempts(n int) Option {
	return func(s *Shell) { s.maxAttempts = n }
}

// WithRetryDelay sets the pause between dial attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Shell) { s.retryDelay = d }
}

// WithHostKeyCallback enables host key verification.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(s *Shell) { s.hostKeyCheck = cb }
}

// WithBastion tunnels every connection except the bastion's own through
// an SSH session to the given address, using the same user and key. Used
// to reach workers that have no public route; the master usually plays
// the bastion.
func WithBastion(addr string) Option {
	return func(s *Shell) { s.bastion = addr }
}

func withDialFunc(dial dialFunc) Option {
	return func(s *Shell) { s.dial = dial }
}

// New builds a Shell for the given nodes. masterIP becomes node 1 and
// workerIPs follow in order. The private key is parsed once here.
func New(user, masterIP string, workerIPs []string, privateKey []byte, opts ...Option) (*Shell, error) {
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}
	if masterIP == "" {
		return nil, fmt.Errorf("master IP cannot be empty")
	}
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	s := &Shell{
		user:         user,
		addrs:        append([]string{masterIP}, workerIPs...),
		signer:       signer,
		port:         defaultPort,
		dialTimeout:  defaultDialTimeout,
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
		hostKeyCheck: ssh.InsecureIgnoreHostKey(), //nolint:gosec // ephemeral nodes, keys minted at boot
		dial:         dialSSH,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NodeCount returns the number of nodes the shell is bound to.
func (s *Shell) NodeCount() int { return len(s.addrs) }

// Addrs returns the node addresses, master first.
func (s *Shell) Addrs() []string { return append([]string(nil), s.addrs...) }

// MasterAddr returns the master node address.
func (s *Shell) MasterAddr() string { return s.addrs[0] }

func (s *Shell) clientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(s.signer)},
		HostKeyCallback: s.hostKeyCheck,
		Timeout:         s.dialTimeout,
	}
}

// connect dials one node with the configured retry policy. Failures are
// reported as a ConnectionError with Unreachable set.
func (s *Shell) connect(ctx context.Context, addr string) (conn, error) {
	target := fmt.Sprintf("%s:%d", addr, s.port)
	via := ""
	if s.bastion != "" && addr != s.bastion {
		via = fmt.Sprintf("%s:%d", s.bastion, s.port)
	}
	cfg := s.clientConfig()

	var c conn
	err := retry.Do(ctx, func() error {
		var dialErr error
		c, dialErr = s.dial(ctx, target, via, cfg)
		return dialErr
	},
		retry.WithMaxAttempts(s.maxAttempts),
		retry.WithInitialDelay(s.retryDelay),
		retry.WithConstantDelay(),
	)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Unreachable: true, Err: err}
	}
	return c, nil
}

// runOne connects to one node, runs the command, and closes. A nonzero
// exit is a normal Result, not an error.
func (s *Shell) runOne(ctx context.Context, nodeIndex int, addr, cmd string, stdin io.Reader) (Result, error) {
	res := Result{NodeIndex: nodeIndex, Addr: addr}

	c, err := s.connect(ctx, addr)
	if err != nil {
		return res, err
	}
	defer func() { _ = c.close() }()

	stdout, stderr, status, err := c.run(ctx, cmd, stdin)
	if err != nil {
		return res, &ConnectionError{Addr: addr, Err: err}
	}
	res.Stdout = string(stdout)
	res.Stderr = string(stderr)
	res.ExitStatus = status
	return res, nil
}

// RunOn runs a command on a single node. nodeIndex is 1-based.
func (s *Shell) RunOn(ctx context.Context, nodeIndex int, cmd string) (Result, error) {
	if nodeIndex < 1 || nodeIndex > len(s.addrs) {
		return Result{}, fmt.Errorf("node index %d out of range 1..%d", nodeIndex, len(s.addrs))
	}
	return s.runOne(ctx, nodeIndex, s.addrs[nodeIndex-1], cmd, nil)
}

// RunOnMaster runs a command on node 1.
func (s *Shell) RunOnMaster(ctx context.Context, cmd string) (Result, error) {
	return s.RunOn(ctx, 1, cmd)
}

// RunOnWorkers runs a command on every node except the master.
func (s *Shell) RunOnWorkers(ctx context.Context, cmd string) ([]Result, error) {
	if len(s.addrs) == 1 {
		return nil, nil
	}
	return s.runAll(ctx, s.addrs[1:], 2, func(ctx context.Context, nodeIndex int, addr string) (Result, error) {
		return s.runOne(ctx, nodeIndex, addr, cmd, nil)
	})
}

// RunOnAll runs a command on every node in parallel. Results come back
// in node-index order regardless of completion order. The returned
// error is the first per-node failure; the result slice is complete
// either way, so callers can report every node's outcome.
func (s *Shell) RunOnAll(ctx context.Context, cmd string) ([]Result, error) {
	return s.runAll(ctx, s.addrs, 1, func(ctx context.Context, nodeIndex int, addr string) (Result, error) {
		return s.runOne(ctx, nodeIndex, addr, cmd, nil)
	})
}

type nodeOutcome struct {
	res Result
	err error
}

func (s *Shell) runAll(ctx context.Context, addrs []string, firstIndex int, fn func(ctx context.Context, nodeIndex int, addr string) (Result, error)) ([]Result, error) {
	outcomes := async.Map(ctx, len(addrs), func(ctx context.Context, i int) nodeOutcome {
		res, err := fn(ctx, firstIndex+i, addrs[i])
		return nodeOutcome{res: res, err: err}
	})

	results := make([]Result, len(outcomes))
	var firstErr error
	for i, out := range outcomes {
		results[i] = out.res
		if out.err != nil && firstErr == nil {
			firstErr = out.err
		}
		if out.err == nil && !out.res.Succeeded() && firstErr == nil {
			firstErr = fmt.Errorf("command exited %d on %s: %s",
				out.res.ExitStatus, out.res.Addr, strings.TrimSpace(out.res.Stderr))
		}
	}
	return results, firstErr
}

// WaitForSSHReady blocks until every node accepts an SSH connection or
// the context expires. Each node is probed in parallel with the
// configured dial retry policy.
func (s *Shell) WaitForSSHReady(ctx context.Context) error {
	tasks := make([]async.Task, len(s.addrs))
	for i, addr := range s.addrs {
		tasks[i] = async.Task{
			Name: addr,
			Func: func(ctx context.Context) error {
				c, err := s.connect(ctx, addr)
				if err != nil {
					return err
				}
				return c.close()
			},
		}
	}
	return async.RunParallel(ctx, tasks)
}

// dialSSH is the production transport. With a via address the TCP leg
// to the target runs inside an SSH session to the bastion.
func dialSSH(_ context.Context, addr, via string, cfg *ssh.ClientConfig) (conn, error) {
	if via == "" {
		client, err := ssh.Dial("tcp", addr, cfg)
		if err != nil {
			return nil, err
		}
		return &sshConn{client: client}, nil
	}

	bastion, err := ssh.Dial("tcp", via, cfg)
	if err != nil {
		return nil, fmt.Errorf("bastion %s: %w", via, err)
	}
	tunneled, err := bastion.Dial("tcp", addr)
	if err != nil {
		_ = bastion.Close()
		return nil, fmt.Errorf("tunnel to %s via %s: %w", addr, via, err)
	}
	nc, chans, reqs, err := ssh.NewClientConn(tunneled, addr, cfg)
	if err != nil {
		_ = bastion.Close()
		return nil, fmt.Errorf("handshake with %s via %s: %w", addr, via, err)
	}
	return &sshConn{client: ssh.NewClient(nc, chans, reqs), bastion: bastion}, nil
}

type sshConn struct {
	client  *ssh.Client
	bastion *ssh.Client // nil for direct connections
}

func (c *sshConn) run(ctx context.Context, cmd string, stdin io.Reader) ([]byte, []byte, int, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	session.Stdin = stdin

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return stdout.Bytes(), stderr.Bytes(), 0, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitStatus(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), 0, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

func (c *sshConn) close() error {
	err := c.client.Close()
	if c.bastion != nil {
		if berr := c.bastion.Close(); err == nil {
			err = berr
		}
	}
	return err
}
