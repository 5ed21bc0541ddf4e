// Package cluster implements the stateless cluster lifecycle engine.
//
// A cluster is a fixed-size, ordered set of EC2 instances identified
// purely by node Name tags derived from the cluster identity. There is
// no server-side state: every operation re-discovers the cluster from
// the provider before acting. Node 1 is always the designated master.
package cluster

import (
	"context"
	"fmt"
	"log"
	"time"

	"ec2cluster/internal/platform/ec2"
	"ec2cluster/internal/util/async"
	"ec2cluster/internal/util/naming"
)

const (
	defaultRetryInterval = 10 * time.Second
	defaultPollInterval  = 5 * time.Second
	defaultWaitDeadline  = 10 * time.Minute
)

// IPSet is the resolved address view of a running cluster. Worker slices
// are ordered by node index ascending (node 2 first).
type IPSet struct {
	MasterPublicIP   string   `json:"master_public_ip" yaml:"master_public_ip"`
	MasterPrivateIP  string   `json:"master_private_ip" yaml:"master_private_ip"`
	WorkerPublicIPs  []string `json:"worker_public_ips" yaml:"worker_public_ips"`
	WorkerPrivateIPs []string `json:"worker_private_ips" yaml:"worker_private_ips"`
}

// Cluster drives N node handles as a unit. It is held by one process for
// the duration of one operation and never persisted; discarding it has
// no effect on the remote cluster.
type Cluster struct {
	Name  string
	Nodes []*Node

	client ec2.Client

	createTimeout time.Duration // 0 means retry forever
	retryInterval time.Duration
	pollInterval  time.Duration
	waitDeadline  time.Duration
	placement     bool
}

// Option adjusts engine timing and behavior.
type Option func(*Cluster)

// WithCreateTimeout bounds the capacity retry window. The window measures
// time since the last successful node acquisition, not total elapsed
// time. Zero means no timeout.
func WithCreateTimeout(d time.Duration) Option {
	return func(c *Cluster) { c.createTimeout = d }
}

// WithRetryInterval sets the pause between capacity retry attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Cluster) { c.retryInterval = d }
}

// WithPollInterval sets the interval for state polling loops.
func WithPollInterval(d time.Duration) Option {
	return func(c *Cluster) { c.pollInterval = d }
}

// WithWaitDeadline bounds each state wait (running, terminated).
func WithWaitDeadline(d time.Duration) Option {
	return func(c *Cluster) { c.waitDeadline = d }
}

// New builds a cluster handle from ordered node specs. specs[i] becomes
// node index i+1; index 1 is the master.
func New(client ec2.Client, name string, specs []ec2.NodeSpec, opts ...Option) (*Cluster, error) {
	if len(specs) == 0 {
		return nil, &Error{Kind: KindInvalidSpec, Cluster: name, Err: fmt.Errorf("cluster needs at least one node spec")}
	}

	c := &Cluster{
		Name:          name,
		client:        client,
		retryInterval: defaultRetryInterval,
		pollInterval:  defaultPollInterval,
		waitDeadline:  defaultWaitDeadline,
	}
	for i, spec := range specs {
		if spec.PlacementGroup != "" {
			c.placement = true
		}
		c.Nodes = append(c.Nodes, newNode(client, i+1, spec))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AnyNodeRunningOrPending is the discovery primitive: it reports whether
// any instance carrying one of the cluster's node names is live. This is
// the sole source of truth for "does this cluster exist".
func (c *Cluster) AnyNodeRunningOrPending(ctx context.Context) (bool, error) {
	for _, node := range c.Nodes {
		exists, err := node.RunningOrPending(ctx)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// Launch brings the cluster to its full node count, retrying individual
// node launches through transient capacity shortages.
//
// The retry window resets every time a node is acquired, so a cluster
// that keeps making progress never times out even if the total wall
// clock exceeds the configured window. On window expiry the nodes that
// did launch are left running; there is no automatic rollback.
//
// If the cluster already exists the default is to refuse. With
// cleanCreate the existing nodes are terminated and fully waited out
// first; no attempt is made to detect whether the old cluster matched
// this spec.
func (c *Cluster) Launch(ctx context.Context, cleanCreate bool) error {
	exists, err := c.AnyNodeRunningOrPending(ctx)
	if err != nil {
		return err
	}
	if exists {
		if !cleanCreate {
			return &Error{
				Kind: KindAlreadyExists, Cluster: c.Name,
				Err: fmt.Errorf("nodes with names matching this cluster already exist"),
			}
		}
		log.Printf("[%s] clean create: terminating existing nodes", c.Name)
		if err := c.Terminate(ctx); err != nil {
			return err
		}
	}

	sgID, err := c.client.EnsureSecurityGroup(ctx, naming.SecurityGroup(c.Name), c.Nodes[0].Spec.VPCID)
	if err != nil {
		return &Error{Kind: KindProvider, Cluster: c.Name, Err: err}
	}
	if c.placement {
		if err := c.client.EnsurePlacementGroup(ctx, naming.PlacementGroup(c.Name)); err != nil {
			return &Error{Kind: KindProvider, Cluster: c.Name, Err: err}
		}
	}

	if err := c.launchAllWithRetry(ctx, sgID); err != nil {
		return err
	}

	log.Printf("[%s] all %d nodes launched, waiting for running state", c.Name, len(c.Nodes))

	tasks := make([]async.Task, len(c.Nodes))
	for i, node := range c.Nodes {
		tasks[i] = async.Task{
			Name: node.Name,
			Func: func(ctx context.Context) error {
				_, err := node.WaitUntilRunning(ctx, c.pollInterval, c.waitDeadline)
				return err
			},
		}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return err
	}

	log.Printf("[%s] all nodes running", c.Name)
	return nil
}

// launchAllWithRetry is the capacity-aware launch loop. windowStart
// tracks the moment of the last successful acquisition; only capacity
// errors are retried, and only until the window closes.
func (c *Cluster) launchAllWithRetry(ctx context.Context, sgID string) error {
	windowStart := time.Now()

	for _, node := range c.Nodes {
		node.Spec.SecurityGroupIDs = appendUnique(node.Spec.SecurityGroupIDs, sgID)

		for {
			_, err := node.Launch(ctx)
			if err == nil {
				log.Printf("[%s] node %d of %d launched", c.Name, node.Index, len(c.Nodes))
				windowStart = time.Now()
				break
			}

			if !ec2.IsCapacityError(err) {
				if IsKind(err, KindAlreadyExists) {
					// A node reappeared between discovery and launch;
					// two processes are racing on this identity.
					return err
				}
				return &Error{Kind: KindProvider, Cluster: c.Name, NodeIndex: node.Index, Err: err}
			}

			if c.createTimeout > 0 && time.Since(windowStart) > c.createTimeout {
				return &Error{
					Kind: KindCapacityTimeout, Cluster: c.Name, NodeIndex: node.Index,
					Err: fmt.Errorf("no capacity acquired for %s; %d of %d nodes are left running",
						c.createTimeout, node.Index-1, len(c.Nodes)),
				}
			}

			log.Printf("[%s] node %d launch hit a capacity shortage, retrying in %s", c.Name, node.Index, c.retryInterval)
			select {
			case <-ctx.Done():
				return &Error{Kind: KindProvider, Cluster: c.Name, NodeIndex: node.Index, Err: ctx.Err()}
			case <-time.After(c.retryInterval):
			}
		}
	}
	return nil
}

// Terminate tears down every live node, waits for full termination, and
// cleans up the cluster security group and placement group.
func (c *Cluster) Terminate(ctx context.Context) error {
	type liveNode struct {
		node       *Node
		instanceID string
	}

	var live []liveNode
	for _, node := range c.Nodes {
		inst, err := node.Describe(ctx)
		if err != nil {
			return err
		}
		if inst != nil {
			live = append(live, liveNode{node: node, instanceID: inst.ID})
		}
	}
	if len(live) == 0 {
		return &Error{
			Kind: KindNotFound, Cluster: c.Name,
			Err: fmt.Errorf("no nodes exist to terminate"),
		}
	}

	sgID, err := c.client.SecurityGroupID(ctx, naming.SecurityGroup(c.Name))
	if err != nil {
		return &Error{Kind: KindProvider, Cluster: c.Name, Err: err}
	}

	for _, ln := range live {
		if sgID != "" {
			if err := c.client.DetachSecurityGroup(ctx, ln.instanceID, sgID); err != nil {
				// The instance may already be shutting down; termination
				// still proceeds and the SG delete below will retry.
				log.Printf("[%s] could not detach security group from node %d: %v", c.Name, ln.node.Index, err)
			}
		}
		if err := c.client.TerminateInstance(ctx, ln.instanceID); err != nil {
			return &Error{Kind: KindProvider, Cluster: c.Name, NodeIndex: ln.node.Index, Err: err}
		}
		log.Printf("[%s] node %d of %d termination triggered", c.Name, ln.node.Index, len(c.Nodes))
	}

	log.Printf("[%s] waiting for %d nodes to reach terminated state", c.Name, len(live))
	tasks := make([]async.Task, len(live))
	for i, ln := range live {
		tasks[i] = async.Task{
			Name: ln.node.Name,
			Func: func(ctx context.Context) error {
				return ln.node.WaitUntilTerminated(ctx, ln.instanceID, c.pollInterval, c.waitDeadline)
			},
		}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		// Matching the longstanding behavior of the terminate path:
		// a straggling wait is reported but does not fail the teardown.
		log.Printf("[%s] error while waiting for termination, continuing: %v", c.Name, err)
	}

	if err := c.client.DeleteSecurityGroup(ctx, naming.SecurityGroup(c.Name)); err != nil {
		return &Error{Kind: KindProvider, Cluster: c.Name, Err: err}
	}
	if c.placement {
		if err := c.client.DeletePlacementGroup(ctx, naming.PlacementGroup(c.Name)); err != nil {
			return &Error{Kind: KindProvider, Cluster: c.Name, Err: err}
		}
	}
	return nil
}

// IPs resolves the address set of a running cluster. All nodes are
// queried concurrently; results are assembled in node-index order with
// node 1 reported as master.
func (c *Cluster) IPs(ctx context.Context) (*IPSet, error) {
	exists, err := c.AnyNodeRunningOrPending(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &Error{
			Kind: KindClusterNotFound, Cluster: c.Name,
			Err: fmt.Errorf("cannot list IPs of a cluster that does not exist"),
		}
	}

	type lookup struct {
		inst *ec2.Instance
		err  error
	}
	results := async.Map(ctx, len(c.Nodes), func(ctx context.Context, i int) lookup {
		inst, err := c.Nodes[i].Describe(ctx)
		return lookup{inst: inst, err: err}
	})

	set := &IPSet{}
	for i, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		if res.inst == nil {
			return nil, &Error{
				Kind: KindNotFound, Cluster: c.Name, NodeIndex: i + 1,
				Err: fmt.Errorf("node %d is missing; the cluster is incomplete", i+1),
			}
		}
		if i == 0 {
			set.MasterPublicIP = res.inst.PublicIP
			set.MasterPrivateIP = res.inst.PrivateIP
		} else {
			set.WorkerPublicIPs = append(set.WorkerPublicIPs, res.inst.PublicIP)
			set.WorkerPrivateIPs = append(set.WorkerPrivateIPs, res.inst.PrivateIP)
		}
	}
	return set, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(append([]string(nil), ids...), id)
}
