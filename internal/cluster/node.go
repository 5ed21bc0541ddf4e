package cluster

import (
	"context"
	"fmt"
	"time"

	"ec2cluster/internal/platform/ec2"
)

// Node is the handle for one cluster member. It holds the desired spec
// and queries the provider for observed state on every call; nothing is
// cached across operations.
type Node struct {
	Index int
	Name  string
	Spec  ec2.NodeSpec

	client ec2.Client
}

func newNode(client ec2.Client, index int, spec ec2.NodeSpec) *Node {
	return &Node{
		Index:  index,
		Name:   spec.Name,
		Spec:   spec,
		client: client,
	}
}

// Describe is a fresh state query. A nil instance means absent.
func (n *Node) Describe(ctx context.Context) (*ec2.Instance, error) {
	inst, err := n.client.InstanceByName(ctx, n.Name,
		ec2.StatePending, ec2.StateRunning, ec2.StateShuttingDown, ec2.StateStopping, ec2.StateStopped)
	if err != nil {
		return nil, &Error{Kind: KindProvider, Cluster: n.Spec.ClusterName, NodeIndex: n.Index, Err: err}
	}
	return inst, nil
}

// RunningOrPending reports whether the node currently exists from the
// discovery point of view.
func (n *Node) RunningOrPending(ctx context.Context) (bool, error) {
	inst, err := n.client.InstanceByName(ctx, n.Name, ec2.StatePending, ec2.StateRunning)
	if err != nil {
		return false, &Error{Kind: KindProvider, Cluster: n.Spec.ClusterName, NodeIndex: n.Index, Err: err}
	}
	return inst != nil, nil
}

// Launch issues the create request. The provider-side name uniqueness
// check happens here: launching over an existing live node is refused.
// Launch does not wait for the instance to become ready.
func (n *Node) Launch(ctx context.Context) (string, error) {
	exists, err := n.RunningOrPending(ctx)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &Error{
			Kind: KindAlreadyExists, Cluster: n.Spec.ClusterName, NodeIndex: n.Index,
			Err: fmt.Errorf("instance named %s is already running or pending", n.Name),
		}
	}
	return n.client.RunInstance(ctx, n.Spec)
}

// Terminate starts termination of the node's instance.
func (n *Node) Terminate(ctx context.Context) (string, error) {
	inst, err := n.Describe(ctx)
	if err != nil {
		return "", err
	}
	if inst == nil {
		return "", &Error{
			Kind: KindNotFound, Cluster: n.Spec.ClusterName, NodeIndex: n.Index,
			Err: fmt.Errorf("no instance named %s", n.Name),
		}
	}
	if err := n.client.TerminateInstance(ctx, inst.ID); err != nil {
		return "", &Error{Kind: KindProvider, Cluster: n.Spec.ClusterName, NodeIndex: n.Index, Err: err}
	}
	return inst.ID, nil
}

// WaitUntilRunning polls until the node reports running. The deadline
// bounds the wait; poll sets the interval between fresh queries.
func (n *Node) WaitUntilRunning(ctx context.Context, poll, deadline time.Duration) (*ec2.Instance, error) {
	var running *ec2.Instance
	err := n.waitFor(ctx, poll, deadline, "running", func(ctx context.Context) (bool, error) {
		inst, err := n.Describe(ctx)
		if err != nil {
			return false, err
		}
		if inst != nil && inst.State == ec2.StateRunning {
			running = inst
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return running, nil
}

// WaitUntilTerminated polls the instance by id until it reaches the
// terminated state or disappears.
func (n *Node) WaitUntilTerminated(ctx context.Context, instanceID string, poll, deadline time.Duration) error {
	return n.waitFor(ctx, poll, deadline, "terminated", func(ctx context.Context) (bool, error) {
		inst, err := n.client.InstanceByID(ctx, instanceID)
		if err != nil {
			if ec2.IsNotFound(err) {
				return true, nil
			}
			return false, &Error{Kind: KindProvider, Cluster: n.Spec.ClusterName, NodeIndex: n.Index, Err: err}
		}
		return inst == nil || inst.State == ec2.StateTerminated, nil
	})
}

func (n *Node) waitFor(ctx context.Context, poll, deadline time.Duration, what string, check func(context.Context) (bool, error)) error {
	waitCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	for {
		done, err := check(waitCtx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return &Error{
					Kind: KindProvider, Cluster: n.Spec.ClusterName, NodeIndex: n.Index,
					Err: fmt.Errorf("canceled waiting for %s to be %s: %w", n.Name, what, ctx.Err()),
				}
			}
			return &Error{
				Kind: KindTimeout, Cluster: n.Spec.ClusterName, NodeIndex: n.Index,
				Err: fmt.Errorf("%s did not reach %s within %s", n.Name, what, deadline),
			}
		case <-time.After(poll):
		}
	}
}
