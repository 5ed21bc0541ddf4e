// Package ec2 wraps the AWS EC2 API behind the small surface the cluster
// engine needs: run, describe-by-tag, terminate, and the security-group
// and placement-group primitives that back intra-cluster networking.
package ec2

import "context"

// InstanceState is the provider-reported lifecycle state of an instance.
// StateAbsent is synthesized locally when no instance matches a query.
type InstanceState string

const (
	StateAbsent       InstanceState = "absent"
	StatePending      InstanceState = "pending"
	StateRunning      InstanceState = "running"
	StateShuttingDown InstanceState = "shutting-down"
	StateStopping     InstanceState = "stopping"
	StateStopped      InstanceState = "stopped"
	StateTerminated   InstanceState = "terminated"
)

// RunningOrPending reports whether the state counts as "the node exists"
// for cluster discovery.
func (s InstanceState) RunningOrPending() bool {
	return s == StateRunning || s == StatePending
}

// Instance is a point-in-time observation of one EC2 instance. It is
// never cached; every lookup is a fresh DescribeInstances call.
type Instance struct {
	ID               string
	State            InstanceState
	PublicIP         string
	PrivateIP        string
	SecurityGroupIDs []string
}

// NodeSpec holds everything needed to launch one node.
type NodeSpec struct {
	Name             string
	ClusterName      string
	VPCID            string
	SubnetID         string
	AMIID            string
	InstanceType     string
	KeyName          string
	IAMRole          string
	SecurityGroupIDs []string
	PlacementGroup   string
	EBSType          string
	EBSSizeGB        int32
	EBSIOPS          int32
	EBSOptimized     bool
	Tags             map[string]string
}

// Client is the compute API surface the cluster engine depends on.
// The real implementation talks to EC2; tests substitute an in-memory fake.
type Client interface {
	// RunInstance issues a single-instance launch tagged with the node
	// name and the cluster discovery tag. It does not wait for readiness.
	RunInstance(ctx context.Context, spec NodeSpec) (string, error)

	// InstanceByName returns the instance carrying the given Name tag in
	// one of the given states (running/pending when none are given), or
	// nil if no such instance exists.
	InstanceByName(ctx context.Context, name string, states ...InstanceState) (*Instance, error)

	// InstanceByID returns the instance with the given id, or nil if the
	// provider no longer knows it.
	InstanceByID(ctx context.Context, id string) (*Instance, error)

	// TerminateInstance starts termination and removes the Name tag so a
	// replacement with the same name can launch while the old instance
	// shuts down.
	TerminateInstance(ctx context.Context, id string) error

	// DetachSecurityGroup removes one security group from a running
	// instance, leaving the rest of its group set intact.
	DetachSecurityGroup(ctx context.Context, instanceID, groupID string) error

	// EnsureSecurityGroup creates the named group with a self-referencing
	// allow-all ingress rule if it does not exist, and returns its id.
	EnsureSecurityGroup(ctx context.Context, name, vpcID string) (string, error)

	// SecurityGroupID resolves a group name to its id. Empty string when
	// the group does not exist.
	SecurityGroupID(ctx context.Context, name string) (string, error)

	// DeleteSecurityGroup removes the named group. No error if absent.
	DeleteSecurityGroup(ctx context.Context, name string) error

	// EnsurePlacementGroup creates a cluster-strategy placement group if
	// it does not exist.
	EnsurePlacementGroup(ctx context.Context, name string) error

	// DeletePlacementGroup removes the placement group. No error if absent.
	DeletePlacementGroup(ctx context.Context, name string) error
}

// ClusterTagKey is the discovery tag attached to every node at launch.
// Its value is the cluster name derived from the identity triple.
const ClusterTagKey = "ec2cluster:cluster-name"
