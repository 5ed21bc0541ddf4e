package cluster

import (
	"errors"
	"fmt"
)

// Kind classifies cluster operation failures. Callers branch on kinds
// instead of matching error message text.
type Kind int

const (
	// KindInvalidSpec is a bad naming or configuration input. Never retried.
	KindInvalidSpec Kind = iota + 1
	// KindAlreadyExists means a cluster with this identity is already
	// running and clean-create was not requested.
	KindAlreadyExists
	// KindNotFound means the operation needs an existing node that is not
	// there.
	KindNotFound
	// KindClusterNotFound means discovery found no nodes at all.
	KindClusterNotFound
	// KindCapacityTimeout means the launch retry window expired with no
	// progress. Nodes that did launch are left running.
	KindCapacityTimeout
	// KindTimeout means a state wait deadline expired: the node exists
	// but never reached the expected state. Distinct from KindProvider,
	// where the API itself failed.
	KindTimeout
	// KindConnection is a remote execution reachability failure.
	KindConnection
	// KindProvider is any other compute API failure: auth, quota,
	// malformed request. Always fatal.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSpec:
		return "invalid spec"
	case KindAlreadyExists:
		return "already exists"
	case KindNotFound:
		return "not found"
	case KindClusterNotFound:
		return "cluster not found"
	case KindCapacityTimeout:
		return "capacity timeout"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection error"
	case KindProvider:
		return "provider error"
	default:
		return "unknown"
	}
}

// Error is a cluster operation failure with enough context to identify
// the affected cluster and node.
type Error struct {
	Kind      Kind
	Cluster   string
	NodeIndex int // 0 for cluster-level failures
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cluster %s", e.Cluster)
	if e.NodeIndex > 0 {
		msg += fmt.Sprintf(" node %d", e.NodeIndex)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a cluster Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == kind
}
