package shell

import (
	"errors"
	"fmt"
)

// ConnectionError is a transport-level failure talking to one node.
// Unreachable distinguishes "could not connect at all" from failures on
// an established connection; callers that bootstrap fresh clusters
// retry the former and give up on the latter.
type ConnectionError struct {
	Addr        string
	Unreachable bool
	Err         error
}

func (e *ConnectionError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("node %s is unreachable: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err is a ConnectionError for a node
// that could not be reached at all.
func IsUnreachable(err error) bool {
	var cerr *ConnectionError
	return errors.As(err, &cerr) && cerr.Unreachable
}
