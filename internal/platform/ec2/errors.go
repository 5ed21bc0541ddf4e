package ec2

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Capacity exhaustion is the one launch failure the engine retries.
// Everything else from the API is treated as fatal.
var capacityErrorCodes = map[string]bool{
	"InsufficientInstanceCapacity": true,
	"InsufficientCapacity":         true,
	"InsufficientHostCapacity":     true,
}

var notFoundErrorCodes = map[string]bool{
	"InvalidInstanceID.NotFound":    true,
	"InvalidGroup.NotFound":         true,
	"InvalidPlacementGroup.Unknown": true,
}

var authErrorCodes = map[string]bool{
	"AuthFailure":           true,
	"UnauthorizedOperation": true,
	"OptInRequired":         true,
}

// IsCapacityError reports whether err is a transient capacity shortage.
// Quota errors (InstanceLimitExceeded) deliberately do not qualify: more
// retries cannot fix an account limit.
func IsCapacityError(err error) bool {
	return hasErrorCode(err, capacityErrorCodes)
}

// IsNotFound reports whether err means the referenced resource is gone.
func IsNotFound(err error) bool {
	return hasErrorCode(err, notFoundErrorCodes)
}

// IsAuthError reports whether err is an authentication or authorization
// failure.
func IsAuthError(err error) bool {
	return hasErrorCode(err, authErrorCodes)
}

func hasErrorCode(err error, codes map[string]bool) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return codes[apiErr.ErrorCode()]
	}
	return false
}
