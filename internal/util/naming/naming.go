// Package naming derives resource names for a cluster from its identity.
//
// A cluster is identified by the (template name, node count, cluster id)
// triple. Every name is a pure function of that triple so that a stateless
// client can rediscover cluster resources from the EC2 API alone.
package naming

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec reports naming inputs that can never produce a valid
// EC2 tag value. Callers branch on it with errors.Is.
var ErrInvalidSpec = errors.New("invalid cluster spec")

// EC2 tag values allow letters, digits, spaces and a small set of
// punctuation. Anything else in a template name is rejected up front
// rather than surfacing as an opaque API error at launch time.
const extraTagChars = "+-=._:/@ "

// Cluster returns the cluster name, which doubles as the discovery tag
// value for every node in the cluster.
func Cluster(templateName string, nodeCount, clusterID int) (string, error) {
	if templateName == "" {
		return "", fmt.Errorf("%w: template name is empty", ErrInvalidSpec)
	}
	if nodeCount < 1 {
		return "", fmt.Errorf("%w: node count must be >= 1, got %d", ErrInvalidSpec, nodeCount)
	}
	for _, r := range templateName {
		if !isTagRune(r) {
			return "", fmt.Errorf("%w: template name %q contains character %q not allowed in EC2 tags",
				ErrInvalidSpec, templateName, r)
		}
	}
	return fmt.Sprintf("%s-%dnode-cluster%d", templateName, nodeCount, clusterID), nil
}

// Node returns the Name tag for the node at the given 1-based index.
func Node(clusterName string, index, nodeCount int) (string, error) {
	if index < 1 || index > nodeCount {
		return "", fmt.Errorf("%w: node index %d outside [1, %d]", ErrInvalidSpec, index, nodeCount)
	}
	return fmt.Sprintf("%s-node%d", clusterName, index), nil
}

// SecurityGroup returns the name of the intra-cluster security group.
func SecurityGroup(clusterName string) string {
	return fmt.Sprintf("%s-intracluster-ssh", clusterName)
}

// PlacementGroup returns the name of the cluster placement group.
// Defined for every cluster, used only when placement groups are enabled.
func PlacementGroup(clusterName string) string {
	return fmt.Sprintf("%s-placement-group", clusterName)
}

func isTagRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	default:
		return strings.ContainsRune(extraTagChars, r)
	}
}
