package cluster

import (
	"context"
	"log"
)

// WithCluster runs fn against a freshly launched cluster and terminates
// the cluster afterwards regardless of whether fn succeeded. The launch
// error, fn's error, and the teardown error are surfaced in that order
// of precedence; a teardown failure never masks an fn failure.
func WithCluster(ctx context.Context, c *Cluster, cleanCreate bool, fn func(ctx context.Context, c *Cluster) error) error {
	if err := c.Launch(ctx, cleanCreate); err != nil {
		return err
	}

	fnErr := fn(ctx, c)

	if err := c.Terminate(ctx); err != nil {
		if fnErr != nil {
			log.Printf("[%s] teardown after failure also failed: %v", c.Name, err)
			return fnErr
		}
		return err
	}
	return fnErr
}
