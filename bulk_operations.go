package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CheckResult represents the result of one check in a batch
type CheckResult struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
	Err        error  `json:"-"`
}

// Evaluate checks every permission for userID concurrently and reports each
// outcome without turning any of them into an error.
func (g *Guard) Evaluate(ctx context.Context, userID string, permissions []string) []CheckResult {
	results := g.checkAll(ctx, userID, permissions)
	for _, r := range results {
		switch {
		case r.Err != nil:
			g.metrics.observeDecision("evaluate", outcomeError)
		case r.Allowed:
			g.metrics.observeDecision("evaluate", outcomeAllowed)
		default:
			g.metrics.observeDecision("evaluate", outcomeDenied)
		}
	}
	return results
}

// checkAll runs one check per permission and waits for all of them. Results
// keep the order of permissions.
func (g *Guard) checkAll(ctx context.Context, userID string, permissions []string) []CheckResult {
	results := make([]CheckResult, len(permissions))

	var eg errgroup.Group
	if g.maxConcurrent > 0 {
		eg.SetLimit(g.maxConcurrent)
	}
	for i, perm := range permissions {
		eg.Go(func() error {
			allowed, err := g.checker.CheckPermission(ctx, userID, perm)
			results[i] = CheckResult{Permission: perm, Allowed: allowed, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
