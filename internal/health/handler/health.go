// Package handler reports liveness and readiness of the service.
package handler

import (
	"context"
	"time"

	"identity-service/internal/apperror"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

var (
	ErrDatabaseUnavailable = apperror.New(apperror.KindInternal, "database unavailable")
	ErrPolicyUnavailable   = apperror.New(apperror.KindInternal, "role policy unavailable")
)

// Pinger checks database connectivity (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the role policy evaluates (e.g. *engine.OPAEvaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness checks. Either dependency may be nil and is then skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker over the given dependencies.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check returns nil when every configured dependency is healthy, otherwise the first failure.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.Ping(ctx); err != nil {
			return apperror.Wrap(apperror.KindInternal, ErrDatabaseUnavailable.Message, err)
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return apperror.Wrap(apperror.KindInternal, ErrPolicyUnavailable.Message, err)
		}
	}
	return nil
}
