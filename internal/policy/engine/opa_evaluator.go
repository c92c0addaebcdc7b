package engine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "identity-service/internal/user/domain"
)

const roleQuery = "data.identity.roles.role"

//go:embed policies/roles.rego
var defaultRolePolicy string

var (
	// ErrNoDecision is returned when the policy defines no role for the input.
	ErrNoDecision = errors.New("policy: no role decision")
	// ErrInvalidRole is returned when the policy answers a role the service does not know.
	ErrInvalidRole = errors.New("policy: invalid role")
)

// OPAEvaluator assigns roles with a Rego policy compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the embedded default role policy.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	return NewOPAEvaluatorFromSource(ctx, "roles.rego", defaultRolePolicy)
}

// NewOPAEvaluatorFromFile compiles the role policy at path. An empty path selects the embedded policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return NewOPAEvaluatorFromSource(ctx, path, string(src))
}

// NewOPAEvaluatorFromSource compiles a role policy from source. The policy must define
// data.identity.roles.role.
func NewOPAEvaluatorFromSource(ctx context.Context, name, src string) (*OPAEvaluator, error) {
	q, err := rego.New(
		rego.Query(roleQuery),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile %s: %w", name, err)
	}
	return &OPAEvaluator{query: q}, nil
}

// AssignRole evaluates the policy for in. Any failure answers RoleUser with the error.
func (e *OPAEvaluator) AssignRole(ctx context.Context, in RoleInput) (userdomain.Role, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"origin": in.Origin,
		"email":  in.Email,
	}))
	if err != nil {
		return userdomain.RoleUser, fmt.Errorf("policy: eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return userdomain.RoleUser, ErrNoDecision
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return userdomain.RoleUser, fmt.Errorf("%w: %v", ErrInvalidRole, rs[0].Expressions[0].Value)
	}
	role := userdomain.Role(s)
	if !role.Valid() {
		return userdomain.RoleUser, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return role, nil
}

// HealthCheck evaluates the policy against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.AssignRole(ctx, RoleInput{Origin: "local", Email: "healthcheck@localhost"})
	return err
}
