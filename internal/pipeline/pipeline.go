// Package pipeline runs the ordered reconciliation steps that map a verified
// external identity onto a local user record.
package pipeline

import (
	"context"
	"fmt"

	"authkit/internal/identity"
	"authkit/internal/observability"
	"authkit/internal/store"
)

// Context is the shared mutable state threaded through the steps of one
// authentication attempt.
type Context struct {
	// Details is the mapped identity from the verified token.
	Details identity.UserDetails

	// SessionUser is the user already attached to the current session, if any.
	SessionUser *store.User

	// User is the resolved local user. Nil until a step resolves one.
	User *store.User

	// IsNew reports whether the attempt created a new user. Nil until a step
	// decides.
	IsNew *bool
}

// Result is a step's partial update, merged into the Context by the Runner.
// The zero Result means "no change".
type Result struct {
	IsNew *bool
	User  *store.User
}

// Step is one reconciliation step. Steps must not reorder: later steps depend
// on state set by earlier ones.
type Step interface {
	// Name identifies the step in logs.
	Name() string

	// Run inspects the context and returns a partial update, or an error to
	// abort the whole pipeline.
	Run(ctx context.Context, pc *Context) (Result, error)
}

// Runner composes steps in a fixed order. Hosts append their own steps (user
// creation, social-identity association) between the provided ones.
type Runner struct {
	steps  []Step
	logger observability.Logger
}

// NewRunner creates a Runner over the given steps.
func NewRunner(logger observability.Logger, steps ...Step) *Runner {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Runner{steps: steps, logger: logger}
}

// Run executes the steps in order, merging each partial result into pc.
// The first step error aborts the run.
func (r *Runner) Run(ctx context.Context, pc *Context) error {
	for _, step := range r.steps {
		res, err := step.Run(ctx, pc)
		if err != nil {
			return fmt.Errorf("pipeline step %s: %w", step.Name(), err)
		}
		if res.IsNew != nil {
			pc.IsNew = res.IsNew
		}
		if res.User != nil {
			pc.User = res.User
		}
		r.logger.Debug("pipeline step done", "step", step.Name(),
			"resolved", pc.User != nil)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
