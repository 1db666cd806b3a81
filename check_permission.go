package rbac

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const checkFailedMessage = "Failed to validate permission"

// PermissionChecker answers a single permission question.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID, permission string) (bool, error)
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	// MaxConcurrentChecks bounds the fan-out of any/all checks; zero means
	// unbounded.
	MaxConcurrentChecks int
	Metrics             *Metrics
	Logger              *zap.SugaredLogger
}

// Guard turns permission checks into allow/deny outcomes.
type Guard struct {
	checker       PermissionChecker
	maxConcurrent int
	metrics       *Metrics
	log           *zap.SugaredLogger
}

// NewGuard creates a Guard over checker.
func NewGuard(checker PermissionChecker, opts GuardOptions) *Guard {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Guard{
		checker:       checker,
		maxConcurrent: opts.MaxConcurrentChecks,
		metrics:       opts.Metrics,
		log:           opts.Logger,
	}
}

// Option customizes a single guard call.
type Option func(*callOptions)

type callOptions struct {
	throw   bool
	message string
}

// NoThrow makes a failing guard return (false, nil) instead of an error.
func NoThrow() Option {
	return func(o *callOptions) { o.throw = false }
}

// WithMessage replaces the default denial message. Failed checks keep
// their own message.
func WithMessage(msg string) Option {
	return func(o *callOptions) { o.message = msg }
}

func resolve(opts []Option) callOptions {
	o := callOptions{throw: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RequirePermission succeeds when userID holds permission.
func (g *Guard) RequirePermission(ctx context.Context, userID, permission string, opts ...Option) (bool, error) {
	o := resolve(opts)
	allowed, err := g.checker.CheckPermission(ctx, userID, permission)
	if err != nil {
		return g.fail("single", o, userID, checkFailure(err))
	}
	if !allowed {
		return g.fail("single", o, userID, denial(o, "User lacks required permission: "+permission))
	}
	g.metrics.observeDecision("single", outcomeAllowed)
	return true, nil
}

// RequireAnyPermission succeeds when userID holds at least one of
// permissions. An empty list never succeeds.
func (g *Guard) RequireAnyPermission(ctx context.Context, userID string, permissions []string, opts ...Option) (bool, error) {
	o := resolve(opts)
	if len(permissions) == 0 {
		return g.fail("any", o, userID, denial(o, "User lacks any of the required permissions: none requested"))
	}

	var firstErr error
	for _, r := range g.checkAll(ctx, userID, permissions) {
		if r.Allowed {
			g.metrics.observeDecision("any", outcomeAllowed)
			return true, nil
		}
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
		}
	}
	if firstErr != nil {
		return g.fail("any", o, userID, checkFailure(firstErr))
	}
	return g.fail("any", o, userID, denial(o, "User lacks any of the required permissions: "+strings.Join(permissions, ", ")))
}

// RequireAllPermissions succeeds when userID holds every one of permissions.
// An empty list always succeeds.
func (g *Guard) RequireAllPermissions(ctx context.Context, userID string, permissions []string, opts ...Option) (bool, error) {
	if len(permissions) == 1 {
		return g.RequirePermission(ctx, userID, permissions[0], opts...)
	}
	o := resolve(opts)
	if len(permissions) == 0 {
		g.metrics.observeDecision("all", outcomeAllowed)
		return true, nil
	}

	var missing []string
	for _, r := range g.checkAll(ctx, userID, permissions) {
		if r.Err != nil {
			return g.fail("all", o, userID, checkFailure(r.Err))
		}
		if !r.Allowed {
			missing = append(missing, r.Permission)
		}
	}
	if len(missing) > 0 {
		return g.fail("all", o, userID, denial(o, "User lacks all required permissions: "+strings.Join(missing, ", ")))
	}
	g.metrics.observeDecision("all", outcomeAllowed)
	return true, nil
}

func (g *Guard) fail(check string, o callOptions, userID string, pe *PermissionError) (bool, error) {
	if pe.CheckFailed() {
		g.metrics.observeDecision(check, outcomeError)
		g.log.Errorw("permission check failed", "check", check, "user_id", userID, "error", pe.Err)
	} else {
		g.metrics.observeDecision(check, outcomeDenied)
		g.log.Debugw("permission denied", "check", check, "user_id", userID, "reason", pe.Message)
	}
	if !o.throw {
		return false, nil
	}
	return false, pe
}

func denial(o callOptions, fallback string) *PermissionError {
	if o.message != "" {
		return NewPermissionError(o.message)
	}
	return NewPermissionError(fallback)
}

// checkFailure normalizes a checker error. A PermissionError coming from the
// checker is passed through untouched.
func checkFailure(err error) *PermissionError {
	if pe, ok := AsPermissionError(err); ok {
		return pe
	}
	return &PermissionError{Message: checkFailedMessage, Err: err}
}
