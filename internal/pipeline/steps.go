package pipeline

import (
	"context"

	"authkit/internal/observability"
	"authkit/internal/store"
)

// ResolveExistingUser loads an existing local user for the mapped identity
// instead of letting the host mint a new username on conflict.
//
// A session-attached user resolves the identity immediately, unless
// IgnoreSessionUserOnMismatch is set and the session user's username differs
// from the token's, in which case the step falls through to a store lookup.
// Store lookup failures are deliberately treated like "not found" so a
// transient store error does not block login; they are logged and reported.
type ResolveExistingUser struct {
	Store store.UserStore

	// IgnoreSessionUserOnMismatch makes a username mismatch distrust the
	// session user rather than short-circuiting on it.
	IgnoreSessionUserOnMismatch bool

	Logger   observability.Logger
	Reporter observability.Reporter
}

func (s *ResolveExistingUser) Name() string { return "resolve_existing_user" }

func (s *ResolveExistingUser) Run(ctx context.Context, pc *Context) (Result, error) {
	if pc.SessionUser != nil {
		mismatch := pc.Details.Username != "" && pc.SessionUser.Username != pc.Details.Username
		if !mismatch || !s.IgnoreSessionUserOnMismatch {
			return Result{IsNew: boolPtr(false)}, nil
		}
		s.logger().WarnContext(ctx, "session user ignored on username mismatch",
			"session_username", pc.SessionUser.Username,
			"token_username", pc.Details.Username)
	}

	username := pc.Details.Username
	if username == "" {
		return Result{}, nil
	}

	user, err := s.Store.GetByUsername(ctx, username)
	if err != nil {
		// Availability over strictness: lookup failure must not block login.
		s.logger().ErrorContext(ctx, "user lookup failed; continuing without a resolved user",
			"username", username, "error", err)
		s.reporter().CaptureError(ctx, err, map[string]string{"step": s.Name()})
		return Result{}, nil
	}
	if user == nil {
		return Result{}, nil
	}

	return Result{IsNew: boolPtr(false), User: user}, nil
}

func (s *ResolveExistingUser) logger() observability.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return observability.Nop()
}

func (s *ResolveExistingUser) reporter() observability.Reporter {
	if s.Reporter != nil {
		return s.Reporter
	}
	return observability.NopReporter{}
}

// SyncEmail persists the provider's email onto the resolved user when it
// changed. Under the strict policy a username mismatch skips the sync, so a
// cross-account overwrite cannot happen; SyncOnUsernameMismatch restores the
// legacy permissive behavior.
type SyncEmail struct {
	Store store.UserStore

	// SyncOnUsernameMismatch syncs the email even when the token's username
	// differs from the resolved user's.
	SyncOnUsernameMismatch bool

	Logger   observability.Logger
	Reporter observability.Reporter
}

func (s *SyncEmail) Name() string { return "sync_email" }

func (s *SyncEmail) Run(ctx context.Context, pc *Context) (Result, error) {
	user := pc.User
	if user == nil {
		user = pc.SessionUser
	}
	if user == nil {
		return Result{}, nil
	}

	email := pc.Details.Email
	if email == "" || user.Email == email {
		return Result{}, nil
	}

	if pc.Details.Username != user.Username && !s.SyncOnUsernameMismatch {
		s.logger().WarnContext(ctx, "email sync skipped on username mismatch",
			"username", user.Username, "token_username", pc.Details.Username)
		s.reporter().CaptureMessage(ctx, "email sync skipped on username mismatch",
			map[string]string{"step": s.Name(), "username": user.Username})
		return Result{}, nil
	}

	if err := s.Store.UpdateEmail(ctx, user.Username, email); err != nil {
		return Result{}, err
	}

	updated := *user
	updated.Email = email
	return Result{User: &updated}, nil
}

func (s *SyncEmail) logger() observability.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return observability.Nop()
}

func (s *SyncEmail) reporter() observability.Reporter {
	if s.Reporter != nil {
		return s.Reporter
	}
	return observability.NopReporter{}
}
