package pipeline

import (
	"context"
	"errors"
	"testing"

	"authkit/internal/identity"
	"authkit/internal/store"
)

// failingStore fails every lookup, for exercising the downgrade path.
type failingStore struct {
	store.UserStore
	err error
}

func (s *failingStore) GetByUsername(context.Context, string) (*store.User, error) {
	return nil, s.err
}

// recordingReporter captures diagnostic events emitted by steps.
type recordingReporter struct {
	errorCount   int
	messageCount int
	lastMessage  string
}

func (r *recordingReporter) CaptureError(_ context.Context, _ error, _ map[string]string) {
	r.errorCount++
}

func (r *recordingReporter) CaptureMessage(_ context.Context, msg string, _ map[string]string) {
	r.messageCount++
	r.lastMessage = msg
}

func seedUser(t *testing.T, s store.UserStore, user *store.User) *store.User {
	t.Helper()
	if err := s.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestResolveExistingUserFound(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "jsmith@example.com"})

	step := &ResolveExistingUser{Store: s}
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "jsmith"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IsNew == nil || *res.IsNew {
		t.Errorf("IsNew = %v, want false", res.IsNew)
	}
	if res.User == nil || res.User.Username != "jsmith" {
		t.Errorf("User = %+v", res.User)
	}
}

func TestResolveExistingUserAbsent(t *testing.T) {
	step := &ResolveExistingUser{Store: store.NewMemoryUserStore()}
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "jsmith"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IsNew != nil || res.User != nil {
		t.Errorf("absent user must leave the result empty: %+v", res)
	}
}

func TestResolveExistingUserEmptyUsername(t *testing.T) {
	// A lookup with an empty username would be meaningless; the step must not
	// even reach the store.
	step := &ResolveExistingUser{Store: &failingStore{err: errors.New("store reached")}}
	res, err := step.Run(context.Background(), &Context{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IsNew != nil || res.User != nil {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestResolveExistingUserSessionShortCircuit(t *testing.T) {
	// With a session user attached the step resolves immediately and never
	// consults the store.
	step := &ResolveExistingUser{Store: &failingStore{err: errors.New("store reached")}}
	res, err := step.Run(context.Background(), &Context{
		Details:     identity.UserDetails{Username: "other"},
		SessionUser: &store.User{Username: "jsmith"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IsNew == nil || *res.IsNew {
		t.Errorf("IsNew = %v, want false", res.IsNew)
	}
	if res.User != nil {
		t.Errorf("session short-circuit must not attach a user: %+v", res.User)
	}
}

func TestResolveExistingUserIgnoreSessionOnMismatch(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "token-user"})

	step := &ResolveExistingUser{Store: s, IgnoreSessionUserOnMismatch: true}
	res, err := step.Run(context.Background(), &Context{
		Details:     identity.UserDetails{Username: "token-user"},
		SessionUser: &store.User{Username: "session-user"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.User == nil || res.User.Username != "token-user" {
		t.Errorf("mismatch with toggle must fall through to lookup: %+v", res.User)
	}
}

func TestResolveExistingUserLookupErrorDowngraded(t *testing.T) {
	reporter := &recordingReporter{}
	step := &ResolveExistingUser{
		Store:    &failingStore{err: errors.New("connection refused")},
		Reporter: reporter,
	}
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "jsmith"},
	})
	if err != nil {
		t.Fatalf("lookup error must not abort the pipeline: %v", err)
	}
	if res.IsNew != nil || res.User != nil {
		t.Errorf("downgraded error must look like not-found: %+v", res)
	}
	if reporter.errorCount != 1 {
		t.Errorf("CaptureError calls = %d, want 1", reporter.errorCount)
	}
}

func TestSyncEmailUpdates(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

	step := &SyncEmail{Store: s}
	user, _ := s.GetByUsername(context.Background(), "jsmith")
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "jsmith", Email: "new@example.com"},
		User:    user,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.User == nil || res.User.Email != "new@example.com" {
		t.Errorf("result user = %+v", res.User)
	}

	stored, _ := s.GetByUsername(context.Background(), "jsmith")
	if stored.Email != "new@example.com" {
		t.Errorf("stored email = %q", stored.Email)
	}
}

func TestSyncEmailNoChange(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "same@example.com"})

	step := &SyncEmail{Store: s}
	user, _ := s.GetByUsername(context.Background(), "jsmith")
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "jsmith", Email: "same@example.com"},
		User:    user,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.User != nil {
		t.Errorf("identical email must be a no-op: %+v", res.User)
	}
}

func TestSyncEmailSkipsOnMismatch(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

	reporter := &recordingReporter{}
	step := &SyncEmail{Store: s, Reporter: reporter}
	user, _ := s.GetByUsername(context.Background(), "jsmith")
	res, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "other", Email: "new@example.com"},
		User:    user,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.User != nil {
		t.Errorf("mismatch under strict policy must skip: %+v", res.User)
	}
	if reporter.messageCount != 1 {
		t.Errorf("CaptureMessage calls = %d, want 1", reporter.messageCount)
	}

	stored, _ := s.GetByUsername(context.Background(), "jsmith")
	if stored.Email != "old@example.com" {
		t.Errorf("stored email = %q, want unchanged", stored.Email)
	}
}

func TestSyncEmailMismatchPermissive(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

	step := &SyncEmail{Store: s, SyncOnUsernameMismatch: true}
	user, _ := s.GetByUsername(context.Background(), "jsmith")
	_, err := step.Run(context.Background(), &Context{
		Details: identity.UserDetails{Username: "other", Email: "new@example.com"},
		User:    user,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, _ := s.GetByUsername(context.Background(), "jsmith")
	if stored.Email != "new@example.com" {
		t.Errorf("stored email = %q, want updated under permissive policy", stored.Email)
	}
}

func TestSyncEmailUsesSessionUser(t *testing.T) {
	s := store.NewMemoryUserStore()
	seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

	step := &SyncEmail{Store: s}
	_, err := step.Run(context.Background(), &Context{
		Details:     identity.UserDetails{Username: "jsmith", Email: "new@example.com"},
		SessionUser: &store.User{Username: "jsmith", Email: "old@example.com"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, _ := s.GetByUsername(context.Background(), "jsmith")
	if stored.Email != "new@example.com" {
		t.Errorf("stored email = %q", stored.Email)
	}
}
