package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"authkit/internal/identity"
	"authkit/internal/store"
)

type stubStep struct {
	name   string
	result Result
	err    error
	ran    *[]string
}

func (s *stubStep) Name() string { return s.name }

func (s *stubStep) Run(context.Context, *Context) (Result, error) {
	*s.ran = append(*s.ran, s.name)
	return s.result, s.err
}

func TestRunnerMergesInOrder(t *testing.T) {
	var ran []string
	user := &store.User{Username: "jsmith"}

	runner := NewRunner(nil,
		&stubStep{name: "first", result: Result{IsNew: boolPtr(true)}, ran: &ran},
		&stubStep{name: "second", result: Result{IsNew: boolPtr(false), User: user}, ran: &ran},
		&stubStep{name: "third", ran: &ran},
	)

	pc := &Context{}
	if err := runner.Run(context.Background(), pc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(ran, ","); got != "first,second,third" {
		t.Errorf("step order = %s", got)
	}
	// Later results win; empty results leave state alone.
	if pc.IsNew == nil || *pc.IsNew {
		t.Errorf("IsNew = %v, want false", pc.IsNew)
	}
	if pc.User != user {
		t.Errorf("User = %+v", pc.User)
	}
}

func TestRunnerAbortsOnError(t *testing.T) {
	var ran []string
	stepErr := errors.New("boom")

	runner := NewRunner(nil,
		&stubStep{name: "first", err: stepErr, ran: &ran},
		&stubStep{name: "second", ran: &ran},
	)

	err := runner.Run(context.Background(), &Context{})
	if !errors.Is(err, stepErr) {
		t.Fatalf("err = %v, want wrapped step error", err)
	}
	if !strings.Contains(err.Error(), "first") {
		t.Errorf("error %q does not name the failing step", err)
	}
	if len(ran) != 1 {
		t.Errorf("steps run after failure = %v", ran)
	}
}

// Full pipeline over the default steps, covering the reconciliation scenarios
// end to end.
func TestDefaultPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("existing user with changed email", func(t *testing.T) {
		s := store.NewMemoryUserStore()
		seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

		runner := NewRunner(nil,
			&ResolveExistingUser{Store: s},
			&SyncEmail{Store: s},
		)
		pc := &Context{Details: identity.UserDetails{Username: "jsmith", Email: "new@example.com"}}
		if err := runner.Run(ctx, pc); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if pc.IsNew == nil || *pc.IsNew {
			t.Errorf("IsNew = %v, want false", pc.IsNew)
		}
		if pc.User == nil || pc.User.Email != "new@example.com" {
			t.Errorf("User = %+v", pc.User)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		s := store.NewMemoryUserStore()
		runner := NewRunner(nil,
			&ResolveExistingUser{Store: s},
			&SyncEmail{Store: s},
		)
		pc := &Context{Details: identity.UserDetails{Username: "new-user", Email: "n@example.com"}}
		if err := runner.Run(ctx, pc); err != nil {
			t.Fatalf("Run: %v", err)
		}
		// Nothing resolved; the host's own creation step decides what happens.
		if pc.IsNew != nil || pc.User != nil {
			t.Errorf("unknown user: IsNew=%v User=%+v", pc.IsNew, pc.User)
		}
	})

	t.Run("session user", func(t *testing.T) {
		s := store.NewMemoryUserStore()
		seedUser(t, s, &store.User{Username: "jsmith", Email: "old@example.com"})

		runner := NewRunner(nil,
			&ResolveExistingUser{Store: s},
			&SyncEmail{Store: s},
		)
		pc := &Context{
			Details:     identity.UserDetails{Username: "jsmith", Email: "new@example.com"},
			SessionUser: &store.User{Username: "jsmith", Email: "old@example.com"},
		}
		if err := runner.Run(ctx, pc); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if pc.IsNew == nil || *pc.IsNew {
			t.Errorf("IsNew = %v, want false", pc.IsNew)
		}
		stored, _ := s.GetByUsername(ctx, "jsmith")
		if stored.Email != "new@example.com" {
			t.Errorf("session user email not synced: %q", stored.Email)
		}
	})
}
