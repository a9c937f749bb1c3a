package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// Reporter records diagnostic events that operators should see even when the
// authentication flow deliberately continues (e.g. a swallowed store error or
// a skipped email sync). Implementations must be safe for concurrent use.
type Reporter interface {
	// CaptureError records an error-level diagnostic.
	CaptureError(ctx context.Context, err error, tags map[string]string)
	// CaptureMessage records an informational diagnostic.
	CaptureMessage(ctx context.Context, msg string, tags map[string]string)
}

// SentryReporter reports diagnostics to Sentry. The Sentry client must be
// initialized by the host (sentry.Init) before events are delivered; without
// initialization captures are no-ops inside the SDK.
type SentryReporter struct{}

// NewSentryReporter creates a Reporter backed by the global Sentry hub.
func NewSentryReporter() *SentryReporter {
	return &SentryReporter{}
}

func (*SentryReporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

func (*SentryReporter) CaptureMessage(ctx context.Context, msg string, tags map[string]string) {
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureMessage(msg)
	})
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

// NopReporter discards all diagnostics.
type NopReporter struct{}

func (NopReporter) CaptureError(context.Context, error, map[string]string)    {}
func (NopReporter) CaptureMessage(context.Context, string, map[string]string) {}
