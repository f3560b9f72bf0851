// internal/resolver/resolver.go
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/linkedin"
	"github.com/unclebandit/outreach-backend/internal/unipile"
)

// maxBackoff caps how long one rate-limit backoff can stall a batch pass.
const maxBackoff = 2 * time.Minute

// ProfileLookup is the provider call the resolver depends on.
type ProfileLookup interface {
	GetProfile(ctx context.Context, identifier, accountID string) (*unipile.Profile, error)
}

// Resolution is the outcome of resolving a LinkedIn reference. The resolver
// never mutates prospect or queue state; acting on a resolution is the
// caller's job.
type Resolution struct {
	ProviderID        string
	NetworkDistance   string
	InvitationPending bool
	// LookedUp is false when the reference already had the provider id
	// shape and no network call was made.
	LookedUp bool
}

// Connected reports a first-degree connection on the provider network.
func (r *Resolution) Connected() bool {
	return r.NetworkDistance == "FIRST_DEGREE"
}

type Resolver struct {
	Client ProfileLookup
	Log    zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client ProfileLookup, log zerolog.Logger) *Resolver {
	return &Resolver{
		Client: client,
		Log:    log,
		sleep:  sleepCtx,
	}
}

// Resolve turns a LinkedIn reference into an opaque provider id. A reference
// that already has the provider-id shape is returned unchanged without a
// network call.
func (r *Resolver) Resolve(ctx context.Context, ref, providerAccountID string) (*Resolution, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, appErrors.NewInvalidReference(ref)
	}

	if linkedin.IsProviderID(trimmed) {
		return &Resolution{ProviderID: trimmed}, nil
	}

	vanity, err := linkedin.Vanity(trimmed)
	if err != nil {
		return nil, err
	}

	profile, err := r.Client.GetProfile(ctx, vanity, providerAccountID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		ProviderID:      profile.ProviderID,
		NetworkDistance: profile.NetworkDistance,
		LookedUp:        true,
	}
	if profile.Invitation != nil && profile.Invitation.Status == "PENDING" {
		res.InvitationPending = true
	}
	return res, nil
}

// ResolveWithBackoff resolves, and on provider throttling waits out the
// advertised backoff once before a single retry. Never retries immediately.
func (r *Resolver) ResolveWithBackoff(ctx context.Context, ref, providerAccountID string) (*Resolution, error) {
	res, err := r.Resolve(ctx, ref, providerAccountID)
	rl, ok := appErrors.IsRateLimited(err)
	if !ok {
		return res, err
	}

	wait := rl.RetryAfter
	if wait > maxBackoff {
		wait = maxBackoff
	}
	r.Log.Warn().Str("ref", ref).Dur("backoff", wait).Msg("provider throttled, backing off")
	if err := r.sleep(ctx, wait); err != nil {
		return nil, err
	}
	return r.Resolve(ctx, ref, providerAccountID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
