package tripsync

import "context"

// IdentityProvider exposes the currently signed-in account. Current returns
// "" when nobody is signed in. Subscribe delivers every later change.
type IdentityProvider interface {
	Current() string
	Subscribe(fn func(ownerID string)) (cancel func())
}

// Follow binds the engine to the provider's current account and keeps it in
// step with later changes: a non-empty id binds, an empty id unbinds. Errors
// from the initial and subsequent fetches are logged by Bind. The returned
// stop func ends the subscription and leaves the engine as it is.
func (e *Engine) Follow(ctx context.Context, p IdentityProvider) (stop func()) {
	cancel := p.Subscribe(func(ownerID string) {
		_ = e.Bind(ctx, ownerID)
	})
	_ = e.Bind(ctx, p.Current())
	return cancel
}
