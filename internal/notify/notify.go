package notify

import "context"

// Notifier delivers operator notifications. Every method is best-effort:
// implementations swallow channel failures, and callers never treat a failed
// notification as an upgrade or health failure.
type Notifier interface {
	// Send delivers a message and returns its id. ok is false when the
	// message could not be sent or the notifier is unconfigured.
	Send(ctx context.Context, text string) (id string, ok bool)
	// Pin pins a previously sent message.
	Pin(ctx context.Context, id string)
	// Unpin removes the pin from a previously sent message.
	Unpin(ctx context.Context, id string)
}

// Nop is a Notifier that silently drops everything. Used when no
// notification channel is configured.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(_ context.Context, _ string) (string, bool) {
	return "", false
}

// Pin implements Notifier.
func (Nop) Pin(_ context.Context, _ string) {}

// Unpin implements Notifier.
func (Nop) Unpin(_ context.Context, _ string) {}
