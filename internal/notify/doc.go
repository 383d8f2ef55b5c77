// Package notify delivers operator notifications over Telegram.
//
// Delivery is strictly best-effort: a failed send, pin or unpin is logged and
// swallowed, never promoted into an upgrade or health failure. An
// unconfigured notifier degrades to a silent no-op.
package notify
