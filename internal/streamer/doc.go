// Package streamer runs the watch loop that moves Kubernetes Events from a
// namespace to a notification Sender.
//
// # Contract
//
// Streamer.Run alternates between two states until its context ends:
//
//	Streaming: one watch subscription is open. Each event is decoded,
//	           filtered, formatted and sent before the next one is read.
//	IdleWait:  the subscription has ended (closed by the server, failed to
//	           open, or reported an error). Sleep the fixed backoff, then
//	           return to Streaming.
//
// The backoff is constant (default 30s): no jitter, no growth. A clean close
// and a failed stream lead to the same wait; they differ only in the log line
// and the watch_sessions_total result label.
//
// The subscription is always stopped before Streaming returns, so a new one
// is never opened while the previous is still live.
//
// Per-event failures never end the loop: malformed events and delivery
// errors are logged, counted and skipped.
package streamer
