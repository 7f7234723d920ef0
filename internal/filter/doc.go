// Package filter decides whether a watched event is forwarded.
//
// # Contract
//
// A Chain evaluates three rules in order and stops at the first rejection:
//  1. DELETED events, when SkipDeleteEvents is set
//  2. events whose reason is listed in ReasonsToSkip
//  3. events whose name matches any EntityBlacklist pattern (unanchored)
//
// Everything else is accepted. Evaluation is pure; the Config is never
// modified after NewChain.
package filter
