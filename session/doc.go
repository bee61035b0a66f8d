// Package session owns the process-wide Session entity: the access/refresh
// credential pair, the authenticated principal and organization snapshots,
// and the transient renewal-failure flag.
//
// # Design
//
// [Store] is the single writer. Every mutation flows through one of the
// store operations (Login, Logout, ApplyRenewal, MarkRenewalExhausted,
// UpdatePrincipal, Restore); no other package writes credential state
// directly. This exclusivity is what makes the renewal race-freedom
// guarantee reviewable.
//
// The authenticated flag is never stored. It is derived on every read as
//
//	authenticated == access != "" && refresh != "" && !exhausted
//
// so the invariant cannot drift from the underlying fields.
//
// # What this package must NOT do
//
//   - Perform I/O. Persistence mirroring happens through the change hook,
//     off the caller's path.
//   - Import any sibling package.
package session
