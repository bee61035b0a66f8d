// Package storage persists the restart-surviving subset of the Session
// (credentials, principal, organization, authenticated flag) under a single
// namespaced key.
//
// Two backends are provided: [FileStore] for desktop/CLI embedders and
// [RedisStore] for clients that run server-side. Both round-trip the same
// JSON [Record]. The transient renewal state (in-flight handle, terminal
// failure flag) is deliberately absent from the record: persisting it would
// carry a stale lockout across restarts.
package storage
