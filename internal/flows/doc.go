// Package flows holds the session-lifecycle orchestration: login,
// registration, credential renewal, logout, and principal refresh.
//
// Each flow declares its dependencies as a Deps struct of narrow function
// fields and runs without importing the root package, so the root engine
// stays the only place where wiring happens. The renewal coordinator is the
// one stateful piece: it owns the single in-flight exchange handle.
package flows
