package session

import (
	"strings"
	"sync"
)

// ChangeFunc observes every store mutation with a post-mutation snapshot.
// seq is assigned inside the store's critical section and increases in
// mutation order, so an observer that receives snapshots out of order can
// discard the stale one. It must not block; the engine wires it to an
// asynchronous mirror.
type ChangeFunc func(seq uint64, snap Snapshot)

// Store is the single source of truth for the Session entity. All methods
// are safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	seq          uint64
	access       string
	refresh      string
	principal    *Principal
	organization *Organization
	exhausted    bool

	onChange ChangeFunc
}

// NewStore creates an empty session store. onChange may be nil.
func NewStore(onChange ChangeFunc) *Store {
	return &Store{onChange: onChange}
}

// Login unconditionally overwrites both credentials and the identity
// snapshots, and clears any prior terminal renewal failure.
func (s *Store) Login(creds Credentials, p *Principal, org *Organization) {
	s.mu.Lock()
	s.access = creds.Access
	s.refresh = creds.Refresh
	s.principal = clonePrincipal(p)
	s.organization = cloneOrganization(org)
	s.exhausted = false
	seq, snap := s.stampLocked()
	s.mu.Unlock()

	s.notify(seq, snap)
}

// Logout clears every field to its empty state. The terminal renewal-failure
// flag survives logout; only a fresh Login resets it. Idempotent.
func (s *Store) Logout() {
	s.mu.Lock()
	changed := s.access != "" || s.refresh != "" || s.principal != nil || s.organization != nil
	s.access = ""
	s.refresh = ""
	s.principal = nil
	s.organization = nil
	seq, snap := s.stampLocked()
	s.mu.Unlock()

	if changed {
		s.notify(seq, snap)
	}
}

// ApplyRenewal replaces only the credential pair. Principal and organization
// are untouched. Called exclusively by the renewal coordinator.
func (s *Store) ApplyRenewal(access, refresh string) {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	seq, snap := s.stampLocked()
	s.mu.Unlock()

	s.notify(seq, snap)
}

// MarkRenewalExhausted records a terminal renewal failure. Not persisted and
// not mirrored: the flag is per-process concurrency state.
func (s *Store) MarkRenewalExhausted() {
	s.mu.Lock()
	s.exhausted = true
	s.mu.Unlock()
}

// RenewalExhausted reports whether a terminal renewal failure is active.
func (s *Store) RenewalExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// UpdatePrincipal replaces the principal snapshot after a /me refresh.
func (s *Store) UpdatePrincipal(p *Principal) {
	s.mu.Lock()
	s.principal = clonePrincipal(p)
	seq, snap := s.stampLocked()
	s.mu.Unlock()

	s.notify(seq, snap)
}

// UpdateOrganization replaces the tenant snapshot.
func (s *Store) UpdateOrganization(org *Organization) {
	s.mu.Lock()
	s.organization = cloneOrganization(org)
	seq, snap := s.stampLocked()
	s.mu.Unlock()

	s.notify(seq, snap)
}

// Restore rehydrates persisted state at startup. The terminal flag and any
// in-flight renewal handle are process-local and always start cleared.
// Restore does not fire the change hook; the state came from the mirror.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	s.access = snap.AccessCredential
	s.refresh = snap.RefreshCredential
	s.principal = clonePrincipal(snap.Principal)
	s.organization = cloneOrganization(snap.Organization)
	s.exhausted = false
	s.mu.Unlock()
}

// AccessCredential returns the current access credential, or "".
func (s *Store) AccessCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshCredential returns the current refresh credential, or "".
func (s *Store) RefreshCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// Principal returns a copy of the principal snapshot, or nil.
func (s *Store) Principal() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrincipal(s.principal)
}

// Organization returns a copy of the tenant snapshot, or nil.
func (s *Store) Organization() *Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrganization(s.organization)
}

// Authenticated derives the authentication flag from the credential pair and
// the terminal renewal-failure state.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticatedLocked()
}

// Snapshot returns a deep copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAdmin reports whether the principal holds the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal != nil && strings.EqualFold(strings.TrimSpace(s.principal.Role), "admin")
}

// IsPrivileged reports whether the principal's username appears in the
// allow-list. Comparison is case-insensitive and whitespace-trimmed on both
// sides.
func (s *Store) IsPrivileged(allowlist []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(s.principal.Username))
	if name == "" {
		return false
	}
	for _, entry := range allowlist {
		if name == strings.ToLower(strings.TrimSpace(entry)) {
			return true
		}
	}
	return false
}

func (s *Store) authenticatedLocked() bool {
	return s.access != "" && s.refresh != "" && !s.exhausted
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		AccessCredential:  s.access,
		RefreshCredential: s.refresh,
		Principal:         clonePrincipal(s.principal),
		Organization:      cloneOrganization(s.organization),
		Authenticated:     s.authenticatedLocked(),
		RenewalExhausted:  s.exhausted,
	}
}

// stampLocked assigns the mutation's sequence number together with its
// snapshot, so ordering is fixed before the mutex is released.
func (s *Store) stampLocked() (uint64, Snapshot) {
	s.seq++
	return s.seq, s.snapshotLocked()
}

func (s *Store) notify(seq uint64, snap Snapshot) {
	if s.onChange != nil {
		s.onChange(seq, snap)
	}
}

func clonePrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

func cloneOrganization(o *Organization) *Organization {
	if o == nil {
		return nil
	}
	out := *o
	return &out
}
