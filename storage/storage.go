package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/costscope/costscope-go/session"
)

// ErrNotFound is returned by Load when no record has been saved yet. Callers
// treat it as "start empty", never as a failure.
var ErrNotFound = errors.New("storage: session record not found")

const recordVersion = 1

// Record is the persisted subset of the Session.
type Record struct {
	Version           int                   `json:"version"`
	AccessCredential  string                `json:"access_credential,omitempty"`
	RefreshCredential string                `json:"refresh_credential,omitempty"`
	Principal         *session.Principal    `json:"principal,omitempty"`
	Organization      *session.Organization `json:"organization,omitempty"`
	IsAuthenticated   bool                  `json:"is_authenticated"`
	SavedAt           int64                 `json:"saved_at,omitempty"`
}

// Store is the durable backend behind the persistence mirror.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// FromSnapshot builds the persisted record for a session snapshot.
func FromSnapshot(snap session.Snapshot) *Record {
	return &Record{
		Version:           recordVersion,
		AccessCredential:  snap.AccessCredential,
		RefreshCredential: snap.RefreshCredential,
		Principal:         snap.Principal,
		Organization:      snap.Organization,
		IsAuthenticated:   snap.Authenticated,
		SavedAt:           time.Now().Unix(),
	}
}

// Snapshot converts a loaded record back into session state. The renewal
// flags always come back cleared.
func (r *Record) Snapshot() session.Snapshot {
	return session.Snapshot{
		AccessCredential:  r.AccessCredential,
		RefreshCredential: r.RefreshCredential,
		Principal:         r.Principal,
		Organization:      r.Organization,
		Authenticated:     r.AccessCredential != "" && r.RefreshCredential != "",
	}
}

// Empty reports whether the record carries nothing worth persisting.
func (r *Record) Empty() bool {
	return r.AccessCredential == "" && r.RefreshCredential == "" &&
		r.Principal == nil && r.Organization == nil
}

// Encode serializes a record.
func Encode(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode deserializes a record, rejecting records written by a future
// format version.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Version > recordVersion {
		return nil, errors.New("storage: unsupported record version")
	}
	return &r, nil
}
