package accountflow

import "context"

// AuthGateway creates and authenticates identities in an external identity
// backend. Implementations must report failures as *AuthError; anything else
// is normalized to AuthDefault by the orchestrators.
//
// Each call is made exactly once per submission. Implementations must not
// retry internally on behalf of the caller.
type AuthGateway interface {
	CreateAccount(ctx context.Context, email, password string) (IdentityID, error)
	SignIn(ctx context.Context, email, password string) (IdentityID, error)
}

// SessionTerminator is an optional AuthGateway capability that ends the
// current provider session.
type SessionTerminator interface {
	SignOut(ctx context.Context) error
}

// ProfileStore persists profile records keyed by IdentityID. Implementations
// must report failures as *PersistenceError. Fetch of an absent record
// returns ErrDocumentNotFound.
type ProfileStore interface {
	Save(ctx context.Context, id IdentityID, user User) error
	Fetch(ctx context.Context, id IdentityID) (User, error)
}

// OrphanRecorder is notified once for every identity created without a
// persisted profile. It is a reconciliation hook only; nothing is rolled back
// or retried.
type OrphanRecorder interface {
	RecordOrphan(ctx context.Context, orphan OrphanedIdentity) error
}
