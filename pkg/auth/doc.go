// Package auth manages identities, credentials and login sessions.
//
// # Overview
//
// Every identity carries one global role:
//
//	administrator  sees and manages every project and user
//	standard       works on projects it is a member of
//	viewer         reads projects it is a member of
//
// Passwords are stored as bcrypt hashes and never serialized. Authentication
// failures (unknown user, wrong password, inactive account) all surface as
// apperr.ErrInvalidCredentials, and unknown usernames still pay for one bcrypt
// comparison.
//
// # Sessions
//
// Login issues an opaque bearer token:
//
//	token, session, identity, err := svc.Login(ctx, "alice", "correct horse")
//	// Token format: wdn_[base64url(32 random bytes)]
//	// Stored as SHA256 hash only
//
// Sessions live in a SessionStore. SQLSessionStore keeps them in the sessions
// table and needs `warden janitor` to purge expired rows; RedisSessionStore
// relies on key expiry.
//
// # Auditing
//
// Creation, login, logout, password and status changes append an audit entry
// through the audit.Recorder. A failed login is recorded without an actor and
// with the attempted username only.
package auth
