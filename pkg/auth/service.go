package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
)

// DefaultSessionTTL is used when the service is built without a TTL
const DefaultSessionTTL = 12 * time.Hour

const identityColumns = "id, username, email, password_hash, role, is_active, created_at, last_login_at"

// Service manages identities, credentials and login sessions
type Service struct {
	db       *database.DB
	hasher   *hasher
	sessions SessionStore
	recorder *audit.Recorder
	logger   *observability.Logger
	metrics  *observability.Metrics
	ttl      time.Duration
	now      func() time.Time
}

// Options configures a Service. Zero values pick defaults.
type Options struct {
	SessionTTL time.Duration
	BcryptCost int
	Metrics    *observability.Metrics
}

// NewService creates an identity service over the shared store handle
func NewService(db *database.DB, sessions SessionStore, recorder *audit.Recorder, logger *observability.Logger, opts Options) *Service {
	if sessions == nil {
		sessions = NewSQLSessionStore(db)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &Service{
		db:       db,
		hasher:   newHasher(opts.BcryptCost),
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		metrics:  opts.Metrics,
		ttl:      opts.SessionTTL,
		now:      time.Now,
	}
}

// Sessions exposes the session store for maintenance jobs
func (s *Service) Sessions() SessionStore {
	return s.sessions
}

// CreateIdentity validates and stores a new identity. A nil actor means a
// system caller such as bootstrap seeding or the CLI.
func (s *Service) CreateIdentity(ctx context.Context, actor *Identity, in NewIdentity) (*Identity, error) {
	if actor != nil && !actor.IsAdmin() {
		s.record(ctx, actor, audit.ActionCreate, nil, "Attempted to create user: "+in.Username, apperr.ErrAccessDenied)
		return nil, apperr.ErrAccessDenied
	}

	identity, err := s.createIdentity(ctx, in)
	if err != nil {
		s.record(ctx, actor, audit.ActionCreate, nil, "Attempted to create user: "+in.Username, err)
		return nil, err
	}

	s.record(ctx, actor, audit.ActionCreate, &identity.ID,
		fmt.Sprintf("Created user: %s with role: %s", identity.Username, identity.Role), nil)

	return identity, nil
}

func (s *Service) createIdentity(ctx context.Context, in NewIdentity) (*Identity, error) {
	in, err := normalizeNewIdentity(in)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE username = $1 OR email = $2 LIMIT 1",
		in.Username, in.Email,
	).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: username or email already registered", apperr.ErrDuplicateIdentity)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check existing identity: %w", err)
	}

	hash, err := s.hasher.hash(in.Password)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, identity.Username, identity.Email, identity.PasswordHash, string(identity.Role), identity.IsActive, identity.CreatedAt,
	).Scan(&identity.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", apperr.ErrDuplicateIdentity)
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return identity, nil
}

// Authenticate checks a username and password. Unknown user, wrong password
// and inactive account are indistinguishable to the caller. Exactly one
// audit entry is appended per call.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	// No stored identity can match a malformed handle, and some stores reject
	// such bytes in a query parameter outright.
	if !usernamePattern.MatchString(username) {
		s.hasher.burn(password)
		s.loginFailed(ctx, username)
		return nil, apperr.ErrInvalidCredentials
	}

	identity, err := s.findByUsername(ctx, username)
	if err != nil && !apperr.IsNotFound(err) {
		s.loginFailed(ctx, username)
		return nil, err
	}

	if identity == nil {
		s.hasher.burn(password)
		s.loginFailed(ctx, username)
		return nil, apperr.ErrInvalidCredentials
	}

	if err := s.hasher.compare(identity.PasswordHash, password); err != nil || !identity.IsActive {
		s.loginFailed(ctx, username)
		return nil, apperr.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", now, identity.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", identity.ID).Warn("Failed to update last login time")
	} else {
		identity.LastLoginAt = &now
	}

	if s.metrics != nil {
		s.metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	}
	s.record(ctx, identity, audit.ActionLogin, &identity.ID, "User logged in", nil)

	return identity, nil
}

// RecordFailedLogin appends the audit entry of a login rejected before any
// credential check, such as a request with a blank username or password.
func (s *Service) RecordFailedLogin(ctx context.Context, username string) {
	s.loginFailed(ctx, username)
}

func (s *Service) loginFailed(ctx context.Context, username string) {
	if s.metrics != nil {
		s.metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
	}
	username = audit.CleanText(username, maxUsernameLength)
	s.recordEntry(ctx, audit.Entry{
		Action:   audit.ActionLoginFailed,
		Resource: audit.ResourceUser,
		Detail:   "failed login attempt for user: " + username,
		Outcome:  audit.OutcomeFailure,
	})
}

// Login authenticates and opens a session. The raw token is only returned here.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Session, *Identity, error) {
	identity, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, nil, err
	}

	token, session, err := s.sessions.Create(ctx, identity.ID, s.ttl)
	if err != nil {
		return "", nil, nil, err
	}

	return token, session, identity, nil
}

// Logout revokes the session behind token
func (s *Service) Logout(ctx context.Context, actor *Identity, token string) error {
	err := s.sessions.Revoke(ctx, token)

	var resourceID *int64
	if actor != nil {
		resourceID = &actor.ID
	}
	s.record(ctx, actor, audit.ActionLogout, resourceID, "User logged out", err)

	return err
}

// ResolveSession maps a bearer token to its active identity
func (s *Service) ResolveSession(ctx context.Context, token string) (*Identity, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	identity, err := s.GetIdentity(ctx, session.UserID)
	if apperr.IsNotFound(err) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, apperr.ErrUnauthenticated
	}

	return identity, nil
}

// SetCredential replaces a user's password. Only the user themselves or an
// administrator may do this. Existing sessions of the user are revoked.
func (s *Service) SetCredential(ctx context.Context, actor *Identity, userID int64, password string) error {
	if actor != nil && actor.ID != userID && !actor.IsAdmin() {
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change password", apperr.ErrAccessDenied)
		return apperr.ErrAccessDenied
	}

	if err := validatePassword(password); err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change password", err)
		return err
	}

	target, err := s.GetIdentity(ctx, userID)
	if err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change password", err)
		return err
	}

	hash, err := s.hasher.hash(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, userID)
	if err != nil {
		err = fmt.Errorf("failed to update password: %w", err)
	} else if rerr := s.sessions.RevokeUser(ctx, userID); rerr != nil {
		s.logger.WithError(rerr).WithField("user_id", userID).Warn("Failed to revoke sessions after password change")
	}

	s.record(ctx, actor, audit.ActionUpdate, &userID, "Changed password for user: "+target.Username, err)

	return err
}

// ChangePassword lets an identity replace its own password after proving the current one
func (s *Service) ChangePassword(ctx context.Context, actor *Identity, current, next string) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}

	stored, err := s.GetIdentity(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := s.hasher.compare(stored.PasswordHash, current); err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &actor.ID, "Attempted to change password", apperr.ErrInvalidCredentials)
		return apperr.ErrInvalidCredentials
	}

	return s.SetCredential(ctx, actor, actor.ID, next)
}

// GetIdentity retrieves an identity by id
func (s *Service) GetIdentity(ctx context.Context, id int64) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+identityColumns+" FROM users WHERE id = $1", id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return identity, nil
}

// FindByUsername retrieves an identity by its login handle
func (s *Service) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	return s.findByUsername(ctx, username)
}

func (s *Service) findByUsername(ctx context.Context, username string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+identityColumns+" FROM users WHERE username = $1", username)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return identity, nil
}

// ListIdentities returns every identity ordered by username. Administrators only.
func (s *Service) ListIdentities(ctx context.Context, actor *Identity) ([]*Identity, error) {
	if actor != nil && !actor.IsAdmin() {
		return nil, apperr.ErrAccessDenied
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+identityColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var identities []*Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identities: %w", err)
	}

	return identities, nil
}

// SetActive enables or disables an identity. Administrators only; an
// administrator cannot deactivate themselves. Deactivation revokes sessions.
func (s *Service) SetActive(ctx context.Context, actor *Identity, userID int64, active bool) error {
	if actor != nil && !actor.IsAdmin() {
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change account status", apperr.ErrAccessDenied)
		return apperr.ErrAccessDenied
	}
	if actor != nil && actor.ID == userID && !active {
		err := apperr.Invalid("cannot deactivate your own account")
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change account status", err)
		return err
	}

	target, err := s.GetIdentity(ctx, userID)
	if err != nil {
		s.record(ctx, actor, audit.ActionUpdate, &userID, "Attempted to change account status", err)
		return err
	}

	_, err = s.db.ExecContext(ctx, "UPDATE users SET is_active = $1 WHERE id = $2", active, userID)
	if err != nil {
		err = fmt.Errorf("failed to update account status: %w", err)
	} else if !active {
		if rerr := s.sessions.RevokeUser(ctx, userID); rerr != nil {
			s.logger.WithError(rerr).WithField("user_id", userID).Warn("Failed to revoke sessions of deactivated user")
		}
	}

	state := "Activated"
	if !active {
		state = "Deactivated"
	}
	s.record(ctx, actor, audit.ActionUpdate, &userID, fmt.Sprintf("%s user: %s", state, target.Username), err)

	return err
}

// EnsureDefaultAdmin seeds an administrator when the users table is empty.
// It does nothing when any identity exists or no password is configured.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, email, password string) (bool, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count identities: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if password == "" {
		s.logger.Warn("No identities exist and no bootstrap admin password is configured; skipping admin seeding")
		return false, nil
	}

	identity, err := s.CreateIdentity(ctx, nil, NewIdentity{
		Username: username,
		Email:    email,
		Password: password,
		Role:     RoleAdministrator,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed default admin: %w", err)
	}

	s.logger.WithField("username", identity.Username).Info("Seeded default administrator")
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	identity := &Identity{}
	var role string
	var lastLogin sql.NullTime
	err := row.Scan(
		&identity.ID, &identity.Username, &identity.Email, &identity.PasswordHash,
		&role, &identity.IsActive, &identity.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}
	identity.Role = Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		identity.LastLoginAt = &t
	}
	return identity, nil
}

func (s *Service) record(ctx context.Context, actor *Identity, action audit.Action, userID *int64, detail string, err error) {
	entry := audit.Entry{
		Action:     action,
		Resource:   audit.ResourceUser,
		ResourceID: userID,
		Detail:     detail,
		Outcome:    audit.OutcomeOf(err, errors.Is(err, apperr.ErrAccessDenied)),
	}
	if actor != nil {
		entry.ActorID = audit.Int64(actor.ID)
		entry.ActorUsername = actor.Username
	}
	s.recordEntry(ctx, entry)
}

func (s *Service) recordEntry(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, entry)
}
