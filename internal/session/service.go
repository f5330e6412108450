package session

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/identity"
)

const lockStripes = 64

// Service owns the impersonation state machine. All session-mutating
// operations serialize per session id through a striped lock, backed by the
// store's optimistic version check, so rapid duplicate client requests
// cannot produce lost updates.
type Service struct {
	store      StoreAPI
	users      identity.ServiceAPI
	authorizer ImpersonationAuthorizer
	tokens     RestoreTokenAPI
	recorder   audit.RecorderAPI
	sessionTTL time.Duration
	logger     *slog.Logger
	nowFn      func() time.Time
	locks      [lockStripes]sync.Mutex
}

func NewService(
	store StoreAPI,
	users identity.ServiceAPI,
	authorizer ImpersonationAuthorizer,
	tokens RestoreTokenAPI,
	recorder audit.RecorderAPI,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &Service{
		store:      store,
		users:      users,
		authorizer: authorizer,
		tokens:     tokens,
		recorder:   recorder,
		sessionTTL: sessionTTL,
		logger:     logger,
		nowFn:      time.Now,
	}
}

func (s *Service) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Login verifies credentials and opens a fresh authenticated session.
func (s *Service) Login(dto LoginDTO) (*Session, *identity.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, nil, err
	}

	u, err := s.users.VerifyCredentials(dto.Email, dto.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInactive):
			return nil, nil, internal.ErrAccountInactive
		case errors.Is(err, identity.ErrNotFound):
			return nil, nil, internal.ErrInvalidCredentials
		default:
			return nil, nil, err
		}
	}

	now := s.nowFn().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		OriginalUserID: u.ID,
		Version:        1,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if err := s.store.Create(sess); err != nil {
		return nil, nil, err
	}

	s.logger.Info("session opened", "user_id", u.ID, "expires_at", sess.ExpiresAt)
	return sess, u, nil
}

// Get loads a session by its opaque token. Unknown and expired sessions both
// resolve to an unauthenticated error; the caller cannot tell them apart.
func (s *Service) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, internal.ErrUnauthenticated
	}
	sess, err := s.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUnauthenticated
		}
		return nil, err
	}
	if sess.Expired(s.nowFn().UTC()) {
		return nil, internal.ErrSessionExpired
	}
	return sess, nil
}

// EffectiveUser loads the identity record whose permissions and scope govern
// the session.
func (s *Service) EffectiveUser(sess *Session) (*identity.User, error) {
	u, err := s.users.GetByID(sess.EffectiveUserID())
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, internal.ErrUnauthenticated
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrAccountInactive
	}
	return u, nil
}

// OriginalUser loads the credential holder who opened the session.
func (s *Service) OriginalUser(sess *Session) (*identity.User, error) {
	u, err := s.users.GetByID(sess.OriginalUserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, internal.ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// StartImpersonation transitions Authenticated -> Impersonating. The
// impersonate permission is checked against the original identity, never the
// currently effective one. Nested impersonation is rejected; the stored
// record is untouched on every rejection path.
func (s *Service) StartImpersonation(sessionID string, targetUserID int64) (*Session, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsImpersonating() {
		return nil, internal.ErrAlreadyImpersonating
	}

	original, err := s.users.GetByID(sess.OriginalUserID)
	if err != nil {
		return nil, internal.ErrUnauthenticated
	}
	if !original.IsActive {
		return nil, internal.ErrAccountInactive
	}
	if !s.authorizer.CanImpersonate(original) {
		return nil, internal.ErrPermissionDenied
	}

	target, err := s.validateTarget(targetUserID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateImpersonation(sessionID, &targetUserID, sess.Version)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, internal.ErrAlreadyImpersonating
		}
		return nil, err
	}

	s.logger.Info("impersonation started",
		"original_user_id", updated.OriginalUserID,
		"impersonated_user_id", targetUserID,
		"target_user_type", target.UserType)

	s.recorder.Record(context.Background(), updated.AuditActor(impersonationContext(target)),
		"impersonation.start", "user", formatID(targetUserID))

	return updated, nil
}

// StopImpersonation transitions back to Authenticated. Idempotent: stopping
// a session that is not impersonating returns it unchanged.
func (s *Service) StopImpersonation(sessionID string) (*Session, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsImpersonating() {
		return sess, nil
	}

	impersonatedID := *sess.ImpersonatedUserID
	// actor captured before the transition so the trail shows who stopped
	actor := sess.AuditActor(nil)

	updated, err := s.store.UpdateImpersonation(sessionID, nil, sess.Version)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// the concurrent winner already cleared it; treat as idempotent
			return s.Get(sessionID)
		}
		return nil, err
	}

	s.logger.Info("impersonation stopped",
		"original_user_id", updated.OriginalUserID,
		"impersonated_user_id", impersonatedID)

	s.recorder.Record(context.Background(), actor,
		"impersonation.stop", "user", formatID(impersonatedID))

	return updated, nil
}

// Restore re-establishes a session from a restore token or re-submitted
// credentials. A stale impersonation target degrades to a plain
// authenticated session instead of failing the whole restore.
func (s *Service) Restore(dto RestoreDTO) (*Session, *identity.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, nil, err
	}

	var originalUserID int64
	var impersonatedUserID *int64

	if dto.RestoreToken != "" {
		claims, err := s.tokens.Validate(dto.RestoreToken)
		if err != nil {
			return nil, nil, internal.ErrInvalidRestoreToken
		}
		// a token is only honored while the session it was minted for is
		// still stored and live; logout deletes that row and with it every
		// token pointing at it
		anchor, err := s.store.Get(claims.SessionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil, internal.ErrInvalidRestoreToken
			}
			return nil, nil, err
		}
		if anchor.Expired(s.nowFn().UTC()) {
			return nil, nil, internal.ErrInvalidRestoreToken
		}
		originalUserID = claims.OriginalUserID
		impersonatedUserID = claims.ImpersonatedUserID
	} else {
		u, err := s.users.VerifyCredentials(dto.Email, dto.Password)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrInactive):
				return nil, nil, internal.ErrAccountInactive
			case errors.Is(err, identity.ErrNotFound):
				return nil, nil, internal.ErrInvalidCredentials
			default:
				return nil, nil, err
			}
		}
		originalUserID = u.ID
		impersonatedUserID = dto.ImpersonatedUserID
	}

	original, err := s.users.GetByID(originalUserID)
	if err != nil {
		return nil, nil, internal.ErrUnauthenticated
	}
	if !original.IsActive {
		return nil, nil, internal.ErrAccountInactive
	}

	now := s.nowFn().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		OriginalUserID: original.ID,
		Version:        1,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if err := s.store.Create(sess); err != nil {
		return nil, nil, err
	}

	if impersonatedUserID != nil {
		restored, err := s.reapplyImpersonation(sess, original, *impersonatedUserID)
		if err == nil {
			sess = restored
		} else {
			// documented recovery policy: fall back to a plain session
			s.logger.Warn("impersonation not restored, falling back to authenticated session",
				"original_user_id", original.ID,
				"impersonated_user_id", *impersonatedUserID,
				"reason", err)
		}
	}

	effective, err := s.EffectiveUser(sess)
	if err != nil {
		return nil, nil, err
	}
	return sess, effective, nil
}

func (s *Service) reapplyImpersonation(sess *Session, original *identity.User, targetUserID int64) (*Session, error) {
	if !s.authorizer.CanImpersonate(original) {
		return nil, internal.ErrPermissionDenied
	}
	target, err := s.validateTarget(targetUserID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateImpersonation(sess.ID, &targetUserID, sess.Version)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(context.Background(), updated.AuditActor(impersonationContext(target)),
		"impersonation.restore", "user", formatID(targetUserID))

	return updated, nil
}

// IssueRestoreToken mints a short-lived token bound to the current session
// state. The client holds it opaquely in place of stored credentials.
func (s *Service) IssueRestoreToken(sess *Session) (string, error) {
	return s.tokens.Generate(sess.ID, sess.OriginalUserID, sess.ImpersonatedUserID)
}

func (s *Service) Logout(sessionID string) error {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	err := s.store.Delete(sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// DeleteExpired removes expired session rows. Expiry is enforced on read;
// this only reclaims storage.
func (s *Service) DeleteExpired() (int64, error) {
	return s.store.DeleteExpired(s.nowFn().UTC())
}

// validateTarget enforces the impersonation target rules: the user must
// exist, be active, and must not be a super_admin. Impersonating a
// super_admin would let any impersonate-holder launder its privileges.
func (s *Service) validateTarget(targetUserID int64) (*identity.User, error) {
	target, err := s.users.GetByID(targetUserID)
	if err != nil {
		return nil, internal.ErrInvalidImpersonationTarget
	}
	if !target.IsActive {
		return nil, internal.ErrInvalidImpersonationTarget
	}
	if target.IsSuperAdmin() {
		return nil, internal.ErrInvalidImpersonationTarget
	}
	return target, nil
}

func impersonationContext(target *identity.User) map[string]interface{} {
	return map[string]interface{}{
		"target_user_type": string(target.UserType),
		"target_role":      string(target.Role),
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
