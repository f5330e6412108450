package session

import (
	"errors"
	"time"

	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/identity"
)

// Session is the server-side session record. The ID is the opaque bearer
// token held by the client. OriginalUserID always identifies the credential
// holder who authenticated; it never points at an impersonated identity.
type Session struct {
	ID                 string    `json:"id"`
	OriginalUserID     int64     `json:"original_user_id"`
	ImpersonatedUserID *int64    `json:"impersonated_user_id,omitempty"`
	Version            int64     `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func (s *Session) IsImpersonating() bool {
	return s.ImpersonatedUserID != nil
}

// EffectiveUserID is the identity whose permissions and scope govern the
// session: the impersonated user while impersonating, else the original.
func (s *Session) EffectiveUserID() int64 {
	if s.ImpersonatedUserID != nil {
		return *s.ImpersonatedUserID
	}
	return s.OriginalUserID
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuditActor derives the audit identity straight from the session record.
// This is the only constructor for audit actors, so impersonation flags in
// the trail can never come from caller-supplied values.
func (s *Session) AuditActor(impersonationContext map[string]interface{}) audit.Actor {
	actor := audit.Actor{
		EffectiveUserID: s.EffectiveUserID(),
		IsImpersonated:  s.IsImpersonating(),
	}
	if s.IsImpersonating() {
		original := s.OriginalUserID
		actor.OriginalUserID = &original
		actor.Context = impersonationContext
	}
	return actor
}

var (
	ErrNotFound        = errors.New("session not found")
	ErrVersionConflict = errors.New("session version conflict")
)

// StoreAPI persists session records. UpdateImpersonation takes the version
// the caller observed; a concurrent write in between fails the update with
// ErrVersionConflict and leaves the stored record untouched.
type StoreAPI interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	UpdateImpersonation(id string, impersonatedUserID *int64, expectedVersion int64) (*Session, error)
	Delete(id string) error
	DeleteExpired(before time.Time) (int64, error)
}

// ImpersonationAuthorizer answers whether the original identity may start
// impersonating. Implemented by the authz package; injected to keep the
// permission catalog out of this package.
type ImpersonationAuthorizer interface {
	CanImpersonate(u *identity.User) bool
}

// RestoreTokenAPI issues and validates the short-lived server-issued tokens
// that replace replayed credentials for session restore. A token references
// the session it was issued for; once that session is deleted the token is
// dead.
type RestoreTokenAPI interface {
	Generate(sessionID string, originalUserID int64, impersonatedUserID *int64) (string, error)
	Validate(token string) (*RestoreClaims, error)
}

type RestoreClaims struct {
	SessionID          string
	OriginalUserID     int64
	ImpersonatedUserID *int64
}

// ServiceAPI is the session manager contract consumed by the transport
// layer and the authorization middleware.
type ServiceAPI interface {
	Login(dto LoginDTO) (*Session, *identity.User, error)
	Get(sessionID string) (*Session, error)
	EffectiveUser(s *Session) (*identity.User, error)
	OriginalUser(s *Session) (*identity.User, error)
	StartImpersonation(sessionID string, targetUserID int64) (*Session, error)
	StopImpersonation(sessionID string) (*Session, error)
	Restore(dto RestoreDTO) (*Session, *identity.User, error)
	IssueRestoreToken(s *Session) (string, error)
	Logout(sessionID string) error
}
