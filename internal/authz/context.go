package authz

import (
	"context"

	"github.com/medshift/staffing-platform/internal/audit"
	"github.com/medshift/staffing-platform/internal/identity"
)

type ctxKey string

const contextAuthKey ctxKey = "auth"

// AuthContext is the resolved identity attached to every authenticated
// request. Downstream handlers read it instead of re-deriving identity;
// every field is derived from the session record and the identity store
// inside the authorization middleware.
type AuthContext struct {
	SessionID          string
	OriginalUserID     int64
	ImpersonatedUserID *int64
	EffectiveUser      *identity.User
	Permissions        PermissionSet
	Scope              Scope
}

func (a *AuthContext) IsImpersonating() bool {
	return a.ImpersonatedUserID != nil
}

// AuditActor builds the audit identity from the middleware-resolved session
// fields. Handlers never assemble impersonation flags themselves.
func (a *AuthContext) AuditActor() audit.Actor {
	actor := audit.Actor{
		EffectiveUserID: a.EffectiveUser.ID,
		IsImpersonated:  a.IsImpersonating(),
	}
	if a.IsImpersonating() {
		original := a.OriginalUserID
		actor.OriginalUserID = &original
		actor.Context = map[string]interface{}{
			"target_user_type": string(a.EffectiveUser.UserType),
			"target_role":      string(a.EffectiveUser.Role),
		}
	}
	return actor
}

func WithAuthContext(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, contextAuthKey, a)
}

func FromContext(ctx context.Context) (*AuthContext, bool) {
	a, ok := ctx.Value(contextAuthKey).(*AuthContext)
	return a, ok
}
