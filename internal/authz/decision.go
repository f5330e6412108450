package authz

import (
	"context"

	"github.com/medshift/staffing-platform/internal"
)

// AuthDecision is what business handlers receive from Authorize. A denied
// decision carries the resolved error; handlers never see raw identity
// state.
type AuthDecision struct {
	Allowed bool
	Auth    *AuthContext
	Reason  *internal.AppError
}

func allow(a *AuthContext) AuthDecision {
	return AuthDecision{Allowed: true, Auth: a}
}

func deny(reason *internal.AppError) AuthDecision {
	return AuthDecision{Allowed: false, Reason: reason}
}

// Authorize is the collaborator contract for business handlers: check the
// required permission and, when the request touches a facility-owned
// resource, the facility scope. Handlers must call this before any read or
// write and must not query the identity store directly.
func Authorize(ctx context.Context, requiredPermission string, facilityID *int64) AuthDecision {
	a, ok := FromContext(ctx)
	if !ok || a == nil {
		return deny(internal.ErrUnauthenticated)
	}
	if requiredPermission != "" && !a.Permissions.Has(requiredPermission) {
		return deny(internal.ErrPermissionDenied)
	}
	if facilityID != nil && !a.Scope.Allows(*facilityID) {
		return deny(internal.ErrFacilityOutOfScope)
	}
	return allow(a)
}
