package authz

import "github.com/medshift/staffing-platform/internal/identity"

// ImpersonationGate adapts the resolver cache to the session manager's
// authorizer dependency. The check always runs against the original
// identity's own permissions.
type ImpersonationGate struct {
	cache *ResolverCache
}

func NewImpersonationGate(cache *ResolverCache) *ImpersonationGate {
	return &ImpersonationGate{cache: cache}
}

func (g *ImpersonationGate) CanImpersonate(u *identity.User) bool {
	return g.cache.Resolve(u).Has(PermImpersonate)
}
