package authz_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medshift/staffing-platform/internal"
	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/medshift/staffing-platform/internal/identity"
)

func TestAuthz(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Authz Suite")
}

func facilityAdmin(id int64, primaryFacility int64) *identity.User {
	return &identity.User{
		ID:                id,
		Email:             "admin@example.com",
		Role:              identity.RoleFacilityAdmin,
		UserType:          identity.UserTypeFacility,
		PrimaryFacilityID: &primaryFacility,
		IsActive:          true,
	}
}

var _ = Describe("Permission Resolution", func() {
	Describe("Resolve", func() {
		It("gives super_admin every permission in the catalog", func() {
			set := authz.Resolve(identity.RoleSuperAdmin, nil, nil)
			for _, p := range authz.Catalog() {
				Expect(set.Has(p.Name)).To(BeTrue(), "missing %s", p.Name)
			}
		})

		It("ignores revocations for super_admin", func() {
			set := authz.Resolve(identity.RoleSuperAdmin, nil, []string{authz.PermImpersonate})
			Expect(set.Has(authz.PermImpersonate)).To(BeTrue())
		})

		It("resolves role defaults for facility_admin", func() {
			set := authz.Resolve(identity.RoleFacilityAdmin, nil, nil)
			Expect(set.Has(authz.PermStaffManage)).To(BeTrue())
			Expect(set.Has(authz.PermImpersonate)).To(BeFalse())
		})

		It("adds explicit grants on top of role defaults", func() {
			set := authz.Resolve(identity.RoleFacilityAdmin, []string{authz.PermImpersonate}, nil)
			Expect(set.Has(authz.PermImpersonate)).To(BeTrue())
			Expect(set.Has(authz.PermStaffManage)).To(BeTrue())
		})

		It("removes revoked permissions even when the role grants them", func() {
			set := authz.Resolve(identity.RoleFacilityAdmin, nil, []string{authz.PermStaffManage})
			Expect(set.Has(authz.PermStaffManage)).To(BeFalse())
		})

		It("drops grants that are not in the catalog", func() {
			set := authz.Resolve(identity.RoleStaff, []string{"made.up"}, nil)
			Expect(set.Has("made.up")).To(BeFalse())
		})

		It("fails closed for a permission nobody declared", func() {
			set := authz.Resolve(identity.RoleFacilityAdmin, nil, nil)
			Expect(set.Has("nonexistent.permission")).To(BeFalse())
		})
	})

	Describe("ResolverCache", func() {
		var cache *authz.ResolverCache

		BeforeEach(func() {
			cache = authz.NewResolverCache(time.Minute)
		})

		It("returns the same resolution for an unchanged user", func() {
			u := facilityAdmin(1, 10)
			first := cache.Resolve(u)
			second := cache.Resolve(u)
			Expect(second.Names()).To(ConsistOf(first.Names()))
		})

		It("recomputes when the user's overrides changed", func() {
			u := facilityAdmin(1, 10)
			before := cache.Resolve(u)
			Expect(before.Has(authz.PermImpersonate)).To(BeFalse())

			u.PermissionGrants = []string{authz.PermImpersonate}
			after := cache.Resolve(u)
			Expect(after.Has(authz.PermImpersonate)).To(BeTrue())
		})

		It("recomputes after invalidation", func() {
			u := facilityAdmin(1, 10)
			cache.Resolve(u)
			cache.InvalidateUser(u.ID)

			u.PermissionRevokes = []string{authz.PermStaffManage}
			set := cache.Resolve(u)
			Expect(set.Has(authz.PermStaffManage)).To(BeFalse())
		})
	})
})

var _ = Describe("Facility Scope", func() {
	Describe("ScopeFor", func() {
		It("is unrestricted for super_admin", func() {
			u := &identity.User{ID: 1, Role: identity.RoleSuperAdmin, UserType: identity.UserTypeSystem, IsActive: true}
			Expect(authz.ScopeFor(u).Unrestricted).To(BeTrue())
		})

		It("includes the primary facility and associations without duplicates", func() {
			u := facilityAdmin(2, 10)
			u.AssociatedFacilities = []int64{10, 20}
			scope := authz.ScopeFor(u)
			Expect(scope.Unrestricted).To(BeFalse())
			Expect(scope.FacilityIDs).To(ConsistOf(int64(10), int64(20)))
		})
	})

	Describe("Allows", func() {
		It("allows any facility when unrestricted", func() {
			Expect(authz.UnrestrictedScope().Allows(999)).To(BeTrue())
		})

		It("allows only facilities in the set", func() {
			scope := authz.FacilityScope([]int64{10, 20})
			Expect(scope.Allows(10)).To(BeTrue())
			Expect(scope.Allows(30)).To(BeFalse())
		})

		It("denies everything for an empty set", func() {
			Expect(authz.FacilityScope(nil).Allows(10)).To(BeFalse())
		})
	})

	Describe("SQLCondition", func() {
		It("produces no clause when unrestricted", func() {
			clause, args := authz.UnrestrictedScope().SQLCondition("facility_id")
			Expect(clause).To(BeEmpty())
			Expect(args).To(BeNil())
		})

		It("produces an IN clause for a facility set", func() {
			clause, args := authz.FacilityScope([]int64{10, 20}).SQLCondition("facility_id")
			Expect(clause).To(Equal("facility_id IN (?, ?)"))
			Expect(args).To(Equal([]interface{}{int64(10), int64(20)}))
		})

		It("produces a false condition for an empty set", func() {
			clause, args := authz.FacilityScope(nil).SQLCondition("facility_id")
			Expect(clause).To(Equal("1 = 0"))
			Expect(args).To(BeNil())
		})
	})
})

var _ = Describe("Authorize", func() {
	newCtx := func(u *identity.User, scope authz.Scope, perms authz.PermissionSet) context.Context {
		return authz.WithAuthContext(context.Background(), &authz.AuthContext{
			SessionID:      "sess-1",
			OriginalUserID: u.ID,
			EffectiveUser:  u,
			Permissions:    perms,
			Scope:          scope,
		})
	}

	It("denies unauthenticated requests", func() {
		decision := authz.Authorize(context.Background(), authz.PermStaffView, nil)
		Expect(decision.Allowed).To(BeFalse())
		Expect(decision.Reason).To(Equal(internal.ErrUnauthenticated))
	})

	It("denies a missing permission", func() {
		u := facilityAdmin(1, 10)
		ctx := newCtx(u, authz.ScopeFor(u), authz.Resolve(u.Role, nil, nil))
		decision := authz.Authorize(ctx, authz.PermImpersonate, nil)
		Expect(decision.Allowed).To(BeFalse())
		Expect(decision.Reason).To(Equal(internal.ErrPermissionDenied))
	})

	It("denies a facility outside the scope even with the permission", func() {
		u := facilityAdmin(1, 10)
		ctx := newCtx(u, authz.ScopeFor(u), authz.Resolve(u.Role, nil, nil))
		outside := int64(99)
		decision := authz.Authorize(ctx, authz.PermStaffView, &outside)
		Expect(decision.Allowed).To(BeFalse())
		Expect(decision.Reason).To(Equal(internal.ErrFacilityOutOfScope))
	})

	It("allows a permitted action within scope", func() {
		u := facilityAdmin(1, 10)
		ctx := newCtx(u, authz.ScopeFor(u), authz.Resolve(u.Role, nil, nil))
		inScope := int64(10)
		decision := authz.Authorize(ctx, authz.PermStaffView, &inScope)
		Expect(decision.Allowed).To(BeTrue())
		Expect(decision.Auth).NotTo(BeNil())
		Expect(decision.Auth.EffectiveUser.ID).To(Equal(int64(1)))
	})

	It("skips the facility check when the resource has no facility", func() {
		u := facilityAdmin(1, 10)
		ctx := newCtx(u, authz.ScopeFor(u), authz.Resolve(u.Role, nil, nil))
		decision := authz.Authorize(ctx, authz.PermFacilityView, nil)
		Expect(decision.Allowed).To(BeTrue())
	})
})

var _ = Describe("AuthContext AuditActor", func() {
	It("marks nothing when the session is not impersonating", func() {
		u := facilityAdmin(1, 10)
		a := &authz.AuthContext{OriginalUserID: 1, EffectiveUser: u}
		actor := a.AuditActor()
		Expect(actor.IsImpersonated).To(BeFalse())
		Expect(actor.OriginalUserID).To(BeNil())
		Expect(actor.EffectiveUserID).To(Equal(int64(1)))
	})

	It("carries the original user and target context while impersonating", func() {
		target := &identity.User{ID: 7, Role: identity.RoleStaff, UserType: identity.UserTypeStaff, IsActive: true}
		impID := int64(7)
		a := &authz.AuthContext{OriginalUserID: 1, ImpersonatedUserID: &impID, EffectiveUser: target}
		actor := a.AuditActor()
		Expect(actor.IsImpersonated).To(BeTrue())
		Expect(*actor.OriginalUserID).To(Equal(int64(1)))
		Expect(actor.EffectiveUserID).To(Equal(int64(7)))
		Expect(actor.Context).To(HaveKeyWithValue("target_role", "staff"))
	})
})
