package authz

import (
	"sort"

	"github.com/medshift/staffing-platform/internal/identity"
)

// Permission names are the static application catalog. Route declarations
// and per-user overrides both reference these; anything outside the catalog
// is dropped during resolution.
const (
	PermImpersonate     = "impersonate"
	PermAuditView       = "audit.view"
	PermUsersManage     = "users.manage"
	PermFacilityView    = "facilities.view"
	PermFacilityManage  = "facilities.manage"
	PermStaffView       = "staff.view"
	PermStaffManage     = "staff.manage"
	PermShiftsView      = "shifts.view"
	PermShiftsManage    = "shifts.manage"
	PermBillingView     = "billing.view"
	PermBillingManage   = "billing.manage"
	PermReportsView     = "reports.view"
)

type Permission struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

var catalog = []Permission{
	{Name: PermImpersonate, Category: "identity"},
	{Name: PermUsersManage, Category: "identity"},
	{Name: PermAuditView, Category: "audit"},
	{Name: PermFacilityView, Category: "facility"},
	{Name: PermFacilityManage, Category: "facility"},
	{Name: PermStaffView, Category: "staffing"},
	{Name: PermStaffManage, Category: "staffing"},
	{Name: PermShiftsView, Category: "staffing"},
	{Name: PermShiftsManage, Category: "staffing"},
	{Name: PermBillingView, Category: "billing"},
	{Name: PermBillingManage, Category: "billing"},
	{Name: PermReportsView, Category: "reports"},
}

var catalogIndex = func() map[string]Permission {
	idx := make(map[string]Permission, len(catalog))
	for _, p := range catalog {
		idx[p.Name] = p
	}
	return idx
}()

// Catalog returns the full permission catalog.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// KnownPermission reports whether the name is part of the catalog.
func KnownPermission(name string) bool {
	_, ok := catalogIndex[name]
	return ok
}

// rolePermissions are the default grants per role. super_admin is absent on
// purpose: it bypasses resolution entirely and always gets the universal set.
var rolePermissions = map[identity.Role][]string{
	identity.RoleFacilityAdmin: {
		PermUsersManage,
		PermFacilityView,
		PermFacilityManage,
		PermStaffView,
		PermStaffManage,
		PermShiftsView,
		PermShiftsManage,
		PermBillingView,
		PermReportsView,
	},
	identity.RoleFacilityUser: {
		PermFacilityView,
		PermStaffView,
		PermShiftsView,
		PermShiftsManage,
	},
	identity.RoleStaff: {
		PermShiftsView,
	},
}

type PermissionSet map[string]struct{}

func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func universalSet() PermissionSet {
	set := make(PermissionSet, len(catalog))
	for _, p := range catalog {
		set[p.Name] = struct{}{}
	}
	return set
}

// Resolve computes the effective permission set for a role plus explicit
// per-user overrides. Pure: identical inputs always yield identical output.
// Names outside the catalog never make it into the result.
func Resolve(role identity.Role, grants, revocations []string) PermissionSet {
	if role == identity.RoleSuperAdmin {
		return universalSet()
	}

	set := make(PermissionSet)
	for _, name := range rolePermissions[role] {
		set[name] = struct{}{}
	}
	for _, name := range grants {
		if KnownPermission(name) {
			set[name] = struct{}{}
		}
	}
	for _, name := range revocations {
		delete(set, name)
	}
	return set
}

// ResolveUser resolves the effective permission set for a loaded user record.
func ResolveUser(u *identity.User) PermissionSet {
	return Resolve(u.Role, u.PermissionGrants, u.PermissionRevokes)
}
