package authz

import "github.com/medshift/staffing-platform/internal/identity"

// Scope is the set of facilities an effective identity may touch. The same
// value backs both the request pre-check (Allows) and the query constraint
// (SQLCondition) so enforcement and filtering cannot drift apart.
type Scope struct {
	Unrestricted bool
	FacilityIDs  []int64
}

func UnrestrictedScope() Scope {
	return Scope{Unrestricted: true}
}

func FacilityScope(ids []int64) Scope {
	return Scope{FacilityIDs: ids}
}

// ScopeFor computes the facility scope of an effective identity. Only a
// super_admin effective role is unrestricted; everyone else is confined to
// their facility associations, which always include the primary facility.
func ScopeFor(u *identity.User) Scope {
	if u.IsSuperAdmin() {
		return UnrestrictedScope()
	}
	return FacilityScope(u.FacilityIDs())
}

func (s Scope) Allows(facilityID int64) bool {
	if s.Unrestricted {
		return true
	}
	for _, id := range s.FacilityIDs {
		if id == facilityID {
			return true
		}
	}
	return false
}

// SQLCondition returns a WHERE fragment constraining the named column to the
// scope, with its bind arguments. Unrestricted scopes return an empty clause.
// An empty facility set yields a false condition rather than no condition so
// a scope-less user can never read rows by accident.
func (s Scope) SQLCondition(column string) (string, []interface{}) {
	if s.Unrestricted {
		return "", nil
	}
	if len(s.FacilityIDs) == 0 {
		return "1 = 0", nil
	}
	args := make([]interface{}, len(s.FacilityIDs))
	placeholders := ""
	for i, id := range s.FacilityIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}
	return column + " IN (" + placeholders + ")", args
}
