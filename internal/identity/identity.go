package identity

import (
	"errors"
	"time"
)

// Role is the coarse access level assigned to every user. Fine-grained
// access is decided by the authz resolver from the role defaults plus the
// user's explicit grants and revocations.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleFacilityAdmin Role = "facility_admin"
	RoleFacilityUser  Role = "facility_user"
	RoleStaff         Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleFacilityAdmin, RoleFacilityUser, RoleStaff:
		return true
	}
	return false
}

// UserType tags the variant a user record belongs to. All variants share
// one capability surface (role, permissions, facility associations) and are
// resolved through a single repository lookup.
type UserType string

const (
	UserTypeSystem   UserType = "system"
	UserTypeFacility UserType = "facility"
	UserTypeStaff    UserType = "staff"
)

type User struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	Role                 Role      `json:"role"`
	UserType             UserType  `json:"user_type"`
	PrimaryFacilityID    *int64    `json:"primary_facility_id,omitempty"`
	AssociatedFacilities []int64   `json:"associated_facilities,omitempty"`
	PermissionGrants     []string  `json:"-"`
	PermissionRevokes    []string  `json:"-"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FacilityIDs returns the facility associations including the primary
// facility, which is always accessible even when no explicit association
// row exists.
func (u *User) FacilityIDs() []int64 {
	ids := make([]int64, 0, len(u.AssociatedFacilities)+1)
	seen := make(map[int64]struct{}, len(u.AssociatedFacilities)+1)
	if u.PrimaryFacilityID != nil {
		ids = append(ids, *u.PrimaryFacilityID)
		seen[*u.PrimaryFacilityID] = struct{}{}
	}
	for _, id := range u.AssociatedFacilities {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

var (
	ErrNotFound     = errors.New("user not found")
	ErrInactive     = errors.New("user is inactive")
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmailTaken   = errors.New("email already registered")
	ErrUnknownPerm  = errors.New("unknown permission name")
	ErrSelfDisable  = errors.New("cannot deactivate own account")
	ErrNoFacilities = errors.New("facility user requires a primary facility")
)

// RepositoryAPI is the single identity lookup path. Handlers never query
// user tables directly; everything goes through this interface.
type RepositoryAPI interface {
	GetByID(userID int64) (*User, error)
	GetByEmail(email string) (*User, error)
	GetPasswordHash(email string) (hash string, userID int64, err error)
	Create(u *User, passwordHash string) error
	SetPermissionOverride(userID int64, permission string, revoked bool, grantedBy *int64) error
	RemovePermissionOverride(userID int64, permission string) error
	AssociateFacility(userID, facilityID int64) error
	Deactivate(userID int64) error
}

// ServiceAPI is what other packages depend on for identity resolution.
type ServiceAPI interface {
	GetByID(userID int64) (*User, error)
	GetByEmail(email string) (*User, error)
	VerifyCredentials(email, password string) (*User, error)
	CreateUser(dto CreateUserDTO) (*User, error)
	GrantPermission(actorID, userID int64, permission string) error
	RevokePermission(actorID, userID int64, permission string) error
	AssociateFacility(userID, facilityID int64) error
	DeactivateUser(actorID, userID int64) error
}
