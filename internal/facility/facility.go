package facility

import (
	"errors"
	"time"

	"github.com/medshift/staffing-platform/internal/authz"
)

type Facility struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// StaffMember is the projection of a staff user scoped to one facility.
type StaffMember struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

var ErrNotFound = errors.New("facility not found")

// RepositoryAPI list queries take the caller's facility scope so the same
// scope value constrains both enforcement and filtering.
type RepositoryAPI interface {
	GetByID(facilityID int64) (*Facility, error)
	ListInScope(scope authz.Scope) ([]*Facility, error)
	ListStaff(facilityID int64) ([]*StaffMember, error)
	Create(f *Facility) error
}

type ServiceAPI interface {
	ListAccessible(scope authz.Scope) ([]*Facility, error)
	GetByID(facilityID int64) (*Facility, error)
	ListStaff(facilityID int64) ([]*StaffMember, error)
}
