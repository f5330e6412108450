package identity

// CreateUserDTO is the transport shape for provisioning a user account.
type CreateUserDTO struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	Password          string `json:"password"`
	Role              string `json:"role"`
	UserType          string `json:"user_type"`
	PrimaryFacilityID *int64 `json:"primary_facility_id,omitempty"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d CreateUserDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Name == "" {
		return ValidationError{Msg: "name is required"}
	}
	if len(d.Password) < 8 {
		return ValidationError{Msg: "password must be at least 8 characters"}
	}
	if !Role(d.Role).Valid() {
		return ErrInvalidRole
	}
	switch UserType(d.UserType) {
	case UserTypeSystem, UserTypeFacility, UserTypeStaff:
	default:
		return ValidationError{Msg: "user_type must be one of system, facility, staff"}
	}
	if UserType(d.UserType) != UserTypeSystem && d.PrimaryFacilityID == nil {
		return ErrNoFacilities
	}
	return nil
}
