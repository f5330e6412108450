package session

// LoginDTO is the transport shape for POST /auth/login.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RestoreDTO restores a session either from a server-issued restore token or
// from re-submitted credentials with an optional impersonation target.
type RestoreDTO struct {
	RestoreToken       string `json:"restore_token,omitempty"`
	Email              string `json:"email,omitempty"`
	Password           string `json:"password,omitempty"`
	ImpersonatedUserID *int64 `json:"impersonated_user_id,omitempty"`
}

type StartImpersonationDTO struct {
	TargetUserID int64 `json:"target_user_id"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d LoginDTO) Validate() error {
	if d.Email == "" {
		return ValidationError{Msg: "email is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}

func (d RestoreDTO) Validate() error {
	if d.RestoreToken != "" {
		return nil
	}
	if d.Email == "" || d.Password == "" {
		return ValidationError{Msg: "either restore_token or email and password are required"}
	}
	return nil
}

func (d StartImpersonationDTO) Validate() error {
	if d.TargetUserID <= 0 {
		return ValidationError{Msg: "target_user_id is required"}
	}
	return nil
}
