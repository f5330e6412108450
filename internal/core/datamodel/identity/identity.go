package identity

import "time"

type User struct {
	ID                int64      `gorm:"primaryKey"`
	Email             string     `gorm:"column:email;uniqueIndex;not null"`
	Name              string     `gorm:"column:name;not null"`
	PasswordHash      string     `gorm:"column:password_hash;not null"`
	Role              string     `gorm:"column:role;not null"`
	UserType          string     `gorm:"column:user_type;not null"`
	PrimaryFacilityID *int64     `gorm:"column:primary_facility_id"`
	IsActive          bool       `gorm:"column:is_active;default:true"`
	DeactivatedAt     *time.Time `gorm:"column:deactivated_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}

type Permission struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	Category  string    `gorm:"column:category;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Permission) TableName() string {
	return "permissions"
}

// UserPermission is an explicit per-user override of the role defaults.
// Revoked=false grants the permission on top of the role, Revoked=true
// removes it even when the role would grant it.
type UserPermission struct {
	ID             int64     `gorm:"primaryKey"`
	UserID         int64     `gorm:"column:user_id;not null;index"`
	PermissionName string    `gorm:"column:permission_name;not null"`
	Revoked        bool      `gorm:"column:revoked;default:false"`
	GrantedBy      *int64    `gorm:"column:granted_by"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}

type UserFacility struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;index"`
	FacilityID int64     `gorm:"column:facility_id;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
}

func (UserFacility) TableName() string {
	return "user_facilities"
}
