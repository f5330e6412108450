package postgres

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	identitymodel "github.com/medshift/staffing-platform/internal/core/datamodel/identity"
	"github.com/medshift/staffing-platform/internal/identity"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(userID int64) (*identity.User, error) {
	var row identitymodel.User
	if err := r.db.First(&row, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(&row)
}

func (r *Repository) GetByEmail(email string) (*identity.User, error) {
	var row identitymodel.User
	if err := r.db.First(&row, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(&row)
}

func (r *Repository) GetPasswordHash(email string) (string, int64, error) {
	var passwordHash string
	var userID int64
	query := `SELECT id, password_hash FROM users WHERE email = ?`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, identity.ErrNotFound
		}
		return "", 0, err
	}
	return passwordHash, userID, nil
}

// hydrate loads facility associations and permission overrides so callers
// always see the full capability surface from one lookup.
func (r *Repository) hydrate(row *identitymodel.User) (*identity.User, error) {
	u := toDomain(row)

	var facilityIDs []int64
	if err := r.db.Model(&identitymodel.UserFacility{}).
		Where("user_id = ?", row.ID).
		Pluck("facility_id", &facilityIDs).Error; err != nil {
		return nil, err
	}
	u.AssociatedFacilities = facilityIDs

	var overrides []identitymodel.UserPermission
	if err := r.db.Where("user_id = ?", row.ID).Find(&overrides).Error; err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if o.Revoked {
			u.PermissionRevokes = append(u.PermissionRevokes, o.PermissionName)
		} else {
			u.PermissionGrants = append(u.PermissionGrants, o.PermissionName)
		}
	}

	return u, nil
}

func (r *Repository) Create(u *identity.User, passwordHash string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&identitymodel.User{}).
			Where("email = ?", u.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return identity.ErrEmailTaken
		}

		row := identitymodel.User{
			Email:             u.Email,
			Name:              u.Name,
			PasswordHash:      passwordHash,
			Role:              string(u.Role),
			UserType:          string(u.UserType),
			PrimaryFacilityID: u.PrimaryFacilityID,
			IsActive:          u.IsActive,
			CreatedAt:         time.Now().UTC(),
			UpdatedAt:         time.Now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		u.ID = row.ID
		u.CreatedAt = row.CreatedAt
		u.UpdatedAt = row.UpdatedAt
		return nil
	})
}

func (r *Repository) SetPermissionOverride(userID int64, permission string, revoked bool, grantedBy *int64) error {
	// one override row per (user, permission); flipping grant/revoke updates in place
	var existing identitymodel.UserPermission
	err := r.db.Where("user_id = ? AND permission_name = ?", userID, permission).First(&existing).Error
	if err == nil {
		return r.db.Model(&existing).Updates(map[string]interface{}{
			"revoked":    revoked,
			"granted_by": grantedBy,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return r.db.Create(&identitymodel.UserPermission{
		UserID:         userID,
		PermissionName: permission,
		Revoked:        revoked,
		GrantedBy:      grantedBy,
		CreatedAt:      time.Now().UTC(),
	}).Error
}

func (r *Repository) RemovePermissionOverride(userID int64, permission string) error {
	return r.db.
		Where("user_id = ? AND permission_name = ?", userID, permission).
		Delete(&identitymodel.UserPermission{}).Error
}

func (r *Repository) AssociateFacility(userID, facilityID int64) error {
	var count int64
	if err := r.db.Model(&identitymodel.UserFacility{}).
		Where("user_id = ? AND facility_id = ?", userID, facilityID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.Create(&identitymodel.UserFacility{
		UserID:     userID,
		FacilityID: facilityID,
		CreatedAt:  time.Now().UTC(),
	}).Error
}

func (r *Repository) Deactivate(userID int64) error {
	now := time.Now().UTC()
	return r.db.Model(&identitymodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": &now,
			"updated_at":     now,
		}).Error
}

func toDomain(row *identitymodel.User) *identity.User {
	return &identity.User{
		ID:                row.ID,
		Email:             row.Email,
		Name:              row.Name,
		Role:              identity.Role(row.Role),
		UserType:          identity.UserType(row.UserType),
		PrimaryFacilityID: row.PrimaryFacilityID,
		IsActive:          row.IsActive,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
