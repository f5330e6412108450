package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	sessionmodel "github.com/medshift/staffing-platform/internal/core/datamodel/session"
	"github.com/medshift/staffing-platform/internal/session"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(sess *session.Session) error {
	row := sessionmodel.Session{
		ID:                 sess.ID,
		OriginalUserID:     sess.OriginalUserID,
		ImpersonatedUserID: sess.ImpersonatedUserID,
		Version:            sess.Version,
		CreatedAt:          sess.CreatedAt,
		ExpiresAt:          sess.ExpiresAt,
	}
	return s.db.Create(&row).Error
}

func (s *Store) Get(id string) (*session.Session, error) {
	var row sessionmodel.Session
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return toDomain(&row), nil
}

// UpdateImpersonation applies the state transition only when the stored
// version still matches the one the caller observed. A lost race updates
// zero rows and surfaces as ErrVersionConflict.
func (s *Store) UpdateImpersonation(id string, impersonatedUserID *int64, expectedVersion int64) (*session.Session, error) {
	res := s.db.Model(&sessionmodel.Session{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"impersonated_user_id": impersonatedUserID,
			"version":              expectedVersion + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&sessionmodel.Session{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, session.ErrNotFound
		}
		return nil, session.ErrVersionConflict
	}
	return s.Get(id)
}

func (s *Store) Delete(id string) error {
	res := s.db.Delete(&sessionmodel.Session{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpired(before time.Time) (int64, error) {
	res := s.db.Delete(&sessionmodel.Session{}, "expires_at < ?", before)
	return res.RowsAffected, res.Error
}

func toDomain(row *sessionmodel.Session) *session.Session {
	return &session.Session{
		ID:                 row.ID,
		OriginalUserID:     row.OriginalUserID,
		ImpersonatedUserID: row.ImpersonatedUserID,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		ExpiresAt:          row.ExpiresAt,
	}
}
