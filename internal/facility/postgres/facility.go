package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/medshift/staffing-platform/internal/authz"
	facilitymodel "github.com/medshift/staffing-platform/internal/core/datamodel/facility"
	"github.com/medshift/staffing-platform/internal/facility"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(facilityID int64) (*facility.Facility, error) {
	var row facilitymodel.Facility
	if err := r.db.First(&row, "id = ? AND is_active = ?", facilityID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, facility.ErrNotFound
		}
		return nil, err
	}
	return toDomain(&row), nil
}

// ListInScope filters rows with the scope's own SQL condition so the query
// can never widen beyond what the pre-check would allow.
func (r *Repository) ListInScope(scope authz.Scope) ([]*facility.Facility, error) {
	query := r.db.Where("is_active = ?", true).Order("id ASC")
	if clause, args := scope.SQLCondition("id"); clause != "" {
		query = query.Where(clause, args...)
	}

	var rows []facilitymodel.Facility
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*facility.Facility, 0, len(rows))
	for i := range rows {
		out = append(out, toDomain(&rows[i]))
	}
	return out, nil
}

func (r *Repository) ListStaff(facilityID int64) ([]*facility.StaffMember, error) {
	// a staff member belongs to the facility through the primary facility
	// column or an explicit association row
	query := `SELECT DISTINCT u.id, u.name, u.email, u.role, u.is_active
	          FROM users u
	          LEFT JOIN user_facilities uf ON uf.user_id = u.id
	          WHERE (u.primary_facility_id = ? OR uf.facility_id = ?)
	            AND u.user_type = 'staff'
	          ORDER BY u.id`

	rows, err := r.db.Raw(query, facilityID, facilityID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []*facility.StaffMember
	for rows.Next() {
		var m facility.StaffMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.IsActive); err != nil {
			return nil, err
		}
		staff = append(staff, &m)
	}
	return staff, rows.Err()
}

func (r *Repository) Create(f *facility.Facility) error {
	row := facilitymodel.Facility{
		Name:     f.Name,
		Timezone: f.Timezone,
		IsActive: f.IsActive,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	f.ID = row.ID
	f.CreatedAt = row.CreatedAt
	return nil
}

func toDomain(row *facilitymodel.Facility) *facility.Facility {
	return &facility.Facility{
		ID:        row.ID,
		Name:      row.Name,
		Timezone:  row.Timezone,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
}
