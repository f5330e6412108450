package facility

import (
	"fmt"
	"log/slog"

	"github.com/medshift/staffing-platform/internal/authz"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListAccessible returns only facilities inside the caller's scope. The
// filtering happens in the query itself via the scope's SQL condition.
func (s *Service) ListAccessible(scope authz.Scope) ([]*Facility, error) {
	facilities, err := s.repo.ListInScope(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

func (s *Service) GetByID(facilityID int64) (*Facility, error) {
	return s.repo.GetByID(facilityID)
}

func (s *Service) ListStaff(facilityID int64) ([]*StaffMember, error) {
	if _, err := s.repo.GetByID(facilityID); err != nil {
		return nil, err
	}
	staff, err := s.repo.ListStaff(facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff for facility %d: %w", facilityID, err)
	}
	return staff, nil
}
