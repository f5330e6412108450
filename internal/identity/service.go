package identity

import (
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// CacheInvalidator drops cached permission resolutions for a user. Wired to
// the authz resolver cache so any identity write is visible on the next
// request.
type CacheInvalidator interface {
	InvalidateUser(userID int64)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateUser(int64) {}

type Service struct {
	repo            RepositoryAPI
	cache           CacheInvalidator
	knownPermission func(string) bool
	bcryptCost      int
	logger          *slog.Logger
}

func NewService(repo RepositoryAPI, cache CacheInvalidator, knownPermission func(string) bool, bcryptCost int, logger *slog.Logger) *Service {
	if cache == nil {
		cache = noopInvalidator{}
	}
	if knownPermission == nil {
		knownPermission = func(string) bool { return false }
	}
	return &Service{
		repo:            repo,
		cache:           cache,
		knownPermission: knownPermission,
		bcryptCost:      bcryptCost,
		logger:          logger,
	}
}

func (s *Service) GetByID(userID int64) (*User, error) {
	return s.repo.GetByID(userID)
}

func (s *Service) GetByEmail(email string) (*User, error) {
	return s.repo.GetByEmail(email)
}

// VerifyCredentials checks the password hash and returns the full user
// record. Inactive accounts fail after the hash comparison so that the
// error does not reveal whether the password was correct.
func (s *Service) VerifyCredentials(email, password string) (*User, error) {
	storedHash, userID, err := s.repo.GetPasswordHash(email)
	if err != nil {
		return nil, ErrNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return nil, ErrNotFound
	}

	u, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}

func (s *Service) CreateUser(dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Email:             dto.Email,
		Name:              dto.Name,
		Role:              Role(dto.Role),
		UserType:          UserType(dto.UserType),
		PrimaryFacilityID: dto.PrimaryFacilityID,
		IsActive:          true,
	}
	if err := s.repo.Create(u, string(hash)); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "user_type", u.UserType)
	return u, nil
}

func (s *Service) GrantPermission(actorID, userID int64, permission string) error {
	return s.setOverride(actorID, userID, permission, false)
}

func (s *Service) RevokePermission(actorID, userID int64, permission string) error {
	return s.setOverride(actorID, userID, permission, true)
}

func (s *Service) setOverride(actorID, userID int64, permission string, revoked bool) error {
	if !s.knownPermission(permission) {
		return ErrUnknownPerm
	}
	if _, err := s.repo.GetByID(userID); err != nil {
		return err
	}
	if err := s.repo.SetPermissionOverride(userID, permission, revoked, &actorID); err != nil {
		return err
	}
	s.cache.InvalidateUser(userID)
	s.logger.Info("permission override set",
		"user_id", userID, "permission", permission, "revoked", revoked, "actor_id", actorID)
	return nil
}

func (s *Service) AssociateFacility(userID, facilityID int64) error {
	if _, err := s.repo.GetByID(userID); err != nil {
		return err
	}
	if err := s.repo.AssociateFacility(userID, facilityID); err != nil {
		return err
	}
	s.cache.InvalidateUser(userID)
	return nil
}

// DeactivateUser disables the account without deleting it. Records are never
// hard-deleted so audit references stay resolvable.
func (s *Service) DeactivateUser(actorID, userID int64) error {
	if actorID == userID {
		return ErrSelfDisable
	}
	if _, err := s.repo.GetByID(userID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(userID); err != nil {
		return err
	}
	s.cache.InvalidateUser(userID)
	s.logger.Info("user deactivated", "user_id", userID, "actor_id", actorID)
	return nil
}
