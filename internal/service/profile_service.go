package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type profileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.ProfileDetail, error)
	ExistsByMatricule(ctx context.Context, matricule string, excludeUserID string) (bool, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// UpdateProfileRequest holds the editable contact fields.
type UpdateProfileRequest struct {
	Matricule string `json:"matricule"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// ProfileService handles profile use-cases.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs the profile service.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// Get returns the caller's profile with account context.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.ProfileDetail, error) {
	detail, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return detail, nil
}

// Update modifies the caller's contact fields.
func (s *ProfileService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*models.ProfileDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	detail, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	if req.Matricule != "" {
		taken, err := s.repo.ExistsByMatricule(ctx, req.Matricule, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate matricule")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "matricule already used")
		}
	}

	profile := detail.Profile
	profile.Matricule = optionalString(req.Matricule)
	profile.Phone = optionalString(req.Phone)
	profile.Address = optionalString(req.Address)

	if err := s.repo.Update(ctx, &profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	detail.Profile = profile
	return detail, nil
}
