package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuslib/library-api/internal/models"
)

// ProfileRepository manages persistence for library profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByUserID fetches the profile joined with its account.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.ProfileDetail, error) {
	const query = `SELECT p.id, p.user_id, p.matricule, p.phone, p.address, p.created_at, p.updated_at,
        u.email, u.full_name, u.role
        FROM profiles p
        JOIN users u ON u.id = p.user_id
        WHERE p.user_id = $1 LIMIT 1`
	var detail models.ProfileDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &detail, nil
}

// ExistsByMatricule checks matricule uniqueness optionally excluding a profile.
func (r *ProfileRepository) ExistsByMatricule(ctx context.Context, matricule string, excludeUserID string) (bool, error) {
	query := `SELECT 1 FROM profiles WHERE matricule = $1`
	args := []interface{}{matricule}
	if excludeUserID != "" {
		query += ` AND user_id <> $2`
		args = append(args, excludeUserID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check matricule: %w", err)
	}
	return true, nil
}

// Update modifies the mutable contact fields of a profile.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET matricule = :matricule, phone = :phone, address = :address, updated_at = :updated_at WHERE user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
