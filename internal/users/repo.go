package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// PayoutAccountID returns the user's connected payout account, if onboarded.
func (r *Repository) PayoutAccountID(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if user.StripeAccountID == nil || strings.TrimSpace(*user.StripeAccountID) == "" {
		return "", nil
	}
	return *user.StripeAccountID, nil
}
