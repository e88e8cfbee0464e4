package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
	"github.com/oakfield/shopfront-backend/pkg/enums"
)

// Repository persists cart rows. Terminal transitions are claimed with
// guarded updates so settlement and reclamation can never both win the same
// cart: the settlement guard requires the cart to still be live while the
// reclaim guard requires it to be past expiry.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClaimForSettlement(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ClaimForReclaim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns nil when the cart does not exist.
func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var row models.Cart
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"expires_at": expiresAt,
			"updated_at": time.Now(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Cart{}).Error
}

func (r *repository) ClaimForSettlement(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.claim(ctx, id, enums.CartStatusSettled, "expires_at > ?", now)
}

func (r *repository) ClaimForReclaim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.claim(ctx, id, enums.CartStatusReclaimed, "expires_at <= ?", now)
}

func (r *repository) claim(ctx context.Context, id uuid.UUID, to enums.CartStatus, expiryGuard string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, enums.CartStatusActive).
		Where(expiryGuard, now).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("status = ? AND expires_at <= ?", enums.CartStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
