package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/internal/inventory"
	"github.com/oakfield/shopfront-backend/internal/reservations"
	"github.com/oakfield/shopfront-backend/pkg/db"
	"github.com/oakfield/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the cart lifecycle surface. Every mutation reserves or releases
// ledger stock and the matching reservation row inside one transaction, and
// slides the cart's expiry forward. GetCart is read-only and leaves the
// expiry untouched.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*View, error)
	UpdateQuantity(ctx context.Context, cartID, skuID uuid.UUID, newQty int) (*View, error)
	RemoveItem(ctx context.Context, cartID, skuID uuid.UUID) (*View, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*View, error)
}

type service struct {
	carts Repository
	items reservations.Repository
	tx    txRunner
	ttl   time.Duration
}

func NewService(carts Repository, items reservations.Repository, tx txRunner, ttl time.Duration) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	return &service{carts: carts, items: items, tx: tx, ttl: ttl}, nil
}

// AddItemInput creates the cart on first use. A nil CartID asks the service
// to mint a fresh cart identifier.
type AddItemInput struct {
	CartID   *uuid.UUID
	OwnerRef *string
	SKUID    uuid.UUID
	Qty      int
}

// Line is one reserved SKU inside a cart view.
type Line struct {
	SKUID uuid.UUID `json:"sku_id"`
	Qty   int       `json:"qty"`
}

// View is the read model returned by every cart operation.
type View struct {
	CartID     uuid.UUID `json:"cart_id"`
	OwnerRef   *string   `json:"owner_ref,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int       `json:"ttl_seconds"`
	Items      []Line    `json:"items"`
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*View, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if input.SKUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku_id is required")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		carts := s.carts.WithTx(tx)
		items := s.items.WithTx(tx)

		cartID := uuid.New()
		if input.CartID != nil && *input.CartID != uuid.Nil {
			cartID = *input.CartID
		}

		row, err := carts.Find(ctx, cartID)
		if err != nil {
			return err
		}
		expiresAt := now.Add(s.ttl)
		switch {
		case row == nil:
			row = &models.Cart{ID: cartID, OwnerRef: input.OwnerRef, ExpiresAt: expiresAt}
			if err := carts.Create(ctx, row); err != nil {
				return err
			}
		case !row.ExpiresAt.After(now):
			return expiredOrMissing(cartID)
		default:
			if err := carts.Touch(ctx, cartID, expiresAt); err != nil {
				return err
			}
		}

		if err := inventory.Reserve(ctx, tx, input.SKUID, input.Qty); err != nil {
			return err
		}
		if err := items.Add(ctx, cartID, input.SKUID, input.Qty); err != nil {
			return err
		}

		view, err = buildView(ctx, items, cartID, expiresAt, now)
		return err
	})
	if err != nil {
		return nil, wrapContention(err)
	}
	return view, nil
}

func (s *service) UpdateQuantity(ctx context.Context, cartID, skuID uuid.UUID, newQty int) (*View, error) {
	if newQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must not be negative")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		carts := s.carts.WithTx(tx)
		items := s.items.WithTx(tx)

		expiresAt, err := s.requireLiveCart(ctx, carts, cartID, now)
		if err != nil {
			return err
		}

		current, err := items.Get(ctx, cartID, skuID)
		if err != nil {
			return err
		}
		currentQty := 0
		if current != nil {
			currentQty = current.Qty
		}

		delta := newQty - currentQty
		switch {
		case delta > 0:
			if err := inventory.Reserve(ctx, tx, skuID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := inventory.Release(ctx, tx, skuID, -delta); err != nil {
				return err
			}
		}

		switch {
		case newQty == 0 && current != nil:
			if err := items.Remove(ctx, cartID, skuID); err != nil {
				return err
			}
		case newQty > 0 && current == nil:
			if err := items.Add(ctx, cartID, skuID, newQty); err != nil {
				return err
			}
		case newQty > 0:
			if err := items.SetQty(ctx, cartID, skuID, newQty); err != nil {
				return err
			}
		}

		view, err = buildView(ctx, items, cartID, expiresAt, now)
		return err
	})
	if err != nil {
		return nil, wrapContention(err)
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, cartID, skuID uuid.UUID) (*View, error) {
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		carts := s.carts.WithTx(tx)
		items := s.items.WithTx(tx)

		expiresAt, err := s.requireLiveCart(ctx, carts, cartID, now)
		if err != nil {
			return err
		}

		current, err := items.Get(ctx, cartID, skuID)
		if err != nil {
			return err
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sku not in cart").WithDetails(map[string]any{
				"cart_id": cartID.String(),
				"sku_id":  skuID.String(),
			})
		}

		if err := inventory.Release(ctx, tx, skuID, current.Qty); err != nil {
			return err
		}
		if err := items.Remove(ctx, cartID, skuID); err != nil {
			return err
		}

		view, err = buildView(ctx, items, cartID, expiresAt, now)
		return err
	})
	if err != nil {
		return nil, wrapContention(err)
	}
	return view, nil
}

func (s *service) GetCart(ctx context.Context, cartID uuid.UUID) (*View, error) {
	now := time.Now()
	row, err := s.carts.Find(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if row == nil || !row.ExpiresAt.After(now) {
		return nil, expiredOrMissing(cartID)
	}
	view, err := buildView(ctx, s.items, cartID, row.ExpiresAt, now)
	if err != nil {
		return nil, err
	}
	view.OwnerRef = row.OwnerRef
	return view, nil
}

// requireLiveCart slides the expiry forward and returns the new deadline.
// An expired-but-unreclaimed row is reported missing rather than revived;
// the reclaimer owns its stock from the moment the deadline passes.
func (s *service) requireLiveCart(ctx context.Context, carts Repository, cartID uuid.UUID, now time.Time) (time.Time, error) {
	row, err := carts.Find(ctx, cartID)
	if err != nil {
		return time.Time{}, err
	}
	if row == nil || !row.ExpiresAt.After(now) {
		return time.Time{}, expiredOrMissing(cartID)
	}
	expiresAt := now.Add(s.ttl)
	if err := carts.Touch(ctx, cartID, expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

func buildView(ctx context.Context, items reservations.Repository, cartID uuid.UUID, expiresAt, now time.Time) (*View, error) {
	rows, err := items.ListByCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, Line{SKUID: row.SKUID, Qty: row.Qty})
	}
	ttl := int(expiresAt.Sub(now).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	return &View{
		CartID:     cartID,
		ExpiresAt:  expiresAt,
		TTLSeconds: ttl,
		Items:      lines,
	}, nil
}

func expiredOrMissing(cartID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeCartExpired, "cart expired or missing").WithDetails(map[string]any{
		"cart_id": cartID.String(),
	})
}

func wrapContention(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if db.IsLockContention(err) {
		return pkgerrors.Wrap(pkgerrors.CodeContention, err, "storage contention")
	}
	return err
}
