package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/internal/cart"
	"github.com/oakfield/shopfront-backend/internal/inventory"
	"github.com/oakfield/shopfront-backend/internal/reservations"
	"github.com/oakfield/shopfront-backend/pkg/enums"
	"github.com/oakfield/shopfront-backend/pkg/logger"
	"github.com/oakfield/shopfront-backend/pkg/outbox"
	"github.com/oakfield/shopfront-backend/pkg/outbox/payloads"
)

const defaultReclaimBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CartReclaimJobParams configure the expired cart sweep.
type CartReclaimJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Carts     cart.Repository
	Items     reservations.Repository
	Outbox    outboxEmitter
	BatchSize int
}

// NewCartReclaimJob builds the job that returns expired carts' stock to the
// ledger.
func NewCartReclaimJob(params CartReclaimJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReclaimBatchSize
	}
	return &cartReclaimJob{
		logg:      params.Logger,
		db:        params.DB,
		carts:     params.Carts,
		items:     params.Items,
		outbox:    params.Outbox,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type cartReclaimJob struct {
	logg      *logger.Logger
	db        txRunner
	carts     cart.Repository
	items     reservations.Repository
	outbox    outboxEmitter
	batchSize int
	now       func() time.Time
}

func (j *cartReclaimJob) Name() string { return "cart-reclaim" }

// Run reclaims one batch per cycle. Each cart gets its own transaction so a
// single poisoned cart cannot wedge the whole sweep, and the claim inside
// that transaction settles the race against checkout.
func (j *cartReclaimJob) Run(ctx context.Context) error {
	now := j.now()
	ids, err := j.carts.ListExpiredIDs(ctx, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired carts: %w", err)
	}

	var errs error
	reclaimed := 0
	for _, id := range ids {
		ok, reclaimErr := j.reclaimOne(ctx, id)
		if reclaimErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("reclaim cart %s: %w", id, reclaimErr))
			continue
		}
		if ok {
			reclaimed++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"reclaimed":  reclaimed,
	})
	j.logg.Info(logCtx, "cart reclaim sweep complete")
	return errs
}

func (j *cartReclaimJob) reclaimOne(ctx context.Context, cartID uuid.UUID) (bool, error) {
	claimed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := j.now()
		carts := j.carts.WithTx(tx)
		items := j.items.WithTx(tx)

		row, err := carts.Find(ctx, cartID)
		if err != nil {
			return err
		}
		if row == nil {
			// Settlement won the race and deleted the cart.
			return nil
		}

		ok, err := carts.ClaimForReclaim(ctx, cartID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		rows, err := items.ListByCart(ctx, cartID)
		if err != nil {
			return err
		}
		released := make(map[string]int, len(rows))
		for _, r := range rows {
			if err := inventory.Release(ctx, tx, r.SKUID, r.Qty); err != nil {
				return err
			}
			released[r.SKUID.String()] = r.Qty
		}

		if err := items.DeleteByCart(ctx, cartID); err != nil {
			return err
		}
		if err := carts.Delete(ctx, cartID); err != nil {
			return err
		}

		if j.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventCartReclaimed,
				AggregateType: enums.AggregateCart,
				AggregateID:   cartID,
				Version:       1,
				OccurredAt:    now,
				Data: payloads.CartReclaimedEvent{
					CartID:      cartID,
					ReleasedQty: released,
					ExpiredAt:   row.ExpiresAt,
					ReclaimedAt: now,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		claimed = true
		return nil
	})
	return claimed, err
}
