package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/internal/cart"
	"github.com/oakfield/shopfront-backend/internal/inventory"
	"github.com/oakfield/shopfront-backend/internal/products"
	"github.com/oakfield/shopfront-backend/internal/reservations"
	"github.com/oakfield/shopfront-backend/pkg/db"
	"github.com/oakfield/shopfront-backend/pkg/db/models"
	"github.com/oakfield/shopfront-backend/pkg/enums"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
	"github.com/oakfield/shopfront-backend/pkg/logger"
	"github.com/oakfield/shopfront-backend/pkg/outbox"
	"github.com/oakfield/shopfront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts a paid cart into an order exactly once. The payment
// reference is the idempotency key: replays return the order created by the
// first successful call.
type Service interface {
	Settle(ctx context.Context, cartID uuid.UUID, paymentReference string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	orders  Repository
	carts   cart.Repository
	items   reservations.Repository
	catalog products.Repository
	tx      txRunner
	events  eventEmitter
	logg    *logger.Logger
}

func NewService(
	orders Repository,
	carts cart.Repository,
	items reservations.Repository,
	catalog products.Repository,
	tx txRunner,
	events eventEmitter,
	logg *logger.Logger,
) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		orders:  orders,
		carts:   carts,
		items:   items,
		catalog: catalog,
		tx:      tx,
		events:  events,
		logg:    logg,
	}, nil
}

func (s *service) Settle(ctx context.Context, cartID uuid.UUID, paymentReference string) (*models.Order, error) {
	ref := strings.TrimSpace(paymentReference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_reference is required")
	}
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		order, txErr = s.settleTx(ctx, tx, cartID, ref)
		return txErr
	})
	if err == nil {
		return order, nil
	}

	// A concurrent settle with the same reference can win the unique index
	// race after our replay check. The committed winner's order is the
	// correct response for this caller too.
	if db.IsUniqueViolation(err, "ux_orders_payment_reference") {
		winner, findErr := s.orders.FindByPaymentReference(ctx, ref)
		if findErr == nil && winner != nil {
			return winner, nil
		}
	}
	if typed := pkgerrors.As(err); typed != nil {
		return nil, err
	}
	if db.IsLockContention(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeContention, err, "storage contention")
	}
	return nil, err
}

func (s *service) settleTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, ref string) (*models.Order, error) {
	now := time.Now()
	orders := s.orders.WithTx(tx)
	carts := s.carts.WithTx(tx)
	items := s.items.WithTx(tx)
	catalog := s.catalog.WithTx(tx)

	// Idempotent replay: a duplicate callback with a known reference
	// returns the original order without touching the ledger.
	if existing, err := orders.FindByPaymentReference(ctx, ref); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	claimed, err := carts.ClaimForSettlement(ctx, cartID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, s.classifySettleFailure(ctx, orders, carts, cartID)
	}

	rows, err := items.ListByCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	skuIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		skuIDs = append(skuIDs, row.SKUID)
	}
	catalogRows, err := catalog.FindByIDs(ctx, skuIDs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:               uuid.New(),
		CartID:           cartID,
		PaymentReference: ref,
		Status:           enums.OrderStatusPaid,
	}
	for _, row := range rows {
		product, ok := catalogRows[row.SKUID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reserved sku missing from catalog").WithDetails(map[string]any{
				"sku_id": row.SKUID.String(),
			})
		}
		line := models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			SKUID:          row.SKUID,
			Name:           product.Title,
			Qty:            row.Qty,
			UnitPriceCents: product.UnitPriceCents,
			TotalCents:     product.UnitPriceCents * row.Qty,
		}
		order.TotalCents += line.TotalCents
		order.Items = append(order.Items, line)
	}

	if err := orders.Create(ctx, order); err != nil {
		return nil, err
	}

	// The reservation already decremented available stock; settlement only
	// drains the reserved balance.
	for _, row := range rows {
		if err := inventory.Consume(ctx, tx, row.SKUID, row.Qty); err != nil {
			return nil, err
		}
	}

	if err := items.DeleteByCart(ctx, cartID); err != nil {
		return nil, err
	}
	if err := carts.Delete(ctx, cartID); err != nil {
		return nil, err
	}

	if s.events != nil {
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data:          orderPaidPayload(order, now),
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"cart_id":     cartID.String(),
			"total_cents": order.TotalCents,
		})
		s.logg.Info(logCtx, "cart settled")
	}
	return order, nil
}

// classifySettleFailure runs after a failed settlement claim. The cart is
// either mid-flight under another reference, already settled, expired, or
// gone entirely.
func (s *service) classifySettleFailure(ctx context.Context, orders Repository, carts cart.Repository, cartID uuid.UUID) error {
	row, err := carts.Find(ctx, cartID)
	if err != nil {
		return err
	}
	if row != nil && row.Status == enums.CartStatusActive {
		// Claim failed on the expiry guard.
		return cartExpiredOrMissing(cartID)
	}
	existing, err := orders.FindByCartID(ctx, cartID)
	if err != nil {
		return err
	}
	if existing != nil {
		return pkgerrors.New(pkgerrors.CodeAlreadySettled, "cart already settled").WithDetails(map[string]any{
			"cart_id":  cartID.String(),
			"order_id": existing.ID.String(),
		})
	}
	return cartExpiredOrMissing(cartID)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{
			"order_id": orderID.String(),
		})
	}
	return row, nil
}

func orderPaidPayload(order *models.Order, settledAt time.Time) payloads.OrderPaidEvent {
	items := make([]payloads.OrderPaidLineItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, payloads.OrderPaidLineItem{
			SKUID:          line.SKUID,
			Name:           line.Name,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}
	return payloads.OrderPaidEvent{
		OrderID:          order.ID,
		CartID:           order.CartID,
		PaymentReference: order.PaymentReference,
		TotalCents:       order.TotalCents,
		Items:            items,
		SettledAt:        settledAt,
	}
}

func cartExpiredOrMissing(cartID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeCartExpired, "cart expired or missing").WithDetails(map[string]any{
		"cart_id": cartID.String(),
	})
}
