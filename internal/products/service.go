package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates catalog entries together with their stock ledger row.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateProductInput captures a catalog entry and its opening stock.
type CreateProductInput struct {
	SKU            string
	Title          string
	UnitPriceCents int
	InitialStock   int
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative")
	}

	row := models.Product{
		ID:             uuid.New(),
		SKU:            strings.TrimSpace(input.SKU),
		Title:          strings.TrimSpace(input.Title),
		UnitPriceCents: input.UnitPriceCents,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &row); err != nil {
			return err
		}
		item := models.InventoryItem{SKUID: row.ID, AvailableQty: input.InitialStock}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}
