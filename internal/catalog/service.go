package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Service manages the catalog records.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, logger: logger}
}

// ProductInput carries product fields for create and update.
type ProductInput struct {
	Code              string
	Description       string
	Unit              string
	Kind              ProductKind
	PurchasePrice     decimal.Decimal
	SalePrice         decimal.Decimal
	ReorderMin        decimal.Decimal
	ReorderMax        *decimal.Decimal
	PrimarySupplierID *int64
	TrackedByColor    bool
	FabricationKind   FabricationKind
}

// CreateProduct validates and stores a product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	p, err := s.buildProduct(input)
	if err != nil {
		return Product{}, err
	}
	now := s.clock.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductByCode(ctx, p.Code); err == nil {
			return ErrDuplicateCode.WithProducts(p.Code)
		} else if !isNotFound(err) {
			return err
		}
		id, err := tx.CreateProduct(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return Product{}, shared.StorageError("catalog.create_product", 0, err)
	}
	s.logger.InfoContext(ctx, "product created", slog.Int64("product_id", p.ID), slog.String("code", p.Code))
	return p, nil
}

// UpdateProduct replaces the mutable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	next, err := s.buildProduct(input)
	if err != nil {
		return Product{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if current.Code != next.Code {
			if _, err := tx.GetProductByCode(ctx, next.Code); err == nil {
				return ErrDuplicateCode.WithProducts(next.Code)
			} else if !isNotFound(err) {
				return err
			}
		}
		next.ID = id
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.clock.Now()
		return tx.UpdateProduct(ctx, next)
	})
	if err != nil {
		return Product{}, shared.StorageError("catalog.update_product", 0, err)
	}
	return next, nil
}

// GetProduct fetches a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetProductByCode fetches a product by its unique code.
func (s *Service) GetProductByCode(ctx context.Context, code string) (Product, error) {
	return s.repo.GetProductByCode(ctx, strings.TrimSpace(code))
}

// ListProducts lists products ordered by code.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// CreateColor stores a new color.
func (s *Service) CreateColor(ctx context.Context, name string) (Color, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Color{}, shared.Validation("color name required")
	}
	c := Color{Name: name}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		colors, err := tx.ListColors(ctx)
		if err != nil {
			return err
		}
		for _, existing := range colors {
			if strings.EqualFold(existing.Name, name) {
				return ErrDuplicateColor.WithMessage("catalog: color %q already exists", name)
			}
		}
		id, err := tx.CreateColor(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
	if err != nil {
		return Color{}, shared.StorageError("catalog.create_color", 0, err)
	}
	return c, nil
}

// ListColors lists colors.
func (s *Service) ListColors(ctx context.Context) ([]Color, error) {
	return s.repo.ListColors(ctx)
}

// CreateCustomer stores a customer; only one loja customer may exist.
func (s *Service) CreateCustomer(ctx context.Context, name string, kind CustomerKind) (Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Customer{}, shared.Validation("customer name required")
	}
	if kind == "" {
		kind = CustomerKindRegular
	}
	if kind != CustomerKindRegular && kind != CustomerKindStore {
		return Customer{}, shared.Validation("unknown customer kind %q", kind)
	}
	c := Customer{Name: name, Kind: kind, CreatedAt: s.clock.Now()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if kind == CustomerKindStore {
			existing, found, err := tx.FindStoreCustomer(ctx)
			if err != nil {
				return err
			}
			if found {
				return ErrDuplicateStoreCustomer.WithMessage("catalog: loja customer already exists (%s)", existing.Name)
			}
		}
		id, err := tx.CreateCustomer(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
	if err != nil {
		return Customer{}, shared.StorageError("catalog.create_customer", 0, err)
	}
	return c, nil
}

// GetCustomer fetches a customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ListCustomers lists customers.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) buildProduct(input ProductInput) (Product, error) {
	p := Product{
		Code:              strings.TrimSpace(input.Code),
		Description:       strings.TrimSpace(input.Description),
		Unit:              strings.ToUpper(strings.TrimSpace(input.Unit)),
		Kind:              input.Kind,
		PurchasePrice:     input.PurchasePrice,
		SalePrice:         input.SalePrice,
		ReorderMin:        input.ReorderMin,
		ReorderMax:        input.ReorderMax,
		PrimarySupplierID: input.PrimarySupplierID,
		TrackedByColor:    input.TrackedByColor,
		FabricationKind:   input.FabricationKind,
	}
	if p.Code == "" {
		return Product{}, shared.Validation("product code required")
	}
	if p.Unit == "" {
		p.Unit = "UN"
	}
	switch p.Kind {
	case ProductKindResale, ProductKindRawMaterial, ProductKindFabricated:
	default:
		return Product{}, shared.Validation("unknown product kind %q", p.Kind)
	}
	switch p.FabricationKind {
	case FabricationNone, FabricationFabricated, FabricationKit:
	default:
		return Product{}, shared.Validation("unknown fabrication kind %q", p.FabricationKind)
	}
	if p.Kind == ProductKindFabricated && p.FabricationKind == FabricationNone {
		p.FabricationKind = FabricationFabricated
	}
	if p.Kind == ProductKindRawMaterial && p.FabricationKind != FabricationNone {
		return Product{}, shared.Validation("raw material %s cannot be fabricated", p.Code)
	}
	if p.PurchasePrice.IsNegative() || p.SalePrice.IsNegative() {
		return Product{}, shared.Validation("prices must be >= 0")
	}
	if p.ReorderMin.IsNegative() {
		return Product{}, shared.Validation("reorder_min must be >= 0")
	}
	if p.ReorderMax != nil && p.ReorderMax.LessThan(p.ReorderMin) {
		return Product{}, shared.Validation("reorder_max must be >= reorder_min")
	}
	return p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
