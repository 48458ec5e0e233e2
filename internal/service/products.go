package service

import (
	"context"
	"strings"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Products
// ============================================================

func (s *CRM) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CRM.ListProducts")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListProducts(ctx, actor)
}

func (s *CRM) CreateProduct(ctx context.Context, in *domain.ProductInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CRM.CreateProduct")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if in.Stock < 0 {
		return nil, &domain.ErrValidation{Field: "stock", Message: "must not be negative"}
	}
	if in.Interval != nil && *in.Interval <= 0 {
		return nil, &domain.ErrValidation{Field: "interval", Message: "must be positive"}
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	row := map[string]any{
		"name":               name,
		"category":           in.Category,
		"stock":              in.Stock,
		"tags":               in.Tags,
		"needs_prescription": in.NeedsPrescription,
		"controlled":         in.Controlled,
		"created_by":         actor,
	}
	if in.Interval != nil {
		row["interval"] = *in.Interval
	}

	product, err := s.store.InsertProduct(ctx, row)
	if err != nil {
		return nil, translateUnique("products", name, err)
	}

	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("actor", actor))
	return product, nil
}

func (s *CRM) UpdateProduct(ctx context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CRM.UpdateProduct")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "cannot be empty"}
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, &domain.ErrValidation{Field: "stock", Message: "must not be negative"}
	}
	if patch.Interval != nil && *patch.Interval <= 0 {
		return nil, &domain.ErrValidation{Field: "interval", Message: "must be positive"}
	}

	row := patch.Row()
	if len(row) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	product, err := s.store.UpdateProduct(ctx, id, actor, row)
	if err != nil {
		name := ""
		if patch.Name != nil {
			name = strings.TrimSpace(*patch.Name)
		}
		return nil, translateUnique("products", name, err)
	}
	return product, nil
}

// DeleteProduct refuses to delete a product referenced by any sale. The
// reference check runs before the delete so the error can name the product.
func (s *CRM) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CRM.DeleteProduct")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	product, err := s.store.GetProduct(ctx, id, actor)
	if err != nil {
		return err
	}

	refs, err := s.store.CountSaleReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		s.logger.Info("product delete refused: referenced by sales",
			zap.String("product_id", id),
			zap.Int("sale_items", refs),
		)
		return &domain.ErrProductInUse{ProductID: id, ProductName: product.Name}
	}

	if err := s.store.DeleteProduct(ctx, id, actor); err != nil {
		// A sale recorded between the check and the delete.
		if isForeignKeyViolation(err) {
			return &domain.ErrProductInUse{ProductID: id, ProductName: product.Name}
		}
		return err
	}

	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("actor", actor))
	return nil
}
