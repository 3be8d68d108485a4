package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/pos-api/internal/application/dto"
	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

// ProductUseCase casos de uso CRUD para productos. El checkout descuenta stock por su cuenta.
type ProductUseCase struct {
	repo repository.ProductRepository
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository) *ProductUseCase {
	return &ProductUseCase{repo: repo}
}

// Create crea un nuevo producto.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	product := &entity.Product{
		Name:       strings.TrimSpace(in.Name),
		SKU:        strings.TrimSpace(in.SKU),
		Price:      in.Price,
		Stock:      in.Stock,
		ProviderID: in.ProviderID,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// GetByID obtiene un producto por ID.
func (uc *ProductUseCase) GetByID(ctx context.Context, id int64) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// Update aplica solo los campos presentes en el request, en una única escritura.
// El stock se toca únicamente si viene en el request.
func (uc *ProductUseCase) Update(ctx context.Context, id int64, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	changes := repository.ProductChanges{
		Price:      in.Price,
		Stock:      in.Stock,
		ProviderID: in.ProviderID,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		changes.Name = &name
	}
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		changes.SKU = &sku
	}
	if err := validateChanges(changes); err != nil {
		return nil, err
	}
	product, err := uc.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

// List lista productos; inStockOnly deja solo los vendibles (stock > 0), como la pantalla de ventas.
func (uc *ProductUseCase) List(ctx context.Context, inStockOnly bool) ([]dto.ProductResponse, error) {
	list, err := uc.repo.List(ctx, repository.ProductFilter{InStockOnly: inStockOnly})
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		out = append(out, *toProductResponse(p))
	}
	return out, nil
}

// Delete elimina un producto. domain.ErrInUse si ya se vendió.
func (uc *ProductUseCase) Delete(ctx context.Context, id int64) error {
	return uc.repo.Delete(ctx, id)
}

func validateProduct(p *entity.Product) error {
	switch {
	case p.Name == "" || p.SKU == "":
		return fmt.Errorf("%w: name y sku son requeridos", domain.ErrInvalidInput)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price debe ser >= 0", domain.ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock debe ser >= 0", domain.ErrInvalidInput)
	case p.ProviderID != nil && *p.ProviderID <= 0:
		return fmt.Errorf("%w: provider_id inválido", domain.ErrInvalidInput)
	}
	return nil
}

func validateChanges(c repository.ProductChanges) error {
	switch {
	case c.Name != nil && *c.Name == "", c.SKU != nil && *c.SKU == "":
		return fmt.Errorf("%w: name y sku no pueden quedar vacíos", domain.ErrInvalidInput)
	case c.Price != nil && c.Price.IsNegative():
		return fmt.Errorf("%w: price debe ser >= 0", domain.ErrInvalidInput)
	case c.Stock != nil && *c.Stock < 0:
		return fmt.Errorf("%w: stock debe ser >= 0", domain.ErrInvalidInput)
	case c.ProviderID != nil && *c.ProviderID <= 0:
		return fmt.Errorf("%w: provider_id inválido", domain.ErrInvalidInput)
	}
	return nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		SKU:        p.SKU,
		Price:      p.Price,
		Stock:      p.Stock,
		ProviderID: p.ProviderID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
