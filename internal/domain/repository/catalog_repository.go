package repository

import (
	"context"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// CatalogRepository lecturas de datos maestros externos (sucursales, catálogo y usuarios).
type CatalogRepository interface {
	// GetBranch devuelve nil, nil si la sucursal no existe.
	GetBranch(ctx context.Context, id string) (*entity.Branch, error)
	// GetProduct devuelve nil, nil si la versión de código no existe.
	GetProduct(ctx context.Context, id string) (*entity.ProductCodeVersion, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*entity.ProductCodeVersion, error)
	// GetUser devuelve nil, nil si el usuario no existe.
	GetUser(ctx context.Context, id string) (*entity.User, error)
}
