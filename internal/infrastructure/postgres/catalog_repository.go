package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo lecturas de sucursales, catálogo y usuarios sobre PostgreSQL.
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador de datos maestros. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

// GetBranch obtiene una sucursal por ID.
func (r *CatalogRepo) GetBranch(ctx context.Context, id string) (*entity.Branch, error) {
	var b entity.Branch
	err := r.q.QueryRow(ctx, `SELECT id, name FROM branches WHERE id = $1`, id).Scan(&b.ID, &b.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

const productColumns = `id, code, description, location, cost_cents, reorder_point`

func scanProduct(row pgx.Row) (*entity.ProductCodeVersion, error) {
	var p entity.ProductCodeVersion
	if err := row.Scan(&p.ID, &p.Code, &p.Description, &p.Location, &p.CostCents, &p.ReorderPoint); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct obtiene una versión de código de producto por ID.
func (r *CatalogRepo) GetProduct(ctx context.Context, id string) (*entity.ProductCodeVersion, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM product_code_versions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product code version: %w", err)
	}
	return p, nil
}

// GetProducts obtiene varias versiones de código de una vez; las inexistentes se omiten del mapa.
func (r *CatalogRepo) GetProducts(ctx context.Context, ids []string) (map[string]*entity.ProductCodeVersion, error) {
	out := make(map[string]*entity.ProductCodeVersion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM product_code_versions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get product code versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product code version: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// GetUser obtiene un usuario del directorio.
func (r *CatalogRepo) GetUser(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	var branchID *string
	err := r.q.QueryRow(ctx, `SELECT id, branch_id, name, role, active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &branchID, &u.Name, &u.Role, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if branchID != nil {
		u.BranchID = *branchID
	}
	return &u, nil
}
