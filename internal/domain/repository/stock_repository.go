package repository

import (
	"context"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// StockRepository consulta la existencia actual (derivada del libro) por sucursal.
type StockRepository interface {
	// OnHand devuelve las posiciones de la sucursal. locationScope vacío = todas las ubicaciones.
	OnHand(ctx context.Context, branchID, locationScope string) ([]entity.StockPosition, error)
	// LockForSnapshot impide escrituras en el libro hasta el fin de la transacción y espera a las que
	// están en curso. Así la lectura de existencia y snapshot_at ven el mismo libro.
	LockForSnapshot(ctx context.Context) error
}
