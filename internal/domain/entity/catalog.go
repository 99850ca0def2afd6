package entity

import "github.com/shopspring/decimal"

// Branch sucursal (dato maestro externo, solo lectura).
type Branch struct {
	ID   string
	Name string
}

// ProductCodeVersion versión de código de producto del catálogo (solo lectura).
type ProductCodeVersion struct {
	ID           string
	Code         string // SKU
	Description  string
	Location     string // ubicación física (vitrina, bodega, caja fuerte)
	CostCents    int64
	ReorderPoint decimal.Decimal
}

// StockPosition existencia de un producto en una sucursal según el libro de stock.
type StockPosition struct {
	ProductCodeVersionID string
	BranchID             string
	OnHand               decimal.Decimal
	Reserved             decimal.Decimal // apartados, empeños vigentes
}

// Available = existencia - reservado.
func (p StockPosition) Available() decimal.Decimal {
	return p.OnHand.Sub(p.Reserved)
}
