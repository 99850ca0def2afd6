package entity

import "time"

// Alcances de una sesión de conteo.
const (
	ScopeCycle = "cycle" // conteo cíclico de un subconjunto de ubicaciones
	ScopeFull  = "full"  // inventario completo de la sucursal
)

// Estados de una sesión de conteo. open → review → {posted, cancelled}; open → cancelled.
const (
	SessionStatusOpen      = "open"
	SessionStatusReview    = "review"
	SessionStatusPosted    = "posted"
	SessionStatusCancelled = "cancelled"
)

// CountSession representa un ejercicio de conteo físico en una sucursal.
// Solo el gestor de ciclo de vida la modifica, siempre mediante transiciones explícitas.
type CountSession struct {
	ID              string
	BranchID        string
	Scope           string
	LocationScope   string // descripción libre del subconjunto (ej. "Vitrina A")
	Status          string
	StartDate       *time.Time
	DueDate         *time.Time
	SnapshotAt      *time.Time // nil hasta materializar la línea base
	FreezeMovements bool
	Counters        []string // IDs de usuarios asignados
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsTerminal indica si la sesión ya no admite transiciones.
func (s *CountSession) IsTerminal() bool {
	return s.Status == SessionStatusPosted || s.Status == SessionStatusCancelled
}

// HasCounter indica si el usuario está asignado como contador.
func (s *CountSession) HasCounter(userID string) bool {
	for _, c := range s.Counters {
		if c == userID {
			return true
		}
	}
	return false
}

// CountSessionEvent registra cada transición de estado (historial de sesiones).
type CountSessionEvent struct {
	ID         string
	SessionID  string
	FromStatus string
	ToStatus   string
	ActorID    string
	CreatedAt  time.Time
}
