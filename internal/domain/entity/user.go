package entity

// Roles reconocidos en los tokens emitidos por el servicio de autenticación.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor" // revisa, aprueba y contabiliza conteos
	RoleCounter    = "counter"    // captura cantidades
)

// User usuario del directorio externo (solo lectura).
type User struct {
	ID       string
	BranchID string
	Name     string
	Role     string
	Active   bool
}
