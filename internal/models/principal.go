package models

// Role determines which slice of each entity collection a principal may see
// and mutate.
type Role string

const (
	RoleStudent          Role = "student"
	RoleSupervisor       Role = "supervisor"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleSystemAdmin      Role = "system_admin"
)

// Principal is an authenticated actor. It is immutable for the lifetime of
// a connection and re-established from the credential on reconnect.
type Principal struct {
	UserID        string
	Role          Role
	InstitutionID string
	DepartmentID  string
}
