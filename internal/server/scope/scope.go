// Package scope is the single source of truth for role-dependent
// visibility. The same predicate backs the snapshot paths, the gateway's
// group joins, and the per-connection delivery filter, so sync scope and
// broadcast scope cannot drift apart.
package scope

import "github.com/internhub/internhub/internal/models"

// Predicate reports whether a single entity is visible.
type Predicate func(*models.Entity) bool

// VisibleScope returns the visibility predicate for a principal and entity
// type. Unknown entity types yield a predicate that admits nothing, so
// clients newer than this server degrade gracefully.
func VisibleScope(p models.Principal, entityType models.EntityType) Predicate {
	switch p.Role {
	case models.RoleSystemAdmin:
		return func(*models.Entity) bool { return true }
	case models.RoleInstitutionAdmin:
		return func(e *models.Entity) bool {
			return e != nil && e.InstitutionID() == p.InstitutionID
		}
	case models.RoleSupervisor:
		return supervisorScope(p, entityType)
	case models.RoleStudent:
		return studentScope(p, entityType)
	default:
		return denyAll
	}
}

func supervisorScope(p models.Principal, entityType models.EntityType) Predicate {
	switch entityType {
	case models.EntityDepartment:
		return func(e *models.Entity) bool { return e != nil && e.ID == p.DepartmentID }
	case models.EntityCourse, models.EntityStudent:
		return func(e *models.Entity) bool { return e != nil && e.DepartmentID() == p.DepartmentID }
	case models.EntitySupervisor:
		return func(e *models.Entity) bool { return e != nil && e.ID == p.UserID }
	case models.EntityApplication:
		// Supervisors review every application in their department, not
		// only those already assigned to them.
		return func(e *models.Entity) bool {
			return e != nil && (e.SupervisorID() == p.UserID || e.DepartmentID() == p.DepartmentID)
		}
	case models.EntityInternship:
		return func(e *models.Entity) bool { return e != nil && e.SupervisorID() == p.UserID }
	default:
		return denyAll
	}
}

func studentScope(p models.Principal, entityType models.EntityType) Predicate {
	switch entityType {
	case models.EntityDepartment:
		return func(e *models.Entity) bool { return e != nil && e.ID == p.DepartmentID }
	case models.EntityCourse, models.EntitySupervisor:
		return func(e *models.Entity) bool { return e != nil && e.DepartmentID() == p.DepartmentID }
	case models.EntityStudent:
		return func(e *models.Entity) bool { return e != nil && e.ID == p.UserID }
	case models.EntityApplication, models.EntityInternship:
		return func(e *models.Entity) bool { return e != nil && e.StudentID() == p.UserID }
	default:
		return denyAll
	}
}

func denyAll(*models.Entity) bool { return false }
