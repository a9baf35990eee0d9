package scope

import "github.com/internhub/internhub/internal/models"

// GroupsFor computes the broadcast groups a change to an entity touches.
// It is a pure function of the entity's denormalized ownership fields, so
// the dispatcher can run it synchronously from a post-commit hook without
// extra queries. For deletions the caller passes the pre-deletion snapshot,
// since the ownership fields are otherwise gone.
//
// Groups are a routing layer, not the authority on visibility: a connection
// may be a member of a group (a student in their department group) without
// being allowed to see every entity addressed to it. The gateway applies
// VisibleScope per connection before delivery.
func GroupsFor(entity *models.Entity) []models.Group {
	if entity == nil {
		return nil
	}

	groups := []models.Group{
		models.EntityGroup(entity.Type, entity.ID),
		models.GroupSystem,
	}

	if institutionID := entity.InstitutionID(); institutionID != "" {
		groups = append(groups, models.InstitutionGroup(institutionID))
	}
	if departmentID := entity.DepartmentID(); departmentID != "" {
		groups = append(groups, models.DepartmentGroup(departmentID))
	}

	seen := map[string]bool{}
	for _, userID := range []string{entity.StudentID(), entity.SupervisorID()} {
		if userID != "" && !seen[userID] {
			seen[userID] = true
			groups = append(groups, models.UserGroup(userID))
		}
	}

	return groups
}

// MembershipGroups computes the groups a connection joins at connect time,
// derived from the principal alone. Ad hoc entity groups are joined later
// through subscribe messages.
func MembershipGroups(p models.Principal) []models.Group {
	groups := []models.Group{models.UserGroup(p.UserID)}

	switch p.Role {
	case models.RoleStudent, models.RoleSupervisor:
		if p.DepartmentID != "" {
			groups = append(groups, models.DepartmentGroup(p.DepartmentID))
		}
	case models.RoleInstitutionAdmin:
		if p.InstitutionID != "" {
			groups = append(groups, models.InstitutionGroup(p.InstitutionID))
		}
	case models.RoleSystemAdmin:
		groups = append(groups, models.GroupSystem)
	}

	return groups
}

// WriteAllowed reports whether a principal may perform an operation on an
// entity. The entity is the post-mutation state for creates and updates and
// the pre-deletion snapshot for deletes.
func WriteAllowed(p models.Principal, op models.Operation, entity *models.Entity) bool {
	if entity == nil {
		return false
	}

	switch p.Role {
	case models.RoleSystemAdmin:
		return true
	case models.RoleInstitutionAdmin:
		return entity.InstitutionID() == p.InstitutionID
	case models.RoleSupervisor:
		switch entity.Type {
		case models.EntityCourse, models.EntityApplication, models.EntityInternship:
			return entity.DepartmentID() == p.DepartmentID
		case models.EntitySupervisor:
			return op == models.OperationUpdate && entity.ID == p.UserID
		default:
			return false
		}
	case models.RoleStudent:
		switch entity.Type {
		case models.EntityApplication:
			return entity.StudentID() == p.UserID
		case models.EntityStudent:
			return op == models.OperationUpdate && entity.ID == p.UserID
		default:
			return false
		}
	default:
		return false
	}
}
