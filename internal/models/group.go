package models

import "fmt"

// Group is an addressable broadcast target. A connection joins the groups
// implied by its principal at connect time, plus ad hoc entity groups
// requested through subscribe messages.
type Group string

// GroupSystem is joined by every system_admin connection and targeted by
// every dispatch, so system-wide visibility does not depend on enumerating
// institutions at connect time.
const GroupSystem Group = "system"

func UserGroup(userID string) Group {
	return Group("user:" + userID)
}

func InstitutionGroup(institutionID string) Group {
	return Group("institution:" + institutionID)
}

func DepartmentGroup(departmentID string) Group {
	return Group("department:" + departmentID)
}

func EntityGroup(entityType EntityType, entityID string) Group {
	return Group(fmt.Sprintf("entity:%s:%s", entityType, entityID))
}
