package models

import "time"

// EntityType tags an entity collection. The tag selects both the permission
// rule and the group-addressing rule that apply to records of that type.
type EntityType string

const (
	EntityDepartment  EntityType = "department"
	EntityCourse      EntityType = "course"
	EntityStudent     EntityType = "student"
	EntitySupervisor  EntityType = "supervisor"
	EntityApplication EntityType = "application"
	EntityInternship  EntityType = "internship"
)

// KnownEntityTypes lists every collection in snapshot order. Unknown types
// received from clients are not an error; they resolve to empty results.
func KnownEntityTypes() []EntityType {
	return []EntityType{
		EntityDepartment,
		EntityCourse,
		EntityStudent,
		EntitySupervisor,
		EntityApplication,
		EntityInternship,
	}
}

// Denormalized ownership field names. Group addressing and permission
// scoping read only these, so both stay computable from a single entity
// snapshot without extra queries.
const (
	FieldInstitutionID = "institution_id"
	FieldDepartmentID  = "department_id"
	FieldStudentID     = "student_id"
	FieldSupervisorID  = "supervisor_id"
)

// Entity is a versioned record owned canonically by the server. A client
// holds a cached, possibly stale or speculative copy. UpdatedAt is a
// strictly increasing server timestamp. A Deleted entity is a tombstone:
// Fields keep the pre-deletion ownership values so scoping and group
// addressing still work for the deletion event.
type Entity struct {
	UpdatedAt time.Time
	Fields    map[string]any
	ID        string
	Type      EntityType
	Deleted   bool
}

// Clone returns a deep copy. Reducer and storage layers never hand out
// shared field maps.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{
		ID:        e.ID,
		Type:      e.Type,
		Fields:    cloneFields(e.Fields),
		UpdatedAt: e.UpdatedAt,
		Deleted:   e.Deleted,
	}
}

func (e *Entity) stringField(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	v, _ := e.Fields[name].(string)
	return v
}

// InstitutionID returns the denormalized owning institution, if any.
func (e *Entity) InstitutionID() string { return e.stringField(FieldInstitutionID) }

// DepartmentID returns the denormalized owning department, if any.
func (e *Entity) DepartmentID() string {
	// A department record owns itself.
	if e != nil && e.Type == EntityDepartment {
		return e.ID
	}
	return e.stringField(FieldDepartmentID)
}

// StudentID returns the related student user id, if any. Student records
// are keyed by the student's own user id.
func (e *Entity) StudentID() string {
	if e != nil && e.Type == EntityStudent {
		return e.ID
	}
	return e.stringField(FieldStudentID)
}

// SupervisorID returns the related supervisor user id, if any.
func (e *Entity) SupervisorID() string {
	if e != nil && e.Type == EntitySupervisor {
		return e.ID
	}
	return e.stringField(FieldSupervisorID)
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies JSON-shaped values. Scalars are immutable and
// copied as-is.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
