package account

// Resources a permission can be checked against.
type Resource string

const (
	ResourceCourses       Resource = "courses"
	ResourceEnrollments   Resource = "enrollments"
	ResourceDepartments   Resource = "departments"
	ResourceAnnouncements Resource = "announcements"
)

// Actions that can be performed on a Resource.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

// Allowed reports whether the profile may perform the action on the resource.
// It is pure and total: a nil profile always yields false, as does any
// role/sub-role/resource/action combination not covered by the decision table.
// Repositories enforce their own guards; this gates the UI and the HTTP layer.
func Allowed(p *Profile, res Resource, act Action) bool {
	if p == nil {
		return false
	}

	switch p.Role {
	case RoleAdmin:
		return adminAllowed(p.SubRole, res, act)
	case RoleProfessor:
		return professorAllowed(p.SubRole, res, act)
	case RoleStudent:
		// sub-role is irrelevant for students
		return res == ResourceEnrollments && (act == ActionView || act == ActionCreate)
	}
	return false
}

func adminAllowed(sub SubRole, res Resource, act Action) bool {
	switch sub {
	case SubRoleSuperAdmin:
		return true
	case SubRoleAcademicAdmin:
		return res == ResourceCourses || res == ResourceEnrollments || res == ResourceDepartments
	case SubRoleFinanceAdmin:
		return res == ResourceEnrollments && (act == ActionView || act == ActionApprove)
	case SubRoleDepartmentAdmin:
		return (res == ResourceCourses || res == ResourceEnrollments) && act != ActionDelete
	}
	return false
}

func professorAllowed(sub SubRole, res Resource, act Action) bool {
	switch sub {
	case SubRoleHeadOfDepartment:
		return res == ResourceCourses || res == ResourceEnrollments || res == ResourceAnnouncements
	case SubRoleSeniorProfessor:
		return (res == ResourceCourses || res == ResourceEnrollments || res == ResourceAnnouncements) &&
			act != ActionDelete
	case SubRoleAssistantProfessor:
		return res == ResourceCourses && (act == ActionView || act == ActionEdit)
	case SubRoleGuestLecturer:
		return res == ResourceCourses && act == ActionView
	}
	return false
}
