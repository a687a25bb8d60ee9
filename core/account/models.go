package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/shulesoft/shule/core"
)

// Roles
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

// Sub-roles refine a Role for finer-grained permissions.
type SubRole string

const (
	SubRoleNone SubRole = ""

	// Admin
	SubRoleSuperAdmin      SubRole = "super_admin"
	SubRoleAcademicAdmin   SubRole = "academic_admin"
	SubRoleFinanceAdmin    SubRole = "finance_admin"
	SubRoleDepartmentAdmin SubRole = "department_admin"

	// Professor
	SubRoleHeadOfDepartment   SubRole = "head_of_department"
	SubRoleSeniorProfessor    SubRole = "senior_professor"
	SubRoleAssistantProfessor SubRole = "assistant_professor"
	SubRoleGuestLecturer      SubRole = "guest_lecturer"
)

// Account statuses
type Status string

const (
	StatusActive          Status = "active"
	StatusInactive        Status = "inactive"
	StatusSuspended       Status = "suspended"
	StatusPendingApproval Status = "pending_approval"
)

var (
	AllRoles = []Role{RoleAdmin, RoleProfessor, RoleStudent}

	SubRolesByRole = map[Role][]SubRole{
		RoleAdmin:     {SubRoleSuperAdmin, SubRoleAcademicAdmin, SubRoleFinanceAdmin, SubRoleDepartmentAdmin},
		RoleProfessor: {SubRoleHeadOfDepartment, SubRoleSeniorProfessor, SubRoleAssistantProfessor, SubRoleGuestLecturer},
		RoleStudent:   {},
	}

	AllStatuses = []Status{StatusActive, StatusInactive, StatusSuspended, StatusPendingApproval}

	// rolePriorities gates who may assign which role.
	rolePriorities = map[Role]int{
		RoleAdmin:     30,
		RoleProfessor: 20,
		RoleStudent:   10,
	}
)

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// Identity is the authentication principal: credentials only,
// owned by the auth layer. Exactly one Profile references it.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (idt *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	idt.PasswordHash = hash
	return nil
}

func (idt *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(idt.PasswordHash, []byte(pwd))
}

// Profile is the application's user record. Profile.ID == Identity.ID.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           Role      `json:"role"`
	SubRole        SubRole   `json:"sub_role,omitempty"`
	DepartmentID   *string   `json:"department_id,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Status         Status    `json:"status"`
	ApprovalStatus string    `json:"approval_status,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (p *Profile) IsActive() bool {
	return p.Status == StatusActive
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p *Profile) IsProfessor() bool {
	return p.Role == RoleProfessor
}

func (p *Profile) IsStudent() bool {
	return p.Role == RoleStudent
}

// NewAccount contains information needed to sign up a new Identity + Profile.
type NewAccount struct {
	FullName        string  `json:"full_name" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            Role    `json:"role" validate:"required,role"`
	SubRole         SubRole `json:"sub_role" validate:"omitempty,subrole"`
	DepartmentID    *string `json:"department_id"`
	Phone           string  `json:"phone"`
}

func (na *NewAccount) Validate(validate *validator.Validate, svc Service) error {
	na.FullName = core.CleanString(na.FullName)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(na.Email)
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
type UpdateProfile struct {
	FullName        string   `json:"full_name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Role            Role     `json:"role" validate:"omitempty,role"`
	SubRole         *SubRole `json:"sub_role" validate:"omitempty,subrole"`
	DepartmentID    *string  `json:"department_id"`
	Phone           string   `json:"phone"`
	Status          Status   `json:"status" validate:"omitempty,status"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(orig Profile, validate *validator.Validate, svc Service) error {
	name := core.CleanString(up.FullName)
	if name != "" {
		up.FullName = name
	} else {
		up.FullName = orig.FullName
	}

	email := core.CleanString(up.Email, true /* lower */)
	if email != "" {
		up.Email = email
	} else {
		up.Email = orig.Email
	}

	if up.Role == "" {
		up.Role = orig.Role
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(up.Email, orig)
}

type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// QueryFilter applies an AND operation on its available fields.
// Search does a case-insensitive match on one of Profile.FullName or Profile.Email.
type QueryFilter struct {
	Search       string   `query:"search"`
	Roles        []Role   `query:"role"`
	Statuses     []Status `query:"status"`
	DepartmentID string   `query:"department_id"`
	CreatedFrom  time.Time `query:"created_from"`
	CreatedTo    time.Time `query:"created_to"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.DepartmentID = core.CleanString(f.DepartmentID)
}

// GetFilter looks an account up by exactly one of its fields.
type GetFilter struct {
	ID    string
	Email string
}
