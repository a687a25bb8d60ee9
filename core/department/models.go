package department

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulesoft/shule/core"
)

// Department groups professors and courses under one unit.
// Profiles reference it through their department_id.
type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewDepartment struct {
	Name string `json:"name" validate:"required"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	return validate.Struct(nd)
}
