package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/department"
)

type departmentApi struct {
	svc      department.Service
	validate *validator.Validate
}

func registerDepartmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := departmentApi{
		svc:      opts.DepartmentSvc,
		validate: opts.Validate,
	}

	dg := g.Group("/departments", jwt)
	dg.GET("", api.query, permissionMiddleware(opts.AccountSvc, account.ResourceDepartments, account.ActionView))
	dg.POST("", api.create, permissionMiddleware(opts.AccountSvc, account.ResourceDepartments, account.ActionCreate))
	dg.DELETE("/:id", api.destroy, permissionMiddleware(opts.AccountSvc, account.ResourceDepartments, account.ActionDelete))
}

// Handlers

func (api *departmentApi) query(ctx echo.Context) error {
	depts, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if depts == nil {
		depts = []department.Department{}
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *departmentApi) create(ctx echo.Context) error {
	var data department.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dept, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}

func (api *departmentApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == department.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding department")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}
