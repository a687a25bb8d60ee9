package echoapi

import (
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

var (
	errProfNotFoundInCtx = errors.New("profile object not found in echo.Context")
	errNoPermsToSetRole  = "not enough rights to set this role"
)

type accountApi struct {
	conf       *core.Config
	svc        account.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := accountApi{
		conf:       opts.Conf,
		svc:        opts.AccountSvc,
		validate:   opts.Validate,
		translator: opts.Translator,
	}

	ag := g.Group("/accounts")

	// un-authed endpoints
	// TODO: rate limit `/signup`, `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/signup", api.signUp)
	ag.POST("/login", api.logIn)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.POST("/logout", api.logOut)
	authed.POST("/token-refresh", api.refreshToken)
	authed.GET("", api.query, adminMiddleware())
	authed.DELETE("", api.destroyMultiple, adminMiddleware())
	authed.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := authed.Group("/:id", ctxProfileOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/approve", api.approve, adminMiddleware())
	dg.POST("/reject", api.reject, adminMiddleware())
}

// Handlers

func (api *accountApi) signUp(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	prof, err := api.svc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, prof)
}

func (api *accountApi) logIn(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) logOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.svc.SignOut(ctx.Request().Context(), claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) query(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Profile{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	profiles, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	if profiles == nil {
		profiles = []account.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	prof, ok := ctx.Get("object").(account.Profile)
	if !ok {
		return errors.Wrap(errProfNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *accountApi) update(ctx echo.Context) error {
	prof, ok := ctx.Get("object").(account.Profile)
	if !ok {
		return errors.Wrap(errProfNotFoundInCtx, "retrieving object from context")
	}

	var data account.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	ctxProf, err := getContextProfile(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	if ctxProf == nil || !ctxProf.IsAdmin() {
		// `Role`, `SubRole`, `Status` and `Email` can only be changed by admin
		if data.Role != "" || data.SubRole != nil || data.Status != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(prof, api.validate, api.svc); err != nil {
		return err
	}

	// ctxProfile cannot assign a role above their own
	if ctxProf != nil && account.RolePriority(data.Role) > account.RolePriority(ctxProf.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	prof, err = api.svc.Update(ctx.Request().Context(), prof.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}

	return ctx.JSON(http.StatusOK, prof)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	prof, ok := ctx.Get("object").(account.Profile)
	if !ok {
		return errors.Wrap(errProfNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxProfile cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if prof.ID == claims.Subject {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), prof.ID); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxProfile cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, claims.Subject); i < len(query.IDs) {
		if match := query.IDs[i]; claims.Subject == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting profiles")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) approve(ctx echo.Context) error {
	prof, ok := ctx.Get("object").(account.Profile)
	if !ok {
		return errors.Wrap(errProfNotFoundInCtx, "retrieving object from context")
	}

	prof, err := api.svc.Approve(ctx.Request().Context(), prof.ID)
	if err != nil {
		if errors.Cause(err) == account.ErrNotPending {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "approving profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *accountApi) reject(ctx echo.Context) error {
	prof, ok := ctx.Get("object").(account.Profile)
	if !ok {
		return errors.Wrap(errProfNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Reject(ctx.Request().Context(), prof.ID); err != nil {
		if errors.Cause(err) == account.ErrNotPending {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "rejecting profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, account.SubRolesByRole)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func ctxProfileOrAdminMiddleware(svc account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			if ctx.Param("id") == claims.Subject || claims.IsAdmin {
				if prof, err := svc.GetProfile(ctx.Request().Context(), account.GetFilter{ID: ctx.Param("id")}); err == nil {
					ctx.Set("object", prof)
					return next(ctx)
				} else if errors.Cause(err) != account.ErrNotFound {
					return errors.Wrap(err, "finding profile by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
