package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core/account"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// permissionMiddleware gates a route on the resource/action decision table.
// A degraded session (nil profile) fails closed.
func permissionMiddleware(svc account.Service, res account.Resource, act account.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prof, err := getContextProfile(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context profile")
			}
			if account.Allowed(prof, res, act) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
