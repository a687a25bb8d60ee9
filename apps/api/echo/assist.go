package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	assistsvc "github.com/shulesoft/shule/services/assist"
)

type assistApi struct {
	svc      assistsvc.Responder
	validate *validator.Validate
}

func registerAssistAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := assistApi{
		svc:      opts.AssistSvc,
		validate: opts.Validate,
	}

	g.POST("/assist", api.ask, jwt)
}

type (
	AssistRequest struct {
		Question string `json:"question" validate:"required"`
	}

	AssistResponse struct {
		Answer string `json:"answer"`
	}
)

func (ar *AssistRequest) Validate(validate *validator.Validate) error {
	ar.Question = core.CleanString(ar.Question)
	return validate.Struct(ar)
}

func (api *assistApi) ask(ctx echo.Context) error {
	var data AssistRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssistRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	answer, err := api.svc.Respond(ctx.Request().Context(), data.Question)
	if err != nil {
		if errors.Cause(err) == assistsvc.ErrEmptyQuestion {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "answering question")
	}

	if res := api.svc.Notify(ctx.Request().Context(), data.Question, answer); !res.Success {
		ctx.Logger().Warnf("assist webhook delivery failed: %s", res.Error)
	}
	return ctx.JSON(http.StatusOK, AssistResponse{Answer: answer})
}
