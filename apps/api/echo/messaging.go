package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/messaging"
)

type messagingApi struct {
	conf       *core.Config
	svc        messaging.Service
	accountSvc account.Service
	logger     core.Logger
	validate   *validator.Validate
}

func registerMessagingAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := messagingApi{
		conf:       opts.Conf,
		svc:        opts.MessagingSvc,
		accountSvc: opts.AccountSvc,
		logger:     opts.Logger,
		validate:   opts.Validate,
	}

	mg := g.Group("/messages", jwt)
	mg.GET("/contacts", api.contacts)
	mg.GET("/ws", api.conversationWS)
	mg.GET("/:contactID", api.history)
	mg.POST("/:contactID", api.send)
	mg.POST("/:contactID/read", api.markRead)
}

// Handlers

func (api *messagingApi) contacts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	contacts, err := api.svc.Contacts(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing contacts")
	}
	if contacts == nil {
		contacts = []messaging.Contact{}
	}
	return ctx.JSON(http.StatusOK, contacts)
}

func (api *messagingApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	msgs, err := api.svc.History(ctx.Request().Context(), claims.Subject, ctx.Param("contactID"))
	if err != nil {
		return errors.Wrap(err, "fetching history")
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messagingApi) send(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data messaging.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	data.ReceiverID = ctx.Param("contactID")
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), claims.Subject, data.ReceiverID, data.Content)
	if err != nil {
		cause := errors.Cause(err)
		if cause == messaging.ErrEmptyMessage || cause == messaging.ErrNoContact || cause == messaging.ErrSelfMessage {
			return core.NewValidationError(cause)
		}
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messagingApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.MarkRead(ctx.Request().Context(), claims.Subject, ctx.Param("contactID")); err != nil {
		return errors.Wrap(err, "marking conversation read")
	}
	return ctx.NoContent(http.StatusNoContent)
}
