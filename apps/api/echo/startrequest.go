package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/core/user"
)

type startRequestApi struct {
	svc      *startrequest.Service
	validate *validator.Validate
}

func registerStartRequestAPI(g *echo.Group, svc *startrequest.Service, validate *validator.Validate) {
	api := startRequestApi{svc: svc, validate: validate}
	students := roleMiddleware(user.RoleStudent)

	sg := g.Group("/start-requests")
	sg.GET("", api.list)
	sg.POST("", api.create, students)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.resubmit, students)
	sg.POST("/:id/evaluation", api.evaluate, roleMiddleware(user.RoleTeacher, user.RoleSecretary))
}

// list returns the start requests the actor is concerned with, depending on their role.
func (api *startRequestApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var srs []startrequest.StartRequest
	reqCtx := ctx.Request().Context()
	switch actor.Role {
	case user.RoleStudent:
		srs, err = api.svc.ListForStudent(reqCtx, actor)
	case user.RoleTeacher:
		srs, err = api.svc.ListForTeacher(reqCtx, actor)
	case user.RoleSecretary:
		srs, err = api.svc.ListForSecretary(reqCtx, actor)
	default:
		return errHttpForbidden
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, srs)
}

func (api *startRequestApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data startrequest.NewStartRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	sr, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating start request")
	}
	return ctx.JSON(http.StatusCreated, sr)
}

func (api *startRequestApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	sr, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sr)
}

func (api *startRequestApi) resubmit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data startrequest.UpdateStartRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	sr, err := api.svc.Resubmit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "resubmitting start request")
	}
	return ctx.JSON(http.StatusOK, sr)
}

func (api *startRequestApi) evaluate(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data startrequest.Evaluation
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	sr, err := api.svc.Evaluate(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "evaluating start request")
	}
	return ctx.JSON(http.StatusOK, sr)
}
