package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/user"
)

type applicationApi struct {
	svc      *application.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, svc *application.Service, validate *validator.Validate) {
	api := applicationApi{svc: svc, validate: validate}

	ag := g.Group("/applications")
	ag.GET("", api.listMine, roleMiddleware(user.RoleStudent))
	ag.GET("/:id", api.retrieve)
	ag.PATCH("/:id", api.decide, roleMiddleware(user.RoleTeacher))
}

func (api *applicationApi) listMine(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.ListForStudent(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) decide(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data application.UpdateDecision
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	app, err := api.svc.Decide(ctx.Request().Context(), actor, ctx.Param("id"), data.Decision)
	if err != nil {
		return errors.Wrap(err, "deciding application")
	}
	return ctx.JSON(http.StatusOK, app)
}
