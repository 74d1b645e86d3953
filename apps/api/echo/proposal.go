package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/user"
)

type proposalApi struct {
	svc      *proposal.Service
	apps     *application.Service
	validate *validator.Validate
}

func registerProposalAPI(g *echo.Group, svc *proposal.Service, apps *application.Service, validate *validator.Validate) {
	api := proposalApi{
		svc:      svc,
		apps:     apps,
		validate: validate,
	}
	teachers := roleMiddleware(user.RoleTeacher)

	pg := g.Group("/proposals")
	pg.GET("", api.queryActive)
	pg.POST("", api.create, teachers)
	pg.GET("/mine", api.listMine, teachers)

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, teachers)
	dg.DELETE("", api.destroy, teachers)
	dg.POST("/archive", api.archive, teachers)
	dg.GET("/applications", api.listApplications, teachers)
	dg.POST("/applications", api.apply, roleMiddleware(user.RoleStudent))
}

// Handlers

func (api *proposalApi) queryActive(ctx echo.Context) error {
	props, err := api.svc.QueryActive(ctx.Request().Context(), bindProposalFilter(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, props)
}

func (api *proposalApi) listMine(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	props, err := api.svc.ListForSupervisor(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, props)
}

func (api *proposalApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data proposal.NewProposal
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	prop, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating proposal")
	}
	return ctx.JSON(http.StatusCreated, prop)
}

func (api *proposalApi) retrieve(ctx echo.Context) error {
	prop, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prop)
}

func (api *proposalApi) update(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data proposal.UpdateProposal
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	prop, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating proposal")
	}
	return ctx.JSON(http.StatusOK, prop)
}

func (api *proposalApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting proposal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *proposalApi) archive(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	prop, err := api.svc.Archive(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving proposal")
	}
	return ctx.JSON(http.StatusOK, prop)
}

func (api *proposalApi) listApplications(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	apps, err := api.apps.ListForProposal(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *proposalApi) apply(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	app, err := api.apps.Submit(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}
