package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thesisman/backend/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications")
	ng.GET("", api.list)
	ng.POST("/:id/read", api.markRead)
}

// list supports `?unread=true`.
func (api *notificationApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	notes, err := api.svc.ListForUser(ctx.Request().Context(), actor, boolParam(ctx, "unread"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.MarkRead(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
