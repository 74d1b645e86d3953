package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/sweeper"
	"github.com/thesisman/backend/core/user"
)

type (
	clockApi struct {
		svc     *clock.Service
		sweeper *sweeper.Service
	}

	clockData struct {
		DeltaDays int       `json:"delta_days"`
		Now       time.Time `json:"now"`
		Today     string    `json:"today"`
	}

	// clockUpdate takes either a number of days or a target date.
	clockUpdate struct {
		Delta *int   `json:"delta"`
		Date  string `json:"date"`
	}
)

func registerClockAPI(g *echo.Group, svc *clock.Service, sw *sweeper.Service) {
	api := clockApi{svc: svc, sweeper: sw}
	secretaries := roleMiddleware(user.RoleSecretary)

	g.GET("/clock", api.retrieve)
	g.PUT("/clock", api.update, secretaries)
	g.POST("/admin/sweep", api.sweep, secretaries)
}

func (api *clockApi) current(ctx echo.Context) (clockData, error) {
	reqCtx := ctx.Request().Context()
	state, err := api.svc.Current(reqCtx)
	if err != nil {
		return clockData{}, err
	}
	now, err := api.svc.Now(reqCtx)
	if err != nil {
		return clockData{}, err
	}
	return clockData{
		DeltaDays: state.DeltaDays,
		Now:       now,
		Today:     clock.DateOf(now, api.svc.Location()).Format(core.DateLayout),
	}, nil
}

func (api *clockApi) retrieve(ctx echo.Context) error {
	data, err := api.current(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, data)
}

func (api *clockApi) update(ctx echo.Context) error {
	var data clockUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to clockUpdate")
	}

	var raw string
	switch {
	case data.Delta != nil && data.Date == "":
		raw = strconv.Itoa(*data.Delta)
	case data.Delta == nil && data.Date != "":
		raw = data.Date
	default:
		return core.NewValidationError(errors.New("provide either delta or date"))
	}

	if _, err := api.svc.SetDelta(ctx.Request().Context(), raw); err != nil {
		return errors.Wrap(err, "setting clock delta")
	}
	return api.retrieve(ctx)
}

func (api *clockApi) sweep(ctx echo.Context) error {
	if err := api.sweeper.ForceRun(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "running sweeper")
	}
	return ctx.NoContent(http.StatusNoContent)
}
