package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/proposal"
)

// bindAndValidate binds the request body to data and validates it.
// data must be a pointer to a struct.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return validate.Struct(data)
}

// bindProposalFilter reads the search criteria of the proposal catalogue from the query string.
func bindProposalFilter(ctx echo.Context) proposal.QueryFilter {
	return proposal.QueryFilter{
		Search: ctx.QueryParam("search"),
		Level:  proposal.Level(strings.ToUpper(strings.TrimSpace(ctx.QueryParam("level")))),
		CdS:    ctx.QueryParam("cds"),
	}
}

func boolParam(ctx echo.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(ctx.QueryParam(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
