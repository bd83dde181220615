package handler

import (
	"net/http"
	"strconv"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var errInvalidID = errors.New("id is invalid")

func statusCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrOutOfStock),
		errors.Is(err, errs.ErrReturnNotAllowed),
		errors.Is(err, errs.ErrInvariantViolation),
		errors.Is(err, errs.ErrTitleInactive),
		errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidStateTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrFineNotSettled):
		return http.StatusPaymentRequired
	case errors.Is(err, errs.ErrInvalidDueDate),
		errors.Is(err, errs.ErrEmptyBatch),
		errors.Is(err, errs.ErrEmptyPatch):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrForbidden),
		errors.Is(err, errs.ErrAccountLocked):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(statusCode(err), err.Error())
}

func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func paramID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errInvalidID.Error())
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return n, nil
}
