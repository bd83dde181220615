package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) MostBorrowed(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	stats, err := h.librarySvc.MostBorrowed(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.librarySvc.Summary(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}
