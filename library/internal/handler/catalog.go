package handler

import (
	"net/http"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) ListCategories(c echo.Context) error {
	categories, err := h.librarySvc.ListCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *Handler) GetCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.librarySvc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *Handler) CreateCategory(c echo.Context) error {
	var req model.CategoryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	category, err := h.librarySvc.CreateCategory(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req model.CategoryRequest
	if err = bindValid(c, &req); err != nil {
		return err
	}
	category, err := h.librarySvc.UpdateCategory(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err = h.librarySvc.DeleteCategory(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTitles(c echo.Context) error {
	var (
		req model.ListTitlesRequest
		err error
	)
	if req.CategoryID, err = queryInt(c, "category"); err != nil {
		return err
	}
	if req.Page, err = queryInt(c, "page"); err != nil {
		return err
	}
	if req.Size, err = queryInt(c, "size"); err != nil {
		return err
	}
	titles, err := h.librarySvc.ListTitles(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, titles)
}

func (h *Handler) GetTitle(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	title, err := h.librarySvc.GetTitle(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, title)
}

func (h *Handler) CreateTitle(c echo.Context) error {
	var req model.CreateTitleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	title, err := h.librarySvc.CreateTitle(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, title)
}

func (h *Handler) UpdateTitle(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var patch model.TitlePatch
	if err = bindValid(c, &patch); err != nil {
		return err
	}
	title, err := h.librarySvc.UpdateTitle(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, title)
}

func (h *Handler) DeleteTitle(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err = h.librarySvc.DeleteTitle(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CountTitles(c echo.Context) error {
	n, err := h.librarySvc.CountTitles(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.Count{Count: n})
}

func (h *Handler) HighBorrowTitles(c echo.Context) error {
	threshold, err := queryInt(c, "threshold")
	if err != nil {
		return err
	}
	titles, err := h.librarySvc.HighBorrowTitles(c.Request().Context(), threshold)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, titles)
}
