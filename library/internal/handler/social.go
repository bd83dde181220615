package handler

import (
	"net/http"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/labstack/echo/v4"
)

// ToggleLike answers 201 when the title becomes liked and 204 when the like is removed.
func (h *Handler) ToggleLike(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	liked, err := h.librarySvc.ToggleLike(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !liked {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, model.ToggleLikeResponse{Liked: true})
}

func (h *Handler) ListComments(c echo.Context) error {
	titleID, err := queryInt(c, "title")
	if err != nil {
		return err
	}
	comments, err := h.librarySvc.ListComments(c.Request().Context(), titleID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, comments)
}

func (h *Handler) CreateComment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req model.CommentRequest
	if err = bindValid(c, &req); err != nil {
		return err
	}
	comment, err := h.librarySvc.CreateComment(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

func (h *Handler) Share(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req model.ShareRequest
	if err = bindValid(c, &req); err != nil {
		return err
	}
	share, err := h.librarySvc.Share(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, share)
}
