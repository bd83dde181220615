package handler

import (
	"net/http"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) Borrow(c echo.Context) error {
	var req model.BorrowRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	loan, err := h.librarySvc.Borrow(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, model.BorrowResponse{
		Loan:    loan,
		Message: "Book borrowed successfully",
	})
}

func (h *Handler) BulkBorrow(c echo.Context) error {
	var req model.BulkBorrowRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	loan, err := h.librarySvc.BulkBorrow(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, model.BorrowResponse{
		Loan:    loan,
		Message: "Books borrowed successfully",
	})
}

func returnMessage(lines []model.LoanLine) string {
	for _, line := range lines {
		if line.Status == model.StatusLate {
			return "Returned late, a fine is due"
		}
	}
	return "Returned successfully"
}

func (h *Handler) Return(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	line, err := h.librarySvc.Return(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	lines := []model.LoanLine{line}
	return c.JSON(http.StatusOK, model.ReturnResponse{
		Lines:   lines,
		Message: returnMessage(lines),
	})
}

func (h *Handler) BulkReturn(c echo.Context) error {
	var req model.BulkReturnRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	lines, err := h.librarySvc.BulkReturn(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.ReturnResponse{
		Lines:   lines,
		Message: returnMessage(lines),
	})
}

func (h *Handler) MarkFinePaid(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req model.FinePaidRequest
	if err = bindValid(c, &req); err != nil {
		return err
	}
	line, err := h.librarySvc.MarkFinePaid(c.Request().Context(), id, *req.Paid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *Handler) ListLoans(c echo.Context) error {
	loans, err := h.librarySvc.ListLoans(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) GetLoan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	loan, err := h.librarySvc.GetLoan(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) DeleteLoan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err = h.librarySvc.DeleteLoan(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteLine(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err = h.librarySvc.DeleteLine(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UserLines(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var statuses []model.LineStatus
	if v := c.QueryParam("status"); v != "" {
		status := model.LineStatus(v)
		if !status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "status is invalid")
		}
		statuses = append(statuses, status)
	}
	lines, err := h.librarySvc.UserLines(c.Request().Context(), id, statuses...)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, lines)
}
