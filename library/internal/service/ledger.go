package service

import (
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

// incrementOnLoan takes one copy of a title that is locked by the caller's transaction.
func incrementOnLoan(title *model.Title) error {
	if title.CopiesOnLoan >= title.TotalCopies {
		return errs.ErrOutOfStock
	}
	title.CopiesOnLoan++
	title.TotalBorrowCount++
	return nil
}

func decrementOnLoan(title *model.Title) error {
	if title.CopiesOnLoan <= 0 {
		return errs.ErrInvariantViolation
	}
	title.CopiesOnLoan--
	return nil
}
