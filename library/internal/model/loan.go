package model

import (
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
)

type LineStatus string

const (
	StatusBorrowed LineStatus = "borrowed"
	StatusReturned LineStatus = "returned"
	StatusLate     LineStatus = "late"
	StatusPaid     LineStatus = "paid"
)

func (s LineStatus) Valid() bool {
	switch s {
	case StatusBorrowed, StatusReturned, StatusLate, StatusPaid:
		return true
	}
	return false
}

type Loan struct {
	ID                 int        `json:"id" db:"id"`
	BorrowerID         int        `json:"borrowerId" db:"borrower_id"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	ExpectedReturnDate time.Time  `json:"expectedReturnDate" db:"expected_return_date"`
	Lines              []LoanLine `json:"lines" db:"-"`
}

// LoanLine carries the per-copy state. BorrowerID and ExpectedReturnDate are read from the owning loan.
type LoanLine struct {
	ID                 int        `json:"id" db:"id"`
	LoanID             int        `json:"loanId" db:"loan_id"`
	TitleID            int        `json:"titleId" db:"title_id"`
	TitleName          string     `json:"titleName,omitempty" db:"title_name"`
	Status             LineStatus `json:"status" db:"status"`
	ReturnedAt         *time.Time `json:"returnedAt" db:"returned_at"`
	FineAmount         int64      `json:"fineAmount" db:"fine_amount"`
	FinePaid           bool       `json:"finePaid" db:"fine_paid"`
	BorrowerID         int        `json:"borrowerId" db:"borrower_id"`
	ExpectedReturnDate time.Time  `json:"expectedReturnDate" db:"expected_return_date"`
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysLate is how many calendar days at is past the expected return date, never negative.
func (l LoanLine) DaysLate(at time.Time) int {
	days := int(Day(at).Sub(Day(l.ExpectedReturnDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Return moves a borrowed line to returned, or to late with a fine when the due date has passed.
func (l *LoanLine) Return(at time.Time, finePerDay int64) error {
	if l.Status != StatusBorrowed {
		return errs.ErrReturnNotAllowed
	}
	returnedAt := at.UTC()
	l.ReturnedAt = &returnedAt
	if days := l.DaysLate(at); days > 0 {
		l.Status = StatusLate
		l.FineAmount = int64(days) * finePerDay
		return nil
	}
	l.Status = StatusReturned
	return nil
}

func (l *LoanLine) SettleFine(paid bool) error {
	if l.Status != StatusLate {
		return errs.ErrInvalidStateTransition
	}
	if !paid {
		return errs.ErrFineNotSettled
	}
	l.Status = StatusPaid
	l.FinePaid = true
	return nil
}

type BorrowRequest struct {
	TitleID            int   `json:"titleId" validate:"required,gt=0"`
	ExpectedReturnDate *Date `json:"expectedReturnDate"`
}

type BulkBorrowRequest struct {
	TitleIDs           []int `json:"titleIds" validate:"required,min=1,dive,gt=0"`
	ExpectedReturnDate *Date `json:"expectedReturnDate"`
}

type BulkReturnRequest struct {
	LineIDs []int `json:"lineIds" validate:"required,min=1,dive,gt=0"`
}

type FinePaidRequest struct {
	Paid *bool `json:"paid" validate:"required"`
}

type BorrowResponse struct {
	Loan    Loan   `json:"loan"`
	Message string `json:"message"`
}

type ReturnResponse struct {
	Lines   []LoanLine `json:"lines"`
	Message string     `json:"message"`
}
