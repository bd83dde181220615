package service

import (
	"context"
	"sort"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	libraryRepo "github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// dueDate resolves the expected return date; nil means today plus the loan period.
func (s *Service) dueDate(requested *model.Date) (time.Time, error) {
	today := model.Day(s.now())
	if requested == nil || requested.IsZero() {
		return model.Day(today.Add(s.cfg.LoanPeriod)), nil
	}
	due := model.Day(requested.Time)
	if due.Before(today) {
		return time.Time{}, errs.ErrInvalidDueDate
	}
	return due, nil
}

// borrowLine reserves one copy of titleID and records it on loan.
func (s *Service) borrowLine(ctx context.Context, tx libraryRepo.Tx, loan model.Loan, titleID int) (model.LoanLine, error) {
	title, err := tx.GetTitleForUpdate(ctx, titleID)
	if err != nil {
		return model.LoanLine{}, errors.Wrapf(err, "title %d", titleID)
	}
	if !title.IsActive {
		return model.LoanLine{}, errors.Wrapf(errs.ErrTitleInactive, "title %d", titleID)
	}
	if err = incrementOnLoan(&title); err != nil {
		return model.LoanLine{}, errors.Wrapf(err, "title %d", titleID)
	}
	if err = tx.UpdateTitle(ctx, title); err != nil {
		return model.LoanLine{}, err
	}
	line, err := tx.CreateLine(ctx, loan, titleID)
	if err != nil {
		return model.LoanLine{}, err
	}
	line.TitleName = title.Name
	return line, nil
}

// releaseCopy gives a borrowed line's copy back to the title.
func releaseCopy(ctx context.Context, tx libraryRepo.Tx, line model.LoanLine) error {
	title, err := tx.GetTitleForUpdate(ctx, line.TitleID)
	if err != nil {
		return errors.Wrapf(err, "title %d", line.TitleID)
	}
	if err = decrementOnLoan(&title); err != nil {
		return errors.Wrapf(err, "title %d", line.TitleID)
	}
	return tx.UpdateTitle(ctx, title)
}

func (s *Service) returnLine(ctx context.Context, tx libraryRepo.Tx, lineID int, borrowerID int, staff bool) (model.LoanLine, error) {
	line, err := tx.GetLineForUpdate(ctx, lineID)
	if err != nil {
		return model.LoanLine{}, errors.Wrapf(err, "line %d", lineID)
	}
	if !staff && line.BorrowerID != borrowerID {
		return model.LoanLine{}, errors.Wrapf(errs.ErrNotFound, "line %d", lineID)
	}
	if err = line.Return(s.now(), s.cfg.FinePerDay); err != nil {
		return model.LoanLine{}, errors.Wrapf(err, "line %d", lineID)
	}
	if err = releaseCopy(ctx, tx, line); err != nil {
		return model.LoanLine{}, err
	}
	if err = tx.UpdateLine(ctx, line); err != nil {
		return model.LoanLine{}, err
	}
	return line, nil
}

func (s *Service) Borrow(ctx context.Context, req model.BorrowRequest) (model.Loan, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.Loan{}, err
	}
	due, err := s.dueDate(req.ExpectedReturnDate)
	if err != nil {
		return model.Loan{}, err
	}

	var (
		loan model.Loan
		line model.LoanLine
	)
	err = s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		var err error
		if loan, err = tx.CreateLoan(ctx, who.UserID, due); err != nil {
			return err
		}
		line, err = s.borrowLine(ctx, tx, loan, req.TitleID)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(kafka.EventBorrowed, line)

	loan.Lines = []model.LoanLine{line}
	return loan, nil
}

// BulkBorrow borrows every title on one loan; any failure rolls the whole batch back.
func (s *Service) BulkBorrow(ctx context.Context, req model.BulkBorrowRequest) (model.Loan, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.Loan{}, err
	}
	if len(req.TitleIDs) == 0 {
		return model.Loan{}, errs.ErrEmptyBatch
	}
	due, err := s.dueDate(req.ExpectedReturnDate)
	if err != nil {
		return model.Loan{}, err
	}
	// titles are locked in id order so overlapping batches cannot deadlock
	titleIDs := append([]int(nil), req.TitleIDs...)
	sort.Ints(titleIDs)

	var (
		loan  model.Loan
		lines []model.LoanLine
	)
	err = s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		var err error
		if loan, err = tx.GetOrCreateLoan(ctx, who.UserID, due); err != nil {
			return err
		}
		lines = make([]model.LoanLine, 0, len(titleIDs))
		for _, titleID := range titleIDs {
			line, err := s.borrowLine(ctx, tx, loan, titleID)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	for _, line := range lines {
		s.publish(kafka.EventBorrowed, line)
	}
	return s.repo.GetLoan(ctx, loan.ID)
}

// Return closes a borrowed line. Readers can only reach their own lines.
func (s *Service) Return(ctx context.Context, lineID int) (model.LoanLine, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.LoanLine{}, err
	}
	var line model.LoanLine
	err = s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		var err error
		line, err = s.returnLine(ctx, tx, lineID, who.UserID, isStaff(who))
		return err
	})
	if err != nil {
		return model.LoanLine{}, err
	}
	s.publish(kafka.EventReturned, line)
	return line, nil
}

func (s *Service) BulkReturn(ctx context.Context, req model.BulkReturnRequest) ([]model.LoanLine, error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.LineIDs) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	lineIDs := append([]int(nil), req.LineIDs...)
	sort.Ints(lineIDs)

	var lines []model.LoanLine
	err = s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		lines = make([]model.LoanLine, 0, len(lineIDs))
		for _, lineID := range lineIDs {
			line, err := s.returnLine(ctx, tx, lineID, who.UserID, isStaff(who))
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		s.publish(kafka.EventReturned, line)
	}
	return lines, nil
}

// MarkFinePaid settles the fine of a late line. The ledger is not touched.
func (s *Service) MarkFinePaid(ctx context.Context, lineID int, paid bool) (model.LoanLine, error) {
	var line model.LoanLine
	err := s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		var err error
		if line, err = tx.GetLineForUpdate(ctx, lineID); err != nil {
			return errors.Wrapf(err, "line %d", lineID)
		}
		if err = line.SettleFine(paid); err != nil {
			return errors.Wrapf(err, "line %d", lineID)
		}
		return tx.UpdateLine(ctx, line)
	})
	if err != nil {
		return model.LoanLine{}, err
	}
	s.publish(kafka.EventFinePaid, line)
	return line, nil
}

// DeleteLoan removes a loan with its lines, releasing copies that are still borrowed.
func (s *Service) DeleteLoan(ctx context.Context, loanID int) error {
	return s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		lines, err := tx.LinesForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.Status != model.StatusBorrowed {
				continue
			}
			if err = releaseCopy(ctx, tx, line); err != nil {
				return err
			}
		}
		return tx.DeleteLoan(ctx, loanID)
	})
}

func (s *Service) DeleteLine(ctx context.Context, lineID int) error {
	return s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		line, err := tx.GetLineForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if line.Status == model.StatusBorrowed {
			if err = releaseCopy(ctx, tx, line); err != nil {
				return err
			}
		}
		return tx.DeleteLine(ctx, lineID)
	})
}

func (s *Service) ListLoans(ctx context.Context) ([]model.Loan, error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLoans(ctx, who.UserID)
}

func (s *Service) GetLoan(ctx context.Context, loanID int) (model.Loan, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return model.Loan{}, err
	}
	if !isStaff(who) && loan.BorrowerID != who.UserID {
		return model.Loan{}, errs.ErrNotFound
	}
	return loan, nil
}

// UserLines lists a user's lines, borrowed ones when no status is given. Only staff see other users.
func (s *Service) UserLines(ctx context.Context, userID int, statuses ...model.LineStatus) ([]model.LoanLine, error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !isStaff(who) && userID != who.UserID {
		return nil, errs.ErrForbidden
	}
	if len(statuses) == 0 {
		statuses = []model.LineStatus{model.StatusBorrowed}
	}
	return s.repo.ListLines(ctx, userID, statuses...)
}

// NotifyOverdue publishes an overdue event for each borrowed line past its due date. Statuses are left as is.
func (s *Service) NotifyOverdue(ctx context.Context) (int, error) {
	lines, err := s.repo.ListOverdue(ctx, model.Day(s.now()))
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		s.publish(kafka.EventOverdue, line)
	}
	if len(lines) > 0 {
		s.log.Info("overdue lines", zap.Int("count", len(lines)))
	}
	return len(lines), nil
}
