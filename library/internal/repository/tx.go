package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Tx is the unit of work handed to InTx. Every ledger mutation goes through it.
type Tx interface {
	GetTitleForUpdate(ctx context.Context, id int) (model.Title, error)
	UpdateTitle(ctx context.Context, title model.Title) error

	CreateLoan(ctx context.Context, borrowerID int, due time.Time) (model.Loan, error)
	GetOrCreateLoan(ctx context.Context, borrowerID int, due time.Time) (model.Loan, error)
	DeleteLoan(ctx context.Context, id int) error

	CreateLine(ctx context.Context, loan model.Loan, titleID int) (model.LoanLine, error)
	GetLineForUpdate(ctx context.Context, id int) (model.LoanLine, error)
	LinesForUpdate(ctx context.Context, loanID int) ([]model.LoanLine, error)
	UpdateLine(ctx context.Context, line model.LoanLine) error
	DeleteLine(ctx context.Context, id int) error
	BorrowedLinesForUpdate(ctx context.Context, borrowerID int) ([]model.LoanLine, error)

	// DeleteUser cascades to the user's loans and lines; borrowed copies must be released first.
	DeleteUser(ctx context.Context, id int) error
}

type txRepository struct {
	tx  *sqlx.Tx
	log *zap.Logger
}

func titleSelect() sq.SelectBuilder {
	return qb.Select("t.id", "t.category_id", "c.name as category_name", "t.name", "t.author", "t.description",
		"t.total_copies", "t.copies_on_loan", "t.total_borrow_count", "t.is_active", "t.created_at").
		From(titlesTableName + " t").
		LeftJoin(categoriesTableName + " c on c.id = t.category_id")
}

func (r *txRepository) GetTitleForUpdate(ctx context.Context, id int) (model.Title, error) {
	query, args, err := titleSelect().
		Where(sq.Eq{"t.id": id}).
		Suffix("FOR UPDATE OF t").
		ToSql()
	if err != nil {
		return model.Title{}, err
	}
	var title model.Title
	if err = r.tx.GetContext(ctx, &title, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Title{}, errs.ErrNotFound
		}
		return model.Title{}, err
	}
	return title, nil
}

func (r *txRepository) UpdateTitle(ctx context.Context, title model.Title) error {
	query, args, err := qb.Update(titlesTableName).
		SetMap(map[string]any{
			"category_id":        title.CategoryID,
			"name":               title.Name,
			"author":             title.Author,
			"description":        title.Description,
			"total_copies":       title.TotalCopies,
			"copies_on_loan":     title.CopiesOnLoan,
			"total_borrow_count": title.TotalBorrowCount,
			"is_active":          title.IsActive,
		}).
		Where(sq.Eq{"id": title.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.Wrap(errs.ErrNotFound, "category")
		}
		return err
	}
	return mustAffect(res)
}

func (r *txRepository) CreateLoan(ctx context.Context, borrowerID int, due time.Time) (model.Loan, error) {
	query, args, err := qb.Insert(loansTableName).
		Columns("borrower_id", "expected_return_date").
		Values(borrowerID, due.Format(time.DateOnly)).
		Suffix("RETURNING id, borrower_id, created_at, expected_return_date").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err = r.tx.GetContext(ctx, &loan, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return model.Loan{}, errors.Wrap(errs.ErrNotFound, "borrower")
		}
		return model.Loan{}, err
	}
	return loan, nil
}

// loanLockClass namespaces the per-borrower advisory lock taken by GetOrCreateLoan.
const loanLockClass = 1

// GetOrCreateLoan reuses the borrower's loan with the same expected return date.
// A missing row cannot be locked, so concurrent callers serialize on a per-borrower advisory lock.
func (r *txRepository) GetOrCreateLoan(ctx context.Context, borrowerID int, due time.Time) (model.Loan, error) {
	if _, err := r.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, $2)", loanLockClass, borrowerID); err != nil {
		return model.Loan{}, errors.Wrap(err, "pg_advisory_xact_lock")
	}
	query, args, err := qb.Select("id", "borrower_id", "created_at", "expected_return_date").
		From(loansTableName).
		Where(sq.Eq{"borrower_id": borrowerID, "expected_return_date": due.Format(time.DateOnly)}).
		OrderBy("id").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	err = r.tx.GetContext(ctx, &loan, query, args...)
	switch {
	case err == nil:
		return loan, nil
	case errors.Is(err, sql.ErrNoRows):
		return r.CreateLoan(ctx, borrowerID, due)
	default:
		return model.Loan{}, err
	}
}

func (r *txRepository) DeleteLoan(ctx context.Context, id int) error {
	query, args, err := qb.Delete(loansTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *txRepository) CreateLine(ctx context.Context, loan model.Loan, titleID int) (model.LoanLine, error) {
	query, args, err := qb.Insert(loanLinesTableName).
		Columns("loan_id", "title_id", "status").
		Values(loan.ID, titleID, model.StatusBorrowed).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.LoanLine{}, err
	}
	line := model.LoanLine{
		LoanID:             loan.ID,
		TitleID:            titleID,
		Status:             model.StatusBorrowed,
		BorrowerID:         loan.BorrowerID,
		ExpectedReturnDate: loan.ExpectedReturnDate,
	}
	if err = r.tx.QueryRowxContext(ctx, query, args...).Scan(&line.ID); err != nil {
		return model.LoanLine{}, err
	}
	return line, nil
}

func (r *txRepository) GetLineForUpdate(ctx context.Context, id int) (model.LoanLine, error) {
	query, args, err := lineSelect().
		Where(sq.Eq{"ll.id": id}).
		Suffix("FOR UPDATE OF ll").
		ToSql()
	if err != nil {
		return model.LoanLine{}, err
	}
	var line model.LoanLine
	if err = r.tx.GetContext(ctx, &line, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LoanLine{}, errs.ErrNotFound
		}
		return model.LoanLine{}, err
	}
	return line, nil
}

func (r *txRepository) LinesForUpdate(ctx context.Context, loanID int) ([]model.LoanLine, error) {
	query, args, err := lineSelect().
		Where(sq.Eq{"ll.loan_id": loanID}).
		OrderBy("ll.id").
		Suffix("FOR UPDATE OF ll").
		ToSql()
	if err != nil {
		return nil, err
	}
	lines := make([]model.LoanLine, 0)
	if err = r.tx.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *txRepository) UpdateLine(ctx context.Context, line model.LoanLine) error {
	query, args, err := qb.Update(loanLinesTableName).
		Set("status", line.Status).
		Set("returned_at", line.ReturnedAt).
		Set("fine_amount", line.FineAmount).
		Set("fine_paid", line.FinePaid).
		Where(sq.Eq{"id": line.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *txRepository) DeleteLine(ctx context.Context, id int) error {
	query, args, err := qb.Delete(loanLinesTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// BorrowedLinesForUpdate locks every borrowed line of the borrower, ordered by title.
func (r *txRepository) BorrowedLinesForUpdate(ctx context.Context, borrowerID int) ([]model.LoanLine, error) {
	query, args, err := lineSelect().
		Where(sq.Eq{"l.borrower_id": borrowerID, "ll.status": model.StatusBorrowed}).
		OrderBy("ll.title_id", "ll.id").
		Suffix("FOR UPDATE OF ll").
		ToSql()
	if err != nil {
		return nil, err
	}
	lines := make([]model.LoanLine, 0)
	if err = r.tx.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *txRepository) DeleteUser(ctx context.Context, id int) error {
	query, args, err := qb.Delete(usersTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
