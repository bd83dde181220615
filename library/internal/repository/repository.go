package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	LoanRepository
	CatalogRepository
	UserRepository
	SocialRepository
}

type LoanRepository interface {
	// InTx runs fn in one transaction, committing only when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetLoan(ctx context.Context, id int) (model.Loan, error)
	ListLoans(ctx context.Context, borrowerID int) ([]model.Loan, error)
	ListLines(ctx context.Context, borrowerID int, statuses ...model.LineStatus) ([]model.LoanLine, error)
	ListOverdue(ctx context.Context, day time.Time) ([]model.LoanLine, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName      = `users`
	categoriesTableName = `categories`
	titlesTableName     = `titles`
	loansTableName      = `loans`
	loanLinesTableName  = `loan_lines`
	likesTableName      = `likes`
	commentsTableName   = `comments`
	sharesTableName     = `shares`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "BeginTxx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("tx.Rollback", zap.Error(rbErr))
		}
	}()

	if err = fn(&txRepository{tx: tx, log: r.log}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "Commit")
	}
	return nil
}

func lineSelect() sq.SelectBuilder {
	return qb.Select("ll.id", "ll.loan_id", "ll.title_id", "t.name as title_name", "ll.status",
		"ll.returned_at", "ll.fine_amount", "ll.fine_paid", "l.borrower_id", "l.expected_return_date").
		From(loanLinesTableName + " ll").
		Join(loansTableName + " l on l.id = ll.loan_id").
		Join(titlesTableName + " t on t.id = ll.title_id")
}

func (r *repository) GetLoan(ctx context.Context, id int) (model.Loan, error) {
	query, args, err := qb.Select("id", "borrower_id", "created_at", "expected_return_date").
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err = r.db.GetContext(ctx, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	loans, err := r.attachLines(ctx, []model.Loan{loan})
	if err != nil {
		return model.Loan{}, err
	}
	return loans[0], nil
}

func (r *repository) ListLoans(ctx context.Context, borrowerID int) ([]model.Loan, error) {
	query, args, err := qb.Select("id", "borrower_id", "created_at", "expected_return_date").
		From(loansTableName).
		Where(sq.Eq{"borrower_id": borrowerID}).
		OrderBy("created_at desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0)
	if err = r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, err
	}
	return r.attachLines(ctx, loans)
}

func (r *repository) attachLines(ctx context.Context, loans []model.Loan) ([]model.Loan, error) {
	if len(loans) == 0 {
		return loans, nil
	}
	ids := make([]int, 0, len(loans))
	for i := range loans {
		ids = append(ids, loans[i].ID)
	}
	query, args, err := lineSelect().
		Where(sq.Eq{"ll.loan_id": ids}).
		OrderBy("ll.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var lines []model.LoanLine
	if err = r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	byLoan := make(map[int][]model.LoanLine, len(loans))
	for _, line := range lines {
		byLoan[line.LoanID] = append(byLoan[line.LoanID], line)
	}
	for i := range loans {
		loans[i].Lines = byLoan[loans[i].ID]
		if loans[i].Lines == nil {
			loans[i].Lines = []model.LoanLine{}
		}
	}
	return loans, nil
}

func (r *repository) ListLines(ctx context.Context, borrowerID int, statuses ...model.LineStatus) ([]model.LoanLine, error) {
	q := lineSelect().Where(sq.Eq{"l.borrower_id": borrowerID})
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"ll.status": statuses})
	}
	query, args, err := q.OrderBy("ll.id").ToSql()
	if err != nil {
		return nil, err
	}
	lines := make([]model.LoanLine, 0)
	if err = r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	return lines, nil
}

// ListOverdue returns borrowed lines whose expected return date is before day.
func (r *repository) ListOverdue(ctx context.Context, day time.Time) ([]model.LoanLine, error) {
	query, args, err := lineSelect().
		Where(sq.Eq{"ll.status": model.StatusBorrowed}).
		Where(sq.Lt{"l.expected_return_date": day.Format(time.DateOnly)}).
		OrderBy("l.expected_return_date", "ll.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	lines := make([]model.LoanLine, 0)
	if err = r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	return lines, nil
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == pgerrcode.ForeignKeyViolation
}
