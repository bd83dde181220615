package repository

import (
	"context"
	"fmt"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// StatsRepository serves the read-only reporting queries straight from the pool.
type StatsRepository interface {
	MostBorrowed(ctx context.Context, limit int) ([]model.TitleBorrowStat, error)
	LineStatusCounts(ctx context.Context) ([]model.StatusCount, error)
	CountTitles(ctx context.Context) (int, error)
	CountReaders(ctx context.Context) (int, error)
	CopiesOnLoan(ctx context.Context) (int, error)
}

type statsRepository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewStatsRepository(db *pgxpool.Pool, log *zap.Logger) (*statsRepository, error) {
	return &statsRepository{
		db:  db,
		log: log.Named("stats_repo"),
	}, nil
}

func (r *statsRepository) MostBorrowed(ctx context.Context, limit int) ([]model.TitleBorrowStat, error) {
	const q = `
	select id, name, author, total_borrow_count, copies_on_loan
	from titles
	where total_borrow_count > 0
	order by total_borrow_count desc, id
	limit @limit`
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.TitleBorrowStat])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return stats, nil
}

func (r *statsRepository) LineStatusCounts(ctx context.Context) ([]model.StatusCount, error) {
	const q = `select status, count(*) as count from loan_lines group by status order by status`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.StatusCount])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return counts, nil
}

func (r *statsRepository) CountTitles(ctx context.Context) (int, error) {
	return r.scalar(ctx, `select count(*) from titles where is_active = @active`, pgx.NamedArgs{"active": true})
}

func (r *statsRepository) CountReaders(ctx context.Context) (int, error) {
	return r.scalar(ctx, `select count(*) from users where not is_staff and not is_superuser and is_active = @active`,
		pgx.NamedArgs{"active": true})
}

func (r *statsRepository) CopiesOnLoan(ctx context.Context) (int, error) {
	return r.scalar(ctx, `select coalesce(sum(copies_on_loan), 0) from titles`, pgx.NamedArgs{})
}

func (r *statsRepository) scalar(ctx context.Context, q string, args pgx.NamedArgs) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, q, args).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
