package service

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"golang.org/x/sync/errgroup"
)

func (s *Service) MostBorrowed(ctx context.Context, limit int) ([]model.TitleBorrowStat, error) {
	switch {
	case limit <= 0:
		limit = s.cfg.MostBorrowedLimit
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return s.stats.MostBorrowed(ctx, limit)
}

// Summary runs the reporting queries concurrently.
func (s *Service) Summary(ctx context.Context) (model.Summary, error) {
	var (
		summary model.Summary
		counts  []model.StatusCount
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.Titles, err = s.stats.CountTitles(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.Readers, err = s.stats.CountReaders(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.CopiesOnLoan, err = s.stats.CopiesOnLoan(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.stats.LineStatusCounts(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Summary{}, err
	}

	summary.Lines = map[model.LineStatus]int{
		model.StatusBorrowed: 0,
		model.StatusReturned: 0,
		model.StatusLate:     0,
		model.StatusPaid:     0,
	}
	for _, c := range counts {
		summary.Lines[c.Status] = c.Count
	}
	return summary, nil
}
