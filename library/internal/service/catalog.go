package service

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	libraryRepo "github.com/Astemirdum/lending-service/library/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int) (model.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, req model.CategoryRequest) (model.Category, error) {
	return s.repo.CreateCategory(ctx, req.Name)
}

func (s *Service) UpdateCategory(ctx context.Context, id int, req model.CategoryRequest) (model.Category, error) {
	return s.repo.UpdateCategory(ctx, id, req.Name)
}

func (s *Service) DeleteCategory(ctx context.Context, id int) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) ListTitles(ctx context.Context, req model.ListTitlesRequest) (model.ListTitles, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	switch {
	case req.Size <= 0:
		req.Size = defaultPageSize
	case req.Size > maxPageSize:
		req.Size = maxPageSize
	}
	return s.repo.ListTitles(ctx, req)
}

func (s *Service) GetTitle(ctx context.Context, id int) (model.Title, error) {
	return s.repo.GetTitle(ctx, id)
}

func (s *Service) CreateTitle(ctx context.Context, req model.CreateTitleRequest) (model.Title, error) {
	return s.repo.CreateTitle(ctx, req)
}

// UpdateTitle applies the allow-listed fields under the title lock, so total_copies never drops below copies_on_loan.
func (s *Service) UpdateTitle(ctx context.Context, id int, patch model.TitlePatch) (model.Title, error) {
	if patch.Empty() {
		return model.Title{}, errs.ErrEmptyPatch
	}
	err := s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		title, err := tx.GetTitleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if patch.CategoryID != nil {
			title.CategoryID = patch.CategoryID
		}
		if patch.Name != nil {
			title.Name = *patch.Name
		}
		if patch.Author != nil {
			title.Author = *patch.Author
		}
		if patch.Description != nil {
			title.Description = *patch.Description
		}
		if patch.IsActive != nil {
			title.IsActive = *patch.IsActive
		}
		if patch.TotalCopies != nil {
			if *patch.TotalCopies < title.CopiesOnLoan {
				return errs.ErrInvariantViolation
			}
			title.TotalCopies = *patch.TotalCopies
		}
		return tx.UpdateTitle(ctx, title)
	})
	if err != nil {
		return model.Title{}, err
	}
	return s.repo.GetTitle(ctx, id)
}

func (s *Service) DeleteTitle(ctx context.Context, id int) error {
	return s.repo.DeleteTitle(ctx, id)
}

func (s *Service) CountTitles(ctx context.Context) (int, error) {
	return s.repo.CountTitles(ctx)
}

// HighBorrowTitles uses the configured threshold when threshold is not positive.
func (s *Service) HighBorrowTitles(ctx context.Context, threshold int) ([]model.Title, error) {
	if threshold <= 0 {
		threshold = s.cfg.HighBorrowThreshold
	}
	return s.repo.HighBorrowTitles(ctx, threshold)
}
