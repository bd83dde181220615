package repository

import (
	"context"
	"database/sql"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int) (model.Category, error)
	CreateCategory(ctx context.Context, name string) (model.Category, error)
	UpdateCategory(ctx context.Context, id int, name string) (model.Category, error)
	DeleteCategory(ctx context.Context, id int) error

	ListTitles(ctx context.Context, req model.ListTitlesRequest) (model.ListTitles, error)
	GetTitle(ctx context.Context, id int) (model.Title, error)
	CreateTitle(ctx context.Context, req model.CreateTitleRequest) (model.Title, error)
	DeleteTitle(ctx context.Context, id int) error
	CountTitles(ctx context.Context) (int, error)
	HighBorrowTitles(ctx context.Context, threshold int) ([]model.Title, error)
}

func (r *repository) ListCategories(ctx context.Context) ([]model.Category, error) {
	query, args, err := qb.Select("id", "name").From(categoriesTableName).OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	categories := make([]model.Category, 0)
	if err = r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) GetCategory(ctx context.Context, id int) (model.Category, error) {
	query, args, err := qb.Select("id", "name").From(categoriesTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Category{}, err
	}
	var category model.Category
	if err = r.db.GetContext(ctx, &category, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Category{}, errs.ErrNotFound
		}
		return model.Category{}, err
	}
	return category, nil
}

func (r *repository) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	query, args, err := qb.Insert(categoriesTableName).
		Columns("name").
		Values(name).
		Suffix("RETURNING id, name").
		ToSql()
	if err != nil {
		return model.Category{}, err
	}
	var category model.Category
	if err = r.db.GetContext(ctx, &category, query, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Category{}, errs.ErrAlreadyExists
		}
		return model.Category{}, err
	}
	return category, nil
}

func (r *repository) UpdateCategory(ctx context.Context, id int, name string) (model.Category, error) {
	query, args, err := qb.Update(categoriesTableName).
		Set("name", name).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, name").
		ToSql()
	if err != nil {
		return model.Category{}, err
	}
	var category model.Category
	if err = r.db.GetContext(ctx, &category, query, args...); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.Category{}, errs.ErrNotFound
		case isUniqueViolation(err):
			return model.Category{}, errs.ErrAlreadyExists
		}
		return model.Category{}, err
	}
	return category, nil
}

func (r *repository) DeleteCategory(ctx context.Context, id int) error {
	query, args, err := qb.Delete(categoriesTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *repository) ListTitles(ctx context.Context, req model.ListTitlesRequest) (model.ListTitles, error) {
	countQ := qb.Select("count(*)").From(titlesTableName + " t")
	listQ := titleSelect()
	if req.CategoryID > 0 {
		countQ = countQ.Where(sq.Eq{"t.category_id": req.CategoryID})
		listQ = listQ.Where(sq.Eq{"t.category_id": req.CategoryID})
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return model.ListTitles{}, err
	}
	var total int
	if err = r.db.GetContext(ctx, &total, query, args...); err != nil {
		return model.ListTitles{}, err
	}

	query, args, err = listQ.
		OrderBy("t.id").
		Limit(uint64(req.Size)).
		Offset(uint64((req.Page - 1) * req.Size)).
		ToSql()
	if err != nil {
		return model.ListTitles{}, err
	}
	items := make([]model.Title, 0, req.Size)
	if err = r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListTitles{}, err
	}
	return model.ListTitles{
		Paging: model.Paging{
			Page:          req.Page,
			PageSize:      req.Size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}

func (r *repository) GetTitle(ctx context.Context, id int) (model.Title, error) {
	query, args, err := titleSelect().Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return model.Title{}, err
	}
	var title model.Title
	if err = r.db.GetContext(ctx, &title, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Title{}, errs.ErrNotFound
		}
		return model.Title{}, err
	}
	return title, nil
}

func (r *repository) CreateTitle(ctx context.Context, req model.CreateTitleRequest) (model.Title, error) {
	query, args, err := qb.Insert(titlesTableName).
		Columns("category_id", "name", "author", "description", "total_copies").
		Values(req.CategoryID, req.Name, req.Author, req.Description, req.TotalCopies).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.Title{}, err
	}
	var id int
	if err = r.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return model.Title{}, errors.Wrap(errs.ErrNotFound, "category")
		}
		return model.Title{}, err
	}
	return r.GetTitle(ctx, id)
}

func (r *repository) DeleteTitle(ctx context.Context, id int) error {
	query, args, err := qb.Delete(titlesTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.ErrInUse
		}
		return err
	}
	return mustAffect(res)
}

func (r *repository) CountTitles(ctx context.Context) (int, error) {
	query, args, err := qb.Select("count(*)").From(titlesTableName).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err = r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// HighBorrowTitles lists titles borrowed at least threshold times, most borrowed first.
func (r *repository) HighBorrowTitles(ctx context.Context, threshold int) ([]model.Title, error) {
	query, args, err := titleSelect().
		Where(sq.GtOrEq{"t.total_borrow_count": threshold}).
		OrderBy("t.total_borrow_count desc", "t.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	titles := make([]model.Title, 0)
	if err = r.db.SelectContext(ctx, &titles, query, args...); err != nil {
		return nil, err
	}
	return titles, nil
}
