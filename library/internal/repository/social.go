package repository

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

type SocialRepository interface {
	ToggleLike(ctx context.Context, userID, titleID int) (bool, error)
	ListComments(ctx context.Context, titleID int) ([]model.Comment, error)
	CreateComment(ctx context.Context, userID, titleID int, content string) (model.Comment, error)
	CreateShare(ctx context.Context, userID, titleID int, message string) (model.Share, error)
}

// ToggleLike removes the like when present and creates it otherwise; it reports whether the title is liked now.
func (r *repository) ToggleLike(ctx context.Context, userID, titleID int) (bool, error) {
	query, args, err := qb.Delete(likesTableName).
		Where(sq.Eq{"user_id": userID, "title_id": titleID}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return false, nil
	}

	query, args, err = qb.Insert(likesTableName).
		Columns("user_id", "title_id").
		Values(userID, titleID).
		ToSql()
	if err != nil {
		return false, err
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		switch {
		case isUniqueViolation(err):
			return true, nil
		case isForeignKeyViolation(err):
			return false, errors.Wrap(errs.ErrNotFound, "title")
		}
		return false, err
	}
	return true, nil
}

// ListComments returns comments newest first; titleID 0 means every title.
func (r *repository) ListComments(ctx context.Context, titleID int) ([]model.Comment, error) {
	q := qb.Select("c.id", "c.user_id", "u.username", "c.title_id", "c.content", "c.created_at", "c.updated_at").
		From(commentsTableName + " c").
		Join(usersTableName + " u on u.id = c.user_id")
	if titleID > 0 {
		q = q.Where(sq.Eq{"c.title_id": titleID})
	}
	query, args, err := q.OrderBy("c.created_at desc", "c.id desc").ToSql()
	if err != nil {
		return nil, err
	}
	comments := make([]model.Comment, 0)
	if err = r.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *repository) CreateComment(ctx context.Context, userID, titleID int, content string) (model.Comment, error) {
	query, args, err := qb.Insert(commentsTableName).
		Columns("user_id", "title_id", "content").
		Values(userID, titleID, content).
		Suffix("RETURNING id, user_id, title_id, content, created_at, updated_at").
		ToSql()
	if err != nil {
		return model.Comment{}, err
	}
	var comment model.Comment
	if err = r.db.GetContext(ctx, &comment, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return model.Comment{}, errors.Wrap(errs.ErrNotFound, "title")
		}
		return model.Comment{}, err
	}
	return comment, nil
}

func (r *repository) CreateShare(ctx context.Context, userID, titleID int, message string) (model.Share, error) {
	query, args, err := qb.Insert(sharesTableName).
		Columns("user_id", "title_id", "message").
		Values(userID, titleID, message).
		Suffix("RETURNING id, user_id, title_id, message, created_at").
		ToSql()
	if err != nil {
		return model.Share{}, err
	}
	var share model.Share
	if err = r.db.GetContext(ctx, &share, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return model.Share{}, errors.Wrap(errs.ErrNotFound, "title")
		}
		return model.Share{}, err
	}
	return share, nil
}
