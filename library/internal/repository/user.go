package repository

import (
	"context"
	"database/sql"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	UpdateUser(ctx context.Context, id int, patch model.UserPatch) (model.User, error)
	SetPassword(ctx context.Context, id int, hash string) error
	SetActive(ctx context.Context, id int, active bool) error
	CountStaff(ctx context.Context) (int, error)
}

var userColumns = []string{
	"id", "username", "password_hash", "first_name", "last_name", "email", "phone",
	"is_staff", "is_superuser", "is_active", "created_at",
}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	query, args, err := qb.Insert(usersTableName).
		Columns("username", "password_hash", "first_name", "last_name", "email", "phone", "is_staff", "is_superuser").
		Values(user.Username, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.Phone,
			user.IsStaff, user.IsSuperuser).
		Suffix("RETURNING id, is_active, created_at").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	if err = r.db.QueryRowxContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrAlreadyExists
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) getUser(ctx context.Context, where sq.Eq) (model.User, error) {
	query, args, err := qb.Select(userColumns...).From(usersTableName).Where(where).ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err = r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUser(ctx context.Context, id int) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"id": id})
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"username": username})
}

func (r *repository) UpdateUser(ctx context.Context, id int, patch model.UserPatch) (model.User, error) {
	if patch.Empty() {
		return model.User{}, errs.ErrEmptyPatch
	}
	set := make(map[string]any, 4)
	if patch.FirstName != nil {
		set["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		set["last_name"] = *patch.LastName
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	query, args, err := qb.Update(usersTableName).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.User{}, err
	}
	if err = mustAffect(res); err != nil {
		return model.User{}, err
	}
	return r.GetUser(ctx, id)
}

func (r *repository) SetPassword(ctx context.Context, id int, hash string) error {
	return r.updateUserColumn(ctx, id, "password_hash", hash)
}

func (r *repository) SetActive(ctx context.Context, id int, active bool) error {
	return r.updateUserColumn(ctx, id, "is_active", active)
}

func (r *repository) updateUserColumn(ctx context.Context, id int, column string, value any) error {
	query, args, err := qb.Update(usersTableName).
		Set(column, value).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *repository) CountStaff(ctx context.Context) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(usersTableName).
		Where(sq.Or{sq.Eq{"is_staff": true}, sq.Eq{"is_superuser": true}}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err = r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
