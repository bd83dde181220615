package service

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	libraryRepo "github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a reader account. Only a superuser may create staff or superusers.
func (s *Service) Register(ctx context.Context, req model.UserCreateRequest) (model.User, error) {
	if (req.IsStaff || req.IsSuperuser) && !auth.IsSuperuser(ctx) {
		return model.User{}, errs.ErrForbidden
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "bcrypt")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		IsStaff:      req.IsStaff,
		IsSuperuser:  req.IsSuperuser,
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.Int("id", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *Service) Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error) {
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AuthResponse{}, errs.ErrInvalidCredentials
		}
		return model.AuthResponse{}, err
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}
	if !user.IsActive {
		return model.AuthResponse{}, errs.ErrAccountLocked
	}

	now := s.now()
	token, expiresAt, err := s.issuer.Issue(auth.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}, now)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return model.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int(expiresAt.Sub(now).Seconds()),
	}, nil
}

func (s *Service) Me(ctx context.Context) (model.User, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.User{}, err
	}
	return s.repo.GetUser(ctx, who.UserID)
}

func (s *Service) UpdateMe(ctx context.Context, patch model.UserPatch) (model.User, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.User{}, err
	}
	return s.repo.UpdateUser(ctx, who.UserID, patch)
}

func (s *Service) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	who, err := caller(ctx)
	if err != nil {
		return err
	}
	user, err := s.repo.GetUser(ctx, who.UserID)
	if err != nil {
		return err
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return errs.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "bcrypt")
	}
	return s.repo.SetPassword(ctx, user.ID, string(hash))
}

func (s *Service) LockUser(ctx context.Context, id int) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("user locked", zap.Int("id", id))
	return nil
}

func (s *Service) CountStaff(ctx context.Context) (int, error) {
	return s.repo.CountStaff(ctx)
}

// DeleteUser removes the user with their loans, giving back every copy they still hold.
func (s *Service) DeleteUser(ctx context.Context, id int) error {
	var released int
	err := s.repo.InTx(ctx, func(tx libraryRepo.Tx) error {
		lines, err := tx.BorrowedLinesForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err = releaseCopy(ctx, tx, line); err != nil {
				return err
			}
		}
		released = len(lines)
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		return errors.Wrapf(err, "user %d", id)
	}
	s.log.Info("user deleted", zap.Int("id", id), zap.Int("releasedCopies", released))
	return nil
}
