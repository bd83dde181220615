package service

import (
	"context"

	"github.com/Astemirdum/lending-service/library/internal/model"
)

func (s *Service) ToggleLike(ctx context.Context, titleID int) (bool, error) {
	who, err := caller(ctx)
	if err != nil {
		return false, err
	}
	return s.repo.ToggleLike(ctx, who.UserID, titleID)
}

func (s *Service) ListComments(ctx context.Context, titleID int) ([]model.Comment, error) {
	return s.repo.ListComments(ctx, titleID)
}

func (s *Service) CreateComment(ctx context.Context, titleID int, req model.CommentRequest) (model.Comment, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.Comment{}, err
	}
	comment, err := s.repo.CreateComment(ctx, who.UserID, titleID, req.Content)
	if err != nil {
		return model.Comment{}, err
	}
	comment.Username = who.Username
	return comment, nil
}

func (s *Service) Share(ctx context.Context, titleID int, req model.ShareRequest) (model.Share, error) {
	who, err := caller(ctx)
	if err != nil {
		return model.Share{}, err
	}
	return s.repo.CreateShare(ctx, who.UserID, titleID, req.Message)
}
