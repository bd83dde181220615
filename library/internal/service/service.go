package service

import (
	"context"
	"strconv"
	"time"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	libraryRepo "github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/auth"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher is satisfied by *kafka.Enqueuer, including a nil one.
type EventPublisher interface {
	Enqueue(key string, v any) error
}

type Service struct {
	log    *zap.Logger
	repo   libraryRepo.Repository
	stats  libraryRepo.StatsRepository
	events EventPublisher
	issuer *auth.Issuer
	cfg    config.Lending
	now    func() time.Time
}

func NewService(
	repo libraryRepo.Repository,
	stats libraryRepo.StatsRepository,
	events EventPublisher,
	issuer *auth.Issuer,
	cfg config.Lending,
	log *zap.Logger,
) *Service {
	return &Service{
		log:    log.Named("service"),
		repo:   repo,
		stats:  stats,
		events: events,
		issuer: issuer,
		cfg:    cfg,
		now:    time.Now,
	}
}

func caller(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, errs.ErrForbidden
	}
	return id, nil
}

func isStaff(id auth.Identity) bool {
	return id.IsStaff || id.IsSuperuser
}

func (s *Service) publish(typ kafka.LoanEventType, line model.LoanLine) {
	if s.events == nil {
		return
	}
	event := kafka.LoanEvent{
		EventID:    uuid.New(),
		Type:       typ,
		LineID:     line.ID,
		LoanID:     line.LoanID,
		TitleID:    line.TitleID,
		BorrowerID: line.BorrowerID,
		Status:     string(line.Status),
		FineAmount: line.FineAmount,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Enqueue(strconv.Itoa(line.LoanID), event); err != nil {
		s.log.Warn("publish loan event",
			zap.String("type", string(typ)),
			zap.Int("lineID", line.ID),
			zap.Error(err))
	}
}
