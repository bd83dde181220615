package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/handler"
	"github.com/Astemirdum/lending-service/library/internal/jobs"
	"github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/library/internal/server"
	"github.com/Astemirdum/lending-service/library/internal/service"
	"github.com/Astemirdum/lending-service/library/migrations"
	"github.com/Astemirdum/lending-service/pkg/auth"
	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
	"github.com/Astemirdum/lending-service/pkg/postgres"
	"go.uber.org/zap"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %w", err)
	}
	defer db.Close()
	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("pool init %w", err)
	}
	defer pool.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo %w", err)
	}
	statsRepo, err := repository.NewStatsRepository(pool, log)
	if err != nil {
		return fmt.Errorf("stats repo %w", err)
	}

	var events service.EventPublisher
	if cfg.Kafka.Enable {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("kafka.NewProducer %w", err)
		}
		defer producer.Close()
		events = kafka.NewEnqueuer(producer, circuit_breaker.New(cfg.CircuitBreaker), kafka.LoanEventsTopic)
	}

	issuer := auth.NewIssuer(cfg.Auth)
	svc := service.NewService(repo, statsRepo, events, issuer, cfg.Lending, log)

	if cfg.Kafka.Enable {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.LibraryConsumerGroup)
		if err != nil {
			return fmt.Errorf("kafka.NewConsumer %w", err)
		}
		defer consumer.Close()
		go kafka.Consume(ctx, consumer, handler.NewConsumer(svc.MarkFinePaid, log), log, kafka.FineSettlementsTopic)
	}

	scheduler, err := jobs.NewScheduler(svc, cfg.Lending.OverdueSchedule, log)
	if err != nil {
		return fmt.Errorf("jobs.NewScheduler %w", err)
	}
	scheduler.Start()

	h := handler.New(svc, issuer, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	scheduler.Stop(closeCtx)
	cancel()
	log.Info("Graceful shutdown finished")
	return nil
}
