package handler

import (
	"context"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type markFinePaid func(ctx context.Context, lineID int, paid bool) (model.LoanLine, error)

// Consumer applies fine settlements reported by the payment integrations.
type Consumer struct {
	markFinePaidHandler markFinePaid
	log                 *zap.Logger
	ready               chan bool

	// attempts per message before the session is given up; backoff doubles after each failure.
	attempts int
	backoff  time.Duration
}

func NewConsumer(markFinePaid markFinePaid, log *zap.Logger) *Consumer {
	return &Consumer{
		markFinePaidHandler: markFinePaid,
		log:                 log.Named("consumer"),
		ready:               make(chan bool),
		attempts:            5,
		backoff:             200 * time.Millisecond,
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	// Mark the consumer as ready
	close(consumer.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	consumer.ready = make(chan bool)
	return nil
}

// ConsumeClaim never marks a message it failed to apply. Returning the error ends the session,
// and the next one resumes from the last committed offset.
func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			if err := consumer.handleWithRetry(session.Context(), message); err != nil {
				if session.Context().Err() != nil {
					return nil
				}
				consumer.log.Error("consumer.markFinePaidHandler",
					zap.Error(err),
					zap.Int64("offset", message.Offset),
					zap.String("value", string(message.Value)))
				return err
			}
			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (consumer *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	delay := consumer.backoff
	for attempt := 1; ; attempt++ {
		err := consumer.handle(ctx, message)
		if err == nil || attempt >= consumer.attempts {
			return err
		}
		consumer.log.Warn("fine settlement failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// handle returns an error only for failures worth a redelivery.
func (consumer *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var settlement kafka.FineSettlement
	if err := kafka.Unmarshal(message.Value, &settlement); err != nil {
		consumer.log.Error("bad fine settlement", zap.Error(err))
		return nil
	}
	line, err := consumer.markFinePaidHandler(ctx, settlement.LineID, settlement.Paid)
	switch {
	case err == nil:
		consumer.log.Info("fine settled",
			zap.Int("lineID", line.ID),
			zap.String("gateway", settlement.Gateway),
			zap.String("reference", settlement.Reference))
		return nil
	case errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrInvalidStateTransition),
		errors.Is(err, errs.ErrFineNotSettled):
		consumer.log.Warn("fine settlement rejected",
			zap.Int("lineID", settlement.LineID),
			zap.Bool("paid", settlement.Paid),
			zap.Error(err))
		return nil
	}
	return err
}
