package kafka

import (
	"context"
	"time"

	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	LoanEventsTopic      = "loan-events"
	FineSettlementsTopic = "fine-settlements"

	LibraryConsumerGroup = "library"
)

type Config struct {
	Addrs  []string `yaml:"addrs" envconfig:"KAFKA_ADDRS"`
	Enable bool     `yaml:"enable" envconfig:"KAFKA_ENABLE"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type LoanEventType string

const (
	EventBorrowed LoanEventType = "BORROWED"
	EventReturned LoanEventType = "RETURNED"
	EventFinePaid LoanEventType = "FINE_PAID"
	EventOverdue  LoanEventType = "OVERDUE"
)

type LoanEvent struct {
	EventID    uuid.UUID     `json:"eventId"`
	Type       LoanEventType `json:"type"`
	LineID     int           `json:"lineId"`
	LoanID     int           `json:"loanId"`
	TitleID    int           `json:"titleId"`
	BorrowerID int           `json:"borrowerId"`
	Status     string        `json:"status"`
	FineAmount int64         `json:"fineAmount,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// FineSettlement is reported by the payment integrations once a fine is settled or declined.
type FineSettlement struct {
	LineID    int    `json:"lineId"`
	Paid      bool   `json:"paid"`
	Gateway   string `json:"gateway"`
	Reference string `json:"reference"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 3

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume blocks, rejoining the group after every rebalance, until ctx is done.
func Consume(ctx context.Context, group sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, log *zap.Logger, topics ...string) {
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.Error("consumer group", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

type Enqueuer struct {
	producer sarama.SyncProducer
	cb       circuit_breaker.CircuitBreaker
	topic    string
}

func NewEnqueuer(producer sarama.SyncProducer, cb circuit_breaker.CircuitBreaker, topic string) *Enqueuer {
	return &Enqueuer{
		producer: producer,
		cb:       cb,
		topic:    topic,
	}
}

// Enqueue is a no-op on a nil Enqueuer.
func (q *Enqueuer) Enqueue(key string, v any) error {
	if q == nil {
		return nil
	}
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	return q.cb.Call(func() error {
		_, _, err := q.producer.SendMessage(msg)
		return err
	})
}
