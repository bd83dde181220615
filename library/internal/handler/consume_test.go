package handler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsumer_handle(t *testing.T) {
	t.Parallel()
	errDB := errors.New("connection reset")

	tests := []struct {
		name     string
		value    string
		result   error
		wantCall bool
		wantErr  error
	}{
		{name: "settled", value: `{"lineId":5,"paid":true,"gateway":"stripe","reference":"ch_1"}`, wantCall: true},
		{name: "declined", value: `{"lineId":5,"paid":false}`, result: errs.ErrFineNotSettled, wantCall: true},
		{name: "unknown line", value: `{"lineId":9,"paid":true}`, result: errors.Wrap(errs.ErrNotFound, "line 9"), wantCall: true},
		{name: "line not late", value: `{"lineId":5,"paid":true}`, result: errs.ErrInvalidStateTransition, wantCall: true},
		{name: "storage failure", value: `{"lineId":5,"paid":true}`, result: errDB, wantCall: true, wantErr: errDB},
		{name: "bad payload", value: `{"lineId":`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			called := false
			c := NewConsumer(func(_ context.Context, lineID int, paid bool) (model.LoanLine, error) {
				called = true
				if tt.result != nil {
					return model.LoanLine{}, tt.result
				}
				return model.LoanLine{ID: lineID, Status: model.StatusPaid, FinePaid: paid}, nil
			}, zap.NewNop())

			err := c.handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(tt.value)})
			require.Equal(t, tt.wantCall, called)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		code int
	}{
		{errors.Wrap(errs.ErrNotFound, "loan 1"), 404},
		{errs.ErrOutOfStock, 409},
		{errs.ErrReturnNotAllowed, 409},
		{errs.ErrInvariantViolation, 409},
		{errs.ErrTitleInactive, 409},
		{errs.ErrAlreadyExists, 409},
		{errs.ErrInUse, 409},
		{errs.ErrInvalidStateTransition, 422},
		{errs.ErrFineNotSettled, 402},
		{errs.ErrInvalidDueDate, 400},
		{errs.ErrEmptyBatch, 400},
		{errs.ErrEmptyPatch, 400},
		{errs.ErrForbidden, 403},
		{errs.ErrAccountLocked, 403},
		{errs.ErrInvalidCredentials, 401},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, statusCode(tt.err), tt.err.Error())
	}
}

type testSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *testSession) Context() context.Context { return s.ctx }

func (s *testSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type testClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *testClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func settlementClaim(lineIDs ...int) *testClaim {
	c := &testClaim{messages: make(chan *sarama.ConsumerMessage, len(lineIDs))}
	for i, id := range lineIDs {
		c.messages <- &sarama.ConsumerMessage{
			Topic:  "fine-settlements",
			Offset: int64(10 + i),
			Value:  []byte(fmt.Sprintf(`{"lineId":%d,"paid":true}`, id)),
		}
	}
	close(c.messages)
	return c
}

func TestConsumer_ConsumeClaim(t *testing.T) {
	t.Parallel()
	errDB := errors.New("connection reset")

	tests := []struct {
		name       string
		failures   map[int]int // line -> failing calls before success, -1 fails forever
		result     map[int]error
		wantErr    error
		wantMarked []int64
		wantCalls  map[int]int
	}{
		{
			name:       "all settled",
			wantMarked: []int64{10, 11},
			wantCalls:  map[int]int{1: 1, 2: 1},
		},
		{
			name:       "transient failure is retried in place",
			failures:   map[int]int{1: 2},
			wantMarked: []int64{10, 11},
			wantCalls:  map[int]int{1: 3, 2: 1},
		},
		{
			name:       "persistent failure stops before later offsets",
			failures:   map[int]int{1: -1},
			wantErr:    errDB,
			wantMarked: nil,
			wantCalls:  map[int]int{1: 3},
		},
		{
			name:       "rejected settlement is not redelivered",
			result:     map[int]error{1: errs.ErrInvalidStateTransition},
			wantMarked: []int64{10, 11},
			wantCalls:  map[int]int{1: 1, 2: 1},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var mu sync.Mutex
			calls := make(map[int]int)
			c := NewConsumer(func(_ context.Context, lineID int, _ bool) (model.LoanLine, error) {
				mu.Lock()
				defer mu.Unlock()
				calls[lineID]++
				if n, ok := tt.failures[lineID]; ok && (n < 0 || calls[lineID] <= n) {
					return model.LoanLine{}, errDB
				}
				if err := tt.result[lineID]; err != nil {
					return model.LoanLine{}, err
				}
				return model.LoanLine{ID: lineID, Status: model.StatusPaid}, nil
			}, zap.NewNop())
			c.attempts = 3
			c.backoff = time.Millisecond

			session := &testSession{ctx: context.Background()}
			err := c.ConsumeClaim(session, settlementClaim(1, 2))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantMarked, session.marked)
			require.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestConsumer_ConsumeClaimStopsOnShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	c := NewConsumer(func(context.Context, int, bool) (model.LoanLine, error) {
		calls++
		cancel()
		return model.LoanLine{}, errors.New("connection reset")
	}, zap.NewNop())
	c.backoff = time.Hour

	session := &testSession{ctx: ctx}
	require.NoError(t, c.ConsumeClaim(session, settlementClaim(1, 2)))
	require.Equal(t, 1, calls)
	require.Empty(t, session.marked)
}
