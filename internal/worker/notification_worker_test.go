package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
)

type stubDeliverer struct {
	got []events.Event
	err error
}

func (s *stubDeliverer) Deliver(ctx context.Context, event events.Event) (int, error) {
	s.got = append(s.got, event)
	return 1, s.err
}

func welcomeEvent() events.UserCreated {
	return events.UserCreated{
		Metadata: events.NewMetadata(""),
		User:     events.UserSnapshot{ID: "u-1", Name: "Amina Tester", Role: domain.RoleStudent},
	}
}

func TestNewFanoutTaskCarriesEnvelope(t *testing.T) {
	event := welcomeEvent()
	task, err := NewFanoutTask(event, "notifications")
	require.NoError(t, err)
	assert.Equal(t, TaskFanout, task.Type())

	decoded, err := events.Decode(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.Meta().ID)
	assert.Equal(t, events.EventUserCreated, decoded.Type())
}

func TestFanoutHandlerDelivers(t *testing.T) {
	event := welcomeEvent()
	task, err := NewFanoutTask(event, "notifications")
	require.NoError(t, err)

	deliverer := &stubDeliverer{}
	require.NoError(t, FanoutHandler(deliverer, zap.NewNop())(context.Background(), task))
	require.Len(t, deliverer.got, 1)
	assert.Equal(t, event.User.ID, deliverer.got[0].(events.UserCreated).User.ID)
}

func TestFanoutHandlerSkipsRetryOnBadPayload(t *testing.T) {
	deliverer := &stubDeliverer{}
	err := FanoutHandler(deliverer, zap.NewNop())(context.Background(), asynq.NewTask(TaskFanout, []byte(`{"type":"mystery"}`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, deliverer.got)
}

func TestFanoutHandlerRetriesStoreFailures(t *testing.T) {
	task, err := NewFanoutTask(welcomeEvent(), "notifications")
	require.NoError(t, err)

	boom := errors.New("db unavailable")
	err = FanoutHandler(&stubDeliverer{err: boom}, zap.NewNop())(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewWorkerRequiresDeliverer(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Queue: "notifications"})
	assert.Error(t, err)
}
