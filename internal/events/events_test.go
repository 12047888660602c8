package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

func TestEnvelopeRoundTripKeepsConcreteType(t *testing.T) {
	assignee := "ict-1"
	original := TicketStatusChanged{
		Metadata: NewMetadata("ict-1"),
		Ticket: TicketSnapshot{
			ID:          "t-1",
			ExternalKey: "BK-0001",
			Title:       "Need book X",
			Status:      domain.TicketStatusInProgress,
			CreatedByID: "student-1",
			AssigneeID:  &assignee,
		},
		OldStatus: domain.TicketStatusOpen,
		NewStatus: domain.TicketStatusInProgress,
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	got, ok := decoded.(TicketStatusChanged)
	require.True(t, ok, "decoded %T", decoded)
	assert.Equal(t, original.Meta().ID, got.Meta().ID)
	assert.Equal(t, original.Ticket, got.Ticket)
	assert.Equal(t, domain.TicketStatusOpen, got.OldStatus)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"id":"x","type":"ticket_exploded","payload":{}}`))
	assert.Error(t, err)
}

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventUserCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventUserCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "wrong type")
		return nil
	})

	err := d.Publish(context.Background(), UserCreated{Metadata: NewMetadata(""), User: UserSnapshot{ID: "u-1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}

type recordingPublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, body []byte) error {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestForwarderPublishesEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewInMemoryDispatcher(nil)
	SubscribeAll(d, Forwarder(pub))

	event := UserCreated{Metadata: NewMetadata(""), User: UserSnapshot{ID: "u-1", Name: "Ann Lee"}}
	require.NoError(t, d.Publish(context.Background(), event))

	require.Len(t, pub.keys, 1)
	assert.Equal(t, "bookissue.user_created", pub.keys[0])
	decoded, err := Decode(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, event.Meta().ID, decoded.Meta().ID)
}
