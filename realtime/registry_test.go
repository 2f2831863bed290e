package realtime

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-order-api/models"
)

func testHub() *Hub {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHub(log)
}

func drain(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case frame := <-s.Receive():
		var envelope Envelope
		require.NoError(t, json.Unmarshal(frame, &envelope))
		return envelope
	default:
		t.Fatal("no frame queued")
	}
	return Envelope{}
}

func TestConnectJoinsRoleChannels(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}

	kitchen := h.Connect(nil, 10, models.RoleKitchen, scope)
	assert.Equal(t, []Channel{{ChannelKitchen, 1, 2}}, h.Channels(kitchen.ID))

	customer := h.Connect(nil, 11, models.RoleCustomer, scope)
	assert.Empty(t, h.Channels(customer.ID))
}

func TestJoinAndLeaveAreIdempotent(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}
	s := h.Connect(nil, 10, models.RoleKitchen, scope)
	ch := Channel{ChannelKitchen, 1, 2}

	h.Join(s.ID, ch)
	h.Join(s.ID, ch)
	assert.Len(t, h.Channels(s.ID), 1)

	h.Leave(s.ID, ch)
	h.Leave(s.ID, ch)
	assert.Empty(t, h.Channels(s.ID))

	// Leaving a channel never joined is a no-op too.
	h.Leave(s.ID, Channel{ChannelAdmin, 1, 2})
	assert.Empty(t, h.Channels(s.ID))
}

func TestRebindSwitchesMemberships(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}
	s := h.Connect(nil, 10, models.RoleKitchen, scope)

	// Promotion to admin in another branch.
	next := models.TenantScope{RestaurantID: 1, BranchID: 3}
	h.Rebind(s.ID, models.RoleAdmin, next)

	assert.Equal(t, []Channel{{ChannelAdmin, 1, 3}}, h.Channels(s.ID))

	// The old kitchen channel no longer reaches the session.
	h.Publish(Event{Type: EventOrderCreated, Order: models.Order{ID: 1, RestaurantID: 1, BranchID: 2}})
	select {
	case <-s.Receive():
		t.Fatal("rebound session still receives old channel traffic")
	default:
	}
}

func TestPublishFansOutToMembers(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}

	kitchen := h.Connect(nil, 10, models.RoleKitchen, scope)
	waiter := h.Connect(nil, 11, models.RoleWaiter, scope)
	admin := h.Connect(nil, 12, models.RoleAdmin, scope)

	h.Publish(Event{Type: EventOrderReady, Order: models.Order{ID: 9, RestaurantID: 1, BranchID: 2}})

	for _, s := range []*Session{kitchen, waiter, admin} {
		envelope := drain(t, s)
		assert.Equal(t, EventOrderReady, envelope.Event)
	}

	// Created events skip the front of house.
	h.Publish(Event{Type: EventOrderCreated, Order: models.Order{ID: 10, RestaurantID: 1, BranchID: 2}})
	drain(t, kitchen)
	drain(t, admin)
	select {
	case <-waiter.Receive():
		t.Fatal("front of house received an order_created frame")
	default:
	}
}

func TestPublishRespectsTenantBoundaries(t *testing.T) {
	h := testHub()

	hereKitchen := h.Connect(nil, 10, models.RoleKitchen, models.TenantScope{RestaurantID: 1, BranchID: 2})
	thereKitchen := h.Connect(nil, 20, models.RoleKitchen, models.TenantScope{RestaurantID: 1, BranchID: 3})

	h.Publish(Event{Type: EventOrderCreated, Order: models.Order{ID: 9, RestaurantID: 1, BranchID: 2}})

	drain(t, hereKitchen)
	select {
	case <-thereKitchen.Receive():
		t.Fatal("event crossed a branch boundary")
	default:
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}
	s := h.Connect(nil, 10, models.RoleKitchen, scope)

	h.Disconnect(s.ID)
	assert.Nil(t, h.Channels(s.ID))

	// Publishing after disconnect must not panic on the closed session.
	h.Publish(Event{Type: EventOrderCreated, Order: models.Order{ID: 9, RestaurantID: 1, BranchID: 2}})

	// Double disconnect is a no-op.
	h.Disconnect(s.ID)
}

func TestPublishDropsSlowConsumer(t *testing.T) {
	h := testHub()
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}
	s := h.Connect(nil, 10, models.RoleKitchen, scope)

	evt := Event{Type: EventOrderCreated, Order: models.Order{ID: 9, RestaurantID: 1, BranchID: 2}}
	for i := 0; i < sendBuffer; i++ {
		h.Publish(evt)
	}
	// Buffer full: the next publish evicts the session.
	h.Publish(evt)

	assert.Nil(t, h.Channels(s.ID))

	// The queued frames are still readable; after them the channel is closed.
	for i := 0; i < sendBuffer; i++ {
		<-s.Receive()
	}
	_, open := <-s.Receive()
	assert.False(t, open)
}
