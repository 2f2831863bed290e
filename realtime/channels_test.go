package realtime

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-order-api/models"
)

func sampleEvent(typ EventType) Event {
	now := time.Now()
	servedBy := uint(71)
	return Event{
		Type: typ,
		Order: models.Order{
			ID:            9,
			RestaurantID:  1,
			BranchID:      2,
			TableID:       5,
			Status:        models.StatusReady,
			TotalPrice:    decimal.RequireFromString("95.00"),
			ServedBy:      &servedBy,
			ServedAt:      &now,
			PaymentMethod: "card",
			PaymentStatus: "paid",
		},
		Details: []models.OrderDetail{
			{ID: 10, OrderID: 9, MenuItemID: 100, Quantity: 2, IsPrepared: true},
			{ID: 11, OrderID: 9, MenuItemID: 101, Quantity: 1, IsPrepared: true},
		},
	}
}

func TestChannelsForRole(t *testing.T) {
	scope := models.TenantScope{RestaurantID: 1, BranchID: 2}

	tests := []struct {
		role models.Role
		want []Channel
	}{
		{models.RoleKitchen, []Channel{{ChannelKitchen, 1, 2}}},
		{models.RoleWaiter, []Channel{{ChannelFrontOfHouse, 1, 2}}},
		{models.RoleAdmin, []Channel{{ChannelAdmin, 1, 2}}},
		{models.RoleOwner, []Channel{{ChannelAdmin, 1, 2}}},
		{models.RoleCustomer, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChannelsForRole(tt.role, scope), "role %s", tt.role)
	}
}

func TestRouteFanout(t *testing.T) {
	tests := []struct {
		typ   EventType
		roles []ChannelRole
	}{
		{EventOrderCreated, []ChannelRole{ChannelKitchen, ChannelAdmin}},
		{EventOrderApproved, []ChannelRole{ChannelKitchen, ChannelAdmin}},
		{EventOrderDetailPrepared, []ChannelRole{ChannelKitchen, ChannelAdmin}},
		{EventOrderReady, []ChannelRole{ChannelKitchen, ChannelAdmin, ChannelFrontOfHouse}},
		{EventOrderTaken, []ChannelRole{ChannelAdmin, ChannelFrontOfHouse}},
		{EventOrderServed, []ChannelRole{ChannelAdmin, ChannelFrontOfHouse}},
		{EventOrderCompleted, []ChannelRole{ChannelAdmin, ChannelFrontOfHouse}},
	}
	for _, tt := range tests {
		routed := Route(sampleEvent(tt.typ))
		require.Len(t, routed, len(tt.roles), "event %s", tt.typ)
		for _, role := range tt.roles {
			ch := Channel{role, 1, 2}
			envelope, ok := routed[ch]
			require.True(t, ok, "event %s missing channel %s", tt.typ, ch)
			assert.Equal(t, tt.typ, envelope.Event)
		}
	}
}

func TestKitchenProjectionOmitsPayment(t *testing.T) {
	routed := Route(sampleEvent(EventOrderReady))

	envelope := routed[Channel{ChannelKitchen, 1, 2}]
	payload, ok := envelope.Data.(KitchenPayload)
	require.True(t, ok, "kitchen channel carries %T", envelope.Data)

	assert.EqualValues(t, 9, payload.OrderID)
	assert.EqualValues(t, 5, payload.TableID)
	require.Len(t, payload.Details, 2)
	assert.EqualValues(t, 100, payload.Details[0].MenuItemID)
	assert.True(t, payload.Details[0].IsPrepared)
}

func TestFrontOfHouseProjectionOmitsPrepDetail(t *testing.T) {
	routed := Route(sampleEvent(EventOrderServed))

	envelope := routed[Channel{ChannelFrontOfHouse, 1, 2}]
	payload, ok := envelope.Data.(FrontOfHousePayload)
	require.True(t, ok, "front-of-house channel carries %T", envelope.Data)

	assert.Equal(t, "95.00", payload.TotalPrice)
	require.NotNil(t, payload.ServedBy)
	assert.EqualValues(t, 71, *payload.ServedBy)
	assert.True(t, payload.FullyServed)
	assert.Equal(t, "card", payload.PaymentMethod)
}

func TestAdminProjectionIsFull(t *testing.T) {
	evt := sampleEvent(EventOrderCompleted)
	routed := Route(evt)

	envelope := routed[Channel{ChannelAdmin, 1, 2}]
	payload, ok := envelope.Data.(AdminPayload)
	require.True(t, ok, "admin channel carries %T", envelope.Data)

	assert.Equal(t, evt.Order.ID, payload.Order.ID)
	assert.Equal(t, evt.Order.PaymentStatus, payload.Order.PaymentStatus)
	assert.Len(t, payload.Details, 2)
}

func TestRouteScopesChannelsToEventTenant(t *testing.T) {
	evt := sampleEvent(EventOrderReady)
	evt.Order.RestaurantID = 7
	evt.Order.BranchID = 8

	for ch := range Route(evt) {
		assert.EqualValues(t, 7, ch.RestaurantID)
		assert.EqualValues(t, 8, ch.BranchID)
	}
}
