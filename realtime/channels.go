// Package realtime carries committed order events to live observers. Routing
// is a pure function over domain types; delivery is handled by the Hub.
package realtime

import (
	"fmt"

	"table-order-api/models"
)

// ChannelRole scopes a channel to one observer class. Adding a role means
// extending ChannelsForRole and the fan-out table below; both switches are
// exhaustive over these constants.
type ChannelRole string

const (
	ChannelKitchen      ChannelRole = "kitchen"
	ChannelAdmin        ChannelRole = "admin"
	ChannelFrontOfHouse ChannelRole = "front_of_house"
)

// Channel is a logical publish/subscribe destination scoped by role and
// tenant.
type Channel struct {
	Role         ChannelRole
	RestaurantID uint
	BranchID     uint
}

func (c Channel) String() string {
	return fmt.Sprintf("%s:%d:%d", c.Role, c.RestaurantID, c.BranchID)
}

// ChannelsForRole maps an authenticated actor onto the channels it observes.
// Customers hold no channel; they re-fetch order state instead.
func ChannelsForRole(role models.Role, scope models.TenantScope) []Channel {
	switch role {
	case models.RoleKitchen:
		return []Channel{{ChannelKitchen, scope.RestaurantID, scope.BranchID}}
	case models.RoleWaiter:
		return []Channel{{ChannelFrontOfHouse, scope.RestaurantID, scope.BranchID}}
	case models.RoleAdmin, models.RoleOwner:
		return []Channel{{ChannelAdmin, scope.RestaurantID, scope.BranchID}}
	case models.RoleCustomer:
		return nil
	}
	return nil
}

type EventType string

const (
	EventOrderCreated        EventType = "order_created"
	EventOrderApproved       EventType = "order_approved"
	EventOrderDetailPrepared EventType = "order_detail_prepared"
	EventOrderReady          EventType = "order_ready"
	EventOrderTaken          EventType = "order_taken"
	EventOrderServed         EventType = "order_served"
	EventOrderCompleted      EventType = "order_completed"
)

// fanout fixes, per event type, which channel roles receive it.
var fanout = map[EventType][]ChannelRole{
	EventOrderCreated:        {ChannelKitchen, ChannelAdmin},
	EventOrderApproved:       {ChannelKitchen, ChannelAdmin},
	EventOrderDetailPrepared: {ChannelKitchen, ChannelAdmin},
	EventOrderReady:          {ChannelKitchen, ChannelAdmin, ChannelFrontOfHouse},
	EventOrderTaken:          {ChannelAdmin, ChannelFrontOfHouse},
	EventOrderServed:         {ChannelAdmin, ChannelFrontOfHouse},
	EventOrderCompleted:      {ChannelAdmin, ChannelFrontOfHouse},
}

// Event is a committed order mutation. Publication happens strictly after the
// owning transaction commits.
type Event struct {
	Type    EventType
	Order   models.Order
	Details []models.OrderDetail
}

// Envelope is the wire frame written to a subscriber.
type Envelope struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// Route computes the set of channels the event fans out to, each with the
// minimal projection of order state its role needs.
func Route(evt Event) map[Channel]Envelope {
	out := make(map[Channel]Envelope)
	for _, role := range fanout[evt.Type] {
		ch := Channel{role, evt.Order.RestaurantID, evt.Order.BranchID}
		out[ch] = Envelope{Event: evt.Type, Data: projection(role, evt)}
	}
	return out
}

// kitchenDetail carries the preparation view of one line item.
type kitchenDetail struct {
	DetailID   uint  `json:"detail_id"`
	MenuItemID uint  `json:"menu_item_id"`
	ExtraID    *uint `json:"extra_id,omitempty"`
	Quantity   int   `json:"quantity"`
	IsPrepared bool  `json:"is_prepared"`
}

// KitchenPayload omits payment fields and service claims.
type KitchenPayload struct {
	OrderID uint               `json:"order_id"`
	TableID uint               `json:"table_id"`
	Status  models.OrderStatus `json:"status"`
	Details []kitchenDetail    `json:"details"`
}

// FrontOfHousePayload omits per-item preparation detail.
type FrontOfHousePayload struct {
	OrderID       uint               `json:"order_id"`
	TableID       uint               `json:"table_id"`
	Status        models.OrderStatus `json:"status"`
	TotalPrice    string             `json:"total_price"`
	ServedBy      *uint              `json:"served_by"`
	FullyServed   bool               `json:"fully_served"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	PaymentStatus string             `json:"payment_status,omitempty"`
}

// AdminPayload is the full projection.
type AdminPayload struct {
	Order   models.Order         `json:"order"`
	Details []models.OrderDetail `json:"details"`
}

func projection(role ChannelRole, evt Event) any {
	switch role {
	case ChannelKitchen:
		details := make([]kitchenDetail, 0, len(evt.Details))
		for _, d := range evt.Details {
			details = append(details, kitchenDetail{
				DetailID:   d.ID,
				MenuItemID: d.MenuItemID,
				ExtraID:    d.ExtraID,
				Quantity:   d.Quantity,
				IsPrepared: d.IsPrepared,
			})
		}
		return KitchenPayload{
			OrderID: evt.Order.ID,
			TableID: evt.Order.TableID,
			Status:  evt.Order.Status,
			Details: details,
		}
	case ChannelFrontOfHouse:
		return FrontOfHousePayload{
			OrderID:       evt.Order.ID,
			TableID:       evt.Order.TableID,
			Status:        evt.Order.Status,
			TotalPrice:    evt.Order.TotalPrice.StringFixed(2),
			ServedBy:      evt.Order.ServedBy,
			FullyServed:   evt.Order.ServedAt != nil,
			PaymentMethod: evt.Order.PaymentMethod,
			PaymentStatus: evt.Order.PaymentStatus,
		}
	default:
		return AdminPayload{Order: evt.Order, Details: evt.Details}
	}
}
