package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"table-order-api/apperr"
	"table-order-api/models"
	"table-order-api/realtime"
	"table-order-api/statemachine"
)

type OrderItemInput struct {
	MenuItemID uint  `json:"menu_item_id" binding:"required"`
	ExtraID    *uint `json:"extra_id"`
	Quantity   int   `json:"quantity" binding:"required,min=1"`
}

type PlaceOrderInput struct {
	TableID uint             `json:"table_id" binding:"required"`
	Items   []OrderItemInput `json:"items" binding:"required,min=1,dive"`
}

// PlaceOrder creates a PENDING order for a table in the caller's tenant scope.
// Prices are always re-resolved from the catalog; client-supplied prices are
// never trusted.
func (s *OrderStore) PlaceOrder(ctx context.Context, scope models.TenantScope, actorID uint, in PlaceOrderInput) (*models.Order, error) {
	var placed *models.Order
	var targetID uint

	err := s.run(ctx, actorID, ActionPlace, scope, &targetID, func(tx *gorm.DB) ([]realtime.Event, error) {
		var table models.Table
		err := tx.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
			First(&table, in.TableID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFoundf("table %d not found", in.TableID)
			}
			return nil, err
		}

		total := decimal.Zero
		details := make([]models.OrderDetail, 0, len(in.Items))
		for _, item := range in.Items {
			var menu models.MenuItem
			err := tx.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
				First(&menu, item.MenuItemID).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, apperr.NotFoundf("menu item %d not found", item.MenuItemID)
				}
				return nil, err
			}
			if !menu.IsAvailable {
				return nil, apperr.Validationf("menu item %q is not available", menu.Name)
			}

			unit := menu.Price
			if item.ExtraID != nil {
				var extra models.Extra
				err := tx.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
					First(&extra, *item.ExtraID).Error
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return nil, apperr.NotFoundf("extra %d not found", *item.ExtraID)
					}
					return nil, err
				}
				unit = unit.Add(extra.Price)
			}

			total = total.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
			details = append(details, models.OrderDetail{
				MenuItemID: item.MenuItemID,
				ExtraID:    item.ExtraID,
				Quantity:   item.Quantity,
				UnitPrice:  unit,
			})
		}

		order := models.Order{
			RestaurantID: scope.RestaurantID,
			BranchID:     scope.BranchID,
			TableID:      in.TableID,
			Status:       models.StatusPending,
			TotalPrice:   total,
			Details:      details,
		}
		if err := tx.Create(&order).Error; err != nil {
			return nil, err
		}

		placed = &order
		targetID = order.ID
		return []realtime.Event{{Type: realtime.EventOrderCreated, Order: order, Details: order.Details}}, nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// Approve moves a PENDING order to PREPARING (admin/owner).
func (s *OrderStore) Approve(ctx context.Context, scope models.TenantScope, actorID, orderID uint) (*models.Order, error) {
	var approved *models.Order

	err := s.run(ctx, actorID, ActionApprove, scope, &orderID, func(tx *gorm.DB) ([]realtime.Event, error) {
		order, err := lockedOrder(tx, scope, orderID)
		if err != nil {
			return nil, err
		}
		dec, err := statemachine.Approve(order)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		if err := casStatus(tx, order.ID, order.Status, dec.NextStatus, map[string]any{"approved_at": now}); err != nil {
			return nil, err
		}
		order.Status = dec.NextStatus
		order.ApprovedAt = &now

		approved = order
		return []realtime.Event{{Type: realtime.EventOrderApproved, Order: *order}}, nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// MarkDetailPrepared flips one line item to prepared (kitchen). When the last
// unprepared item flips, the order advances to READY in the same unit of work.
func (s *OrderStore) MarkDetailPrepared(ctx context.Context, scope models.TenantScope, actorID, detailID uint) (*models.Order, error) {
	var updated *models.Order
	var targetID uint

	err := s.run(ctx, actorID, ActionPrepare, scope, &targetID, func(tx *gorm.DB) ([]realtime.Event, error) {
		var detail models.OrderDetail
		if err := tx.First(&detail, detailID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFoundf("order item %d not found", detailID)
			}
			return nil, err
		}
		targetID = detail.OrderID

		order, err := lockedOrder(tx, scope, detail.OrderID)
		if err != nil {
			return nil, err
		}
		details, err := orderDetails(tx, order.ID)
		if err != nil {
			return nil, err
		}

		dec, err := statemachine.MarkDetailPrepared(order, &detail, details)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		res := tx.Model(&models.OrderDetail{}).
			Where("id = ? AND is_prepared = ?", detail.ID, false).
			Updates(map[string]any{"is_prepared": true, "prepared_by": actorID, "prepared_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			return nil, apperr.Conflictf(apperr.CodeAlreadyPrepared,
				"item %d of order %d is already prepared", detail.ID, order.ID)
		}
		for i := range details {
			if details[i].ID == detail.ID {
				details[i].IsPrepared = true
				details[i].PreparedBy = &actorID
				details[i].PreparedAt = &now
			}
		}

		events := []realtime.Event{{Type: realtime.EventOrderDetailPrepared, Order: *order, Details: details}}
		if dec.NextStatus == models.StatusReady {
			if err := casStatus(tx, order.ID, order.Status, models.StatusReady, map[string]any{"ready_at": now}); err != nil {
				return nil, err
			}
			order.Status = models.StatusReady
			order.ReadyAt = &now
			events = append(events, realtime.Event{Type: realtime.EventOrderReady, Order: *order, Details: details})
		}

		updated = order
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkOrderPrepared flips every remaining line item to prepared and advances
// the order to READY (kitchen).
func (s *OrderStore) MarkOrderPrepared(ctx context.Context, scope models.TenantScope, actorID, orderID uint) (*models.Order, error) {
	var updated *models.Order

	err := s.run(ctx, actorID, ActionPrepareAll, scope, &orderID, func(tx *gorm.DB) ([]realtime.Event, error) {
		order, err := lockedOrder(tx, scope, orderID)
		if err != nil {
			return nil, err
		}
		dec, err := statemachine.MarkAllPrepared(order)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		err = tx.Model(&models.OrderDetail{}).
			Where("order_id = ? AND is_prepared = ?", order.ID, false).
			Updates(map[string]any{"is_prepared": true, "prepared_by": actorID, "prepared_at": now}).Error
		if err != nil {
			return nil, err
		}
		if err := casStatus(tx, order.ID, order.Status, dec.NextStatus, map[string]any{"ready_at": now}); err != nil {
			return nil, err
		}
		order.Status = dec.NextStatus
		order.ReadyAt = &now

		details, err := orderDetails(tx, order.ID)
		if err != nil {
			return nil, err
		}

		updated = order
		return []realtime.Event{{Type: realtime.EventOrderReady, Order: *order, Details: details}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TakeService claims the order for one waiter. Claiming an order already held
// by the same waiter is an idempotent success; a different waiter is rejected.
func (s *OrderStore) TakeService(ctx context.Context, scope models.TenantScope, waiterID, orderID uint) (*models.Order, error) {
	var taken *models.Order

	err := s.run(ctx, waiterID, ActionTake, scope, &orderID, func(tx *gorm.DB) ([]realtime.Event, error) {
		order, err := lockedOrder(tx, scope, orderID)
		if err != nil {
			return nil, err
		}
		dec, err := statemachine.TakeService(order, waiterID)
		if err != nil {
			return nil, err
		}

		if !dec.ClaimService {
			taken = order
			return nil, nil // already ours, nothing to write or publish
		}
		if err := claimService(tx, order.ID, waiterID); err != nil {
			return nil, err
		}
		order.ServedBy = &waiterID

		taken = order
		return []realtime.Event{{Type: realtime.EventOrderTaken, Order: *order}}, nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

// claimService sets served_by iff no other waiter holds the claim. The guard
// makes concurrent claims lose deterministically even without FOR UPDATE.
func claimService(tx *gorm.DB, orderID, waiterID uint) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND (served_by IS NULL OR served_by = ?)", orderID, waiterID).
		Update("served_by", waiterID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.Conflictf(apperr.CodeOrderAlreadyTaken,
			"order %d is already being served by another waiter", orderID)
	}
	return nil
}

// ServeDetail records that one prepared line item was handed to the customer
// (waiter). The first serve implicitly claims service; serving the last item
// stamps the served marker while the status stays READY until close.
func (s *OrderStore) ServeDetail(ctx context.Context, scope models.TenantScope, waiterID, orderID, menuItemID uint) (*models.Order, error) {
	var updated *models.Order

	err := s.run(ctx, waiterID, ActionServe, scope, &orderID, func(tx *gorm.DB) ([]realtime.Event, error) {
		order, err := lockedOrder(tx, scope, orderID)
		if err != nil {
			return nil, err
		}
		details, err := orderDetails(tx, order.ID)
		if err != nil {
			return nil, err
		}

		var detail *models.OrderDetail
		for i := range details {
			if details[i].MenuItemID == menuItemID {
				detail = &details[i]
				break
			}
		}
		if detail == nil {
			return nil, apperr.NotFoundf("order %d has no item for menu %d", order.ID, menuItemID)
		}

		served, err := servedRecords(tx, order.ID)
		if err != nil {
			return nil, err
		}

		dec, err := statemachine.ServeDetail(order, detail, details, served, waiterID)
		if err != nil {
			return nil, err
		}

		if dec.ClaimService {
			if err := claimService(tx, order.ID, waiterID); err != nil {
				return nil, err
			}
			order.ServedBy = &waiterID
		}

		record := models.ServedRecord{OrderID: order.ID, MenuItemID: menuItemID, ServedBy: waiterID}
		if err := tx.Create(&record).Error; err != nil {
			// The unique index on (order_id, menu_item_id) is the last line of
			// defense against a concurrent double serve.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperr.Conflictf(apperr.CodeAlreadyServed,
					"item %d of order %d has already been served", detail.ID, order.ID)
			}
			return nil, err
		}

		if dec.AllServed {
			now := time.Now()
			err := tx.Model(&models.Order{}).
				Where("id = ? AND served_at IS NULL", order.ID).
				Update("served_at", now).Error
			if err != nil {
				return nil, err
			}
			order.ServedAt = &now
		}

		updated = order
		return []realtime.Event{{Type: realtime.EventOrderServed, Order: *order, Details: details}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close records payment and performs the only transition to COMPLETED
// (waiter/admin).
func (s *OrderStore) Close(ctx context.Context, scope models.TenantScope, actorID, orderID uint, paymentMethod, paymentStatus string) (*models.Order, error) {
	var closed *models.Order

	err := s.run(ctx, actorID, ActionClose, scope, &orderID, func(tx *gorm.DB) ([]realtime.Event, error) {
		order, err := lockedOrder(tx, scope, orderID)
		if err != nil {
			return nil, err
		}
		dec, err := statemachine.Close(order)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		err = casStatus(tx, order.ID, order.Status, dec.NextStatus, map[string]any{
			"payment_method": paymentMethod,
			"payment_status": paymentStatus,
			"completed_at":   now,
			"closed_at":      now,
		})
		if err != nil {
			return nil, err
		}
		order.Status = dec.NextStatus
		order.PaymentMethod = paymentMethod
		order.PaymentStatus = paymentStatus
		order.CompletedAt = &now
		order.ClosedAt = &now

		closed = order
		return []realtime.Event{{Type: realtime.EventOrderCompleted, Order: *order}}, nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
