// Package store owns the relational representation of orders and wraps every
// caller action in one transactional unit: tenant-scope validation, locked
// snapshot read, state-machine authorization, mutation, audit append, commit.
// Events are published strictly after a successful commit.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"table-order-api/apperr"
	"table-order-api/models"
	"table-order-api/realtime"
)

// Audit action names, one per mutating operation.
const (
	ActionPlace      = "order.place"
	ActionApprove    = "order.approve"
	ActionPrepare    = "order.prepare_item"
	ActionPrepareAll = "order.prepare_all"
	ActionTake       = "order.take_service"
	ActionServe      = "order.serve_item"
	ActionClose      = "order.close"
)

// Publisher receives committed events. The hub implements it; tests stub it.
type Publisher interface {
	Publish(evt realtime.Event)
}

type OrderStore struct {
	db      *gorm.DB
	log     *logrus.Logger
	pub     Publisher
	timeout time.Duration
}

func New(db *gorm.DB, log *logrus.Logger, pub Publisher, timeout time.Duration) *OrderStore {
	return &OrderStore{db: db, log: log, pub: pub, timeout: timeout}
}

// run executes one mutating unit of work. On success exactly one audit row
// commits with the mutation and the returned events are published post-commit.
// On a denial the mutation rolls back and exactly one denial audit row is
// appended on its own.
func (s *OrderStore) run(ctx context.Context, actorID uint, action string, scope models.TenantScope, targetID *uint, fn func(tx *gorm.DB) ([]realtime.Event, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var events []realtime.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evts, err := fn(tx)
		if err != nil {
			return err
		}
		if err := s.append(tx, actorID, action, *targetID, scope, models.AuditOK); err != nil {
			// An audit write failure must not roll back the mutation.
			s.log.WithError(err).WithField("action", action).Error("audit append failed")
		}
		events = evts
		return nil
	})
	if err != nil {
		err = asAppError(err)
		if apperr.IsDenial(err) {
			s.appendDenial(actorID, action, *targetID, scope, apperr.CodeOf(err))
		}
		return err
	}

	if s.pub != nil {
		for _, evt := range events {
			s.pub.Publish(evt)
		}
	}
	return nil
}

// asAppError keeps taxonomy errors as-is and wraps everything else as an
// infrastructure failure.
func asAppError(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Infra(err)
}

// append writes one ledger row inside the owning transaction.
func (s *OrderStore) append(tx *gorm.DB, actorID uint, action string, targetID uint, scope models.TenantScope, result string) error {
	return tx.Create(&models.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		TargetID:     targetID,
		RestaurantID: scope.RestaurantID,
		BranchID:     scope.BranchID,
		Result:       result,
	}).Error
}

// appendDenial records a denied attempt after the mutation rolled back.
// Best-effort: a failure here is reported operationally, never surfaced.
func (s *OrderStore) appendDenial(actorID uint, action string, targetID uint, scope models.TenantScope, code string) {
	if err := s.append(s.db, actorID, action, targetID, scope, code); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action": action, "target": targetID, "code": code,
		}).Error("denial audit append failed")
	}
}

// lockedOrder fetches the order snapshot with row-level exclusivity, scoped to
// the tenant. The lock is held across the read-modify-write so two concurrent
// claims on the same order serialize. Orders outside the scope are
// indistinguishable from missing ones.
func lockedOrder(tx *gorm.DB, scope models.TenantScope, orderID uint) (*models.Order, error) {
	q := tx.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var o models.Order
	if err := q.First(&o, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("order %d not found", orderID)
		}
		return nil, err
	}
	return &o, nil
}

func orderDetails(tx *gorm.DB, orderID uint) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	err := tx.Where("order_id = ?", orderID).Order("id asc").Find(&details).Error
	return details, err
}

func servedRecords(tx *gorm.DB, orderID uint) ([]models.ServedRecord, error) {
	var records []models.ServedRecord
	err := tx.Where("order_id = ?", orderID).Find(&records).Error
	return records, err
}

// casStatus performs the guarded status write: it only succeeds when the row
// still holds the status the snapshot saw, closing the check-to-use window on
// stores without FOR UPDATE.
func casStatus(tx *gorm.DB, orderID uint, from, to models.OrderStatus, extra map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d changed concurrently, re-fetch and retry", orderID)
	}
	return nil
}

// ── Reads ───────────────────────────────────────────────────────────────────

// GetOrder returns the full order with line items and served records, scoped
// to the tenant.
func (s *OrderStore) GetOrder(ctx context.Context, scope models.TenantScope, orderID uint) (*models.Order, []models.ServedRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	db := s.db.WithContext(ctx)

	var o models.Order
	err := db.Preload("Details.MenuItem").Preload("Details.Extra").Preload("Table").
		Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
		First(&o, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFoundf("order %d not found", orderID)
		}
		return nil, nil, apperr.Infra(err)
	}
	records, err := servedRecords(db, o.ID)
	if err != nil {
		return nil, nil, apperr.Infra(err)
	}
	return &o, records, nil
}

// ListOrders returns the tenant's orders, optionally filtered by status,
// newest first.
func (s *OrderStore) ListOrders(ctx context.Context, scope models.TenantScope, status models.OrderStatus) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := s.db.WithContext(ctx).Preload("Details").
		Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.Order
	if err := q.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, apperr.Infra(err)
	}
	return orders, nil
}

// ListAudit returns the tenant's most recent ledger entries.
func (s *OrderStore) ListAudit(ctx context.Context, scope models.TenantScope, limit int) ([]models.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditEntry
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
		Order("id desc").Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return entries, nil
}
