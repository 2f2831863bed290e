// Package statemachine validates requested order transitions against the
// current snapshot. It never mutates state itself: it either authorizes a
// proposed mutation (as a Decision the store persists verbatim) or denies it
// with a typed rejection. Repeated calls with stale snapshots are therefore
// always safely rejected.
package statemachine

import (
	"table-order-api/apperr"
	"table-order-api/models"
)

// lifecycle is the fixed total order of statuses.
var lifecycle = []models.OrderStatus{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusCompleted,
}

// ValidNext returns the legal successor of a status, or "" for the terminal
// state.
func ValidNext(status models.OrderStatus) models.OrderStatus {
	for i, s := range lifecycle {
		if s == status && i+1 < len(lifecycle) {
			return lifecycle[i+1]
		}
	}
	return ""
}

// Lifecycle returns the full status order for informational endpoints.
func Lifecycle() []models.OrderStatus {
	out := make([]models.OrderStatus, len(lifecycle))
	copy(out, lifecycle)
	return out
}

// Decision is the authorized outcome of a requested transition.
type Decision struct {
	// NextStatus is the status the order moves to, or "" when it stays put.
	NextStatus models.OrderStatus
	// ClaimService marks that served_by must be set to the acting waiter.
	ClaimService bool
	// AllPrepared is true when, after this operation, every detail is prepared.
	AllPrepared bool
	// AllServed is true when, after this operation, every detail is served.
	AllServed bool
}

// Approve authorizes the pending → preparing transition.
func Approve(o *models.Order) (Decision, error) {
	if o.Status != models.StatusPending {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is %s, only PENDING orders can be approved", o.ID, o.Status)
	}
	return Decision{NextStatus: models.StatusPreparing}, nil
}

// MarkDetailPrepared authorizes flipping one detail to prepared. When the
// flipped detail is the last unprepared one, the decision also carries the
// preparing → ready transition so the store re-establishes the "ready iff all
// prepared" invariant in the same unit of work.
func MarkDetailPrepared(o *models.Order, d *models.OrderDetail, details []models.OrderDetail) (Decision, error) {
	if d.IsPrepared {
		return Decision{}, apperr.Conflictf(apperr.CodeAlreadyPrepared,
			"item %d of order %d is already prepared", d.ID, o.ID)
	}
	if o.Status != models.StatusPreparing {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is %s, items can only be prepared while PREPARING", o.ID, o.Status)
	}

	dec := Decision{AllPrepared: true}
	for _, other := range details {
		if other.ID != d.ID && !other.IsPrepared {
			dec.AllPrepared = false
			break
		}
	}
	if dec.AllPrepared {
		dec.NextStatus = models.StatusReady
	}
	return dec, nil
}

// MarkAllPrepared authorizes preparing every remaining detail at once.
func MarkAllPrepared(o *models.Order) (Decision, error) {
	if o.Status == models.StatusReady || o.Status == models.StatusCompleted {
		return Decision{}, apperr.Conflictf(apperr.CodeAlreadyPrepared,
			"order %d is already fully prepared", o.ID)
	}
	if o.Status != models.StatusPreparing {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is %s, items can only be prepared while PREPARING", o.ID, o.Status)
	}
	return Decision{NextStatus: models.StatusReady, AllPrepared: true}, nil
}

// TakeService authorizes a waiter's claim on the order. Claiming an order the
// same waiter already holds is an idempotent no-op.
func TakeService(o *models.Order, waiterID uint) (Decision, error) {
	if o.Status != models.StatusReady {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is %s, only READY orders can be taken for service", o.ID, o.Status)
	}
	if o.ServedBy == nil {
		return Decision{ClaimService: true}, nil
	}
	if *o.ServedBy == waiterID {
		return Decision{}, nil
	}
	return Decision{}, apperr.Conflictf(apperr.CodeOrderAlreadyTaken,
		"order %d is already being served by another waiter", o.ID)
}

// ServeDetail authorizes handing one prepared line item to the customer. The
// first serve implicitly claims service for the acting waiter. When the served
// item is the last outstanding one the decision carries the all-served marker;
// the completion transition itself only happens at close time.
func ServeDetail(o *models.Order, d *models.OrderDetail, details []models.OrderDetail, served []models.ServedRecord, waiterID uint) (Decision, error) {
	if o.Status == models.StatusCompleted {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is already completed", o.ID)
	}
	if !d.IsPrepared {
		return Decision{}, apperr.Statef(apperr.CodeNotPrepared,
			"item %d of order %d has not been prepared yet", d.ID, o.ID)
	}
	servedMenus := make(map[uint]bool, len(served))
	for _, rec := range served {
		servedMenus[rec.MenuItemID] = true
	}
	if servedMenus[d.MenuItemID] {
		return Decision{}, apperr.Conflictf(apperr.CodeAlreadyServed,
			"item %d of order %d has already been served", d.ID, o.ID)
	}
	if o.ServedBy != nil && *o.ServedBy != waiterID {
		return Decision{}, apperr.Conflictf(apperr.CodeOrderAlreadyTaken,
			"order %d is already being served by another waiter", o.ID)
	}

	dec := Decision{ClaimService: o.ServedBy == nil, AllServed: true}
	for _, other := range details {
		if other.ID != d.ID && !servedMenus[other.MenuItemID] {
			dec.AllServed = false
			break
		}
	}
	return dec, nil
}

// Close authorizes the payment-closing transition. Closing is the only path to
// COMPLETED: full service stamps the served marker but leaves the order READY
// until payment is recorded here.
func Close(o *models.Order) (Decision, error) {
	if o.Status == models.StatusCompleted {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is already completed", o.ID)
	}
	if o.Status != models.StatusReady {
		return Decision{}, apperr.Statef(apperr.CodeInvalidOrderStatus,
			"order %d is %s, only READY orders can be closed", o.ID, o.Status)
	}
	return Decision{NextStatus: models.StatusCompleted}, nil
}
