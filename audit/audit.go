// Package audit keeps the bounded, newest-first business event log stored
// inside the application state.
package audit

import (
	"time"

	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/transaction"
)

// DefaultCapacity is the number of entries kept when no capacity is configured.
const DefaultCapacity = 100

// SystemUser is recorded when no session is active.
const SystemUser = "Sistema"

// Event labels written by the engine.
const (
	EventSale               = "Sale"
	EventSupply             = "Supply"
	EventCredit             = "Credit"
	EventExpense            = "Expense"
	EventProductAdded       = "Product Added"
	EventProductUpdated     = "Product Updated"
	EventProductDeleted     = "Product Deleted"
	EventBulkPriceUpdate    = "Bulk Price Update"
	EventRatesUpdated       = "Rates Updated"
	EventProfileUpdated     = "Profile Updated"
	EventPlanSelected       = "Plan Selected"
	EventTransactionSettled = "Transaction Settled"
	EventSupplierAdded      = "Supplier Added"
	EventSupplierDeleted    = "Supplier Deleted"
	EventLogin              = "Login"
	EventLogout             = "Logout"
)

type Entry struct {
	ID                 id.AuditEntryID          `json:"id"`
	Event              string                   `json:"event"`
	Details            string                   `json:"details"`
	User               string                   `json:"user"`
	Timestamp          time.Time                `json:"timestamp"`
	RelatedTransaction *transaction.Transaction `json:"relatedTransaction,omitempty"`
}

// NewEntry builds an entry. related is copied so later changes to the
// caller's value are not visible through the log.
func NewEntry(event, details, user string, at time.Time, related *transaction.Transaction) Entry {
	if user == "" {
		user = SystemUser
	}
	e := Entry{
		ID:        id.NewAuditEntryID(),
		Event:     event,
		Details:   details,
		User:      user,
		Timestamp: at.UTC(),
	}
	if related != nil {
		c := related.Clone()
		e.RelatedTransaction = &c
	}
	return e
}

// Append inserts e at the head of log and keeps at most capacity entries,
// evicting the oldest. A capacity <= 0 means DefaultCapacity. The input
// slice is not modified.
func Append(log []Entry, e Entry, capacity int) []Entry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	n := len(log) + 1
	if n > capacity {
		n = capacity
	}
	out := make([]Entry, 0, n)
	out = append(out, e)
	out = append(out, log[:n-1]...)
	return out
}

// Filter returns the entries whose event equals event.
func Filter(log []Entry, event string) []Entry {
	var out []Entry
	for _, e := range log {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
