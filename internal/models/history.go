package models

import "time"

// HistoryAction enumerates audited transitions.
type HistoryAction string

const (
	ActionRequested HistoryAction = "requested"
	ActionAssigned  HistoryAction = "assigned"
	ActionApproved  HistoryAction = "approved"
	ActionRejected  HistoryAction = "rejected"
	ActionCompleted HistoryAction = "completed"
	ActionReturned  HistoryAction = "returned"
)

// Valid reports whether the action is recognised.
func (a HistoryAction) Valid() bool {
	switch a {
	case ActionRequested, ActionAssigned, ActionApproved, ActionRejected, ActionCompleted, ActionReturned:
		return true
	}
	return false
}

const (
	// DeletedItemName is shown when a history row points at a removed item.
	DeletedItemName = "Deleted Item"
	// SystemActor is shown when a history row carries no employee.
	SystemActor = "System"
)

// HistoryEntry is an append-only audit record.
type HistoryEntry struct {
	ID         string        `db:"id" json:"id"`
	ActionType HistoryAction `db:"action_type" json:"actionType"`
	EmployeeID string        `db:"employee_id" json:"employeeId"`
	ItemID     *string       `db:"item_id" json:"itemId,omitempty"`
	ItemName   string        `db:"item_name" json:"itemName"`
	Quantity   int           `db:"quantity" json:"quantity"`
	Notes      string        `db:"notes" json:"notes"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
}

// Actor renders the employee id or the system placeholder.
func (h HistoryEntry) Actor() string {
	if h.EmployeeID == "" {
		return SystemActor
	}
	return h.EmployeeID
}

// HistoryFilter captures filtering criteria for listing history.
type HistoryFilter struct {
	ActionTypes []HistoryAction
	EmployeeID  string
	ItemID      string
	From        *time.Time
	To          *time.Time
	Paging
}
