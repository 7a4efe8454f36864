package models

import "time"

// AssignmentStatus tracks the only mutation a ledger entry allows.
type AssignmentStatus string

const (
	AssignmentAssigned AssignmentStatus = "assigned"
	AssignmentReturned AssignmentStatus = "returned"
)

// Assignment is a ledger entry recording units held by an employee.
type Assignment struct {
	ID              string           `db:"id" json:"id"`
	EmployeeID      string           `db:"employee_id" json:"employeeId"`
	ItemID          string           `db:"item_id" json:"itemId"`
	ItemName        string           `db:"item_name" json:"itemName,omitempty"`
	RequestID       *string          `db:"request_id" json:"requestId,omitempty"`
	Quantity        int              `db:"quantity" json:"quantity"`
	Status          AssignmentStatus `db:"status" json:"status"`
	AssignedDate    time.Time        `db:"assigned_date" json:"assignedDate"`
	ReturnedAt      *time.Time       `db:"returned_at" json:"returnedAt,omitempty"`
	ReturnCondition *ItemCondition   `db:"return_condition" json:"returnCondition,omitempty"`
	Notes           string           `db:"notes" json:"notes"`
}

// AssignmentFilter captures filtering criteria for listing ledger entries.
type AssignmentFilter struct {
	EmployeeID string
	ItemID     string
	Status     AssignmentStatus
	Paging
}
