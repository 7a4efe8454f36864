package models

import "time"

// RequestStatus captures workflow states for allocation requests.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestCompleted
}

// Urgency flags how soon the requester needs the item.
type Urgency string

const (
	UrgencyNormal Urgency = "Normal"
	UrgencyUrgent Urgency = "Urgent"
)

// Valid reports whether the urgency is recognised.
func (u Urgency) Valid() bool {
	return u == UrgencyNormal || u == UrgencyUrgent
}

// Request is an employee's ask for an asset.
type Request struct {
	ID           string        `db:"id" json:"id"`
	EmployeeID   string        `db:"employee_id" json:"employeeId"`
	ItemID       *string       `db:"item_id" json:"itemId,omitempty"`
	ItemName     string        `db:"item_name" json:"itemName"`
	Quantity     int           `db:"quantity" json:"quantity"`
	Status       RequestStatus `db:"status" json:"status"`
	Urgency      Urgency       `db:"urgency" json:"urgency"`
	Notes        string        `db:"notes" json:"notes"`
	Brand        *string       `db:"brand" json:"brand,omitempty"`
	ExpectedDate *time.Time    `db:"expected_date" json:"expectedDate,omitempty"`
	AdminComment *string       `db:"admin_comment" json:"adminComment,omitempty"`
	RejectReason *string       `db:"reject_reason" json:"rejectReason,omitempty"`
	ReviewedBy   *string       `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time    `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CompletedAt  *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// RequestFilter captures filtering criteria for listing requests.
type RequestFilter struct {
	EmployeeID string
	ItemID     string
	Status     []RequestStatus
	Urgency    Urgency
	Paging
}
