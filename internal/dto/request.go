package dto

import "time"

// CreateRequestRequest payload for an employee asking for an item.
type CreateRequestRequest struct {
	ItemID       *string    `json:"itemId" validate:"omitempty,uuid"`
	ItemName     string     `json:"itemName" validate:"max=200"`
	Quantity     int        `json:"quantity" validate:"required,min=1"`
	Notes        string     `json:"notes" validate:"required"`
	Urgency      string     `json:"urgency" validate:"omitempty,oneof=Normal Urgent"`
	Brand        *string    `json:"brand"`
	ExpectedDate *time.Time `json:"expectedDate"`
}

// UpdateRequestRequest lets an employee amend a pending request.
type UpdateRequestRequest struct {
	Quantity     *int       `json:"quantity" validate:"omitempty,min=1"`
	Notes        *string    `json:"notes" validate:"omitempty,min=1"`
	Urgency      *string    `json:"urgency" validate:"omitempty,oneof=Normal Urgent"`
	Brand        *string    `json:"brand"`
	ExpectedDate *time.Time `json:"expectedDate"`
}

// ApproveRequestRequest captures the reviewer comment and, for free-text requests, the bound item.
type ApproveRequestRequest struct {
	AdminComment string  `json:"adminComment"`
	ItemID       *string `json:"itemId" validate:"omitempty,uuid"`
}

// RejectRequestRequest requires a reason.
type RejectRequestRequest struct {
	RejectReason string `json:"rejectReason" validate:"required"`
	AdminComment string `json:"adminComment"`
}

// CompleteRequestRequest records the handover.
type CompleteRequestRequest struct {
	Condition string `json:"condition" validate:"omitempty,oneof=Good Damaged"`
	Notes     string `json:"notes"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Status     []string `form:"status"`
	EmployeeID string   `form:"employeeId"`
	ItemID     string   `form:"itemId"`
	Urgency    string   `form:"urgency"`
	Page       int      `form:"page"`
	PageSize   int      `form:"page_size"`
}
