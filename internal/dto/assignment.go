package dto

// AssignItemRequest is the direct admin allocation path.
type AssignItemRequest struct {
	ItemID     string `json:"itemId" validate:"required,uuid"`
	EmployeeID string `json:"employeeId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	Notes      string `json:"notes"`
}

// ReturnAssignmentRequest records the condition of returned units.
type ReturnAssignmentRequest struct {
	Condition string `json:"condition" validate:"required,oneof=Good Damaged"`
	Notes     string `json:"notes"`
	// ReturnDate accepts YYYY-MM-DD or RFC3339; empty means now.
	ReturnDate string `json:"returnDate" validate:"omitempty,max=40"`
}

// AssignmentQuery mirrors supported listing filters.
type AssignmentQuery struct {
	EmployeeID string `form:"employeeId"`
	ItemID     string `form:"itemId"`
	Status     string `form:"status" validate:"omitempty,oneof=assigned returned"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
