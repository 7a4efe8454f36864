package dto

// CreateItemRequest payload for registering an inventory item.
type CreateItemRequest struct {
	Name           string            `json:"name" validate:"required,max=200"`
	Category       string            `json:"category" validate:"required"`
	Description    string            `json:"description" validate:"max=2000"`
	TotalQuantity  int               `json:"totalQuantity" validate:"required,min=1"`
	Specifications map[string]string `json:"specifications"`
	Condition      string            `json:"condition" validate:"omitempty,oneof=Good Damaged"`
	// SelfAssign assigns the whole quantity to the creator. Employees always self-assign.
	SelfAssign bool `json:"selfAssign"`
}

// UpdateItemRequest is a partial update; nil fields are left untouched.
type UpdateItemRequest struct {
	Name           *string           `json:"name" validate:"omitempty,min=1,max=200"`
	Category       *string           `json:"category"`
	Description    *string           `json:"description" validate:"omitempty,max=2000"`
	TotalQuantity  *int              `json:"totalQuantity" validate:"omitempty,min=0"`
	Specifications map[string]string `json:"specifications"`
}

// ItemQuery mirrors supported listing filters.
type ItemQuery struct {
	Category  string `form:"category"`
	Status    string `form:"status"`
	Condition string `form:"condition"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}
