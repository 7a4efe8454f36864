package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ItemCondition is the physical condition recorded on an item.
type ItemCondition string

const (
	ConditionGood    ItemCondition = "Good"
	ConditionDamaged ItemCondition = "Damaged"
)

// Valid reports whether the condition is recognised.
func (c ItemCondition) Valid() bool {
	return c == ConditionGood || c == ConditionDamaged
}

// Specification keys maintained by the service rather than the client.
const (
	SpecCondition  = "condition"
	SpecReturnedAt = "returned_at"
)

// StockStatus is derived from available quantity.
type StockStatus string

const (
	StockUnassigned        StockStatus = "Unassigned"
	StockAssigned          StockStatus = "Assigned"
	StockPartiallyAssigned StockStatus = "Partially Assigned"
)

// Specifications stores category specific attributes persisted as JSONB.
type Specifications map[string]string

// Value marshals specifications to JSON for persistence.
func (s Specifications) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, fmt.Errorf("marshal specifications: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the map.
func (s *Specifications) Scan(value interface{}) error {
	if value == nil {
		*s = Specifications{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Specifications", value)
	}
	if len(data) == 0 {
		*s = Specifications{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal specifications: %w", err)
	}
	*s = out
	return nil
}

// InventoryItem is a stock keeping unit with total and available counts.
type InventoryItem struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Category          string         `db:"category" json:"category"`
	Description       string         `db:"description" json:"description"`
	TotalQuantity     int            `db:"total_quantity" json:"totalQuantity"`
	AvailableQuantity int            `db:"available_quantity" json:"availableQuantity"`
	Specifications    Specifications `db:"specifications" json:"specifications"`
	CreatedBy         *string        `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// Status derives the stock status shown to clients.
func (i InventoryItem) Status() StockStatus {
	if i.AvailableQuantity > 0 {
		return StockUnassigned
	}
	return StockAssigned
}

// Condition returns the recorded condition, defaulting to Good.
func (i InventoryItem) Condition() ItemCondition {
	if c := ItemCondition(i.Specifications[SpecCondition]); c.Valid() {
		return c
	}
	return ConditionGood
}

// MarshalJSON adds the derived status to the payload.
func (i InventoryItem) MarshalJSON() ([]byte, error) {
	type alias InventoryItem
	return json.Marshal(struct {
		alias
		Status StockStatus `json:"status"`
	}{alias: alias(i), Status: i.Status()})
}

// Availability is the stock snapshot returned by availability lookups.
type Availability struct {
	ItemID    string      `json:"itemId"`
	Total     int         `json:"total"`
	Available int         `json:"available"`
	Status    StockStatus `json:"status"`
}

// ItemFilter captures filtering criteria for listing items.
type ItemFilter struct {
	Category  string
	Status    StockStatus
	Condition ItemCondition
	Search    string
	Paging
}
