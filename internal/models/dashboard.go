package models

// DashboardSummary aggregates counters for the landing page.
type DashboardSummary struct {
	TotalItems         int            `json:"totalItems"`
	TotalUnits         int            `json:"totalUnits"`
	AvailableUnits     int            `json:"availableUnits"`
	AssignedUnits      int            `json:"assignedUnits"`
	PendingRequests    int            `json:"pendingRequests"`
	ApprovedRequests   int            `json:"approvedRequests"`
	ActiveAssignments  int            `json:"activeAssignments"`
	ItemsByCategory    map[string]int `json:"itemsByCategory,omitempty"`
	RecentHistory      []HistoryEntry `json:"recentHistory"`
	ScopedToEmployeeID string         `json:"scopedToEmployeeId,omitempty"`
}
