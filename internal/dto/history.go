package dto

// HistoryQuery mirrors supported history filters. Dates accept RFC3339 or YYYY-MM-DD.
type HistoryQuery struct {
	ActionTypes []string `form:"actionType"`
	EmployeeID  string   `form:"employeeId"`
	ItemID      string   `form:"itemId"`
	From        string   `form:"from"`
	To          string   `form:"to"`
	Page        int      `form:"page"`
	PageSize    int      `form:"page_size"`
}
