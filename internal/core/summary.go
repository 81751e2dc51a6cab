package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Total      Money            `json:"total"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// PreviousMonth returns the calendar month before year/month, rolling
// January back to December of the prior year.
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
