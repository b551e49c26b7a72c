// Package grid builds the ordered cell sequence for a month calendar view.
// The week starts on Monday; the sequence opens with one placeholder cell per
// weekday preceding the 1st and carries no trailing padding.
package grid

import (
	"time"

	"staycal/internal/model"
)

// Columns is the number of weekday columns in the rendered grid.
const Columns = 7

// Cell is one day slot. A leading placeholder has Day == 0 and a zero Date.
type Cell struct {
	Day  int        `json:"day"`
	Date model.Date `json:"date"`
}

// Placeholder reports whether the cell is a leading blank before the 1st.
func (c Cell) Placeholder() bool {
	return c.Day == 0
}

// MonthCells returns the cell sequence for the given month: N placeholders
// (N = Monday-normalized weekday index of the 1st, so N is in [0,6]) followed
// by one cell per calendar day.
func MonthCells(year int, month time.Month) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	// time.Weekday is Sunday-based; shift so Monday maps to column 0.
	leading := (int(first.Weekday()) + 6) % Columns

	cells := make([]Cell, 0, leading+daysInMonth)
	for i := 0; i < leading; i++ {
		cells = append(cells, Cell{})
	}
	for day := 1; day <= daysInMonth; day++ {
		cells = append(cells, Cell{
			Day:  day,
			Date: model.NewDate(year, month, day),
		})
	}
	return cells
}

// Rows returns the number of 7-column rows the cell sequence occupies.
func Rows(cells []Cell) int {
	return (len(cells) + Columns - 1) / Columns
}
