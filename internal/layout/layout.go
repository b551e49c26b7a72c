// Package layout maps reservations onto a wrapped month grid as row-bounded
// bar segments with non-overlapping vertical lanes.
package layout

import (
	"time"

	"staycal/internal/grid"
	"staycal/internal/model"
)

// Segment is one rendered rectangle: the part of a reservation's span that
// falls inside a single grid row. Columns are inclusive and 0-based; Left and
// Width are fractions of the row width in percent.
type Segment struct {
	ReservationID string  `json:"reservation_id"`
	Row           int     `json:"row"`
	StartCol      int     `json:"start_col"`
	EndCol        int     `json:"end_col"`
	Lane          int     `json:"lane"`
	Left          float64 `json:"left"`
	Width         float64 `json:"width"`
}

// MonthSegments lays out every reservation that intersects the given month
// onto the cell grid, splitting spans at week boundaries and stacking
// column-overlapping segments into distinct lanes per row.
//
// Reservations are processed in slice order, which is the store's insertion
// order; that fixes the lane tie-break when several stays start the same day.
// A reservation with missing dates is skipped, never a layout failure.
func MonthSegments(cells []grid.Cell, reservations []model.Reservation, year int, month time.Month) []Segment {
	monthStart := model.NewDate(year, month, 1)
	monthEnd := model.NewDate(year, month+1, 0) // last day of month

	segments := make([]Segment, 0, len(reservations))

	// Highest lane recorded per occupied column, keyed by row.
	occupied := make(map[int]map[int]int)
	done := make(map[string]bool)

	for _, res := range reservations {
		if done[res.ID] {
			continue
		}
		if res.CheckIn.IsZero() || res.CheckOut.IsZero() {
			continue
		}

		// The stay interval is [CheckIn, CheckOut); a stay that ends before
		// the month starts or begins after it ends is invisible here.
		if res.CheckOut.Before(monthStart) || res.CheckIn.After(monthEnd) {
			continue
		}

		startIdx, endIdx := -1, -1
		for i, c := range cells {
			if c.Placeholder() {
				continue
			}
			if c.Date.Equal(res.CheckIn) {
				startIdx = i
			}
			if c.Date.Equal(res.CheckOut) {
				endIdx = i
			}
		}

		// Clamp spans that extend beyond the visible month.
		if res.CheckIn.Before(monthStart) {
			startIdx = firstRealCell(cells)
		}
		if res.CheckOut.After(monthEnd) {
			endIdx = len(cells) - 1
		}

		if startIdx == -1 {
			continue
		}
		if endIdx == -1 {
			endIdx = len(cells) - 1
		}

		startRow := startIdx / grid.Columns
		endRow := endIdx / grid.Columns

		for row := startRow; row <= endRow; row++ {
			rowStart := row * grid.Columns
			rowEnd := min(rowStart+grid.Columns-1, len(cells)-1)

			segStart := max(startIdx, rowStart)
			segEnd := min(endIdx, rowEnd)
			if segStart > segEnd {
				continue
			}

			startCol := segStart % grid.Columns
			endCol := segEnd % grid.Columns

			if occupied[row] == nil {
				occupied[row] = make(map[int]int)
			}

			// Greedy lane: one above the highest lane already touching any
			// column of this segment in this row.
			lane := 0
			for col := startCol; col <= endCol; col++ {
				if prev, ok := occupied[row][col]; ok && prev+1 > lane {
					lane = prev + 1
				}
			}
			for col := startCol; col <= endCol; col++ {
				occupied[row][col] = lane
			}

			segments = append(segments, Segment{
				ReservationID: res.ID,
				Row:           row,
				StartCol:      startCol,
				EndCol:        endCol,
				Lane:          lane,
				Left:          float64(startCol) * 100 / grid.Columns,
				Width:         float64(endCol-startCol+1) * 100 / grid.Columns,
			})
		}

		done[res.ID] = true
	}

	return segments
}

func firstRealCell(cells []grid.Cell) int {
	for i, c := range cells {
		if !c.Placeholder() {
			return i
		}
	}
	return -1
}
