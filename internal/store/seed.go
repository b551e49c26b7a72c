package store

import "staycal/internal/model"

// Seed returns the built-in starter data used when the blob is empty. It
// mirrors a plausible first month of operation: a mix of manual entries and
// records that look feed-imported but predate the first sync.
func Seed() []model.Reservation {
	d := func(s string) model.Date {
		date, err := model.ParseDate(s)
		if err != nil {
			panic("store: bad seed date " + s)
		}
		return date
	}

	return []model.Reservation{
		{
			ID: "1", Property: "Jacky Winter Gardens",
			CheckIn: d("2025-06-20"), CheckOut: d("2025-06-22"),
			Origin: model.OriginAirbnb,
		},
		{
			ID: "2", Property: "Jacky Winter Waters",
			CheckIn: d("2025-06-15"), CheckOut: d("2025-06-18"),
			FirstName: "John", LastName: "Smith",
			Phone: "555-0123", Email: "john.smith@email.com",
			Origin: model.OriginBookingCom,
		},
		{
			ID: "3", Property: "Jacky Winter Gardens",
			CheckIn: d("2025-06-25"), CheckOut: d("2025-06-28"),
			FirstName: "Sarah", LastName: "Johnson",
			Phone: "555-0456", Email: "sarah.j@email.com",
			Origin: model.OriginDirect,
		},
		{
			ID: "4", Property: "Jacky Winter Gardens",
			CheckIn: d("2025-06-07"), CheckOut: d("2025-06-09"),
			FirstName: "Mae", LastName: "Mactier",
			Email:  "mae@example.com",
			Origin: model.OriginRiparide,
		},
		{
			ID: "5", Property: "Jacky Winter Waters",
			CheckIn: d("2025-07-05"), CheckOut: d("2025-07-08"),
			FirstName: "Michael", LastName: "Brown",
			Phone: "555-0789", Email: "mike.brown@email.com",
			Origin: model.OriginAirbnb,
		},
		{
			ID: "6", Property: "Jacky Winter Gardens",
			CheckIn: d("2025-07-01"), CheckOut: d("2025-07-03"),
			FirstName: "Jeremy", LastName: "Wortsman",
			Phone: "123456789", Email: "jeremy@test.com",
			Origin: model.OriginManual,
		},
	}
}
