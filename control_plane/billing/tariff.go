package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tariff bands. Prices are per kWh; bands are left-closed/right-open on
// hour-of-day:
//
//	TOP    (peak)     10~15, 18~21
//	MEDIUM (shoulder)  7~10, 15~18, 21~23
//	BOTTOM (valley)   23~24, 0~7
const (
	bandBottom = iota
	bandMedium
	bandTop
)

var (
	// ChargePerKWhTop is the peak electricity price.
	ChargePerKWhTop = decimal.RequireFromString("1.00")
	// ChargePerKWhMedium is the shoulder electricity price.
	ChargePerKWhMedium = decimal.RequireFromString("0.70")
	// ChargePerKWhBottom is the valley electricity price.
	ChargePerKWhBottom = decimal.RequireFromString("0.40")
	// ServicePerKWh is the flat service surcharge added to every band.
	ServicePerKWh = decimal.RequireFromString("0.80")
)

var bandByHour = [24]int{
	bandBottom, bandBottom, bandBottom, bandBottom, bandBottom, bandBottom, bandBottom, // 0~7
	bandMedium, bandMedium, bandMedium, // 7~10
	bandTop, bandTop, bandTop, bandTop, bandTop, // 10~15
	bandMedium, bandMedium, bandMedium, // 15~18
	bandTop, bandTop, bandTop, // 18~21
	bandMedium, bandMedium, // 21~23
	bandBottom, // 23~24
}

var bandBoundaries = []int{7, 10, 15, 18, 21, 23, 24}

// nextBandBoundary returns the first instant after t where the tariff band
// changes (possibly midnight of the next day).
func nextBandBoundary(t time.Time) time.Time {
	for _, h := range bandBoundaries {
		if t.Hour() < h {
			if h == 24 {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			}
			return time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, t.Location())
		}
	}
	// Unreachable: hour 23 is below boundary 24.
	return t.AddDate(0, 0, 1)
}

// CalcCost prices a charging interval under the stepped tariff. The energy
// is apportioned across the bands in proportion to the time spent in each;
// the service surcharge applies to the full amount. All three results are
// rounded to 2 decimal places.
func CalcCost(beginTime, endTime time.Time, amount decimal.Decimal) (total, charging, service decimal.Decimal) {
	var bandSeconds [3]int64

	cur := beginTime
	for cur.Before(endTime) {
		next := nextBandBoundary(cur)
		if next.After(endTime) {
			next = endTime
		}
		bandSeconds[bandByHour[cur.Hour()]] += int64(next.Sub(cur) / time.Second)
		cur = next
	}

	totalSeconds := bandSeconds[bandBottom] + bandSeconds[bandMedium] + bandSeconds[bandTop]
	if totalSeconds == 0 {
		// Degenerate zero-length interval; bill everything at the band
		// the session started in.
		bandSeconds[bandByHour[beginTime.Hour()]] = 1
		totalSeconds = 1
	}

	prices := [3]decimal.Decimal{
		bandBottom: ChargePerKWhBottom,
		bandMedium: ChargePerKWhMedium,
		bandTop:    ChargePerKWhTop,
	}
	totalDec := decimal.NewFromInt(totalSeconds)
	charging = decimal.Zero
	for band, price := range prices {
		share := amount.Mul(price).Mul(decimal.NewFromInt(bandSeconds[band])).Div(totalDec)
		charging = charging.Add(share)
	}
	charging = charging.Round(2)
	service = ServicePerKWh.Mul(amount).Round(2)
	total = charging.Add(service)
	return total, charging, service
}
