package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(day, hour, min int) time.Time {
	return time.Date(2022, 6, day, hour, min, 0, 0, time.UTC)
}

func TestCalcCostSingleShoulderBand(t *testing.T) {
	// 07:00-10:00 is all shoulder: 10 * 0.70 + 10 * 0.80 = 15.00
	total, charging, service := CalcCost(at(6, 7, 0), at(6, 10, 0), d("10.00"))

	if !charging.Equal(d("7.00")) {
		t.Errorf("Expected charging 7.00, got %s", charging)
	}
	if !service.Equal(d("8.00")) {
		t.Errorf("Expected service 8.00, got %s", service)
	}
	if !total.Equal(d("15.00")) {
		t.Errorf("Expected total 15.00, got %s", total)
	}
}

func TestCalcCostCrossesMidnight(t *testing.T) {
	// 21:00-24:00: 2h shoulder + 1h valley.
	// charging = 30 * (0.70*2/3 + 0.40*1/3) = 18.00; service = 24.00
	total, charging, service := CalcCost(at(6, 21, 0), at(7, 0, 0), d("30.00"))

	if !charging.Equal(d("18.00")) {
		t.Errorf("Expected charging 18.00, got %s", charging)
	}
	if !service.Equal(d("24.00")) {
		t.Errorf("Expected service 24.00, got %s", service)
	}
	if !total.Equal(d("42.00")) {
		t.Errorf("Expected total 42.00, got %s", total)
	}
}

func TestCalcCostFullDay(t *testing.T) {
	// 24h spends 8h in each band: 30 * (1.00+0.70+0.40)/3 = 21.00 charging.
	total, _, _ := CalcCost(at(6, 21, 0), at(7, 21, 0), d("30.00"))

	if !total.Equal(d("45.00")) {
		t.Errorf("Expected total 45.00, got %s", total)
	}
}

func TestCalcCostMultiDay(t *testing.T) {
	// 27h from 21:00: 8h peak, 10h shoulder, 9h valley.
	// charging = 30 * (8*1.00 + 10*0.70 + 9*0.40)/27 = 20.67
	total, charging, service := CalcCost(at(6, 21, 0), at(8, 0, 0), d("30.00"))

	if !charging.Equal(d("20.67")) {
		t.Errorf("Expected charging 20.67, got %s", charging)
	}
	if !service.Equal(d("24.00")) {
		t.Errorf("Expected service 24.00, got %s", service)
	}
	if !total.Equal(d("44.67")) {
		t.Errorf("Expected total 44.67, got %s", total)
	}
}

func TestCalcCostMidBandInterval(t *testing.T) {
	// 11:30-12:30 is all peak: 2.00 * 1.00 + 2.00 * 0.80 = 3.60
	total, charging, service := CalcCost(at(6, 11, 30), at(6, 12, 30), d("2.00"))

	if !charging.Equal(d("2.00")) {
		t.Errorf("Expected charging 2.00, got %s", charging)
	}
	if !service.Equal(d("1.60")) {
		t.Errorf("Expected service 1.60, got %s", service)
	}
	if !total.Equal(d("3.60")) {
		t.Errorf("Expected total 3.60, got %s", total)
	}
}

func TestCalcCostZeroDuration(t *testing.T) {
	begin := at(6, 12, 0)
	total, charging, service := CalcCost(begin, begin, d("5.00"))

	// Everything lands in the band the session started in (peak).
	if !charging.Equal(d("5.00")) {
		t.Errorf("Expected charging 5.00, got %s", charging)
	}
	if !total.Equal(charging.Add(service)) {
		t.Errorf("Expected total = charging + service, got %s", total)
	}
}

func TestCalcCostTotalIsSum(t *testing.T) {
	cases := []struct {
		begin, end time.Time
		amount     string
	}{
		{at(6, 0, 0), at(6, 23, 59), "13.37"},
		{at(6, 6, 59), at(6, 7, 1), "0.10"},
		{at(6, 22, 15), at(7, 8, 45), "42.00"},
		{at(6, 14, 0), at(6, 19, 0), "7.77"},
	}
	for _, tc := range cases {
		total, charging, service := CalcCost(tc.begin, tc.end, d(tc.amount))
		if !total.Equal(charging.Add(service)) {
			t.Errorf("total %s != charging %s + service %s for [%v, %v]",
				total, charging, service, tc.begin, tc.end)
		}
		if !service.Equal(d(tc.amount).Mul(ServicePerKWh).Round(2)) {
			t.Errorf("service %s is not 0.80/kWh of %s", service, tc.amount)
		}
	}
}
