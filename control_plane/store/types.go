package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// PileKind distinguishes trickle piles from fast-charge piles.
type PileKind int

const (
	KindSlow PileKind = iota
	KindFast
)

func (k PileKind) String() string {
	switch k {
	case KindSlow:
		return "SLOW"
	case KindFast:
		return "FAST"
	default:
		return "UNKNOWN"
	}
}

// PileStatus is the operator-facing pile state. SHUTDOWN and UNAVAILABLE are
// both "broken" from the scheduler's point of view.
type PileStatus int

const (
	StatusRunning PileStatus = iota
	StatusShutdown
	StatusUnavailable
)

func (s PileStatus) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusShutdown:
		return "SHUTDOWN"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// ParsePileStatus maps the wire name back to a PileStatus.
func ParsePileStatus(name string) (PileStatus, bool) {
	switch name {
	case "RUNNING":
		return StatusRunning, true
	case "SHUTDOWN":
		return StatusShutdown, true
	case "UNAVAILABLE":
		return StatusUnavailable, true
	default:
		return 0, false
	}
}

// User is a registered account.
type User struct {
	UserID   int64  `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"` // sha256 hex
	IsAdmin  bool   `json:"is_admin" db:"is_admin"`
}

// Pile is a configured charging pile plus its cumulative service counters.
// The counters are bumped at every settlement.
type Pile struct {
	PileID                    int             `json:"pile_id" db:"pile_id"`
	Kind                      PileKind        `json:"kind" db:"kind"`
	Status                    PileStatus      `json:"status" db:"status"`
	RegisterTime              time.Time       `json:"register_time" db:"register_time"`
	CumulativeUsageTimes      int             `json:"cumulative_usage_times" db:"cumulative_usage_times"`
	CumulativeChargingSeconds int64           `json:"cumulative_charging_time" db:"cumulative_charging_time"`
	CumulativeChargingAmount  decimal.Decimal `json:"cumulative_charging_amount" db:"cumulative_charging_amount"`
}

// Order is one settled charging session.
type Order struct {
	OrderID        string          `json:"order_id" db:"order_id"`
	Username       string          `json:"username" db:"username"`
	PileID         int             `json:"pile_id" db:"pile_id"`
	CreateTime     time.Time       `json:"create_time" db:"create_time"`
	BeginTime      time.Time       `json:"begin_time" db:"begin_time"`
	EndTime        time.Time       `json:"end_time" db:"end_time"`
	ChargedAmount  decimal.Decimal `json:"charged_amount" db:"charged_amount"`
	ChargedSeconds int64           `json:"charged_time" db:"charged_time"`
	ChargingCost   decimal.Decimal `json:"charging_cost" db:"charging_cost"`
	ServiceCost    decimal.Decimal `json:"service_cost" db:"service_cost"`
	TotalCost      decimal.Decimal `json:"total_cost" db:"total_cost"`
}

// PileReport is a pile row joined with its aggregated order earnings.
type PileReport struct {
	Pile
	CumulativeChargingEarning decimal.Decimal `json:"cumulative_charging_earning"`
	CumulativeServiceEarning  decimal.Decimal `json:"cumulative_service_earning"`
	CumulativeEarning         decimal.Decimal `json:"cumulative_earning"`
}
