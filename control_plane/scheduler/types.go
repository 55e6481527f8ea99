package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liuqk23/PileFlow/control_plane/store"
)

// Clock yields the mocked current time. Implemented by timemock.Clock.
type Clock interface {
	Now() time.Time
}

// Settlement is the payload handed to the biller when an executing request
// ends, either by completing or by being cancelled mid-charge.
type Settlement struct {
	Username  string
	PileID    int
	Kind      store.PileKind
	Amount    decimal.Decimal
	BeginTime time.Time
	EndTime   time.Time
}

// Biller settles a finished charging session into a persisted order.
type Biller interface {
	Settle(ctx context.Context, s Settlement) error
}

// Request is one live charging request owned by the scheduler.
type Request struct {
	ID              int
	Username        string
	Kind            store.PileKind
	Amount          decimal.Decimal
	BatteryCapacity decimal.Decimal
	CreateTime      time.Time
	BeginTime       time.Time // zero until promoted to executing
	PileID          int       // 0 until dispatched to a pile

	inPileQueue bool
	executing   bool
	removed     bool
	requeueFlag bool
	failFlag    bool
}

// String renders the user-visible charging id, e.g. "S3" or "F17".
func (r *Request) String() string {
	return fmt.Sprintf("%c%d", r.Kind.String()[0], r.ID)
}

// StatusType is the externally visible state of a request.
type StatusType int

const (
	StatusNotCharging StatusType = iota
	StatusWaitingStage1
	StatusWaitingStage2
	StatusCharging
	StatusChangeModeRequeue
	StatusFailRequeue
)

func (s StatusType) String() string {
	switch s {
	case StatusNotCharging:
		return "NOTCHARGING"
	case StatusWaitingStage1:
		return "WAITINGSTAGE1"
	case StatusWaitingStage2:
		return "WAITINGSTAGE2"
	case StatusCharging:
		return "CHARGING"
	case StatusChangeModeRequeue:
		return "CHANGEMODEREQUEUE"
	case StatusFailRequeue:
		return "FAILREQUEUE"
	default:
		return "UNKNOWN"
	}
}

// RequestStatus is the answer to a status query.
type RequestStatus struct {
	Status   StatusType
	Position int
	PileID   int // 0 when not assigned to a pile
}

// RequestInfo is one row of the admin snapshot.
type RequestInfo struct {
	RequestID      int             `json:"request_id"`
	PileID         int             `json:"pile_id"`
	Username       string          `json:"username"`
	BatterySize    decimal.Decimal `json:"battery_size"`
	RequireAmount  decimal.Decimal `json:"require_amount"`
	WaitingSeconds int64           `json:"waiting_time"`
}

// SchedulingMode selects how a dispatch pass treats the recovery queue.
type SchedulingMode int

const (
	ModeNormal SchedulingMode = iota
	// ModePriority re-queues only the broken pile's own requests.
	ModePriority
	// ModeTimeOrdered re-pools every same-kind pile queue ordered by
	// create time, so earlier users re-queue first.
	ModeTimeOrdered
	// ModeRecovery redistributes same-kind tails after a pile comes back.
	ModeRecovery
)

func (m SchedulingMode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModePriority:
		return "PRIORITY"
	case ModeTimeOrdered:
		return "TIME_ORDERED"
	case ModeRecovery:
		return "RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// Config holds the scheduler sizing constants.
type Config struct {
	// MaxRecycleID bounds the recyclable request id pool.
	MaxRecycleID int
	// WaitingAreaCapacity bounds the two waiting areas combined.
	WaitingAreaCapacity int
	// PileQueueCapacity bounds each per-pile queue.
	PileQueueCapacity int

	SlowPowerKW float64
	FastPowerKW float64

	// PollInterval is the real-time period of the completion watcher.
	PollInterval time.Duration

	// BrakePolicy is the recovery queue policy applied on brake.
	// ModeTimeOrdered is the default; ModePriority only drains the broken
	// pile's own queue.
	BrakePolicy SchedulingMode
}

// DefaultConfig returns the station's production sizing.
func DefaultConfig() Config {
	return Config{
		MaxRecycleID:        1000,
		WaitingAreaCapacity: 20,
		PileQueueCapacity:   5,
		SlowPowerKW:         30.00,
		FastPowerKW:         60.00,
		PollInterval:        time.Second,
		BrakePolicy:         ModeTimeOrdered,
	}
}

// PowerKW returns the charging power for a pile kind.
func (c Config) PowerKW(kind store.PileKind) float64 {
	if kind == store.KindFast {
		return c.FastPowerKW
	}
	return c.SlowPowerKW
}
