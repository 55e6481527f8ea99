package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/liuqk23/PileFlow/control_plane/observability"
	"github.com/liuqk23/PileFlow/control_plane/scheduler"
	"github.com/liuqk23/PileFlow/control_plane/store"
)

// Clock yields the mocked current time used to stamp orders.
type Clock interface {
	Now() time.Time
}

// Service settles finished charging sessions into persisted orders and
// bumps the pile's cumulative counters. It implements scheduler.Biller.
type Service struct {
	store store.Store
	clock Clock
}

// NewService creates a billing service over the given store.
func NewService(st store.Store, clock Clock) *Service {
	return &Service{store: st, clock: clock}
}

// Settle prices the session, persists the order and updates pile counters.
func (s *Service) Settle(ctx context.Context, stl scheduler.Settlement) error {
	total, charging, service := CalcCost(stl.BeginTime, stl.EndTime, stl.Amount)
	chargedSeconds := int64(stl.EndTime.Sub(stl.BeginTime).Seconds())

	order := &store.Order{
		OrderID:        uuid.NewString(),
		Username:       stl.Username,
		PileID:         stl.PileID,
		CreateTime:     s.clock.Now(),
		BeginTime:      stl.BeginTime,
		EndTime:        stl.EndTime,
		ChargedAmount:  stl.Amount,
		ChargedSeconds: chargedSeconds,
		ChargingCost:   charging,
		ServiceCost:    service,
		TotalCost:      total,
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("save order for user %s: %w", stl.Username, err)
	}
	if err := s.store.BumpPileCounters(ctx, stl.PileID, chargedSeconds, stl.Amount); err != nil {
		return fmt.Errorf("bump counters of pile %d: %w", stl.PileID, err)
	}

	observability.OrdersCreated.Inc()
	observability.ChargeSessionSeconds.Observe(float64(chargedSeconds))
	log.Printf("[billing] order %s created for user %s (total %s)", order.OrderID, stl.Username, total)
	return nil
}
