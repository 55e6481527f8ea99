package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liuqk23/PileFlow/control_plane/store"
)

// manualClock is a hand-driven Clock for deterministic tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 6, 8, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockBiller records settlements instead of persisting orders.
type mockBiller struct {
	mu          sync.Mutex
	settlements []Settlement
	failErr     error
}

func (b *mockBiller) Settle(ctx context.Context, s Settlement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return b.failErr
	}
	b.settlements = append(b.settlements, s)
	return nil
}

func (b *mockBiller) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.settlements)
}

func testPiles(kinds ...store.PileKind) []*store.Pile {
	piles := make([]*store.Pile, 0, len(kinds))
	for i, k := range kinds {
		piles = append(piles, &store.Pile{
			PileID: i + 1,
			Kind:   k,
			Status: store.StatusRunning,
		})
	}
	return piles
}

func newTestScheduler(t *testing.T, kinds ...store.PileKind) (*Scheduler, *manualClock, *mockBiller) {
	t.Helper()
	clock := newManualClock()
	biller := &mockBiller{}
	sched := NewScheduler(testPiles(kinds...), biller, clock, DefaultConfig())
	return sched, clock, biller
}

func mustSubmit(t *testing.T, s *Scheduler, kind store.PileKind, username, amount string) {
	t.Helper()
	err := s.SubmitRequest(context.Background(), kind, username, decimal.RequireFromString(amount), decimal.RequireFromString("60.00"))
	if err != nil {
		t.Fatalf("submit %s failed: %v", username, err)
	}
}

func mustStatus(t *testing.T, s *Scheduler, username string) RequestStatus {
	t.Helper()
	id, err := s.GetRequestIDByUsername(username)
	if err != nil {
		t.Fatalf("no request id for %s: %v", username, err)
	}
	status, err := s.GetRequestStatus(id)
	if err != nil {
		t.Fatalf("no status for %s: %v", username, err)
	}
	return status
}

func TestSubmitAssignsAndCompletes(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")

	status := mustStatus(t, sched, "alice")
	if status.Status != StatusCharging {
		t.Fatalf("Expected CHARGING after one dispatch pass, got %s", status.Status)
	}
	if status.PileID != 1 || status.Position != 0 {
		t.Errorf("Expected pile 1 position 0, got pile %d position %d", status.PileID, status.Position)
	}

	// 5.00 kWh at 30 kW = 600 mock seconds.
	clock.Advance(599 * time.Second)
	sched.sweepCompleted(ctx)
	if biller.count() != 0 {
		t.Fatal("Settled before the charge completed")
	}

	clock.Advance(2 * time.Second)
	sched.sweepCompleted(ctx)
	if biller.count() != 1 {
		t.Fatalf("Expected 1 settlement, got %d", biller.count())
	}
	stl := biller.settlements[0]
	if !stl.Amount.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("Expected charged amount 5.00, got %s", stl.Amount)
	}
	if stl.PileID != 1 {
		t.Errorf("Expected settlement on pile 1, got %d", stl.PileID)
	}

	if _, err := sched.GetRequestIDByUsername("alice"); !errors.Is(err, ErrMappingNotExisted) {
		t.Error("User mapping should be cleared after completion")
	}
	if len(sched.Snapshot()) != 0 {
		t.Error("Snapshot should be empty after completion")
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	err := sched.SubmitRequest(context.Background(), store.KindSlow, "alice",
		decimal.RequireFromString("3.00"), decimal.RequireFromString("60.00"))
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Errorf("Expected ErrAlreadyRequested, got %v", err)
	}
}

func TestWaitingAreaOverflow(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)

	// 5 fill the single pile queue, 20 fill the waiting area.
	for i := 0; i < 25; i++ {
		mustSubmit(t, sched, store.KindSlow, fmt.Sprintf("user%02d", i), "5.00")
	}

	err := sched.SubmitRequest(context.Background(), store.KindSlow, "straggler",
		decimal.RequireFromString("5.00"), decimal.RequireFromString("60.00"))
	if !errors.Is(err, ErrOutOfSpace) {
		t.Errorf("Expected ErrOutOfSpace for the 21st waiting request, got %v", err)
	}

	// The admission bound is shared across both kinds.
	err = sched.SubmitRequest(context.Background(), store.KindFast, "fastguy",
		decimal.RequireFromString("5.00"), decimal.RequireFromString("60.00"))
	if !errors.Is(err, ErrOutOfSpace) {
		t.Errorf("Expected ErrOutOfSpace for the other kind too, got %v", err)
	}
}

func TestStage1PositionEstimate(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)

	for i := 0; i < 6; i++ {
		mustSubmit(t, sched, store.KindSlow, fmt.Sprintf("user%02d", i), "5.00")
	}

	// user05 is first in the waiting area behind a pile queue of 5.
	status := mustStatus(t, sched, "user05")
	if status.Status != StatusWaitingStage1 {
		t.Fatalf("Expected WAITINGSTAGE1, got %s", status.Status)
	}
	if status.Position != 5 {
		t.Errorf("Expected pessimistic position 5, got %d", status.Position)
	}
	if status.PileID != 0 {
		t.Errorf("Expected no pile assignment, got %d", status.PileID)
	}
}

func TestUpdateAmountInPlace(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)

	for i := 0; i < 6; i++ {
		mustSubmit(t, sched, store.KindSlow, fmt.Sprintf("user%02d", i), "5.00")
	}

	id, _ := sched.GetRequestIDByUsername("user05")
	err := sched.UpdateRequest(context.Background(), id, decimal.RequireFromString("9.00"), store.KindSlow)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Same id, new amount, still stage 1.
	if got, _ := sched.GetRequestIDByUsername("user05"); got != id {
		t.Errorf("Same-kind update must keep the request id, got %d want %d", got, id)
	}
	for _, info := range sched.Snapshot() {
		if info.Username == "user05" && !info.RequireAmount.Equal(decimal.RequireFromString("9.00")) {
			t.Errorf("Expected updated amount 9.00, got %s", info.RequireAmount)
		}
	}
}

func TestUpdateModeFlipRequeues(t *testing.T) {
	sched, _, biller := newTestScheduler(t, store.KindSlow)

	for i := 0; i < 5; i++ {
		mustSubmit(t, sched, store.KindSlow, fmt.Sprintf("user%02d", i), "5.00")
	}
	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")

	oldID, _ := sched.GetRequestIDByUsername("alice")
	err := sched.UpdateRequest(context.Background(), oldID, decimal.RequireFromString("6.00"), store.KindFast)
	if err != nil {
		t.Fatalf("mode flip failed: %v", err)
	}

	// No order: the old request never reached a pile.
	if biller.count() != 0 {
		t.Error("Mode flip must not settle an order")
	}

	status := mustStatus(t, sched, "alice")
	if status.Status != StatusChangeModeRequeue {
		t.Errorf("Expected CHANGEMODEREQUEUE, got %s", status.Status)
	}
	for _, info := range sched.Snapshot() {
		if info.Username == "alice" && !info.RequireAmount.Equal(decimal.RequireFromString("6.00")) {
			t.Errorf("Expected re-submitted amount 6.00, got %s", info.RequireAmount)
		}
	}
}

func TestUpdateRejectedOncePiled(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	id, _ := sched.GetRequestIDByUsername("alice")

	err := sched.UpdateRequest(context.Background(), id, decimal.RequireFromString("9.00"), store.KindSlow)
	if !errors.Is(err, ErrIllegalUpdate) {
		t.Errorf("Expected ErrIllegalUpdate, got %v", err)
	}

	// The request is unchanged.
	status := mustStatus(t, sched, "alice")
	if status.Status != StatusCharging {
		t.Errorf("Request must be untouched by a rejected update, got %s", status.Status)
	}
}

func TestCancelWaitingLeavesTombstone(t *testing.T) {
	sched, _, biller := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustSubmit(t, sched, store.KindSlow, fmt.Sprintf("user%02d", i), "5.00")
	}
	mustSubmit(t, sched, store.KindSlow, "fiona", "5.00")
	mustSubmit(t, sched, store.KindSlow, "grace", "5.00")

	// Cancel fiona while she is still in the waiting area: no order.
	fionaID, _ := sched.GetRequestIDByUsername("fiona")
	if err := sched.EndRequest(ctx, fionaID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if biller.count() != 0 {
		t.Error("Cancelling a waiting request must not settle an order")
	}

	// Complete the executing head; dispatch must skip fiona's tombstone
	// and place grace.
	headID, _ := sched.GetRequestIDByUsername("user00")
	if err := sched.EndRequest(ctx, headID); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	status := mustStatus(t, sched, "grace")
	if status.Status != StatusWaitingStage2 {
		t.Errorf("Expected grace dispatched to the pile, got %s", status.Status)
	}
	if status.Position != 4 {
		t.Errorf("Expected grace at tail position 4, got %d", status.Position)
	}
}

func TestCancelExecutingSettlesFullAmount(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	clock.Advance(60 * time.Second) // well before the 600s completion

	id, _ := sched.GetRequestIDByUsername("alice")
	if err := sched.EndRequest(ctx, id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if biller.count() != 1 {
		t.Fatalf("Expected an order for a mid-charge cancellation, got %d", biller.count())
	}
	// The books record the requested amount, not the delivered energy.
	if !biller.settlements[0].Amount.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("Expected charged amount 5.00, got %s", biller.settlements[0].Amount)
	}
}

func TestBrakeTimeOrderedRecovery(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindFast, store.KindFast)
	ctx := context.Background()

	// u1->pile1, u2->pile2, u3->pile1, u4->pile2 by shortest finish time.
	for _, name := range []string{"u1", "u2", "u3", "u4"} {
		mustSubmit(t, sched, store.KindFast, name, "5.00")
		clock.Advance(time.Second)
	}
	if got := mustStatus(t, sched, "u3"); got.PileID != 1 {
		t.Fatalf("Expected u3 queued on pile 1, got %d", got.PileID)
	}

	if err := sched.Brake(ctx, 1); err != nil {
		t.Fatalf("brake failed: %v", err)
	}

	// The executing u1 was settled into an order; nobody else was.
	if biller.count() != 1 {
		t.Fatalf("Expected 1 settlement on brake, got %d", biller.count())
	}
	if biller.settlements[0].Username != "u1" {
		t.Errorf("Expected u1 settled, got %s", biller.settlements[0].Username)
	}

	// u2, u3 and u4 were re-pooled by create time and drained onto pile 2.
	u2 := mustStatus(t, sched, "u2")
	u3 := mustStatus(t, sched, "u3")
	u4 := mustStatus(t, sched, "u4")
	if u2.Status != StatusCharging || u2.PileID != 2 {
		t.Errorf("Expected u2 CHARGING on pile 2, got %s on pile %d", u2.Status, u2.PileID)
	}
	if u3.PileID != 2 || u3.Position != 1 {
		t.Errorf("Expected u3 on pile 2 position 1, got pile %d position %d", u3.PileID, u3.Position)
	}
	if u4.PileID != 2 || u4.Position != 2 {
		t.Errorf("Expected u4 on pile 2 position 2, got pile %d position %d", u4.PileID, u4.Position)
	}
	if sched.Mode() != ModeNormal {
		t.Errorf("Expected NORMAL after the recovery queue drained, got %s", sched.Mode())
	}
}

func TestBrakeWithoutSparePileParksRequests(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindFast)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		mustSubmit(t, sched, store.KindFast, fmt.Sprintf("v%d", i), "5.00")
		clock.Advance(time.Second)
	}

	if err := sched.Brake(ctx, 1); err != nil {
		t.Fatalf("brake failed: %v", err)
	}
	if biller.count() != 1 {
		t.Fatalf("Expected only the executing v1 settled, got %d", biller.count())
	}

	// No spare fast pile: the tail is parked in the recovery queue.
	if sched.Mode() != ModeTimeOrdered {
		t.Fatalf("Expected TIME_ORDERED while requests are parked, got %s", sched.Mode())
	}
	v2 := mustStatus(t, sched, "v2")
	if v2.Status != StatusFailRequeue || v2.Position != 0 {
		t.Errorf("Expected v2 FAILREQUEUE position 0, got %s position %d", v2.Status, v2.Position)
	}

	// Cancelling a parked request unlinks it from the recovery queue.
	v3ID, _ := sched.GetRequestIDByUsername("v3")
	if err := sched.EndRequest(ctx, v3ID); err != nil {
		t.Fatalf("cancel of parked request failed: %v", err)
	}
	v4 := mustStatus(t, sched, "v4")
	if v4.Status != StatusFailRequeue || v4.Position != 1 {
		t.Errorf("Expected v4 FAILREQUEUE position 1 after v3 cancel, got %s position %d", v4.Status, v4.Position)
	}
	if biller.count() != 1 {
		t.Error("Cancelling a parked request must not settle an order")
	}
}

func TestRecoverRedistributes(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindFast)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		mustSubmit(t, sched, store.KindFast, fmt.Sprintf("v%d", i), "5.00")
		clock.Advance(time.Second)
	}
	if err := sched.Brake(ctx, 1); err != nil {
		t.Fatalf("brake failed: %v", err)
	}

	if err := sched.Recover(ctx, 1); err != nil {
		t.Fatalf("recover failed: %v", err)
	}

	// The parked tail lands back on the recovered pile in create order.
	v2 := mustStatus(t, sched, "v2")
	if v2.Status != StatusCharging || v2.PileID != 1 {
		t.Errorf("Expected v2 CHARGING on pile 1, got %s on pile %d", v2.Status, v2.PileID)
	}
	v3 := mustStatus(t, sched, "v3")
	if v3.Status != StatusWaitingStage2 || v3.Position != 1 {
		t.Errorf("Expected v3 queued at position 1, got %s position %d", v3.Status, v3.Position)
	}
	if sched.Mode() != ModeNormal {
		t.Errorf("Expected NORMAL after redistribution, got %s", sched.Mode())
	}
	if biller.count() != 1 {
		t.Errorf("Recover must not settle orders, got %d", biller.count())
	}
}

func TestRecoverKeepsExecutingElsewhere(t *testing.T) {
	sched, clock, _ := newTestScheduler(t, store.KindFast, store.KindFast)
	ctx := context.Background()

	for _, name := range []string{"u1", "u2", "u3", "u4"} {
		mustSubmit(t, sched, store.KindFast, name, "5.00")
		clock.Advance(time.Second)
	}
	if err := sched.Brake(ctx, 1); err != nil {
		t.Fatalf("brake failed: %v", err)
	}
	// u2 keeps executing on pile 2 through the recovery.
	beforeBegin := mustStatus(t, sched, "u2")
	if err := sched.Recover(ctx, 1); err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	after := mustStatus(t, sched, "u2")
	if after.Status != StatusCharging || after.PileID != beforeBegin.PileID {
		t.Errorf("Executing request must continue undisturbed, got %s on pile %d", after.Status, after.PileID)
	}

	// The tails were re-pooled and pile 1 is a target again.
	u3 := mustStatus(t, sched, "u3")
	if u3.PileID != 1 {
		t.Errorf("Expected u3 redistributed to the recovered pile 1, got %d", u3.PileID)
	}
}

func TestBillerFailurePropagates(t *testing.T) {
	sched, _, biller := newTestScheduler(t, store.KindSlow)
	biller.failErr = errors.New("db down")

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	id, _ := sched.GetRequestIDByUsername("alice")

	if err := sched.EndRequest(context.Background(), id); err == nil {
		t.Error("Expected settlement failure to propagate")
	}
}

func TestUnknownLookupsFail(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	if _, err := sched.GetRequestIDByUsername("ghost"); !errors.Is(err, ErrMappingNotExisted) {
		t.Errorf("Expected ErrMappingNotExisted, got %v", err)
	}
	if _, err := sched.GetRequestStatus(42); !errors.Is(err, ErrMappingNotExisted) {
		t.Errorf("Expected ErrMappingNotExisted, got %v", err)
	}
	if err := sched.EndRequest(ctx, 42); !errors.Is(err, ErrMappingNotExisted) {
		t.Errorf("Expected ErrMappingNotExisted, got %v", err)
	}
	if err := sched.UpdateRequest(ctx, 42, decimal.RequireFromString("1.00"), store.KindSlow); !errors.Is(err, ErrMappingNotExisted) {
		t.Errorf("Expected ErrMappingNotExisted, got %v", err)
	}
	if err := sched.Brake(ctx, 99); !errors.Is(err, ErrPileNotFound) {
		t.Errorf("Expected ErrPileNotFound, got %v", err)
	}
	if err := sched.Recover(ctx, 99); !errors.Is(err, ErrPileNotFound) {
		t.Errorf("Expected ErrPileNotFound, got %v", err)
	}
}

func TestIDPoolExhaustionAndReuse(t *testing.T) {
	clock := newManualClock()
	biller := &mockBiller{}
	cfg := DefaultConfig()
	cfg.MaxRecycleID = 2
	sched := NewScheduler(nil, biller, clock, cfg)
	ctx := context.Background()

	mustSubmit(t, sched, store.KindSlow, "a", "5.00")
	mustSubmit(t, sched, store.KindSlow, "b", "5.00")

	err := sched.SubmitRequest(ctx, store.KindSlow, "c",
		decimal.RequireFromString("5.00"), decimal.RequireFromString("60.00"))
	if !errors.Is(err, ErrOutOfIDs) {
		t.Fatalf("Expected ErrOutOfIDs, got %v", err)
	}

	// Ending a request frees its id for reuse.
	idA, _ := sched.GetRequestIDByUsername("a")
	if err := sched.EndRequest(ctx, idA); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	mustSubmit(t, sched, store.KindSlow, "c", "5.00")
	idC, _ := sched.GetRequestIDByUsername("c")
	if idC != idA {
		t.Errorf("Expected recycled id %d, got %d", idA, idC)
	}
}

func TestSnapshotTracksWaitingTime(t *testing.T) {
	sched, clock, _ := newTestScheduler(t, store.KindSlow)

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	clock.Advance(90 * time.Second)

	infos := sched.Snapshot()
	if len(infos) != 1 {
		t.Fatalf("Expected 1 snapshot row, got %d", len(infos))
	}
	if infos[0].WaitingSeconds != 90 {
		t.Errorf("Expected 90 waiting seconds, got %d", infos[0].WaitingSeconds)
	}
	if infos[0].Username != "alice" || infos[0].PileID != 1 {
		t.Errorf("Unexpected snapshot row: %+v", infos[0])
	}
}

func TestWatcherPromotesSuccessor(t *testing.T) {
	sched, clock, biller := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00") // 600s
	mustSubmit(t, sched, store.KindSlow, "bob", "5.00")

	clock.Advance(601 * time.Second)
	sched.sweepCompleted(ctx)

	if biller.count() != 1 {
		t.Fatalf("Expected alice settled, got %d settlements", biller.count())
	}
	bob := mustStatus(t, sched, "bob")
	if bob.Status != StatusCharging || bob.Position != 0 {
		t.Errorf("Expected bob promoted to CHARGING, got %s position %d", bob.Status, bob.Position)
	}

	// Bob's clock starts at promotion, not admission.
	clock.Advance(599 * time.Second)
	sched.sweepCompleted(ctx)
	if biller.count() != 1 {
		t.Error("Bob settled too early; begin time must be stamped at promotion")
	}
	clock.Advance(2 * time.Second)
	sched.sweepCompleted(ctx)
	if biller.count() != 2 {
		t.Errorf("Expected bob settled, got %d settlements", biller.count())
	}
}

func TestDispatchPrefersShortestFinishTime(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow, store.KindSlow)

	mustSubmit(t, sched, store.KindSlow, "big", "20.00") // pile 1, 2400s
	mustSubmit(t, sched, store.KindSlow, "mid", "5.00")  // pile 2, 600s
	mustSubmit(t, sched, store.KindSlow, "next", "1.00")

	// pile 2 (600s) beats pile 1 (2400s).
	status := mustStatus(t, sched, "next")
	if status.PileID != 2 {
		t.Errorf("Expected shortest-finish pile 2, got %d", status.PileID)
	}
}

func TestDispatchTieBreaksByLowestPileID(t *testing.T) {
	sched, _, _ := newTestScheduler(t, store.KindSlow, store.KindSlow)

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	status := mustStatus(t, sched, "alice")
	if status.PileID != 1 {
		t.Errorf("Expected tie broken to pile 1, got %d", status.PileID)
	}
}

func TestTimelineRecordsLifecycle(t *testing.T) {
	sched, clock, _ := newTestScheduler(t, store.KindSlow)
	ctx := context.Background()

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	id, _ := sched.GetRequestIDByUsername("alice")

	clock.Advance(601 * time.Second)
	sched.sweepCompleted(ctx)

	events := sched.GetTimeline().GetEvents(id)
	stages := make([]string, 0, len(events))
	for _, e := range events {
		stages = append(stages, e.Stage)
	}
	want := []string{"SUBMITTED", "DISPATCHED", "SETTLED"}
	if len(stages) != len(want) {
		t.Fatalf("Expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("Expected stages %v, got %v", want, stages)
		}
	}
}

func TestBrokenPileAtBootExcluded(t *testing.T) {
	clock := newManualClock()
	biller := &mockBiller{}
	piles := testPiles(store.KindSlow, store.KindSlow)
	piles[0].Status = store.StatusShutdown
	sched := NewScheduler(piles, biller, clock, DefaultConfig())

	mustSubmit(t, sched, store.KindSlow, "alice", "5.00")
	status := mustStatus(t, sched, "alice")
	if status.PileID != 2 {
		t.Errorf("Expected dispatch to skip the shutdown pile, got %d", status.PileID)
	}
}
