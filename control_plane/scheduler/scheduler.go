package scheduler

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liuqk23/PileFlow/control_plane/observability"
	"github.com/liuqk23/PileFlow/control_plane/store"
	"github.com/liuqk23/PileFlow/control_plane/timeline"
)

// Scheduler is the charging dispatch engine. It admits requests into the
// bounded waiting areas, assigns them to the pile with the shortest
// estimated finish time, drives each pile's queue, and re-orchestrates
// outstanding work when a pile goes down or comes back.
//
// Lock order is checkMu before mu, never the reverse. brake/recover hold
// checkMu so the completion watcher cannot race a settlement while queues
// are being rewired.
type Scheduler struct {
	cfg    Config
	clock  Clock
	biller Biller

	checkMu sync.Mutex // held by brake/recover and the completion watcher
	mu      sync.Mutex // guards everything below

	alloc      *idAllocator
	piles      map[int]*pileQueue
	pileIDs    []int // ascending, for deterministic tie-breaking
	requests   map[int]*Request
	userToID   map[string]int
	waiting    map[store.PileKind]*waitingArea
	mode       SchedulingMode
	brokenPile int
	recovery   []*Request

	timeline *timeline.Store
}

// NewScheduler builds a scheduler over the configured piles. Piles whose
// status is not RUNNING start out broken. The completion watcher is started
// separately via Start.
func NewScheduler(piles []*store.Pile, biller Biller, clock Clock, cfg Config) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		clock:    clock,
		biller:   biller,
		alloc:    newIDAllocator(cfg.MaxRecycleID),
		piles:    make(map[int]*pileQueue),
		requests: make(map[int]*Request),
		userToID: make(map[string]int),
		waiting: map[store.PileKind]*waitingArea{
			store.KindSlow: {},
			store.KindFast: {},
		},
		mode:     ModeNormal,
		timeline: timeline.NewStore(),
	}
	for _, p := range piles {
		pq := newPileQueue(p.PileID, p.Kind, cfg.PowerKW(p.Kind), cfg.PileQueueCapacity)
		pq.broken = p.Status != store.StatusRunning
		s.piles[p.PileID] = pq
		s.pileIDs = append(s.pileIDs, p.PileID)
	}
	sort.Ints(s.pileIDs)
	return s
}

// SubmitRequest admits a new charging request into the waiting area and runs
// a dispatch pass.
func (s *Scheduler) SubmitRequest(ctx context.Context, kind store.PileKind, username string, amount, batteryCapacity decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, kind, username, amount, batteryCapacity, false)
}

func (s *Scheduler) submitLocked(ctx context.Context, kind store.PileKind, username string, amount, batteryCapacity decimal.Decimal, requeue bool) error {
	if _, ok := s.userToID[username]; ok {
		observability.RequestsRejected.WithLabelValues("already_requested").Inc()
		return ErrAlreadyRequested
	}

	used := s.waiting[store.KindSlow].count + s.waiting[store.KindFast].count
	if used == s.cfg.WaitingAreaCapacity {
		observability.RequestsRejected.WithLabelValues("out_of_space").Inc()
		return ErrOutOfSpace
	}

	id, err := s.alloc.alloc()
	if err != nil {
		observability.RequestsRejected.WithLabelValues("out_of_ids").Inc()
		return err
	}
	r := &Request{
		ID:              id,
		Username:        username,
		Kind:            kind,
		Amount:          amount,
		BatteryCapacity: batteryCapacity,
		CreateTime:      s.clock.Now(),
		requeueFlag:     requeue,
	}

	s.requests[id] = r
	s.userToID[username] = id
	s.waiting[kind].push(r)
	observability.RequestsSubmitted.WithLabelValues(kind.String()).Inc()

	log.Printf("[scheduler] request %d from user %s submitted", id, username)
	s.timeline.Record(timeline.ChargeEvent{
		RequestID: id,
		Username:  username,
		Stage:     "SUBMITTED",
		Timestamp: r.CreateTime,
	})

	s.dispatchLocked(ctx)
	return nil
}

// EndRequest removes a request, settling it into an order if it was
// executing. Both user cancellation and watcher-detected completion land
// here.
func (s *Scheduler) EndRequest(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endLocked(ctx, id)
}

func (s *Scheduler) endLocked(ctx context.Context, id int) error {
	r, ok := s.requests[id]
	if !ok {
		return ErrMappingNotExisted
	}
	delete(s.requests, id)
	r.removed = true
	s.alloc.free(id)
	delete(s.userToID, r.Username)

	if r.failFlag {
		// Cancelled while awaiting re-dispatch; unlink from the
		// recovery queue so it is not handed to a pile again.
		for i, queued := range s.recovery {
			if queued.ID == id {
				s.recovery = append(s.recovery[:i], s.recovery[i+1:]...)
				break
			}
		}
		observability.RequestsEnded.WithLabelValues("cancelled").Inc()
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: id, Username: r.Username, Stage: "CANCELLED", Timestamp: s.clock.Now(),
		})
		s.refreshGaugesLocked()
		return nil
	}

	if !r.inPileQueue {
		s.waiting[r.Kind].drop()
		observability.RequestsEnded.WithLabelValues("cancelled").Inc()
		log.Printf("[scheduler] request %d is cancelled", id)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: id, Username: r.Username, Stage: "CANCELLED", Timestamp: s.clock.Now(),
		})
		s.refreshGaugesLocked()
		return nil
	}

	pq := s.piles[r.PileID]
	wasExecuting := r.executing
	now := s.clock.Now()
	pq.remove(id, now)
	r.inPileQueue = false

	if wasExecuting {
		if !s.completedAt(r, now) {
			log.Printf("[scheduler] request %d is cancelled while executing", id)
		}
		stl := Settlement{
			Username:  r.Username,
			PileID:    r.PileID,
			Kind:      r.Kind,
			Amount:    r.Amount,
			BeginTime: r.CreateTime,
			EndTime:   now,
		}
		if err := s.biller.Settle(ctx, stl); err != nil {
			return err
		}
		observability.RequestsEnded.WithLabelValues("settled").Inc()
		log.Printf("[scheduler] request %d created an order", id)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: id, Username: r.Username, Stage: "SETTLED", PileID: stl.PileID, Timestamp: now,
		})
	} else {
		observability.RequestsEnded.WithLabelValues("cancelled").Inc()
		log.Printf("[scheduler] request %d is cancelled", id)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: id, Username: r.Username, Stage: "CANCELLED", Timestamp: now,
		})
	}

	// The pile queue has a free slot now.
	s.dispatchLocked(ctx)
	return nil
}

// UpdateRequest changes a waiting request's amount, or re-submits it at the
// tail of the other kind's waiting area when the mode changes. Requests
// already assigned to a pile cannot be updated.
func (s *Scheduler) UpdateRequest(ctx context.Context, id int, amount decimal.Decimal, kind store.PileKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrMappingNotExisted
	}
	if r.inPileQueue {
		return ErrIllegalUpdate
	}

	if r.Kind == kind {
		r.Amount = amount
		return nil
	}

	if err := s.endLocked(ctx, id); err != nil {
		return err
	}
	return s.submitLocked(ctx, kind, r.Username, amount, r.BatteryCapacity, true)
}

// GetRequestIDByUsername resolves a user's live request id.
func (s *Scheduler) GetRequestIDByUsername(username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.userToID[username]
	if !ok {
		return 0, ErrMappingNotExisted
	}
	return id, nil
}

// GetRequestStatus reports the externally visible state of a request.
func (s *Scheduler) GetRequestStatus(id int) (RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return RequestStatus{}, ErrMappingNotExisted
	}
	if r.removed {
		return RequestStatus{Status: StatusNotCharging, Position: -1}, nil
	}
	if r.executing {
		return RequestStatus{Status: StatusCharging, Position: 0, PileID: r.PileID}, nil
	}
	if r.failFlag {
		pos := 0
		for i, queued := range s.recovery {
			if queued.ID == id {
				pos = i
				break
			}
		}
		return RequestStatus{Status: StatusFailRequeue, Position: pos}, nil
	}
	if r.inPileQueue {
		pq := s.piles[r.PileID]
		return RequestStatus{Status: StatusWaitingStage2, Position: pq.findPosition(id), PileID: r.PileID}, nil
	}

	status := StatusWaitingStage1
	if r.requeueFlag {
		status = StatusChangeModeRequeue
	}
	area := s.waiting[r.Kind]
	pos := area.positionOf(id)
	if pos < 0 {
		pos = area.count
	}
	// Pessimistic ahead-of-me estimate: everyone in front in the waiting
	// area plus the deepest pile queue.
	maxUsed := 0
	for _, pq := range s.piles {
		if pq.usedSize() > maxUsed {
			maxUsed = pq.usedSize()
		}
	}
	return RequestStatus{Status: status, Position: pos + maxUsed}, nil
}

// Snapshot lists every live request for the admin monitor.
func (s *Scheduler) Snapshot() []RequestInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	infos := make([]RequestInfo, 0, len(s.requests))
	for _, r := range s.requests {
		infos = append(infos, RequestInfo{
			RequestID:      r.ID,
			PileID:         r.PileID,
			Username:       r.Username,
			BatterySize:    r.BatteryCapacity,
			RequireAmount:  r.Amount,
			WaitingSeconds: int64(now.Sub(r.CreateTime).Seconds()),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].RequestID < infos[j].RequestID })
	return infos
}

// GetTimeline returns the scheduler's charge-event trail.
func (s *Scheduler) GetTimeline() *timeline.Store {
	return s.timeline
}

// Mode returns the current scheduling mode.
func (s *Scheduler) Mode() SchedulingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Brake takes a pile down. Its executing request is settled, and the
// displaced tail is pooled into the recovery queue for re-dispatch. Under
// the default TIME_ORDERED policy every same-kind pile is re-pooled, ordered
// by create time so earlier users re-queue first.
func (s *Scheduler) Brake(ctx context.Context, pileID int) error {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	pq, ok := s.piles[pileID]
	if !ok {
		return ErrPileNotFound
	}
	log.Printf("[recovery] pile %d is down", pileID)
	pq.broken = true

	// Settle the in-flight session first so the head cannot be both
	// settled and re-queued.
	if exec := pq.executing(); exec != nil {
		if err := s.endLocked(ctx, exec.ID); err != nil {
			return err
		}
	}

	var displaced []*Request
	policy := s.cfg.BrakePolicy
	switch policy {
	case ModePriority:
		displaced = pq.fetchAndClear(true)
	default:
		// Every same-kind pile is re-pooled, in-flight sessions
		// included; only the broken pile's head was settled above.
		policy = ModeTimeOrdered
		for _, id := range s.pileIDs {
			other := s.piles[id]
			if other.kind != pq.kind {
				continue
			}
			displaced = append(displaced, other.fetchAndClear(true)...)
		}
	}
	// Requests from an earlier fault that never found a spare pile are
	// still in the recovery queue; carry them over instead of dropping.
	displaced = append(displaced, s.recovery...)
	if policy == ModeTimeOrdered {
		sortByCreateTime(displaced)
	}
	for _, r := range displaced {
		r.PileID = 0
		r.failFlag = true
		r.inPileQueue = false
		r.executing = false
		observability.RecoveryRequeues.Inc()
		log.Printf("[recovery] request %d has been moved to recovery queue", r.ID)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: r.ID, Username: r.Username, Stage: "REQUEUED", Timestamp: s.clock.Now(),
		})
	}

	s.mode = policy
	s.brokenPile = pileID
	s.recovery = displaced
	observability.PileFaults.WithLabelValues("brake").Inc()

	s.dispatchLocked(ctx)
	return nil
}

// Recover brings a pile back. Non-executing tails of every same-kind pile
// are re-pooled by create time and redistributed, with the recovered pile
// back in the candidate set. Executing requests continue undisturbed.
func (s *Scheduler) Recover(ctx context.Context, pileID int) error {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	pq, ok := s.piles[pileID]
	if !ok {
		return ErrPileNotFound
	}
	log.Printf("[recovery] pile %d is up", pileID)
	pq.broken = false

	var displaced []*Request
	for _, id := range s.pileIDs {
		other := s.piles[id]
		if other.kind != pq.kind {
			continue
		}
		displaced = append(displaced, other.fetchAndClear(false)...)
	}
	for _, r := range displaced {
		r.PileID = 0
		r.failFlag = true
		r.inPileQueue = false
		observability.RecoveryRequeues.Inc()
		log.Printf("[recovery] request %d has been moved to recovery queue", r.ID)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: r.ID, Username: r.Username, Stage: "REQUEUED", Timestamp: s.clock.Now(),
		})
	}
	displaced = append(displaced, s.recovery...)
	sortByCreateTime(displaced)

	s.mode = ModeRecovery
	s.brokenPile = pileID
	s.recovery = displaced
	observability.PileFaults.WithLabelValues("recover").Inc()

	s.dispatchLocked(ctx)
	return nil
}

// dispatchLocked is a single dispatch pass. Recovery-queue draining runs
// first; the pass is non-blocking and idempotent.
func (s *Scheduler) dispatchLocked(ctx context.Context) {
	if s.mode != ModeNormal {
		kind := s.piles[s.brokenPile].kind
		for len(s.recovery) > 0 {
			target := s.fastestSparePileLocked(kind)
			if target == nil {
				break
			}
			r := s.recovery[0]
			s.recovery = s.recovery[1:]
			r.failFlag = false
			r.PileID = target.pileID
			r.inPileQueue = true
			target.push(r, s.clock.Now())
			log.Printf("[recovery] request %d has been moved into queue of pile %d", r.ID, target.pileID)
			s.timeline.Record(timeline.ChargeEvent{
				RequestID: r.ID, Username: r.Username, Stage: "DISPATCHED", PileID: target.pileID, Timestamp: s.clock.Now(),
			})
		}
		if len(s.recovery) == 0 {
			s.mode = ModeNormal
			log.Printf("[recovery] recovery queue is empty now, resume scheduling")
		}
	}

	s.dispatchKindLocked(store.KindSlow)
	s.dispatchKindLocked(store.KindFast)
	s.refreshGaugesLocked()
}

func (s *Scheduler) dispatchKindLocked(kind store.PileKind) {
	for {
		target := s.fastestSparePileLocked(kind)
		if target == nil {
			return
		}
		r := s.waiting[kind].pop()
		if r == nil {
			return
		}
		r.inPileQueue = true
		r.PileID = target.pileID
		target.push(r, s.clock.Now())
		observability.DispatchesTotal.WithLabelValues(kind.String()).Inc()
		log.Printf("[scheduler] request %d has been moved into queue of pile %d", r.ID, r.PileID)
		s.timeline.Record(timeline.ChargeEvent{
			RequestID: r.ID, Username: r.Username, Stage: "DISPATCHED", PileID: r.PileID, Timestamp: s.clock.Now(),
		})
	}
}

// fastestSparePileLocked picks the non-broken pile of the given kind with
// room and the smallest estimated finish time; ties go to the lowest pile id.
func (s *Scheduler) fastestSparePileLocked(kind store.PileKind) *pileQueue {
	var fastest *pileQueue
	shortest := 0.0
	for _, id := range s.pileIDs {
		pq := s.piles[id]
		if pq.broken || pq.kind != kind || !pq.hasRoom() {
			continue
		}
		cost := pq.estimateSeconds()
		if fastest != nil && shortest <= cost {
			continue
		}
		fastest = pq
		shortest = cost
	}
	return fastest
}

// completedAt reports whether a request's charge has been fully delivered
// by the given mock instant.
func (s *Scheduler) completedAt(r *Request, now time.Time) bool {
	amount, _ := r.Amount.Float64()
	d := time.Duration(amount / s.cfg.PowerKW(r.Kind) * 3600 * float64(time.Second))
	return !now.Before(r.BeginTime.Add(d))
}

func (s *Scheduler) refreshGaugesLocked() {
	for kind, area := range s.waiting {
		observability.WaitingAreaDepth.WithLabelValues(kind.String()).Set(float64(area.count))
	}
	for _, id := range s.pileIDs {
		observability.PileQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(s.piles[id].usedSize()))
	}
	for _, m := range []SchedulingMode{ModeNormal, ModePriority, ModeTimeOrdered, ModeRecovery} {
		v := 0.0
		if m == s.mode {
			v = 1.0
		}
		observability.SchedulerModeMetric.WithLabelValues(m.String()).Set(v)
	}
}

func sortByCreateTime(requests []*Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].CreateTime.Equal(requests[j].CreateTime) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreateTime.Before(requests[j].CreateTime)
	})
}

