package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore holds users, piles and orders in process memory.
// It implements the Store interface and backs tests and dev mode.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	piles    map[int]*Pile
	orders   []*Order
	nextUser int64
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		piles:    make(map[int]*Pile),
		nextUser: 1,
	}
}

// --- User Operations ---

func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return ErrUserExists
	}
	user.UserID = s.nextUser
	s.nextUser++
	u := *user
	s.users[user.Username] = &u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	userCopy := *u
	return &userCopy, nil
}

func (s *MemoryStore) SetAdmin(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	u.IsAdmin = true
	return nil
}

// --- Pile Operations ---

func (s *MemoryStore) ListPiles(ctx context.Context) ([]*Pile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Pile, 0, len(s.piles))
	for _, p := range s.piles {
		pileCopy := *p
		result = append(result, &pileCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PileID < result[j].PileID })
	return result, nil
}

func (s *MemoryStore) GetPile(ctx context.Context, pileID int) (*Pile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.piles[pileID]
	if !ok {
		return nil, ErrPileNotFound
	}
	pileCopy := *p
	return &pileCopy, nil
}

func (s *MemoryStore) UpdatePileStatus(ctx context.Context, pileID int, status PileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.piles[pileID]
	if !ok {
		return ErrPileNotFound
	}
	p.Status = status
	return nil
}

func (s *MemoryStore) BumpPileCounters(ctx context.Context, pileID int, seconds int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.piles[pileID]
	if !ok {
		return ErrPileNotFound
	}
	p.CumulativeUsageTimes++
	p.CumulativeChargingSeconds += seconds
	p.CumulativeChargingAmount = p.CumulativeChargingAmount.Add(amount)
	return nil
}

func (s *MemoryStore) SeedPiles(ctx context.Context, piles []*Pile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.piles) > 0 {
		return nil
	}
	for _, p := range piles {
		pileCopy := *p
		s.piles[p.PileID] = &pileCopy
	}
	return nil
}

// --- Order Operations ---

func (s *MemoryStore) SaveOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderCopy := *order
	s.orders = append(s.orders, &orderCopy)
	return nil
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, username string) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Order
	for _, o := range s.orders {
		if o.Username == username {
			orderCopy := *o
			result = append(result, &orderCopy)
		}
	}
	return result, nil
}

func (s *MemoryStore) PileReport(ctx context.Context) ([]*PileReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports := make([]*PileReport, 0, len(s.piles))
	for _, p := range s.piles {
		r := &PileReport{
			Pile:                      *p,
			CumulativeChargingEarning: decimal.Zero,
			CumulativeServiceEarning:  decimal.Zero,
			CumulativeEarning:         decimal.Zero,
		}
		for _, o := range s.orders {
			if o.PileID != p.PileID {
				continue
			}
			r.CumulativeChargingEarning = r.CumulativeChargingEarning.Add(o.ChargingCost)
			r.CumulativeServiceEarning = r.CumulativeServiceEarning.Add(o.ServiceCost)
			r.CumulativeEarning = r.CumulativeEarning.Add(o.TotalCost)
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].PileID < reports[j].PileID })
	return reports, nil
}
