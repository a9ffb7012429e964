package order

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps orders in memory. It is used when no Redis address is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[int64]*Order
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]*Order),
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}

	return o.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *MemoryStore) BeginAttempt(_ context.Context, id int64, phoneNumber string) error {
	_, err := s.update(id, beginAttempt(phoneNumber))
	return err
}

func (s *MemoryStore) SaveAttempt(_ context.Context, id int64, a Attempt) error {
	_, err := s.update(id, saveAttempt(a))
	return err
}

func (s *MemoryStore) AddNote(_ context.Context, id int64, note string) error {
	_, err := s.update(id, addNote(note))
	return err
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id int64, status Status, note string) (bool, error) {
	return s.update(id, updateStatus(status, note))
}

func (s *MemoryStore) MarkPaid(_ context.Context, id int64, transactionRef, note string) (bool, error) {
	return s.update(id, markPaid(transactionRef, note))
}

// update applies fn to a copy of the order and stores it only if fn succeeded.
func (s *MemoryStore) update(id int64, fn mutation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}

	c := o.Clone()

	changed, err := fn(c, s.now())
	if err != nil || !changed {
		return false, err
	}

	s.orders[id] = c
	return true, nil
}
