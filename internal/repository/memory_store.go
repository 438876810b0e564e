package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
)

const memoryChannelBuffer = 256

// MemoryStore keeps work orders in process. It also implements realtime.Feed
// so the sync client can run without PostgreSQL.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     map[string]*domain.WorkOrder
	numbers  map[string]string
	seq      int64
	channels map[*memoryChannel]string
	pingErr  error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:     map[string]*domain.WorkOrder{},
		numbers:  map[string]string{},
		channels: map[*memoryChannel]string{},
	}
}

func (s *MemoryStore) NextSequence(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Insert(ctx context.Context, wo *domain.WorkOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.numbers[wo.Number]; taken {
		return fmt.Errorf("insert work order %s: %w", wo.ID, ErrDuplicateNumber)
	}
	if _, exists := s.rows[wo.ID]; exists {
		return fmt.Errorf("insert work order %s: id already present", wo.ID)
	}
	row := cloneWorkOrder(wo)
	s.rows[wo.ID] = &row
	s.numbers[wo.Number] = wo.ID
	s.publishLocked(realtime.ChangeInsert, &row)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("get work order %s: %w", id, ErrNotFound)
	}
	out := cloneWorkOrder(row)
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, wo *domain.WorkOrder, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[wo.ID]
	if !ok {
		return fmt.Errorf("update work order %s: %w", wo.ID, ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("update work order %s at version %d: %w", wo.ID, expectedVersion, ErrVersionConflict)
	}
	row := cloneWorkOrder(wo)
	row.Number = current.Number
	row.CreatedAt = current.CreatedAt
	row.Version = expectedVersion + 1
	s.rows[wo.ID] = &row
	wo.Version = row.Version
	s.publishLocked(realtime.ChangeUpdate, &row)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return false, nil
	}
	delete(s.rows, id)
	delete(s.numbers, row.Number)
	s.publishLocked(realtime.ChangeDelete, row)
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]domain.WorkOrder, 0, len(s.rows))
	for _, row := range s.rows {
		if matchesFilter(row, filter) {
			result = append(result, cloneWorkOrder(row))
		}
	}
	s.mu.RUnlock()

	sortWorkOrders(result, filter.OrderBy)

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.WorkOrder{}, nil
	}
	result = result[offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Ping reports the error configured by SetPingError.
func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// SetPingError makes Ping fail until it is reset with nil.
func (s *MemoryStore) SetPingError(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}

func matchesFilter(wo *domain.WorkOrder, filter WorkOrderFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, wo.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, wo.Priority) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term == "" {
			return true
		}
		for _, field := range []string{wo.Number, wo.Vehicle.Display, wo.Requester.Display, wo.Mechanic.Display, string(wo.Status)} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
}

func containsStatus(set []domain.WorkOrderStatus, s domain.WorkOrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(set []domain.Priority, p domain.Priority) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}

func sortWorkOrders(list []domain.WorkOrder, order WorkOrderOrder) {
	switch order {
	case OrderExecutionAsc:
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i].ExecutionOrder, list[j].ExecutionOrder
			switch {
			case a != nil && b != nil && *a != *b:
				return *a < *b
			case a != nil && b == nil:
				return true
			case a == nil && b != nil:
				return false
			}
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	case OrderCreatedAtDesc:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})
	default:
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
				return list[i].ID < list[j].ID
			}
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		})
	}
}

// Open subscribes to the in-process change feed. Only the work_orders table
// exists; other names report CHANNEL_ERROR.
func (s *MemoryStore) Open(table, name string) realtime.Channel {
	ch := newMemoryChannel(name, s)
	if table != WorkOrdersTable {
		ch.statuses <- realtime.StatusChannelError
		return ch
	}
	s.mu.Lock()
	s.channels[ch] = table
	s.mu.Unlock()
	ch.statuses <- realtime.StatusSubscribed
	return ch
}

// DisconnectAll reports CLOSED on every open channel and drops them, as a
// lost database connection would.
func (s *MemoryStore) DisconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.channels {
		delete(s.channels, ch)
		ch.signal(realtime.StatusClosed)
	}
}

func (s *MemoryStore) publishLocked(kind realtime.ChangeType, wo *domain.WorkOrder) {
	if len(s.channels) == 0 {
		return
	}
	raw, err := EncodeRow(wo)
	if err != nil {
		return
	}
	change := realtime.Change{Type: kind, Table: WorkOrdersTable, Record: raw}
	for ch := range s.channels {
		select {
		case ch.changes <- change:
		default:
			// A subscriber that cannot keep up loses its channel and must resubscribe.
			delete(s.channels, ch)
			ch.signal(realtime.StatusChannelError)
		}
	}
}

func (s *MemoryStore) detach(ch *memoryChannel) {
	s.mu.Lock()
	delete(s.channels, ch)
	s.mu.Unlock()
}

type memoryChannel struct {
	name     string
	store    *MemoryStore
	changes  chan realtime.Change
	statuses chan realtime.ChannelStatus
	once     sync.Once
}

func newMemoryChannel(name string, store *MemoryStore) *memoryChannel {
	return &memoryChannel{
		name:     name,
		store:    store,
		changes:  make(chan realtime.Change, memoryChannelBuffer),
		statuses: make(chan realtime.ChannelStatus, 2),
	}
}

func (c *memoryChannel) Name() string                            { return c.name }
func (c *memoryChannel) Changes() <-chan realtime.Change          { return c.changes }
func (c *memoryChannel) Statuses() <-chan realtime.ChannelStatus { return c.statuses }

func (c *memoryChannel) Close() {
	c.once.Do(func() { c.store.detach(c) })
}

func (c *memoryChannel) signal(status realtime.ChannelStatus) {
	select {
	case c.statuses <- status:
	default:
	}
}
